package handlers

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/grantsops/grants-engine/pkg/apperrors"
	"github.com/grantsops/grants-engine/pkg/models"
)

func newAgreementMux(svc *stubAgreementService, history *stubHistoryService) *http.ServeMux {
	mux := http.NewServeMux()
	NewAgreementHandler(svc, history, zap.NewNop()).RegisterRoutes(mux, noWrap)
	return mux
}

func TestCreateAgreementRequiresName(t *testing.T) {
	mux := newAgreementMux(&stubAgreementService{}, &stubHistoryService{})

	rec := doRequest(mux, http.MethodPost, "/api/v1/agreements", `{"description": "no name"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(mux, http.MethodPost, "/api/v1/agreements", `{"name": "Imaging modernization"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAgreementHistoryClampsLimit(t *testing.T) {
	history := &stubHistoryService{}
	mux := newAgreementMux(&stubAgreementService{}, history)

	rec := doRequest(mux, http.MethodGet, "/api/v1/agreements/3/history?limit=9999&offset=20", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxListLimit, history.gotLimit)
	assert.Equal(t, 20, history.gotOffset)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestAgreementHistoryDefaultsLimit(t *testing.T) {
	history := &stubHistoryService{entries: []*models.HistoryEntry{{TransactionID: uuid.New()}}}
	mux := newAgreementMux(&stubAgreementService{}, history)

	rec := doRequest(mux, http.MethodGet, "/api/v1/agreements/3/history", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultListLimit, history.gotLimit)
}

func TestAgreementHistoryNotFound(t *testing.T) {
	history := &stubHistoryService{err: apperrors.ErrNotFound}
	mux := newAgreementMux(&stubAgreementService{}, history)

	rec := doRequest(mux, http.MethodGet, "/api/v1/agreements/999/history", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEntityHistoryPassesPathValues(t *testing.T) {
	history := &stubHistoryService{records: []*models.AuditRecord{{ID: uuid.New()}}}
	mux := newAgreementMux(&stubAgreementService{}, history)

	rec := doRequest(mux, http.MethodGet, "/api/v1/history/BudgetLineItem/15", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BudgetLineItem", history.gotClass)
	assert.Equal(t, "15", history.gotRowKey)
}

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/google/uuid"

	"github.com/grantsops/grants-engine/pkg/models"
	"github.com/grantsops/grants-engine/pkg/repositories"
	"github.com/grantsops/grants-engine/pkg/services"
)

// noWrap is the identity middleware chain; handler tests exercise routing and
// status mapping, not auth.
func noWrap(next http.HandlerFunc) http.HandlerFunc { return next }

func doRequest(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

type stubBudgetLineItemService struct {
	item       *models.BudgetLineItem
	items      []*models.BudgetLineItem
	result     *services.UpdateResult
	err        error
	gotID      int64
	gotPatch   *services.BudgetLineItemPatch
	gotFull    bool
	gotFilter  repositories.BudgetLineItemFilter
	deletedIDs []int64
}

func (s *stubBudgetLineItemService) Create(ctx context.Context, bli *models.BudgetLineItem) (*models.BudgetLineItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	return bli, nil
}

func (s *stubBudgetLineItemService) Get(ctx context.Context, id int64) (*models.BudgetLineItem, error) {
	s.gotID = id
	return s.item, s.err
}

func (s *stubBudgetLineItemService) List(ctx context.Context, filter repositories.BudgetLineItemFilter) ([]*models.BudgetLineItem, error) {
	s.gotFilter = filter
	return s.items, s.err
}

func (s *stubBudgetLineItemService) Update(ctx context.Context, id int64, patch *services.BudgetLineItemPatch, full bool) (*services.UpdateResult, error) {
	s.gotID = id
	s.gotPatch = patch
	s.gotFull = full
	return s.result, s.err
}

func (s *stubBudgetLineItemService) Delete(ctx context.Context, id int64) error {
	s.deletedIDs = append(s.deletedIDs, id)
	return s.err
}

var _ services.BudgetLineItemService = (*stubBudgetLineItemService)(nil)

type stubChangeReviewService struct {
	reviewed   *models.ChangeRequest
	pending    []*models.ChangeRequest
	err        error
	gotID      uuid.UUID
	gotApprove bool
	gotLimit   int
	gotOffset  int
}

func (s *stubChangeReviewService) Review(ctx context.Context, id uuid.UUID, approve bool) (*models.ChangeRequest, error) {
	s.gotID = id
	s.gotApprove = approve
	return s.reviewed, s.err
}

func (s *stubChangeReviewService) ListForReviewer(ctx context.Context, limit, offset int) ([]*models.ChangeRequest, error) {
	s.gotLimit = limit
	s.gotOffset = offset
	return s.pending, s.err
}

var _ services.ChangeReviewService = (*stubChangeReviewService)(nil)

type stubPinger struct{ err error }

func (p *stubPinger) Ping(ctx context.Context) error { return p.err }

type stubAgreementService struct {
	agreement *models.Agreement
	err       error
	gotPatch  *services.AgreementPatch
}

func (s *stubAgreementService) Create(ctx context.Context, a *models.Agreement, teamMemberIDs []int64) (*models.Agreement, error) {
	if s.err != nil {
		return nil, s.err
	}
	return a, nil
}

func (s *stubAgreementService) Get(ctx context.Context, id int64) (*models.Agreement, error) {
	return s.agreement, s.err
}

func (s *stubAgreementService) Update(ctx context.Context, id int64, patch *services.AgreementPatch) (*models.Agreement, error) {
	s.gotPatch = patch
	return s.agreement, s.err
}

var _ services.AgreementService = (*stubAgreementService)(nil)

type stubHistoryService struct {
	entries   []*models.HistoryEntry
	records   []*models.AuditRecord
	err       error
	gotLimit  int
	gotOffset int
	gotClass  string
	gotRowKey string
}

func (s *stubHistoryService) FindAgreementHistory(ctx context.Context, agreementID int64, limit, offset int) ([]*models.HistoryEntry, error) {
	s.gotLimit = limit
	s.gotOffset = offset
	return s.entries, s.err
}

func (s *stubHistoryService) FindEntityHistory(ctx context.Context, className, rowKey string) ([]*models.AuditRecord, error) {
	s.gotClass = className
	s.gotRowKey = rowKey
	return s.records, s.err
}

var _ services.HistoryService = (*stubHistoryService)(nil)

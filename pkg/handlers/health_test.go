package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthOK(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler(&stubPinger{}, "1.2.3").RegisterRoutes(mux)

	rec := doRequest(mux, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
}

func TestHealthDegraded(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler(&stubPinger{err: errors.New("no route to host")}, "dev").RegisterRoutes(mux)

	rec := doRequest(mux, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

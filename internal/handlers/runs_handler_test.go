package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/pumpkin/internal/handlers"
)

func TestListRunsReturnsSuccessEnvelope(t *testing.T) {
	svc, runStore, _ := newTestService(t)
	ctx := httpTestContext()

	_, err := runStore.CreateRun(ctx, 1, 1, nil)
	require.NoError(t, err)

	h := handlers.NewRunsHandler(svc, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=10", nil)
	w := httptest.NewRecorder()

	h.ListRuns(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["data"], 1)
}

func TestLatestReturns404WhenNoRuns(t *testing.T) {
	svc, _, _ := newTestService(t)

	h := handlers.NewRunsHandler(svc, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/runs/latest", nil)
	w := httptest.NewRecorder()

	h.Latest(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}

func TestRunItemServesTestsSubResource(t *testing.T) {
	svc, runStore, testStore := newTestService(t)
	ctx := httpTestContext()

	run, err := runStore.CreateRun(ctx, 1, 1, nil)
	require.NoError(t, err)
	_, err = testStore.InsertUrlTest(ctx, run.ID, sampleMeasurement("https://a.com", "a.com"))
	require.NoError(t, err)

	h := handlers.NewRunsHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+itoa(run.ID)+"/tests", nil)
	w := httptest.NewRecorder()
	h.RunItem(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body["data"], 1)
}

func TestRunItemRejectsNonNumericID(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := handlers.NewRunsHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/not-a-number", nil)
	w := httptest.NewRecorder()
	h.RunItem(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

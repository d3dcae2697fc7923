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

func TestTestItemReturnsTest(t *testing.T) {
	svc, runStore, testStore := newTestService(t)
	ctx := httpTestContext()

	run, err := runStore.CreateRun(ctx, 1, 1, nil)
	require.NoError(t, err)
	ut, err := testStore.InsertUrlTest(ctx, run.ID, sampleMeasurement("https://a.com", "a.com"))
	require.NoError(t, err)

	h := handlers.NewTestsHandler(svc, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/tests/"+itoa(ut.ID), nil)
	w := httptest.NewRecorder()
	h.TestItem(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
}

func TestTestItemNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := handlers.NewTestsHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tests/999", nil)
	w := httptest.NewRecorder()
	h.TestItem(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

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

func TestStatsDispatchSlowestAndFastest(t *testing.T) {
	svc, runStore, testStore := newTestService(t)
	ctx := httpTestContext()

	run, err := runStore.CreateRun(ctx, 2, 1, nil)
	require.NoError(t, err)
	_, err = testStore.InsertUrlTest(ctx, run.ID, sampleMeasurement("https://slow.com", "slow.com"))
	require.NoError(t, err)
	_, err = testStore.InsertUrlTest(ctx, run.ID, sampleMeasurement("https://fast.com", "fast.com"))
	require.NoError(t, err)

	h := handlers.NewStatsHandler(svc, nil)

	for _, kind := range []string{"slowest", "fastest", "latest", "errors"} {
		req := httptest.NewRequest(http.MethodGet, "/api/stats/"+kind, nil)
		w := httptest.NewRecorder()
		h.Dispatch(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "kind=%s", kind)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, true, body["success"], "kind=%s", kind)
	}
}

func TestStatsDispatchUnknownKind(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := handlers.NewStatsHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stats/bogus", nil)
	w := httptest.NewRecorder()
	h.Dispatch(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

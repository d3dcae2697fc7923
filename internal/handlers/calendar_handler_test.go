package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/pumpkin/internal/handlers"
)

func TestCalendarAvailableDates(t *testing.T) {
	svc, runStore, _ := newTestService(t)
	ctx := httpTestContext()

	_, err := runStore.CreateRun(ctx, 1, 1, nil)
	require.NoError(t, err)

	h := handlers.NewCalendarHandler(svc, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/calendar/available-dates", nil)
	w := httptest.NewRecorder()
	h.Dispatch(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCalendarRunsByDateRequiresDateParam(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := handlers.NewCalendarHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/calendar/runs-by-date", nil)
	w := httptest.NewRecorder()
	h.Dispatch(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

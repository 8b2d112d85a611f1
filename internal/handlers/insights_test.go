package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/tandemhq/tandem-api/internal/models"
	"github.com/tandemhq/tandem-api/internal/request"
	"github.com/tandemhq/tandem-api/internal/services/insights"
)

type fakeTipProvider struct {
	tip      *insights.Tip
	err      error
	gotTasks int
	gotZone  string
}

func (f *fakeTipProvider) DailyTip(_ context.Context, tasks []*models.HouseholdTask, timezone string) (*insights.Tip, error) {
	f.gotTasks = len(tasks)
	f.gotZone = timezone
	if f.err != nil {
		return nil, f.err
	}
	return f.tip, nil
}

func newInsightsRouter(repo *fakeTaskRepo, provider insights.TipProvider) *mux.Router {
	router := mux.NewRouter()
	NewInsightsHandler(repo, provider).RegisterRoutes(router.PathPrefix("/api/v1/insights").Subrouter())
	return router
}

func TestGetTip(t *testing.T) {
	t.Parallel()

	t.Run("returns tip from incomplete tasks", func(t *testing.T) {
		t.Parallel()
		repo := newFakeTaskRepo()
		user := testUser()
		user.Timezone = "Europe/Madrid"

		provider := &fakeTipProvider{tip: &insights.Tip{Message: "Split the weekend chores.", FocusArea: "balance"}}
		router := newInsightsRouter(repo, provider)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/insights/tip", nil)
		req = req.WithContext(request.WithUser(req.Context(), user))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
		}
		var tip insights.Tip
		decodeData(t, rec, &tip)
		if tip.Message != "Split the weekend chores." {
			t.Errorf("message = %q", tip.Message)
		}
		if provider.gotZone != "Europe/Madrid" {
			t.Errorf("timezone = %q, want user's zone", provider.gotZone)
		}
	})

	t.Run("no provider configured", func(t *testing.T) {
		t.Parallel()
		router := newInsightsRouter(newFakeTaskRepo(), nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/insights/tip", nil)
		req = req.WithContext(request.WithUser(req.Context(), testUser()))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("rate limited provider", func(t *testing.T) {
		t.Parallel()
		provider := &fakeTipProvider{err: &insights.APIError{StatusCode: http.StatusTooManyRequests, Type: "rate_limit_exceeded"}}
		router := newInsightsRouter(newFakeTaskRepo(), provider)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/insights/tip", nil)
		req = req.WithContext(request.WithUser(req.Context(), testUser()))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}

package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/tandemhq/tandem-api/internal/database"
	"github.com/tandemhq/tandem-api/internal/request"
	"github.com/tandemhq/tandem-api/internal/services/insights"
)

// InsightsHandler serves generated coordination tips
type InsightsHandler struct {
	taskRepo database.TaskRepositoryInterface
	provider insights.TipProvider
}

// NewInsightsHandler creates a new insights handler. The provider may be nil
// when no AI backend is configured; the endpoint then reports unavailability.
func NewInsightsHandler(taskRepo database.TaskRepositoryInterface, provider insights.TipProvider) *InsightsHandler {
	return &InsightsHandler{taskRepo: taskRepo, provider: provider}
}

// RegisterRoutes registers insights routes on the given router
// The router should already have the /insights prefix
func (h *InsightsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/tip", h.GetTip).Methods("GET")
}

// tipTaskSample caps how many upcoming tasks feed the tip generator.
const tipTaskSample = 50

// GetTip generates a coordination tip from the couple's incomplete tasks
func (h *InsightsHandler) GetTip(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	if h.provider == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Tip generation is not configured")
		return
	}

	ctx := r.Context()

	incomplete := false
	filter := database.TaskFilter{Completed: &incomplete}
	taskList, _, err := h.taskRepo.GetByOwnerPaginated(ctx, user.ID, filter, 1, tipTaskSample)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve tasks")
		return
	}

	tip, err := h.provider.DailyTip(ctx, taskList, user.Timezone)
	if err != nil {
		if insights.IsRateLimitError(err) || insights.IsQuotaError(err) {
			respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Tip generation is temporarily unavailable")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to generate tip")
		return
	}

	respondJSON(w, http.StatusOK, tip)
}

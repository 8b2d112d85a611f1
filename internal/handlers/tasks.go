package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/tandemhq/tandem-api/internal/database"
	"github.com/tandemhq/tandem-api/internal/models"
	"github.com/tandemhq/tandem-api/internal/recurrence"
	"github.com/tandemhq/tandem-api/internal/request"
	"github.com/tandemhq/tandem-api/internal/tasks"
	"github.com/tandemhq/tandem-api/internal/validation"
)

// TaskHandler handles task-related requests
type TaskHandler struct {
	taskRepo  database.TaskRepositoryInterface
	lifecycle *tasks.Lifecycle
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskRepo database.TaskRepositoryInterface, lifecycle *tasks.Lifecycle) *TaskHandler {
	return &TaskHandler{taskRepo: taskRepo, lifecycle: lifecycle}
}

// RegisterRoutes registers task routes on the given router
// The router should already have the /tasks prefix (e.g., from apiRouter.PathPrefix("/tasks"))
func (h *TaskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTasks).Methods("GET")
	r.HandleFunc("", h.CreateTask).Methods("POST")
	r.HandleFunc("/{id}", h.GetTask).Methods("GET")
	r.HandleFunc("/{id}", h.UpdateTask).Methods("PATCH")
	r.HandleFunc("/{id}", h.DeleteTask).Methods("DELETE")
	r.HandleFunc("/{id}/complete", h.CompleteTask).Methods("POST")
	r.HandleFunc("/{id}/occurrences", h.ListOccurrences).Methods("GET")
}

const (
	// MaxTaskTitleLength is the maximum length for a task title
	MaxTaskTitleLength = 500
	// MaxTaskDescriptionLength is the maximum length for a task description
	MaxTaskDescriptionLength = 10000
	// DefaultPageSize is the default page size for pagination
	DefaultPageSize = 20
	// MaxPageSize is the maximum page size for pagination
	MaxPageSize = 100
	// DefaultOccurrenceCount is the default number of previewed occurrences
	DefaultOccurrenceCount = 5
	// MaxOccurrenceCount is the maximum number of previewed occurrences
	MaxOccurrenceCount = 52
)

// CreateTaskRequest represents a create task request. DueDate accepts any of
// the shapes ParseDueDate understands (RFC 3339, date-only, epoch).
type CreateTaskRequest struct {
	Title       string              `json:"title" validate:"required,min=1,max=500"`
	Description string              `json:"description,omitempty" validate:"omitempty,max=10000"`
	DueDate     any                 `json:"due_date,omitempty"`
	Recurrence  *recurrence.Options `json:"recurrence,omitempty"`
}

// UpdateTaskRequest represents a partial task update. DueDate and Recurrence
// are raw so that an explicit JSON null (clear the field) can be told apart
// from the key being absent (leave it alone).
type UpdateTaskRequest struct {
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	DueDate     json.RawMessage `json:"due_date,omitempty"`
	Recurrence  json.RawMessage `json:"recurrence,omitempty"`
}

// TaskResponse wraps a task with derived scheduling state.
type TaskResponse struct {
	*models.HouseholdTask
	Overdue bool `json:"overdue"`
}

// ListTasksResponse represents the paginated response for listing tasks
type ListTasksResponse struct {
	Tasks      []*TaskResponse `json:"tasks"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
}

// OccurrencesResponse represents a preview of upcoming occurrences
type OccurrencesResponse struct {
	TaskID      uuid.UUID `json:"task_id"`
	Occurrences []string  `json:"occurrences"`
}

func (h *TaskHandler) taskResponse(task *models.HouseholdTask) *TaskResponse {
	return &TaskResponse{
		HouseholdTask: task,
		Overdue:       h.lifecycle.IsOverdue(task),
	}
}

// ListTasks lists tasks for the authenticated user with pagination
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	ctx := r.Context()

	// Parse pagination parameters
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	pageSize := DefaultPageSize
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 {
			if parsed > MaxPageSize {
				pageSize = MaxPageSize
			} else {
				pageSize = parsed
			}
		}
	}

	var filter database.TaskFilter
	if c := r.URL.Query().Get("completed"); c != "" {
		completed, err := strconv.ParseBool(c)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid completed filter, must be true or false")
			return
		}
		filter.Completed = &completed
	}
	if o := r.URL.Query().Get("overdue"); o != "" {
		overdue, err := strconv.ParseBool(o)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid overdue filter, must be true or false")
			return
		}
		filter.Overdue = overdue
	}

	taskList, total, err := h.taskRepo.GetByOwnerPaginated(ctx, user.ID, filter, page, pageSize)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve tasks")
		return
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	responses := make([]*TaskResponse, 0, len(taskList))
	for _, task := range taskList {
		responses = append(responses, h.taskResponse(task))
	}

	response := ListTasksResponse{
		Tasks:      responses,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}

	respondJSON(w, http.StatusOK, response)
}

// CreateTask creates a new task
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req CreateTaskRequest
	decoder := json.NewDecoder(r.Body)
	// Numbers stay json.Number so epoch due dates survive intact
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil {
		// Check if error is due to request size limit
		if maxBytesErr, ok := err.(*http.MaxBytesError); ok {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	// Validate request (recurrence options are validated as a nested struct)
	if err := validation.Validate.Struct(req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fieldError := range validationErrors {
				respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Validation failed: %s", fieldError.Error()))
				return
			}
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed")
		return
	}

	// Sanitize text input
	req.Title = validation.SanitizeText(req.Title)
	if req.Title == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Title is required and cannot be empty after sanitization")
		return
	}
	if len(req.Title) > MaxTaskTitleLength {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Title exceeds maximum length of %d characters", MaxTaskTitleLength))
		return
	}
	req.Description = validation.SanitizeText(req.Description)

	task, err := h.lifecycle.Create(user.ID, req.Title, req.Description, req.DueDate, req.Recurrence)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	ctx := r.Context()
	if err := h.taskRepo.Create(ctx, task); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create task")
		return
	}

	respondJSON(w, http.StatusCreated, h.taskResponse(task))
}

// GetTask retrieves a task by ID
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	ctx := r.Context()
	task, err := h.taskRepo.GetByID(ctx, id)
	if err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
		return
	}

	if !canView(user, task) {
		respondJSONError(w, http.StatusForbidden, "Forbidden", "Task does not belong to user")
		return
	}

	respondJSON(w, http.StatusOK, h.taskResponse(task))
}

// UpdateTask applies a partial update to an existing task
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	ctx := r.Context()
	task, err := h.taskRepo.GetByID(ctx, id)
	if err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
		return
	}

	// Only the owner can edit
	if task.OwnerID != user.ID {
		respondJSONError(w, http.StatusForbidden, "Forbidden", "Task does not belong to user")
		return
	}

	var req UpdateTaskRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		// Check if error is due to request size limit
		if maxBytesErr, ok := err.(*http.MaxBytesError); ok {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	changes, errMsg := buildChanges(&req)
	if errMsg != "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", errMsg)
		return
	}

	if err := h.lifecycle.Edit(task, changes); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	if err := h.taskRepo.Update(ctx, task); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update task")
		return
	}

	respondJSON(w, http.StatusOK, h.taskResponse(task))
}

// buildChanges translates the wire-level PATCH body into lifecycle changes,
// validating field values along the way. It returns a message for the client
// when a field is invalid.
func buildChanges(req *UpdateTaskRequest) (tasks.Changes, string) {
	var changes tasks.Changes

	if req.Title != nil {
		sanitized := validation.SanitizeText(*req.Title)
		if sanitized == "" {
			return changes, "Title cannot be empty after sanitization"
		}
		if len(sanitized) > MaxTaskTitleLength {
			return changes, fmt.Sprintf("Title exceeds maximum length of %d characters", MaxTaskTitleLength)
		}
		changes.Title = &sanitized
	}

	if req.Description != nil {
		sanitized := validation.SanitizeText(*req.Description)
		if len(sanitized) > MaxTaskDescriptionLength {
			return changes, fmt.Sprintf("Description exceeds maximum length of %d characters", MaxTaskDescriptionLength)
		}
		changes.Description = &sanitized
	}

	if len(req.DueDate) > 0 {
		var value any
		dec := json.NewDecoder(bytes.NewReader(req.DueDate))
		dec.UseNumber()
		if err := dec.Decode(&value); err != nil {
			return changes, "Invalid due_date value"
		}
		changes.DueDate = value
		changes.DueDateSet = true
	}

	if len(req.Recurrence) > 0 {
		changes.RecurrenceSet = true
		if !bytes.Equal(bytes.TrimSpace(req.Recurrence), []byte("null")) {
			var opts recurrence.Options
			if err := json.Unmarshal(req.Recurrence, &opts); err != nil {
				return changes, "Invalid recurrence value"
			}
			if err := validation.Validate.Struct(opts); err != nil {
				if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
					return changes, fmt.Sprintf("Validation failed: %s", validationErrors[0].Error())
				}
				return changes, "Invalid recurrence value"
			}
			changes.Recurrence = &opts
		}
	}

	return changes, ""
}

// DeleteTask deletes a task
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	ctx := r.Context()
	task, err := h.taskRepo.GetByID(ctx, id)
	if err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
		return
	}

	// Only the owner can delete
	if task.OwnerID != user.ID {
		respondJSONError(w, http.StatusForbidden, "Forbidden", "Task does not belong to user")
		return
	}

	if err := h.taskRepo.Delete(ctx, id); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CompleteTask marks the task's current occurrence as completed. Recurring
// tasks roll over to their next occurrence; one-time tasks complete for good.
// Partners can complete each other's tasks.
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	ctx := r.Context()
	task, err := h.taskRepo.GetByID(ctx, id)
	if err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
		return
	}

	if !canView(user, task) {
		respondJSONError(w, http.StatusForbidden, "Forbidden", "Task does not belong to user")
		return
	}

	if err := h.lifecycle.Complete(task); err != nil {
		var unsupported *recurrence.UnsupportedPatternError
		if errors.As(err, &unsupported) {
			respondJSONError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", unsupported.Error())
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to complete task")
		return
	}

	if err := h.taskRepo.Update(ctx, task); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to complete task")
		return
	}

	respondJSON(w, http.StatusOK, h.taskResponse(task))
}

// ListOccurrences previews the next occurrences of a recurring task's
// schedule without mutating the task.
func (h *TaskHandler) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	count := DefaultOccurrenceCount
	if c := r.URL.Query().Get("count"); c != "" {
		parsed, err := strconv.Atoi(c)
		if err != nil || parsed < 1 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid count, must be a positive integer")
			return
		}
		if parsed > MaxOccurrenceCount {
			parsed = MaxOccurrenceCount
		}
		count = parsed
	}

	ctx := r.Context()
	task, err := h.taskRepo.GetByID(ctx, id)
	if err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
		return
	}

	if !canView(user, task) {
		respondJSONError(w, http.StatusForbidden, "Forbidden", "Task does not belong to user")
		return
	}

	occurrences, err := h.lifecycle.Occurrences(task, count)
	if err != nil {
		var unsupported *recurrence.UnsupportedPatternError
		if errors.As(err, &unsupported) {
			respondJSONError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", unsupported.Error())
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to compute occurrences")
		return
	}

	response := OccurrencesResponse{
		TaskID:      task.ID,
		Occurrences: make([]string, 0, len(occurrences)),
	}
	for _, occ := range occurrences {
		response.Occurrences = append(response.Occurrences, occ.Format(time.RFC3339))
	}

	respondJSON(w, http.StatusOK, response)
}

// canView reports whether the user may read or complete the task. Tasks are
// shared within a household, so a linked partner has access too.
func canView(user *models.User, task *models.HouseholdTask) bool {
	if task.OwnerID == user.ID {
		return true
	}
	return user.PartnerID != nil && task.OwnerID == *user.PartnerID
}

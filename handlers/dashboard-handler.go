package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"sprintsync/microservices/dashboard-service/clients"
	"sprintsync/microservices/dashboard-service/logging"
	"sprintsync/microservices/dashboard-service/middleware"
	"sprintsync/microservices/dashboard-service/models"
	"sprintsync/microservices/dashboard-service/services"

	"github.com/gorilla/mux"
)

// DashboardHandler serves the SPA-facing endpoints. Boards are session
// scoped: each authenticated username gets its own synchronizer instance so
// one user's drag gesture can never touch another user's view.
type DashboardHandler struct {
	client    clients.TaskAPI
	analytics *services.AnalyticsService

	boardsMu sync.Mutex
	boards   map[string]*services.BoardService
}

func NewDashboardHandler(client clients.TaskAPI, analytics *services.AnalyticsService) *DashboardHandler {
	return &DashboardHandler{
		client:    client,
		analytics: analytics,
		boards:    make(map[string]*services.BoardService),
	}
}

// RegisterRoutes attaches all dashboard endpoints to the router.
func (h *DashboardHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/dashboard/board", h.GetBoard).Methods(http.MethodGet)
	r.HandleFunc("/api/dashboard/board/refresh", h.RefreshBoard).Methods(http.MethodPost)
	r.HandleFunc("/api/dashboard/board/move", h.MoveTask).Methods(http.MethodPost)
	r.HandleFunc("/api/dashboard/tasks", h.CreateTask).Methods(http.MethodPost)
	r.HandleFunc("/api/dashboard/tasks/{taskID}", h.UpdateTask).Methods(http.MethodPut)
	r.HandleFunc("/api/dashboard/tasks/{taskID}", h.DeleteTask).Methods(http.MethodDelete)
	r.HandleFunc("/api/dashboard/tasks/{taskID}/status", h.ChangeTaskStatus).Methods(http.MethodPatch)
	r.HandleFunc("/api/dashboard/analytics/time-tracking", h.GetTimeTrackingChart).Methods(http.MethodGet)
	r.HandleFunc("/api/dashboard/ai/suggest", h.SuggestDescription).Methods(http.MethodPost)
	r.HandleFunc("/api/dashboard/ai/daily-plan", h.GetDailyPlan).Methods(http.MethodGet)
}

func usernameFrom(r *http.Request) (string, error) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil || claims.Username == "" {
		return "", errors.New("missing session claims")
	}
	return claims.Username, nil
}

func (h *DashboardHandler) boardFor(r *http.Request) (*services.BoardService, string, error) {
	username, err := usernameFrom(r)
	if err != nil {
		return nil, "", err
	}

	h.boardsMu.Lock()
	defer h.boardsMu.Unlock()
	board, ok := h.boards[username]
	if !ok {
		board = services.NewBoardService(h.client)
		h.boards[username] = board
	}
	return board, username, nil
}

func (h *DashboardHandler) evictBoard(username string) {
	h.boardsMu.Lock()
	defer h.boardsMu.Unlock()
	delete(h.boards, username)
}

// writeError maps client errors onto HTTP statuses. A 401 from the task
// service means the stored session is dead: the user's board is dropped and
// the SPA is told where to go.
func (h *DashboardHandler) writeError(w http.ResponseWriter, username string, err error) {
	switch {
	case errors.Is(err, clients.ErrUnauthorized):
		if username != "" {
			h.evictBoard(username)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"message":  "session expired",
			"redirect": "/login",
		})
	case errors.Is(err, clients.ErrForbidden):
		http.Error(w, "Access forbidden: insufficient permissions", http.StatusForbidden)
	default:
		var apiErr *clients.APIError
		if errors.As(err, &apiErr) {
			http.Error(w, apiErr.Message, apiErr.StatusCode)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// GetBoard returns the user's board, loading it from the task service on
// first access.
func (h *DashboardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	board, username, err := h.boardFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	if !board.Loaded() {
		if err := board.Load(r.Context()); err != nil {
			h.writeError(w, username, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"columns": board.Columns()})
}

// RefreshBoard unconditionally reloads the board from the task service.
func (h *DashboardHandler) RefreshBoard(w http.ResponseWriter, r *http.Request) {
	board, username, err := h.boardFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	if err := board.Load(r.Context()); err != nil {
		h.writeError(w, username, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"columns": board.Columns()})
}

type moveRequest struct {
	TaskID string            `json:"taskId"`
	From   models.TaskStatus `json:"from"`
	To     models.TaskStatus `json:"to"`
}

// MoveTask drives one full drag gesture: begin on the source column, drop on
// the target. The response carries the post-move board, which on a persist
// failure is the reloaded authoritative state.
func (h *DashboardHandler) MoveTask(w http.ResponseWriter, r *http.Request) {
	board, username, err := h.boardFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !req.From.Valid() || !req.To.Valid() {
		http.Error(w, "invalid source or target column", http.StatusBadRequest)
		return
	}

	if !board.Loaded() {
		if err := board.Load(r.Context()); err != nil {
			h.writeError(w, username, err)
			return
		}
	}

	if err := board.BeginDrag(req.TaskID, req.From); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	board.DragOver(req.To)

	if err := board.Drop(r.Context(), req.To); err != nil {
		logging.Logger.Warnf("Event ID: MOVE_TASK_FAILED, Description: Move of task %s failed for user %s: %v", req.TaskID, username, err)
		if errors.Is(err, clients.ErrUnauthorized) {
			h.writeError(w, username, err)
			return
		}
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"message": "move failed, board reloaded",
			"columns": board.Columns(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"columns": board.Columns()})
}

type statusRequest struct {
	Status models.TaskStatus `json:"status"`
}

// ChangeTaskStatus is the explicit (non-drag) status transition.
func (h *DashboardHandler) ChangeTaskStatus(w http.ResponseWriter, r *http.Request) {
	board, username, err := h.boardFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	taskID := mux.Vars(r)["taskID"]

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !req.Status.Valid() {
		http.Error(w, "invalid task status", http.StatusBadRequest)
		return
	}

	if err := board.ChangeStatus(r.Context(), taskID, req.Status); err != nil {
		h.writeError(w, username, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"columns": board.Columns()})
}

// CreateTask passes the new task through to the task service and refreshes
// the user's board.
func (h *DashboardHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	board, username, err := h.boardFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var task models.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if task.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	if task.Status == "" {
		task.Status = models.StatusTodo
	}
	if !task.Status.Valid() {
		http.Error(w, "invalid task status", http.StatusBadRequest)
		return
	}

	created, err := h.client.CreateTask(r.Context(), task)
	if err != nil {
		h.writeError(w, username, err)
		return
	}

	if board.Loaded() {
		if err := board.Load(r.Context()); err != nil {
			logging.Logger.Warnf("Event ID: BOARD_REFRESH_FAILED, Description: Board refresh after task create failed for user %s: %v", username, err)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"task": created})
}

// UpdateTask applies a partial edit to a task and refreshes the board.
func (h *DashboardHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	board, username, err := h.boardFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	taskID := mux.Vars(r)["taskID"]

	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := h.client.UpdateTask(r.Context(), taskID, updates)
	if err != nil {
		h.writeError(w, username, err)
		return
	}

	if board.Loaded() {
		if err := board.Load(r.Context()); err != nil {
			logging.Logger.Warnf("Event ID: BOARD_REFRESH_FAILED, Description: Board refresh after task update failed for user %s: %v", username, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"task": updated})
}

// DeleteTask removes a task and refreshes the board.
func (h *DashboardHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	board, username, err := h.boardFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	taskID := mux.Vars(r)["taskID"]

	if err := h.client.DeleteTask(r.Context(), taskID); err != nil {
		h.writeError(w, username, err)
		return
	}

	if board.Loaded() {
		if err := board.Load(r.Context()); err != nil {
			logging.Logger.Warnf("Event ID: BOARD_REFRESH_FAILED, Description: Board refresh after task delete failed for user %s: %v", username, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "task deleted"})
}

// GetTimeTrackingChart builds the chart for the requested window. The SPA
// offers 7, 14 and 30 day windows; anything else falls back to 7.
func (h *DashboardHandler) GetTimeTrackingChart(w http.ResponseWriter, r *http.Request) {
	username, err := usernameFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && (parsed == 7 || parsed == 14 || parsed == 30) {
			days = parsed
		}
	}

	chart, err := h.analytics.BuildChart(r.Context(), days)
	if err != nil {
		h.writeError(w, username, err)
		return
	}

	writeJSON(w, http.StatusOK, chart)
}

type suggestRequest struct {
	Title string `json:"title"`
}

// SuggestDescription asks the AI endpoint for a task description draft.
func (h *DashboardHandler) SuggestDescription(w http.ResponseWriter, r *http.Request) {
	username, err := usernameFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	suggestion, err := h.client.SuggestDescription(r.Context(), req.Title)
	if err != nil {
		h.writeError(w, username, err)
		return
	}

	writeJSON(w, http.StatusOK, suggestion)
}

// GetDailyPlan fetches the AI-generated plan for the day.
func (h *DashboardHandler) GetDailyPlan(w http.ResponseWriter, r *http.Request) {
	username, err := usernameFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	plan, err := h.client.GetDailyPlan(r.Context())
	if err != nil {
		h.writeError(w, username, err)
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

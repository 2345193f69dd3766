// ============================================================================
// Media-Queue HTTP Handlers - 路由處理與錯誤映射
// ============================================================================
//
// Package: internal/server
// 文件: handlers.go
// 功能: 各路由的處理函式、DTO 與錯誤 → 狀態碼映射
//
// 錯誤映射:
//   ErrInvalidInput  → 400
//   ErrTaskNotFound  → 404
//   ErrInvalidState  → 409
//   其他             → 500
//
// ============================================================================

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ChuLiYu/media-queue/internal/service"
	"github.com/ChuLiYu/media-queue/internal/store"
	"github.com/ChuLiYu/media-queue/pkg/types"
)

// ============================================================================
// DTO
// ============================================================================

type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type createTaskResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

type taskResponse struct {
	ID         string  `json:"id"`
	TaskType   string  `json:"task_type"`
	Status     string  `json:"status"`
	Progress   float32 `json:"progress"`
	Error      string  `json:"error,omitempty"`
	OutputPath string  `json:"output_path,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

type queueLengths struct {
	Video int64 `json:"video"`
	Audio int64 `json:"audio"`
	Image int64 `json:"image"`
}

type dashboardStats struct {
	TotalTasks      int64        `json:"total_tasks"`
	PendingTasks    int64        `json:"pending_tasks"`
	ProcessingTasks int64        `json:"processing_tasks"`
	CompletedTasks  int64        `json:"completed_tasks"`
	FailedTasks     int64        `json:"failed_tasks"`
	CancelledTasks  int64        `json:"cancelled_tasks"`
	QueueLengths    queueLengths `json:"queue_lengths"`
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func toTaskResponse(task *types.Task) taskResponse {
	return taskResponse{
		ID:         task.ID,
		TaskType:   string(task.TaskType),
		Status:     string(task.Status),
		Progress:   task.Progress,
		Error:      task.Error,
		OutputPath: task.OutputPath,
		CreatedAt:  task.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  task.UpdatedAt.Format(time.RFC3339),
	}
}

// ============================================================================
// 回應輔助
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrTaskNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidState):
		status = http.StatusConflict
	default:
		log.Error("Request failed", "error", err)
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, errorResponse{Success: false, Error: err.Error()})
}

// ============================================================================
// 任務路由
// ============================================================================

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var input service.CreateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Success: false, Error: "invalid request body"})
		return
	}

	taskID, err := s.service.Create(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createTaskResponse{
		Success: true,
		TaskID:  taskID,
		Message: "Task created and queued successfully",
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: toTaskResponse(task)})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var status *types.TaskStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		v := types.TaskStatus(raw)
		status = &v
	}

	limit := int64(store.DefaultListLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			writeError(w, fmt.Errorf("%w: limit must be a non-negative integer", service.ErrInvalidInput))
			return
		}
		limit = v
	}

	var skip int64
	if raw := r.URL.Query().Get("skip"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			writeError(w, fmt.Errorf("%w: skip must be a non-negative integer", service.ErrInvalidInput))
			return
		}
		skip = v
	}

	tasks, err := s.service.List(r.Context(), status, limit, skip)
	if err != nil {
		writeError(w, err)
		return
	}

	responses := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, toTaskResponse(task))
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: responses})
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: "Task cancelled successfully"})
}

// ============================================================================
// 健康檢查
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{
		"mongodb": "healthy",
		"redis":   "healthy",
	}
	overall := "healthy"

	if err := s.store.Ping(ctx); err != nil {
		checks["mongodb"] = "unhealthy"
		overall = "unhealthy"
	}
	if err := s.queue.Ping(ctx); err != nil {
		checks["redis"] = "unhealthy"
		overall = "unhealthy"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// ============================================================================
// 指標路由
// ============================================================================

func (s *Server) handleMetricsReset(w http.ResponseWriter, r *http.Request) {
	s.counters.Reset()

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Metrics reset successfully",
		"created":   0,
		"completed": 0,
		"failed":    0,
		"cancelled": 0,
	})
}

func (s *Server) handleMetricsSync(w http.ResponseWriter, r *http.Request) {
	snap, err := s.counters.Sync(r.Context(), s.store)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Metrics synchronized with database",
		"created":   snap.Created,
		"completed": snap.Completed,
		"failed":    snap.Failed,
		"cancelled": snap.Cancelled,
	})
}

// ============================================================================
// 儀表板路由
// ============================================================================

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, err := s.store.CountByStatus(ctx, nil)
	if err != nil {
		writeError(w, err)
		return
	}

	countFor := func(status types.TaskStatus) int64 {
		n, err := s.store.CountByStatus(ctx, &status)
		if err != nil {
			log.Error("Failed to count tasks", "status", status, "error", err)
			return 0
		}
		return n
	}

	// 佇列深度取不到時回報 0，不讓儀表板整體失敗
	lengthFor := func(taskType types.TaskType) int64 {
		n, err := s.queue.Len(ctx, taskType)
		if err != nil {
			log.Error("Failed to read queue length", "task_type", taskType, "error", err)
			return 0
		}
		return n
	}

	writeJSON(w, http.StatusOK, dashboardStats{
		TotalTasks:      total,
		PendingTasks:    countFor(types.StatusPending),
		ProcessingTasks: countFor(types.StatusProcessing),
		CompletedTasks:  countFor(types.StatusCompleted),
		FailedTasks:     countFor(types.StatusFailed),
		CancelledTasks:  countFor(types.StatusCancelled),
		QueueLengths: queueLengths{
			Video: lengthFor(types.TaskTypeVideo),
			Audio: lengthFor(types.TaskTypeAudio),
			Image: lengthFor(types.TaskTypeImage),
		},
	})
}

func (s *Server) handleRecentTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.service.List(r.Context(), nil, store.DefaultListLimit, 0)
	if err != nil {
		writeError(w, err)
		return
	}

	responses := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, toTaskResponse(task))
	}

	writeJSON(w, http.StatusOK, responses)
}

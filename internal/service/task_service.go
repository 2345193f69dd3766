// ============================================================================
// Media-Queue 任務服務 - 提交路徑與取消協議
// ============================================================================
//
// Package: internal/service
// 文件: task_service.go
// 功能: 任務的建立、查詢、列表與取消
//
// 提交路徑 (Create):
//   驗證 → 寫入持久層（Pending）→ 快照推入佇列頭部 → created 計數 +1
//   保證: 成功時持久紀錄存在且佇列頭部有一份快照，計數恰好加一。
//   寫入成功但入佇列失敗時，任務停留在 Pending 呈現停滯——此為已接受
//   的缺口，補救屬運維範疇。
//
// 取消協議 (Cancel):
//   1. 讀取持久紀錄；不存在 → not-found；Completed/Failed → invalid-state
//   2. 於 task:cancel:<id> 廣播 "cancel"
//   3. 持久狀態改寫為 Cancelling
//   4. 佇列清除（線性掃描）；清除成功 → 直接寫 Cancelled，
//      否則停留在 Cancelling，由 worker 監聽器終結
//   5. cancelled 計數 +1
//
// ============================================================================

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/ChuLiYu/media-queue/internal/metrics"
	"github.com/ChuLiYu/media-queue/internal/queue"
	"github.com/ChuLiYu/media-queue/internal/store"
	"github.com/ChuLiYu/media-queue/pkg/types"
)

var log = slog.Default()

// ============================================================================
// 錯誤定義
// ============================================================================

var (
	// ErrInvalidInput 輸入驗證失敗
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidState 任務狀態不允許此操作（例如取消終態任務）
	ErrInvalidState = errors.New("invalid task state")
)

// ============================================================================
// 輸入結構
// ============================================================================

// TaskOptions 處理選項，未提供的欄位不寫入 metadata
type TaskOptions struct {
	// Video options
	VideoCodec *string `json:"video_codec,omitempty"`
	Resolution *string `json:"resolution,omitempty"`
	Bitrate    *string `json:"bitrate,omitempty"`

	// Audio options
	AudioFormat *string `json:"audio_format,omitempty"`
	SampleRate  *uint32 `json:"sample_rate,omitempty"`

	// Image options
	ImageFormat *string `json:"image_format,omitempty"`
	Quality     *uint8  `json:"quality,omitempty"`
	MaxWidth    *uint32 `json:"max_width,omitempty"`
	MaxHeight   *uint32 `json:"max_height,omitempty"`
}

// CreateTaskInput 建立任務的輸入
type CreateTaskInput struct {
	TaskType     string      `json:"task_type"` // "video" / "audio" / "image"
	FilePath     string      `json:"file_path"`
	FileSize     uint64      `json:"file_size"`
	OriginalName string      `json:"original_name"`
	MimeType     string      `json:"mime_type"`
	Options      TaskOptions `json:"options"`
}

// ============================================================================
// 任務服務
// ============================================================================

// TaskService 任務生命週期的提交端服務
type TaskService struct {
	store    store.TaskStore
	queue    *queue.Queue
	pubsub   *queue.PubSub
	counters *metrics.Counters
}

// NewTaskService 建立任務服務
func NewTaskService(s store.TaskStore, q *queue.Queue, ps *queue.PubSub, c *metrics.Counters) *TaskService {
	return &TaskService{
		store:    s,
		queue:    q,
		pubsub:   ps,
		counters: c,
	}
}

// Create 驗證輸入、寫入持久層並將快照推入佇列
//
// 返回值：
//   - string: 新任務的 task_id
//   - error: 驗證錯誤以 ErrInvalidInput 包裝；基礎設施錯誤原樣回傳
func (s *TaskService) Create(ctx context.Context, input CreateTaskInput) (string, error) {
	if err := validateInput(input); err != nil {
		return "", err
	}

	taskType := types.TaskType(input.TaskType)
	media := types.MediaFile{
		FileID:       uuid.NewString(),
		MediaType:    taskType,
		FilePath:     input.FilePath,
		FileSize:     input.FileSize,
		OriginalName: input.OriginalName,
		MimeType:     input.MimeType,
		Metadata:     optionsToMetadata(input.Options),
	}

	task := types.NewTask(taskType, media)

	// 1. 寫入持久層
	if err := s.store.Insert(ctx, task); err != nil {
		return "", fmt.Errorf("failed to save task: %w", err)
	}

	log.Info("Task saved", "task_id", task.ID, "task_type", task.TaskType)

	// 2. 快照推入佇列
	if err := s.queue.Push(ctx, task); err != nil {
		// 持久紀錄已存在但未入佇列：任務停滯於 Pending（已接受的缺口）
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.Info("Task enqueued", "task_id", task.ID, "queue", queue.Name(taskType))

	// 3. 計數
	s.counters.IncCreated()

	return task.ID, nil
}

// Get 依 task_id 讀取任務
func (s *TaskService) Get(ctx context.Context, taskID string) (*types.Task, error) {
	return s.store.Get(ctx, taskID)
}

// List 依條件列出任務，created_at 由新到舊
func (s *TaskService) List(ctx context.Context, status *types.TaskStatus, limit, skip int64) ([]*types.Task, error) {
	return s.store.List(ctx, store.ListFilter{
		Status: status,
		Limit:  limit,
		Skip:   skip,
	})
}

// Cancel 對非終態任務發起取消
//
// 清除成功（任務尚未被 worker 取走）時直接寫 Cancelled；否則停留在
// Cancelling，由持有任務的 worker 收到廣播後終結。
func (s *TaskService) Cancel(ctx context.Context, taskID string) error {
	// 1. 讀取持久紀錄並檢查狀態
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return err
	}

	if task.Status == types.StatusCompleted || task.Status == types.StatusFailed ||
		task.Status == types.StatusCancelled {
		return fmt.Errorf("%w: cannot cancel task with status %s", ErrInvalidState, task.Status)
	}

	// 2. 廣播取消訊號
	if err := s.pubsub.PublishCancel(ctx, taskID); err != nil {
		return err
	}

	log.Info("Published cancellation message", "task_id", taskID, "channel", queue.CancelChannel(taskID))

	// 3. 狀態改寫為 Cancelling
	if err := s.store.UpdateStatus(ctx, taskID, types.StatusCancelling); err != nil {
		return err
	}

	// 4. 佇列清除（best-effort，與 worker 取出競爭）
	removed, err := s.queue.Remove(ctx, task.TaskType, taskID)
	if err != nil {
		return err
	}

	if removed {
		if err := s.store.UpdateStatus(ctx, taskID, types.StatusCancelled); err != nil {
			return err
		}
		log.Info("Task cancelled and removed from queue", "task_id", taskID)
	} else {
		log.Info("Cancellation signal sent, worker will finalize", "task_id", taskID)
	}

	// 5. 計數
	s.counters.IncCancelled()

	return nil
}

// ============================================================================
// 驗證與選項映射
// ============================================================================

func validateInput(input CreateTaskInput) error {
	if !types.TaskType(input.TaskType).Valid() {
		return fmt.Errorf("%w: invalid task_type %q, must be 'video', 'audio', or 'image'",
			ErrInvalidInput, input.TaskType)
	}

	if input.FilePath == "" {
		return fmt.Errorf("%w: file_path cannot be empty", ErrInvalidInput)
	}

	if input.TaskType == string(types.TaskTypeImage) && input.Options.Quality != nil {
		if *input.Options.Quality > 100 {
			return fmt.Errorf("%w: image quality must be between 0-100", ErrInvalidInput)
		}
	}

	return nil
}

// optionsToMetadata 將已識別的選項寫入 metadata，值一律轉為字串
// 未提供的欄位不寫入
func optionsToMetadata(opts TaskOptions) map[string]string {
	metadata := make(map[string]string)

	if opts.VideoCodec != nil {
		metadata["video_codec"] = *opts.VideoCodec
	}
	if opts.Resolution != nil {
		metadata["resolution"] = *opts.Resolution
	}
	if opts.Bitrate != nil {
		metadata["bitrate"] = *opts.Bitrate
	}
	if opts.AudioFormat != nil {
		metadata["audio_format"] = *opts.AudioFormat
	}
	if opts.SampleRate != nil {
		metadata["sample_rate"] = strconv.FormatUint(uint64(*opts.SampleRate), 10)
	}
	if opts.ImageFormat != nil {
		metadata["image_format"] = *opts.ImageFormat
	}
	if opts.Quality != nil {
		metadata["quality"] = strconv.FormatUint(uint64(*opts.Quality), 10)
	}
	if opts.MaxWidth != nil {
		metadata["max_width"] = strconv.FormatUint(uint64(*opts.MaxWidth), 10)
	}
	if opts.MaxHeight != nil {
		metadata["max_height"] = strconv.FormatUint(uint64(*opts.MaxHeight), 10)
	}

	return metadata
}

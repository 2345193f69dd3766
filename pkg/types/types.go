// Package types 定義了 media-queue 系統中使用的核心領域模型
package types

import (
	"time"

	"github.com/google/uuid"
)

// TaskType 任務類型，每種類型對應一條獨立的 Redis 佇列
type TaskType string

// 定義任務類型常數
const (
	TaskTypeVideo TaskType = "video" // 影片壓縮任務
	TaskTypeAudio TaskType = "audio" // 音訊處理任務
	TaskTypeImage TaskType = "image" // 圖片最佳化任務
)

// Valid 檢查任務類型是否為三種合法類型之一
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeVideo, TaskTypeAudio, TaskTypeImage:
		return true
	}
	return false
}

// TaskStatus 任務狀態
type TaskStatus string

// 定義任務狀態常數
const (
	StatusPending    TaskStatus = "pending"    // 待處理狀態：任務已建立但尚未開始執行
	StatusProcessing TaskStatus = "processing" // 執行中狀態：任務正在被 worker 處理
	StatusCompleted  TaskStatus = "completed"  // 完成狀態：任務已成功執行完畢
	StatusFailed     TaskStatus = "failed"     // 失敗狀態：重試次數用盡，終態
	StatusCancelling TaskStatus = "cancelling" // 取消中狀態：已發出取消訊號，等待 worker 終結
	StatusCancelled  TaskStatus = "cancelled"  // 已取消狀態：終態
)

// IsTerminal 回報狀態是否為終態（completed / failed / cancelled）
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// MediaFile 媒體檔案描述，隨任務建立後不可變
// Metadata 攜帶處理選項（codec、bitrate、quality 等），值一律為字串
type MediaFile struct {
	FileID       string            `json:"file_id" bson:"file_id"`
	MediaType    TaskType          `json:"media_type" bson:"media_type"` // 與 task_type 一致
	FilePath     string            `json:"file_path" bson:"file_path"`
	FileSize     uint64            `json:"file_size" bson:"file_size"`
	OriginalName string            `json:"original_name" bson:"original_name"`
	MimeType     string            `json:"mime_type" bson:"mime_type"`
	Metadata     map[string]string `json:"metadata" bson:"metadata"`
}

// GetMetadata 取得選項值，不存在時回傳預設值
func (m *MediaFile) GetMetadata(key, fallback string) string {
	if v, ok := m.Metadata[key]; ok {
		return v
	}
	return fallback
}

// Task 任務結構，代表系統中的一個媒體處理工作單元
//
// 持久層（MongoDB tasks collection）以 task_id 為鍵持有權威紀錄；
// Redis 佇列持有提交（或重新排隊）當下序列化的快照。快照對 media
// 欄位具權威性，但狀態欄位以持久紀錄為準，worker 取出快照後必須
// 重新讀取持久紀錄（pre-flight）。
type Task struct {
	// 識別與資料
	ID       string    `json:"task_id" bson:"task_id"`     // 任務唯一識別碼（UUID 字串）
	TaskType TaskType  `json:"task_type" bson:"task_type"` // 任務類型，建立後不可變
	Media    MediaFile `json:"media" bson:"media"`         // 媒體檔案描述，建立後不可變

	// 狀態追蹤
	Status     TaskStatus `json:"status" bson:"status"`
	Progress   float32    `json:"progress" bson:"progress"` // 進度 [0,1]，單次嘗試內單調遞增
	Error      string     `json:"error,omitempty" bson:"error,omitempty"`
	OutputPath string     `json:"output_path,omitempty" bson:"output_path,omitempty"` // 僅在 Completed 時寫入

	// 時間管理（毫秒精度）
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" bson:"started_at,omitempty"`     // 首次進入 Processing 時寫入，之後不再改寫
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"` // 首次進入終態時寫入，之後不再改寫

	// 重試管理
	RetryCount uint32 `json:"retry_count" bson:"retry_count"` // 每次失敗嘗試遞增
	MaxRetries uint32 `json:"max_retries" bson:"max_retries"` // 預設 3
}

// DefaultMaxRetries 預設最大重試次數
const DefaultMaxRetries = 3

// NewTask 建立新任務，初始狀態為 Pending
func NewTask(taskType TaskType, media MediaFile) *Task {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &Task{
		ID:         uuid.NewString(),
		TaskType:   taskType,
		Media:      media,
		Status:     StatusPending,
		Progress:   0,
		CreatedAt:  now,
		UpdatedAt:  now,
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
	}
}

// Clone 回傳任務的深拷貝，與原件不共享任何可變狀態
//
// worker 引擎把拷貝交給處理器 goroutine，自己保留原件；儲存層以拷貝
// 隔離呼叫端與內部存儲。
func (t *Task) Clone() *Task {
	clone := *t
	if t.Media.Metadata != nil {
		clone.Media.Metadata = make(map[string]string, len(t.Media.Metadata))
		for k, v := range t.Media.Metadata {
			clone.Media.Metadata[k] = v
		}
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		clone.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		clone.CompletedAt = &completed
	}
	return &clone
}

// UpdateStatus 更新任務狀態並維護時間戳不變式
//
// 不變式：
//   - started_at 僅在首次進入 Processing 時寫入
//   - completed_at 僅在首次進入終態時寫入
//   - updated_at 於每次變更時刷新
func (t *Task) UpdateStatus(status TaskStatus) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	t.Status = status
	t.UpdatedAt = now

	switch {
	case status == StatusProcessing:
		if t.StartedAt == nil {
			started := now
			t.StartedAt = &started
		}
	case status.IsTerminal():
		if t.CompletedAt == nil {
			completed := now
			t.CompletedAt = &completed
		}
	}
}

// UpdateProgress 更新進度，寫入時夾限於 [0,1]
func (t *Task) UpdateProgress(progress float32) {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	t.Progress = progress
	t.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
}

// IncrementRetry 遞增重試次數（每次失敗嘗試呼叫一次）
func (t *Task) IncrementRetry() {
	t.RetryCount++
	t.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
}

// CanRetry 回報是否仍可重試（retry_count < max_retries）
func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

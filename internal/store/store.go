// ============================================================================
// Media-Queue 持久層 - 任務儲存介面
// ============================================================================
//
// Package: internal/store
// 文件: store.go
// 功能: 定義任務持久儲存的統一介面
//
// 設計理念:
//   持久層持有任務的權威紀錄（Single Source of Truth）。Redis 佇列中的
//   快照僅對 media 欄位具權威性；所有狀態判斷一律以本層讀取結果為準。
//
// 實作:
//   - MongoStore: 生產環境使用的 MongoDB 實作（tasks collection）
//   - MemoryStore: 測試使用的記憶體實作，語義與 MongoStore 一致
//
// 併發模型:
//   任意數量的讀寫者。worker 只改寫自己取出的任務；提交端在取消流程中
//   改寫狀態。Cancelling → Cancelled 的寫入可能與 worker 的終態寫入
//   競爭，採 last-writer-wins，兩條路徑在正常情況下收斂於 Cancelled。
//
// ============================================================================

package store

import (
	"context"
	"errors"

	"github.com/ChuLiYu/media-queue/pkg/types"
)

// ErrTaskNotFound 任務不存在
var ErrTaskNotFound = errors.New("task not found")

// ListFilter 列表查詢條件
// 一律依 created_at 由新到舊排序
type ListFilter struct {
	Status *types.TaskStatus // 可選的狀態過濾
	Limit  int64             // 預設 50
	Skip   int64             // 預設 0
}

// DefaultListLimit 列表查詢的預設筆數上限
const DefaultListLimit = 50

// TaskStore 任務持久儲存介面
type TaskStore interface {
	// Insert 寫入新任務紀錄
	Insert(ctx context.Context, task *types.Task) error

	// Get 依 task_id 讀取任務，不存在時回傳 ErrTaskNotFound
	Get(ctx context.Context, taskID string) (*types.Task, error)

	// Update 以完整任務內容覆寫紀錄（partial $set 語義，依 task_id）
	Update(ctx context.Context, task *types.Task) error

	// UpdateStatus 僅更新 status 與 updated_at
	UpdateStatus(ctx context.Context, taskID string, status types.TaskStatus) error

	// UpdateProgress 僅更新 progress 與 updated_at，progress 寫入前夾限於 [0,1]
	UpdateProgress(ctx context.Context, taskID string, progress float32) error

	// List 依條件列出任務
	List(ctx context.Context, filter ListFilter) ([]*types.Task, error)

	// CountByStatus 統計任務數量，status 為 nil 時統計全部
	CountByStatus(ctx context.Context, status *types.TaskStatus) (int64, error)

	// Ping 檢查連線健康狀態
	Ping(ctx context.Context) error
}

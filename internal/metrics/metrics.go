// ============================================================================
// Media-Queue Metrics - 任務計數器
// ============================================================================
//
// Package: internal/metrics
// 文件: metrics.go
// 功能: 行程內的任務聚合計數（created/completed/failed/cancelled）
//
// 計數時機:
//   - created: 提交成功時（insert + enqueue 完成後恰好一次）
//   - completed / failed: worker 寫入對應終態時
//   - cancelled: 取消請求受理時
//
// 操作:
//   - 讀取: 各計數的當前值
//   - 重置: 全部歸零
//   - 同步: 自持久層按狀態統計後覆寫計數（重啟後校正用）
//
// 併發: 原子計數即足夠，無需互斥鎖
//
// ============================================================================

package metrics

import (
	"context"
	"sync/atomic"

	"github.com/ChuLiYu/media-queue/internal/store"
	"github.com/ChuLiYu/media-queue/pkg/types"
)

// Counters 行程內任務計數器集合
type Counters struct {
	created   atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	cancelled atomic.Uint64
}

// NewCounters 建立歸零的計數器集合
func NewCounters() *Counters {
	return &Counters{}
}

// IncCreated 記錄任務建立
func (c *Counters) IncCreated() { c.created.Add(1) }

// IncCompleted 記錄任務完成
func (c *Counters) IncCompleted() { c.completed.Add(1) }

// IncFailed 記錄任務永久失敗
func (c *Counters) IncFailed() { c.failed.Add(1) }

// IncCancelled 記錄取消請求受理
func (c *Counters) IncCancelled() { c.cancelled.Add(1) }

// Created 回傳建立計數
func (c *Counters) Created() uint64 { return c.created.Load() }

// Completed 回傳完成計數
func (c *Counters) Completed() uint64 { return c.completed.Load() }

// Failed 回傳失敗計數
func (c *Counters) Failed() uint64 { return c.failed.Load() }

// Cancelled 回傳取消計數
func (c *Counters) Cancelled() uint64 { return c.cancelled.Load() }

// Reset 全部計數歸零
func (c *Counters) Reset() {
	c.created.Store(0)
	c.completed.Store(0)
	c.failed.Store(0)
	c.cancelled.Store(0)
}

// Snapshot 計數器的一次性讀取結果
type Snapshot struct {
	Created   uint64 `json:"created"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Cancelled uint64 `json:"cancelled"`
}

// Read 回傳當前各計數值
func (c *Counters) Read() Snapshot {
	return Snapshot{
		Created:   c.Created(),
		Completed: c.Completed(),
		Failed:    c.Failed(),
		Cancelled: c.Cancelled(),
	}
}

// Sync 自持久層按狀態統計並覆寫計數
//
// created 對應全部任務數；completed/failed/cancelled 對應各自狀態的
// 任務數。統計期間的並發提交可能造成輕微偏差，屬可接受範圍。
func (c *Counters) Sync(ctx context.Context, s store.TaskStore) (Snapshot, error) {
	total, err := s.CountByStatus(ctx, nil)
	if err != nil {
		return Snapshot{}, err
	}

	completed := types.StatusCompleted
	completedCount, err := s.CountByStatus(ctx, &completed)
	if err != nil {
		return Snapshot{}, err
	}

	failed := types.StatusFailed
	failedCount, err := s.CountByStatus(ctx, &failed)
	if err != nil {
		return Snapshot{}, err
	}

	cancelled := types.StatusCancelled
	cancelledCount, err := s.CountByStatus(ctx, &cancelled)
	if err != nil {
		return Snapshot{}, err
	}

	c.created.Store(uint64(total))
	c.completed.Store(uint64(completedCount))
	c.failed.Store(uint64(failedCount))
	c.cancelled.Store(uint64(cancelledCount))

	return c.Read(), nil
}

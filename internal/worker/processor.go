// ============================================================================
// Media-Queue Processor - 任務處理器介面
// ============================================================================
//
// Package: internal/worker
// 文件: processor.go
// 功能: 定義三種任務類型共用的處理器契約與模擬運算迴圈
//
// 處理器契約:
//   1. 進入時將任務轉為 Processing
//   2. 單調遞增地回報進度
//   3. 每個內部步驟檢查 cancel flag；旗標為真時轉為 Cancelled 並回傳
//      ErrTaskCancelled
//   4. 正常完成時寫入 output_path 並轉為 Completed
//
// cancel flag 僅由 engine 在決定以 Cancelled 終結後設置，因此處理器
// 回傳 ErrTaskCancelled 時 engine 必然已走取消終結路徑。
//
// 三種處理器共用一個引擎，僅模擬運算迴圈的步數、間隔與輸出命名不同。
//
// ============================================================================

package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ChuLiYu/media-queue/pkg/types"
)

// ErrTaskCancelled 處理器觀察到取消旗標後回傳的錯誤
var ErrTaskCancelled = errors.New("task cancelled")

// ProgressFunc 進度回報回呼，progress ∈ [0,1]
type ProgressFunc func(progress float32)

// Processor 任務處理器介面，每種任務類型一個實作
type Processor interface {
	// TaskType 回報此處理器消費的任務類型
	TaskType() types.TaskType

	// Process 執行任務。實作必須遵守上述處理器契約。
	Process(ctx context.Context, task *types.Task, report ProgressFunc, cancelled *atomic.Bool) error
}

// simulateWork 以固定步數的定時迴圈模擬運算，每步檢查取消旗標
func simulateWork(ctx context.Context, task *types.Task, steps int, stepDelay time.Duration,
	report ProgressFunc, cancelled *atomic.Bool) error {

	for i := 0; i <= steps; i++ {
		if cancelled.Load() {
			log.Warn("Task cancelled", "task_id", task.ID)
			task.UpdateStatus(types.StatusCancelled)
			return ErrTaskCancelled
		}

		progress := float32(i) / float32(steps)
		task.UpdateProgress(progress)
		report(progress)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(stepDelay):
		}
	}

	return nil
}

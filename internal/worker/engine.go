// ============================================================================
// Media-Queue Worker Engine - 消費迴圈與取消競速
// ============================================================================
//
// Package: internal/worker
// 文件: engine.go
// 功能: 單一 worker 的任務消費引擎
//
// 消費迴圈:
//   RPOP 佇列尾端 → 前置檢查（重讀持久紀錄）→ 執行 → 終結
//   佇列為空 → 休眠 2s；暫時性錯誤 → 休眠 5s
//
// 前置檢查:
//   佇列快照可能已過期（取消先行、紀錄被刪），以持久紀錄為準：
//   紀錄不存在或已處於終態/Cancelling → 丟棄快照，不執行。
//
// 取消競速:
//   處理器在獨立 goroutine 執行自己的任務拷貝，結果經容量 1 的
//   channel 回傳；引擎保留原件，同時監看全域取消訊號 channel。
//   取消訊號的 task_id 與當前任務相符時設置協作旗標，等待處理器
//   觀察旗標退出（上限 500ms），再以 Cancelled 終結。寬限期內退出
//   時以處理器的拷貝終結（含最新進度）；逾時則以引擎原件終結，
//   處理器的拷貝由背景 goroutine 回收，兩側不共享可變狀態。
//   不符的訊號直接丟棄。
//
// 重試:
//   失敗時 retry_count +1 並記錄錯誤。retry_count < max_retries 時
//   僅將快照推回佇列（不寫持久層，重試對查詢端不可見）；否則寫入
//   終態 Failed。進度不歸零，由下一次嘗試覆寫。行程關閉（context
//   取消）造成的中斷不計入重試，快照直接推回佇列。
//
// ============================================================================

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ChuLiYu/media-queue/internal/metrics"
	"github.com/ChuLiYu/media-queue/internal/queue"
	"github.com/ChuLiYu/media-queue/internal/store"
	"github.com/ChuLiYu/media-queue/pkg/types"
)

var log = slog.Default()

const (
	defaultEmptyPollInterval = 2 * time.Second
	defaultErrorBackoff      = 5 * time.Second
	defaultCancelGrace       = 500 * time.Millisecond

	// 全域取消訊號的內部緩衝容量，滿時丟棄訊號
	cancelBufferSize = 100
)

// Config worker 引擎設定，零值欄位套用預設
type Config struct {
	// WorkerID 日誌識別用，空值時自動產生
	WorkerID string

	// EmptyPollInterval 佇列為空時的休眠間隔
	EmptyPollInterval time.Duration

	// ErrorBackoff 暫時性錯誤後的休眠間隔
	ErrorBackoff time.Duration

	// CancelGrace 設置取消旗標後等待處理器退出的上限
	CancelGrace time.Duration
}

func (c *Config) applyDefaults() {
	if c.WorkerID == "" {
		c.WorkerID = "worker-" + uuid.NewString()[:8]
	}
	if c.EmptyPollInterval <= 0 {
		c.EmptyPollInterval = defaultEmptyPollInterval
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = defaultErrorBackoff
	}
	if c.CancelGrace <= 0 {
		c.CancelGrace = defaultCancelGrace
	}
}

// Engine 綁定單一任務類型的消費引擎
type Engine struct {
	cfg       Config
	store     store.TaskStore
	queue     *queue.Queue
	pubsub    *queue.PubSub
	processor Processor
	counters  *metrics.Counters

	// 全域取消監聽器 → 執行迴圈 的訊號通道，載荷為 task_id
	cancelCh chan string
}

// NewEngine 建立消費引擎，任務類型由 processor 決定
func NewEngine(cfg Config, s store.TaskStore, q *queue.Queue, ps *queue.PubSub,
	processor Processor, counters *metrics.Counters) *Engine {

	cfg.applyDefaults()

	return &Engine{
		cfg:       cfg,
		store:     s,
		queue:     q,
		pubsub:    ps,
		processor: processor,
		counters:  counters,
		cancelCh:  make(chan string, cancelBufferSize),
	}
}

// Run 啟動消費迴圈，阻塞直到 ctx 結束
func (e *Engine) Run(ctx context.Context) error {
	go e.listenCancellations(ctx)

	log.Info("Worker started",
		"worker_id", e.cfg.WorkerID,
		"task_type", e.processor.TaskType(),
		"queue", queue.Name(e.processor.TaskType()))

	for {
		select {
		case <-ctx.Done():
			log.Info("Worker stopping", "worker_id", e.cfg.WorkerID)
			return ctx.Err()
		default:
		}

		processed, err := e.processNext(ctx)
		switch {
		case err != nil:
			log.Error("Error processing task", "worker_id", e.cfg.WorkerID, "error", err)
			e.sleep(ctx, e.cfg.ErrorBackoff)
		case !processed:
			e.sleep(ctx, e.cfg.EmptyPollInterval)
		}
	}
}

// listenCancellations 訂閱 task:cancel:* 並將 task_id 轉發到內部通道
func (e *Engine) listenCancellations(ctx context.Context) {
	sub := e.pubsub.SubscribeCancellations(ctx)
	defer sub.Close()

	log.Info("Subscribed to cancellation channels",
		"worker_id", e.cfg.WorkerID,
		"pattern", queue.CancelChannelPattern)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				log.Warn("Cancellation subscription closed", "worker_id", e.cfg.WorkerID)
				return
			}

			taskID := queue.TaskIDFromChannel(msg.Channel)
			select {
			case e.cancelCh <- taskID:
			default:
				log.Warn("Cancellation buffer full, dropping signal", "task_id", taskID)
			}
		}
	}
}

// processNext 取出並執行一個任務
//
// 返回值：
//   - bool: 是否有取出任務（false 表示佇列為空）
//   - error: 暫時性錯誤，呼叫端據此退避
func (e *Engine) processNext(ctx context.Context) (bool, error) {
	task, err := e.queue.Pop(ctx, e.processor.TaskType())
	if errors.Is(err, queue.ErrQueueEmpty) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to pop task: %w", err)
	}

	log.Info("Dequeued task",
		"worker_id", e.cfg.WorkerID,
		"task_id", task.ID,
		"retry_count", task.RetryCount)

	// 前置檢查：以持久紀錄為準
	record, err := e.store.Get(ctx, task.ID)
	if errors.Is(err, store.ErrTaskNotFound) {
		log.Warn("Task record not found, skipping", "task_id", task.ID)
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("failed to verify task %s: %w", task.ID, err)
	}

	if record.Status.IsTerminal() || record.Status == types.StatusCancelling {
		log.Warn("Task no longer runnable, skipping",
			"task_id", task.ID,
			"status", record.Status)
		return true, nil
	}

	e.execute(ctx, task)
	return true, nil
}

// execute 執行任務並與取消訊號競速
func (e *Engine) execute(ctx context.Context, task *types.Task) {
	log.Info("Processing task",
		"worker_id", e.cfg.WorkerID,
		"task_id", task.ID,
		"task_type", task.TaskType)

	cancelled := &atomic.Bool{}
	resultCh := make(chan error, 1)

	// 處理器收到自己的拷貝；channel 接收之前引擎不得觸碰它
	working := task.Clone()

	go func() {
		resultCh <- e.processor.Process(ctx, working, e.progressReporter(task.ID), cancelled)
	}()

	for {
		select {
		case err := <-resultCh:
			e.finalize(ctx, working, err)
			return

		case taskID := <-e.cancelCh:
			if taskID != task.ID {
				// 他人的取消訊號，丟棄
				continue
			}

			log.Warn("Cancellation signal received",
				"worker_id", e.cfg.WorkerID,
				"task_id", task.ID)

			cancelled.Store(true)

			// 等待處理器觀察旗標退出，上限 CancelGrace
			record := task
			select {
			case <-resultCh:
				// 處理器已退出，其拷貝（含最新進度）可安全使用
				record = working
			case <-time.After(e.cfg.CancelGrace):
				// 處理器仍在執行自己的拷貝，留給背景回收
				go func() { <-resultCh }()
			}

			record.UpdateStatus(types.StatusCancelled)
			if err := e.store.Update(ctx, record); err != nil {
				log.Error("Failed to persist cancelled task", "task_id", task.ID, "error", err)
			}

			log.Info("Task cancelled", "task_id", task.ID)
			return
		}
	}
}

// finalize 依處理結果終結任務：成功寫 Completed，中斷推回佇列，
// 失敗走重試或 Failed
func (e *Engine) finalize(ctx context.Context, task *types.Task, procErr error) {
	if procErr == nil {
		// 處理器已設置 Completed 與 output_path
		if err := e.store.Update(ctx, task); err != nil {
			log.Error("Failed to persist completed task", "task_id", task.ID, "error", err)
			return
		}

		e.counters.IncCompleted()
		log.Info("Task completed",
			"worker_id", e.cfg.WorkerID,
			"task_id", task.ID,
			"output", task.OutputPath)
		return
	}

	// 行程關閉造成的中斷不是任務失敗：不扣重試額度，快照以獨立
	// context 推回佇列，留給下一個 worker
	if errors.Is(procErr, context.Canceled) || errors.Is(procErr, context.DeadlineExceeded) {
		requeueCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		task.UpdateStatus(types.StatusPending)
		if err := e.queue.Push(requeueCtx, task); err != nil {
			log.Error("Failed to requeue interrupted task", "task_id", task.ID, "error", err)
			return
		}

		log.Warn("Task interrupted by shutdown, requeued",
			"task_id", task.ID,
			"retry_count", task.RetryCount)
		return
	}

	task.IncrementRetry()
	task.Error = procErr.Error()

	if task.CanRetry() {
		// 快照推回佇列，不寫持久層
		task.UpdateStatus(types.StatusPending)
		if err := e.queue.Push(ctx, task); err != nil {
			log.Error("Failed to requeue task", "task_id", task.ID, "error", err)
			return
		}

		log.Warn("Task requeued for retry",
			"task_id", task.ID,
			"retry_count", task.RetryCount,
			"max_retries", task.MaxRetries,
			"error", procErr)
		return
	}

	task.UpdateStatus(types.StatusFailed)
	if err := e.store.Update(ctx, task); err != nil {
		log.Error("Failed to persist failed task", "task_id", task.ID, "error", err)
		return
	}

	e.counters.IncFailed()
	log.Error("Task failed permanently",
		"task_id", task.ID,
		"retry_count", task.RetryCount,
		"error", procErr)
}

// progressReporter 回傳非同步寫入持久層的進度回呼，寫入失敗僅記日誌
func (e *Engine) progressReporter(taskID string) ProgressFunc {
	return func(progress float32) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := e.store.UpdateProgress(ctx, taskID, progress); err != nil {
				log.Error("Failed to update progress",
					"task_id", taskID,
					"progress", progress,
					"error", err)
			}
		}()
	}
}

// sleep 可被 ctx 中斷的休眠
func (e *Engine) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

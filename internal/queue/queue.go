// ============================================================================
// Media-Queue 佇列層 - Redis 持久化雙端佇列
// ============================================================================
//
// Package: internal/queue
// 文件: queue.go
// 功能: 每種任務類型一條 Redis list，提交端 LPUSH 頭部、worker RPOP 尾部
//
// 佇列協議:
//   - 佇列名稱: queue:video / queue:audio / queue:image
//   - 內容: 提交（或重新排隊）當下序列化的任務快照（JSON）
//   - 頭推尾取，單一佇列對消費端呈現 FIFO
//   - 重新排隊同樣推入頭部，相對新提交為 LIFO（重試罕見，可接受）
//
// 佇列清除 (scrub):
//   取消流程以 LRANGE 全量掃描 + LREM 按值移除第一個匹配。成本 O(N)，
//   以預期的佇列規模（數百筆）可接受。與 worker 的並發取出存在競爭，
//   清除失敗時由 pub/sub 路徑在執行中攔截。
//
// ============================================================================

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ChuLiYu/media-queue/pkg/types"
)

// ErrQueueEmpty 佇列為空
var ErrQueueEmpty = errors.New("queue is empty")

// Name 回傳任務類型對應的佇列名稱
func Name(taskType types.TaskType) string {
	return fmt.Sprintf("queue:%s", taskType)
}

// Queue Redis 佇列客戶端
type Queue struct {
	rdb *redis.Client
}

// New 建立佇列客戶端
func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// Push 序列化任務快照並推入佇列頭部（LPUSH）
// 提交與重新排隊共用此路徑
func (q *Queue) Push(ctx context.Context, task *types.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to serialize task: %w", err)
	}

	if err := q.rdb.LPush(ctx, Name(task.TaskType), payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Pop 自佇列尾部取出一筆快照（RPOP）並反序列化
// 佇列為空時回傳 ErrQueueEmpty
func (q *Queue) Pop(ctx context.Context, taskType types.TaskType) (*types.Task, error) {
	payload, err := q.rdb.RPop(ctx, Name(taskType)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrQueueEmpty
		}
		return nil, fmt.Errorf("failed to dequeue task: %w", err)
	}

	var task types.Task
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return nil, fmt.Errorf("failed to deserialize task: %w", err)
	}
	return &task, nil
}

// Remove 清除佇列中指定任務的第一個匹配快照
//
// 線性掃描全佇列內容，比對反序列化後的 task_id，命中時以 LREM
// 按值移除一筆。回傳是否確實移除。
func (q *Queue) Remove(ctx context.Context, taskType types.TaskType, taskID string) (bool, error) {
	queueName := Name(taskType)

	entries, err := q.rdb.LRange(ctx, queueName, 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("failed to scan queue: %w", err)
	}

	for _, entry := range entries {
		var task types.Task
		if err := json.Unmarshal([]byte(entry), &task); err != nil {
			// 無法解析的項目不屬於本任務，跳過
			continue
		}
		if task.ID != taskID {
			continue
		}

		removed, err := q.rdb.LRem(ctx, queueName, 1, entry).Result()
		if err != nil {
			return false, fmt.Errorf("failed to remove task from queue: %w", err)
		}
		return removed > 0, nil
	}

	return false, nil
}

// Len 回傳佇列長度（LLEN）
func (q *Queue) Len(ctx context.Context, taskType types.TaskType) (int64, error) {
	length, err := q.rdb.LLen(ctx, Name(taskType)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return length, nil
}

// Ping 檢查 Redis 連線
func (q *Queue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

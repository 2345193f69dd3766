// ============================================================================
// Media-Queue 佇列層 - Redis Pub/Sub 取消通道
// ============================================================================
//
// Package: internal/queue
// 文件: pubsub.go
// 功能: 任務取消訊號的廣播通道
//
// 通道協議:
//   - 頻道: task:cancel:<task_id>
//   - 內容: 字面字串 "cancel"
//   - worker 端以 pattern 訂閱 task:cancel:* 並自頻道名稱截取 task_id
//
// TaskCommand 定義了完整的命令結構（cancel/pause/resume），目前僅
// cancel 生效；pause/resume 保留給後續實作。
//
// ============================================================================

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// 取消頻道的前綴與 pattern
const (
	cancelChannelPrefix  = "task:cancel:"
	CancelChannelPattern = "task:cancel:*"
)

// 取消訊號的字面內容
const cancelPayload = "cancel"

// CommandType 任務命令類型
type CommandType string

// 定義命令類型常數
const (
	CommandCancel CommandType = "cancel" // 取消任務
	CommandPause  CommandType = "pause"  // 暫停任務（保留）
	CommandResume CommandType = "resume" // 恢復任務（保留）
)

// TaskCommand 任務控制命令（tagged variant）
type TaskCommand struct {
	Type   CommandType `json:"type"`
	TaskID string      `json:"task_id"`
}

// CancelChannel 回傳任務對應的取消頻道名稱
func CancelChannel(taskID string) string {
	return cancelChannelPrefix + taskID
}

// TaskIDFromChannel 自頻道名稱截取 task_id，非取消頻道時回傳空字串
func TaskIDFromChannel(channel string) string {
	return strings.TrimPrefix(channel, cancelChannelPrefix)
}

// PubSub 取消訊號的發佈／訂閱客戶端
type PubSub struct {
	rdb *redis.Client
}

// NewPubSub 建立 pub/sub 客戶端
func NewPubSub(rdb *redis.Client) *PubSub {
	return &PubSub{rdb: rdb}
}

// PublishCancel 對指定任務廣播取消訊號
func (p *PubSub) PublishCancel(ctx context.Context, taskID string) error {
	if err := p.rdb.Publish(ctx, CancelChannel(taskID), cancelPayload).Err(); err != nil {
		return fmt.Errorf("failed to publish cancel message: %w", err)
	}
	return nil
}

// PublishCommand 以 JSON 廣播任務控制命令
// 目前僅 cancel 生效，pause/resume 會被 worker 端忽略
func (p *PubSub) PublishCommand(ctx context.Context, cmd TaskCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to serialize command: %w", err)
	}
	if err := p.rdb.Publish(ctx, CancelChannel(cmd.TaskID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish command: %w", err)
	}
	return nil
}

// SubscribeCancellations 以 pattern 訂閱所有取消頻道
// 呼叫端負責關閉回傳的訂閱
func (p *PubSub) SubscribeCancellations(ctx context.Context) *redis.PubSub {
	return p.rdb.PSubscribe(ctx, CancelChannelPattern)
}

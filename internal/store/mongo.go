// ============================================================================
// Media-Queue 持久層 - MongoDB 實作
// ============================================================================
//
// Package: internal/store
// 文件: mongo.go
// 功能: TaskStore 的 MongoDB 實作
//
// 儲存配置:
//   - Collection: tasks
//   - 鍵: task_id 屬性（即 Task.ID 的 bson 名稱）
//   - 時間戳: BSON datetime，毫秒精度
//
// 寫入策略:
//   - Update 使用 $set 覆寫整份文件內容（依 task_id 過濾）
//   - UpdateProgress / UpdateStatus 僅 $set 對應欄位與 updated_at，
//     避免與 worker 的完整寫入互相覆蓋其他欄位
//
// ============================================================================

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ChuLiYu/media-queue/pkg/types"
)

// 任務集合名稱
const tasksCollection = "tasks"

// MongoStore TaskStore 的 MongoDB 實作
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore 連線 MongoDB 並以 ping 驗證
//
// 參數：
//   - uri: 連線字串（例如 mongodb://localhost:27017）
//   - database: 資料庫名稱
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoStore{
		client: client,
		db:     client.Database(database),
	}, nil
}

func (s *MongoStore) collection() *mongo.Collection {
	return s.db.Collection(tasksCollection)
}

// Insert 寫入新任務紀錄
func (s *MongoStore) Insert(ctx context.Context, task *types.Task) error {
	if _, err := s.collection().InsertOne(ctx, task); err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// Get 依 task_id 讀取任務
func (s *MongoStore) Get(ctx context.Context, taskID string) (*types.Task, error) {
	var task types.Task
	err := s.collection().FindOne(ctx, bson.D{{Key: "task_id", Value: taskID}}).Decode(&task)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return &task, nil
}

// Update 以 $set 覆寫整份任務內容
func (s *MongoStore) Update(ctx context.Context, task *types.Task) error {
	filter := bson.D{{Key: "task_id", Value: task.ID}}
	update := bson.D{{Key: "$set", Value: task}}

	if _, err := s.collection().UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

// UpdateStatus 僅更新 status 與 updated_at
func (s *MongoStore) UpdateStatus(ctx context.Context, taskID string, status types.TaskStatus) error {
	filter := bson.D{{Key: "task_id", Value: taskID}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: status},
		{Key: "updated_at", Value: time.Now().UTC().Truncate(time.Millisecond)},
	}}}

	if _, err := s.collection().UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	return nil
}

// UpdateProgress 僅更新 progress 與 updated_at
func (s *MongoStore) UpdateProgress(ctx context.Context, taskID string, progress float32) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	filter := bson.D{{Key: "task_id", Value: taskID}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "progress", Value: progress},
		{Key: "updated_at", Value: time.Now().UTC().Truncate(time.Millisecond)},
	}}}

	if _, err := s.collection().UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to update task progress: %w", err)
	}
	return nil
}

// List 依條件列出任務，created_at 由新到舊
func (s *MongoStore) List(ctx context.Context, filter ListFilter) ([]*types.Task, error) {
	query := bson.D{}
	if filter.Status != nil {
		query = append(query, bson.E{Key: "status", Value: *filter.Status})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	skip := filter.Skip
	if skip < 0 {
		skip = 0
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(skip)

	cursor, err := s.collection().Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var tasks []*types.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return tasks, nil
}

// CountByStatus 統計任務數量
func (s *MongoStore) CountByStatus(ctx context.Context, status *types.TaskStatus) (int64, error) {
	query := bson.D{}
	if status != nil {
		query = append(query, bson.E{Key: "status", Value: *status})
	}

	count, err := s.collection().CountDocuments(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// Ping 檢查 MongoDB 連線
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close 關閉連線
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ============================================================================
// Media-Queue 持久層 - 記憶體實作
// ============================================================================
//
// Package: internal/store
// 文件: memory.go
// 功能: TaskStore 的記憶體實作，供測試與本地開發使用
//
// 設計:
//   - map[string]*types.Task 作為主存儲，sync.RWMutex 保護
//   - 讀取回傳深拷貝，避免呼叫端與儲存內容互相影響
//   - 語義與 MongoStore 對齊（ErrTaskNotFound、排序、夾限）
//
// ============================================================================

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ChuLiYu/media-queue/pkg/types"
)

// MemoryStore TaskStore 的記憶體實作
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*types.Task
}

// NewMemoryStore 建立空的記憶體儲存
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]*types.Task),
	}
}

// Insert 寫入新任務紀錄
func (s *MemoryStore) Insert(_ context.Context, task *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task.Clone()
	return nil
}

// Get 依 task_id 讀取任務
func (s *MemoryStore) Get(_ context.Context, taskID string) (*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task.Clone(), nil
}

// Update 覆寫整份任務內容
func (s *MemoryStore) Update(_ context.Context, task *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; !ok {
		return ErrTaskNotFound
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

// UpdateStatus 僅更新 status 與 updated_at
func (s *MemoryStore) UpdateStatus(_ context.Context, taskID string, status types.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	task.Status = status
	task.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	return nil
}

// UpdateProgress 僅更新 progress 與 updated_at
func (s *MemoryStore) UpdateProgress(_ context.Context, taskID string, progress float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	task.Progress = progress
	task.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	return nil
}

// List 依條件列出任務，created_at 由新到舊
func (s *MemoryStore) List(_ context.Context, filter ListFilter) ([]*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tasks []*types.Task
	for _, task := range s.tasks {
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		tasks = append(tasks, task.Clone())
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	skip := filter.Skip
	if skip < 0 {
		skip = 0
	}
	if skip >= int64(len(tasks)) {
		return nil, nil
	}
	tasks = tasks[skip:]

	if int64(len(tasks)) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

// CountByStatus 統計任務數量
func (s *MemoryStore) CountByStatus(_ context.Context, status *types.TaskStatus) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if status == nil {
		return int64(len(s.tasks)), nil
	}

	var count int64
	for _, task := range s.tasks {
		if task.Status == *status {
			count++
		}
	}
	return count, nil
}

// Ping 記憶體實作永遠健康
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/media-queue/pkg/types"
)

func newTestTask(taskType types.TaskType) *types.Task {
	return types.NewTask(taskType, types.MediaFile{
		FileID:       "file-1",
		MediaType:    taskType,
		FilePath:     "/in/a.mp4",
		FileSize:     1024,
		OriginalName: "a.mp4",
		MimeType:     "video/mp4",
		Metadata:     map[string]string{"video_codec": "libx264"},
	})
}

func TestInsertAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	task := newTestTask(types.TaskTypeVideo)
	require.NoError(t, s.Insert(ctx, task))

	got, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Equal(t, "libx264", got.Media.Metadata["video_codec"])
}

func TestGetNotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	task := newTestTask(types.TaskTypeVideo)
	require.NoError(t, s.Insert(ctx, task))

	got, err := s.Get(ctx, task.ID)
	require.NoError(t, err)

	// Mutating the returned task must not leak into the store
	got.Status = types.StatusFailed
	got.Media.Metadata["video_codec"] = "libx265"

	fresh, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, fresh.Status)
	assert.Equal(t, "libx264", fresh.Media.Metadata["video_codec"])
}

func TestUpdateStatus(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	task := newTestTask(types.TaskTypeAudio)
	require.NoError(t, s.Insert(ctx, task))

	require.NoError(t, s.UpdateStatus(ctx, task.ID, types.StatusCancelling))

	got, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelling, got.Status)
	assert.True(t, got.UpdatedAt.After(task.CreatedAt) || got.UpdatedAt.Equal(task.CreatedAt))
}

func TestUpdateProgressClamped(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	task := newTestTask(types.TaskTypeVideo)
	require.NoError(t, s.Insert(ctx, task))

	require.NoError(t, s.UpdateProgress(ctx, task.ID, 1.7))
	got, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, float32(1.0), got.Progress)

	require.NoError(t, s.UpdateProgress(ctx, task.ID, -0.2))
	got, err = s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, float32(0.0), got.Progress)
}

func TestListSortedAndPaginated(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		task := newTestTask(types.TaskTypeImage)
		task.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, s.Insert(ctx, task))
		ids = append(ids, task.ID)
	}

	// Newest first
	tasks, err := s.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 5)
	assert.Equal(t, ids[4], tasks[0].ID)
	assert.Equal(t, ids[0], tasks[4].ID)

	// Pagination
	tasks, err = s.List(ctx, ListFilter{Limit: 2, Skip: 1})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, ids[3], tasks[0].ID)
	assert.Equal(t, ids[2], tasks[1].ID)
}

func TestListStatusFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	pending := newTestTask(types.TaskTypeVideo)
	require.NoError(t, s.Insert(ctx, pending))

	done := newTestTask(types.TaskTypeVideo)
	done.UpdateStatus(types.StatusCompleted)
	require.NoError(t, s.Insert(ctx, done))

	status := types.StatusCompleted
	tasks, err := s.List(ctx, ListFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, done.ID, tasks[0].ID)
}

func TestCountByStatus(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Insert(ctx, newTestTask(types.TaskTypeVideo)))
	}
	failed := newTestTask(types.TaskTypeVideo)
	failed.UpdateStatus(types.StatusFailed)
	require.NoError(t, s.Insert(ctx, failed))

	total, err := s.CountByStatus(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	status := types.StatusFailed
	count, err := s.CountByStatus(ctx, &status)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

// TestListNegativeSkipAndLimit: out-of-range paging values are treated as
// zero / default instead of blowing up the query
func TestListNegativeSkipAndLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Insert(ctx, newTestTask(types.TaskTypeVideo)))
	}

	tasks, err := s.List(ctx, ListFilter{Skip: -1})
	require.NoError(t, err)
	assert.Len(t, tasks, 3)

	tasks, err = s.List(ctx, ListFilter{Limit: -5, Skip: -10})
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
}

package queue

// ============================================================================
// Queue Test File
// Purpose: Verify FIFO ordering, scrub semantics, and the cancel channel
// against an embedded Redis (miniredis)
// ============================================================================

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/media-queue/pkg/types"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func newTestTask(taskType types.TaskType) *types.Task {
	return types.NewTask(taskType, types.MediaFile{
		FileID:       "file-1",
		MediaType:    taskType,
		FilePath:     "/in/a.mp4",
		FileSize:     1,
		OriginalName: "a.mp4",
		MimeType:     "video/mp4",
		Metadata:     map[string]string{},
	})
}

func TestQueueName(t *testing.T) {
	assert.Equal(t, "queue:video", Name(types.TaskTypeVideo))
	assert.Equal(t, "queue:audio", Name(types.TaskTypeAudio))
	assert.Equal(t, "queue:image", Name(types.TaskTypeImage))
}

func TestPushPopRoundTrip(t *testing.T) {
	q := New(newTestRedis(t))
	ctx := context.Background()

	task := newTestTask(types.TaskTypeVideo)
	require.NoError(t, q.Push(ctx, task))

	length, err := q.Len(ctx, types.TaskTypeVideo)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)

	got, err := q.Pop(ctx, types.TaskTypeVideo)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Equal(t, task.Media.FilePath, got.Media.FilePath)
}

func TestPopEmptyQueue(t *testing.T) {
	q := New(newTestRedis(t))

	_, err := q.Pop(context.Background(), types.TaskTypeAudio)
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

// TestFIFOOrdering verifies head-push / tail-pop yields FIFO for a consumer
func TestFIFOOrdering(t *testing.T) {
	q := New(newTestRedis(t))
	ctx := context.Background()

	a := newTestTask(types.TaskTypeVideo)
	b := newTestTask(types.TaskTypeVideo)
	require.NoError(t, q.Push(ctx, a))
	require.NoError(t, q.Push(ctx, b))

	first, err := q.Pop(ctx, types.TaskTypeVideo)
	require.NoError(t, err)
	second, err := q.Pop(ctx, types.TaskTypeVideo)
	require.NoError(t, err)

	assert.Equal(t, a.ID, first.ID, "task submitted first must be observed first")
	assert.Equal(t, b.ID, second.ID)
}

func TestQueuesAreIsolatedPerType(t *testing.T) {
	q := New(newTestRedis(t))
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, newTestTask(types.TaskTypeVideo)))

	_, err := q.Pop(ctx, types.TaskTypeImage)
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestRemoveScrubsFirstMatch(t *testing.T) {
	q := New(newTestRedis(t))
	ctx := context.Background()

	a := newTestTask(types.TaskTypeAudio)
	b := newTestTask(types.TaskTypeAudio)
	c := newTestTask(types.TaskTypeAudio)
	for _, task := range []*types.Task{a, b, c} {
		require.NoError(t, q.Push(ctx, task))
	}

	removed, err := q.Remove(ctx, types.TaskTypeAudio, b.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	length, err := q.Len(ctx, types.TaskTypeAudio)
	require.NoError(t, err)
	assert.Equal(t, int64(2), length)

	// Remaining entries preserve order and do not include b
	first, err := q.Pop(ctx, types.TaskTypeAudio)
	require.NoError(t, err)
	second, err := q.Pop(ctx, types.TaskTypeAudio)
	require.NoError(t, err)
	assert.Equal(t, a.ID, first.ID)
	assert.Equal(t, c.ID, second.ID)
}

func TestRemoveMissingTask(t *testing.T) {
	q := New(newTestRedis(t))
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, newTestTask(types.TaskTypeImage)))

	removed, err := q.Remove(ctx, types.TaskTypeImage, "no-such-id")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestCancelChannelHelpers(t *testing.T) {
	assert.Equal(t, "task:cancel:abc", CancelChannel("abc"))
	assert.Equal(t, "abc", TaskIDFromChannel("task:cancel:abc"))
}

func TestPublishCancelDelivered(t *testing.T) {
	rdb := newTestRedis(t)
	ps := NewPubSub(rdb)
	ctx := context.Background()

	sub := ps.SubscribeCancellations(ctx)
	defer sub.Close()

	// Wait for the pattern subscription to be in place
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, ps.PublishCancel(ctx, "task-42"))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "task:cancel:task-42", msg.Channel)
		assert.Equal(t, "cancel", msg.Payload)
		assert.Equal(t, "task-42", TaskIDFromChannel(msg.Channel))
	case <-time.After(2 * time.Second):
		t.Fatal("cancel message was not delivered")
	}
}

func TestPublishCommandDelivered(t *testing.T) {
	rdb := newTestRedis(t)
	ps := NewPubSub(rdb)
	ctx := context.Background()

	sub := ps.SubscribeCancellations(ctx)
	defer sub.Close()

	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, ps.PublishCommand(ctx, TaskCommand{
		Type:   CommandCancel,
		TaskID: "task-99",
	}))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "task:cancel:task-99", msg.Channel)

		var cmd TaskCommand
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &cmd))
		assert.Equal(t, CommandCancel, cmd.Type)
		assert.Equal(t, "task-99", cmd.TaskID)
	case <-time.After(2 * time.Second):
		t.Fatal("command message was not delivered")
	}
}

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMedia() MediaFile {
	return MediaFile{
		FileID:       "test-123",
		MediaType:    TaskTypeVideo,
		FilePath:     "/path/to/video.mp4",
		FileSize:     1024000,
		OriginalName: "video.mp4",
		MimeType:     "video/mp4",
		Metadata:     map[string]string{},
	}
}

func TestNewTask(t *testing.T) {
	task := NewTask(TaskTypeVideo, testMedia())

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, float32(0), task.Progress)
	assert.Equal(t, uint32(0), task.RetryCount)
	assert.Equal(t, uint32(DefaultMaxRetries), task.MaxRetries)
	assert.Empty(t, task.Error)
	assert.Nil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)
}

func TestTaskTypeValid(t *testing.T) {
	assert.True(t, TaskTypeVideo.Valid())
	assert.True(t, TaskTypeAudio.Valid())
	assert.True(t, TaskTypeImage.Valid())
	assert.False(t, TaskType("pdf").Valid())
	assert.False(t, TaskType("").Valid())
}

func TestStatusUpdate(t *testing.T) {
	task := NewTask(TaskTypeVideo, testMedia())

	task.UpdateStatus(StatusProcessing)
	assert.Equal(t, StatusProcessing, task.Status)
	require.NotNil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)

	task.UpdateStatus(StatusCompleted)
	assert.Equal(t, StatusCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)
}

// TestTimestampsWriteOnce verifies started_at/completed_at never get rewritten
func TestTimestampsWriteOnce(t *testing.T) {
	task := NewTask(TaskTypeAudio, testMedia())

	task.UpdateStatus(StatusProcessing)
	started := *task.StartedAt

	time.Sleep(5 * time.Millisecond)

	// Requeue then process again: started_at must keep its first value
	task.UpdateStatus(StatusPending)
	task.UpdateStatus(StatusProcessing)
	assert.Equal(t, started, *task.StartedAt)

	task.UpdateStatus(StatusFailed)
	completed := *task.CompletedAt

	time.Sleep(5 * time.Millisecond)

	task.UpdateStatus(StatusCancelled)
	assert.Equal(t, completed, *task.CompletedAt)
}

func TestProgressClamping(t *testing.T) {
	task := NewTask(TaskTypeVideo, testMedia())

	task.UpdateProgress(0.5)
	assert.Equal(t, float32(0.5), task.Progress)

	task.UpdateProgress(1.5)
	assert.Equal(t, float32(1.0), task.Progress)

	task.UpdateProgress(-0.5)
	assert.Equal(t, float32(0.0), task.Progress)
}

func TestRetryLogic(t *testing.T) {
	task := NewTask(TaskTypeVideo, testMedia())

	assert.True(t, task.CanRetry())

	task.IncrementRetry()
	assert.Equal(t, uint32(1), task.RetryCount)
	assert.True(t, task.CanRetry())

	task.IncrementRetry()
	task.IncrementRetry()
	assert.Equal(t, uint32(3), task.RetryCount)
	assert.False(t, task.CanRetry())
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.False(t, StatusCancelling.IsTerminal())
}

func TestGetMetadata(t *testing.T) {
	media := testMedia()
	media.Metadata["video_codec"] = "libx265"

	assert.Equal(t, "libx265", media.GetMetadata("video_codec", "libx264"))
	assert.Equal(t, "libx264", media.GetMetadata("missing", "libx264"))
}

func TestUpdatedAtRefreshed(t *testing.T) {
	task := NewTask(TaskTypeImage, testMedia())
	before := task.UpdatedAt

	time.Sleep(5 * time.Millisecond)
	task.UpdateProgress(0.3)

	assert.True(t, task.UpdatedAt.After(before))
}

func TestClone(t *testing.T) {
	task := NewTask(TaskTypeVideo, MediaFile{
		FileID:   "f",
		FilePath: "/in/a.mp4",
		Metadata: map[string]string{"video_codec": "libx264"},
	})
	task.UpdateStatus(StatusProcessing)

	clone := task.Clone()

	// Mutating the clone leaves the original untouched
	clone.UpdateStatus(StatusCompleted)
	clone.UpdateProgress(0.5)
	clone.Media.Metadata["video_codec"] = "libx265"
	*clone.StartedAt = clone.StartedAt.Add(time.Hour)

	assert.Equal(t, StatusProcessing, task.Status)
	assert.Equal(t, float32(0), task.Progress)
	assert.Equal(t, "libx264", task.Media.Metadata["video_codec"])
	assert.Nil(t, task.CompletedAt)
	assert.NotEqual(t, task.StartedAt, clone.StartedAt)
}

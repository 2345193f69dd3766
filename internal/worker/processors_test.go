package worker

// ============================================================================
// Processor Test File
// Purpose: Verify the processor contract - status transitions, monotone
// progress, output naming, and cooperative cancellation
// ============================================================================

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/media-queue/pkg/types"
)

func newMediaTask(taskType types.TaskType, metadata map[string]string) *types.Task {
	media := types.MediaFile{
		FileID:    "f",
		MediaType: taskType,
		FilePath:  "/in/source",
		FileSize:  1,
		MimeType:  "application/octet-stream",
		Metadata:  metadata,
	}
	return types.NewTask(taskType, media)
}

func TestVideoProcessorCompletes(t *testing.T) {
	p := NewVideoProcessor("/out")
	p.stepDelay = time.Microsecond

	task := newMediaTask(types.TaskTypeVideo, nil)

	var reports []float32
	report := func(progress float32) { reports = append(reports, progress) }

	err := p.Process(context.Background(), task, report, &atomic.Bool{})
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, task.Status)
	assert.Equal(t, "/out/"+task.ID+"_compressed.mp4", task.OutputPath)
	assert.Equal(t, float32(1.0), task.Progress)
	assert.NotNil(t, task.StartedAt)
	assert.NotNil(t, task.CompletedAt)

	// Progress reports are monotonically non-decreasing, ending at 1.0
	require.NotEmpty(t, reports)
	for i := 1; i < len(reports); i++ {
		assert.GreaterOrEqual(t, reports[i], reports[i-1])
	}
	assert.Equal(t, float32(0.0), reports[0])
	assert.Equal(t, float32(1.0), reports[len(reports)-1])
}

func TestAudioProcessorOutputFormat(t *testing.T) {
	p := NewAudioProcessor("/out")
	p.stepDelay = time.Microsecond

	// Explicit format from metadata
	task := newMediaTask(types.TaskTypeAudio, map[string]string{"audio_format": "flac"})
	require.NoError(t, p.Process(context.Background(), task, func(float32) {}, &atomic.Bool{}))
	assert.Equal(t, "/out/"+task.ID+"_processed.flac", task.OutputPath)

	// Default format when metadata is absent
	task = newMediaTask(types.TaskTypeAudio, nil)
	require.NoError(t, p.Process(context.Background(), task, func(float32) {}, &atomic.Bool{}))
	assert.Equal(t, "/out/"+task.ID+"_processed.mp3", task.OutputPath)
}

func TestImageProcessorOutputFormat(t *testing.T) {
	p := NewImageProcessor("/out")
	p.stepDelay = time.Microsecond

	task := newMediaTask(types.TaskTypeImage, map[string]string{"image_format": "webp"})
	require.NoError(t, p.Process(context.Background(), task, func(float32) {}, &atomic.Bool{}))
	assert.Equal(t, "/out/"+task.ID+"_optimized.webp", task.OutputPath)

	task = newMediaTask(types.TaskTypeImage, nil)
	require.NoError(t, p.Process(context.Background(), task, func(float32) {}, &atomic.Bool{}))
	assert.Equal(t, "/out/"+task.ID+"_optimized.jpg", task.OutputPath)
}

func TestProcessorObservesCancelFlag(t *testing.T) {
	p := NewVideoProcessor("/out")
	p.stepDelay = time.Millisecond

	task := newMediaTask(types.TaskTypeVideo, nil)

	cancelled := &atomic.Bool{}
	cancelled.Store(true)

	err := p.Process(context.Background(), task, func(float32) {}, cancelled)
	assert.ErrorIs(t, err, ErrTaskCancelled)
	assert.Equal(t, types.StatusCancelled, task.Status)
	assert.Empty(t, task.OutputPath)
	assert.Less(t, task.Progress, float32(1.0))
}

func TestProcessorStopsOnContextDone(t *testing.T) {
	p := NewImageProcessor("/out")
	p.stepDelay = 50 * time.Millisecond

	task := newMediaTask(types.TaskTypeImage, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Process(ctx, task, func(float32) {}, &atomic.Bool{})
	assert.ErrorIs(t, err, context.Canceled)
}

// ============================================================================
// Media-Queue Video Processor - 視訊壓縮模擬
// ============================================================================
//
// Package: internal/worker
// 文件: video.go
// 功能: 模擬視訊壓縮，101 步 × 200ms，輸出 {task_id}_compressed.mp4
//
// ============================================================================

package worker

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/ChuLiYu/media-queue/pkg/types"
)

const (
	videoSteps        = 100
	videoStepDelay    = 200 * time.Millisecond
	defaultVideoCodec = "libx264"
)

// VideoProcessor 視訊壓縮處理器
type VideoProcessor struct {
	outputDir string
	stepDelay time.Duration
}

// NewVideoProcessor 建立視訊處理器，輸出寫入 outputDir
func NewVideoProcessor(outputDir string) *VideoProcessor {
	return &VideoProcessor{
		outputDir: outputDir,
		stepDelay: videoStepDelay,
	}
}

// TaskType 實作 Processor
func (p *VideoProcessor) TaskType() types.TaskType {
	return types.TaskTypeVideo
}

// Process 實作 Processor，模擬壓縮迴圈
func (p *VideoProcessor) Process(ctx context.Context, task *types.Task,
	report ProgressFunc, cancelled *atomic.Bool) error {

	codec := task.Media.GetMetadata("video_codec", defaultVideoCodec)

	log.Info("Starting video compression",
		"task_id", task.ID,
		"input", task.Media.FilePath,
		"codec", codec)

	task.UpdateStatus(types.StatusProcessing)

	if err := simulateWork(ctx, task, videoSteps, p.stepDelay, report, cancelled); err != nil {
		return err
	}

	task.OutputPath = filepath.Join(p.outputDir, task.ID+"_compressed.mp4")
	task.UpdateStatus(types.StatusCompleted)

	log.Info("Video compression finished",
		"task_id", task.ID,
		"output", task.OutputPath)

	return nil
}

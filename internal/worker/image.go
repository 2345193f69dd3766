// ============================================================================
// Media-Queue Image Processor - 圖片優化模擬
// ============================================================================
//
// Package: internal/worker
// 文件: image.go
// 功能: 模擬圖片優化，21 步 × 200ms，輸出 {task_id}_optimized.{format}
//
// 圖片任務最輕量，步數遠少於音視訊。
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
	imageSteps          = 20
	imageStepDelay      = 200 * time.Millisecond
	defaultImageFormat  = "jpg"
	defaultImageQuality = "85"
)

// ImageProcessor 圖片優化處理器
type ImageProcessor struct {
	outputDir string
	stepDelay time.Duration
}

// NewImageProcessor 建立圖片處理器，輸出寫入 outputDir
func NewImageProcessor(outputDir string) *ImageProcessor {
	return &ImageProcessor{
		outputDir: outputDir,
		stepDelay: imageStepDelay,
	}
}

// TaskType 實作 Processor
func (p *ImageProcessor) TaskType() types.TaskType {
	return types.TaskTypeImage
}

// Process 實作 Processor，模擬優化迴圈
func (p *ImageProcessor) Process(ctx context.Context, task *types.Task,
	report ProgressFunc, cancelled *atomic.Bool) error {

	format := task.Media.GetMetadata("image_format", defaultImageFormat)
	quality := task.Media.GetMetadata("quality", defaultImageQuality)

	log.Info("Starting image optimization",
		"task_id", task.ID,
		"input", task.Media.FilePath,
		"format", format,
		"quality", quality)

	task.UpdateStatus(types.StatusProcessing)

	if err := simulateWork(ctx, task, imageSteps, p.stepDelay, report, cancelled); err != nil {
		return err
	}

	task.OutputPath = filepath.Join(p.outputDir, task.ID+"_optimized."+format)
	task.UpdateStatus(types.StatusCompleted)

	log.Info("Image optimization finished",
		"task_id", task.ID,
		"output", task.OutputPath)

	return nil
}

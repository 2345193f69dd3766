// ============================================================================
// Media-Queue Audio Processor - 音訊轉檔模擬
// ============================================================================
//
// Package: internal/worker
// 文件: audio.go
// 功能: 模擬音訊轉檔，101 步 × 150ms，輸出 {task_id}_processed.{format}
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
	audioSteps         = 100
	audioStepDelay     = 150 * time.Millisecond
	defaultAudioFormat = "mp3"
)

// AudioProcessor 音訊轉檔處理器
type AudioProcessor struct {
	outputDir string
	stepDelay time.Duration
}

// NewAudioProcessor 建立音訊處理器，輸出寫入 outputDir
func NewAudioProcessor(outputDir string) *AudioProcessor {
	return &AudioProcessor{
		outputDir: outputDir,
		stepDelay: audioStepDelay,
	}
}

// TaskType 實作 Processor
func (p *AudioProcessor) TaskType() types.TaskType {
	return types.TaskTypeAudio
}

// Process 實作 Processor，模擬轉檔迴圈
func (p *AudioProcessor) Process(ctx context.Context, task *types.Task,
	report ProgressFunc, cancelled *atomic.Bool) error {

	format := task.Media.GetMetadata("audio_format", defaultAudioFormat)

	log.Info("Starting audio conversion",
		"task_id", task.ID,
		"input", task.Media.FilePath,
		"format", format)

	task.UpdateStatus(types.StatusProcessing)

	if err := simulateWork(ctx, task, audioSteps, p.stepDelay, report, cancelled); err != nil {
		return err
	}

	task.OutputPath = filepath.Join(p.outputDir, task.ID+"_processed."+format)
	task.UpdateStatus(types.StatusCompleted)

	log.Info("Audio conversion finished",
		"task_id", task.ID,
		"output", task.OutputPath)

	return nil
}

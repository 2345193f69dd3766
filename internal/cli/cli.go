// ============================================================================
// Media-Queue CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// 文件: cli.go
// 功能: 基於 Cobra 框架的命令列介面
//
// 命令結構:
//   mediaqueue                     # 根命令
//   ├── api                        # 啟動 REST API 伺服器
//   ├── worker                     # 啟動 worker 行程
//   │   └── --task-type, -t        # 消費的任務類型 video|audio|image
//   ├── monitor                    # 啟動儀表板伺服器（僅統計端點）
//   ├── submit                     # 從 JSON 檔批次提交任務
//   │   └── --file, -f             # 任務定義 JSON 檔
//   ├── status                     # 顯示系統狀態
//   ├── --config, -c               # 指定設定檔（預設 configs/default.yaml）
//   └── --version                  # 顯示版本
//
// 設定管理:
//   YAML 設定檔，項目包含:
//   - mongodb: 連線 URI 與資料庫名稱
//   - redis: 連線 URI
//   - api / monitor: 監聽位址
//   - worker: 輸出目錄與 worker 識別碼
//
// 訊號處理:
//   api / worker / monitor 命令捕捉 SIGINT、SIGTERM 並優雅關閉。
//
// ============================================================================

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ChuLiYu/media-queue/internal/metrics"
	"github.com/ChuLiYu/media-queue/internal/queue"
	"github.com/ChuLiYu/media-queue/internal/server"
	"github.com/ChuLiYu/media-queue/internal/service"
	"github.com/ChuLiYu/media-queue/internal/store"
	"github.com/ChuLiYu/media-queue/internal/worker"
	"github.com/ChuLiYu/media-queue/pkg/types"
)

var log = slog.Default()

// Config 系統設定，經 YAML 標籤對應設定檔欄位
type Config struct {
	MongoDB struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongodb"`

	Redis struct {
		URI string `yaml:"uri"`
	} `yaml:"redis"`

	API struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"api"`

	Monitor struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"monitor"`

	Worker struct {
		OutputDir string `yaml:"output_dir"`
		WorkerID  string `yaml:"worker_id"`
	} `yaml:"worker"`
}

func (c *Config) applyDefaults() {
	if c.MongoDB.URI == "" {
		c.MongoDB.URI = "mongodb://localhost:27017"
	}
	if c.MongoDB.Database == "" {
		c.MongoDB.Database = "media_queue"
	}
	if c.Redis.URI == "" {
		c.Redis.URI = "redis://localhost:6379"
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 3000
	}
	if c.Monitor.Host == "" {
		c.Monitor.Host = "0.0.0.0"
	}
	if c.Monitor.Port == 0 {
		c.Monitor.Port = 8080
	}
	if c.Worker.OutputDir == "" {
		c.Worker.OutputDir = "output"
	}
}

var configFile string

// BuildCLI 組裝根命令
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mediaqueue",
		Short: "Distributed media processing job queue",
		Long: `Media-Queue is a distributed media processing system with:
- Per-type Redis work queues (video / audio / image)
- MongoDB durable task records
- Pub/sub based task cancellation
- Bounded retry with automatic requeue
- Prometheus metrics`,
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	rootCmd.AddCommand(buildAPICommand())
	rootCmd.AddCommand(buildWorkerCommand())
	rootCmd.AddCommand(buildMonitorCommand())
	rootCmd.AddCommand(buildSubmitCommand())
	rootCmd.AddCommand(buildStatusCommand())

	return rootCmd
}

// ============================================================================
// 基礎設施組裝
// ============================================================================

// deps 單一行程共用的基礎設施
type deps struct {
	store    *store.MongoStore
	queue    *queue.Queue
	pubsub   *queue.PubSub
	counters *metrics.Counters
	service  *service.TaskService
	rdb      *redis.Client
}

func connect(ctx context.Context, cfg *Config) (*deps, error) {
	mongoStore, err := store.NewMongoStore(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		return nil, err
	}

	opts, err := redis.ParseURL(cfg.Redis.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URI: %w", err)
	}
	rdb := redis.NewClient(opts)

	q := queue.New(rdb)
	if err := q.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	ps := queue.NewPubSub(rdb)
	counters := metrics.NewCounters()

	// 計數器以持久層現況初始化
	if _, err := counters.Sync(ctx, mongoStore); err != nil {
		log.Warn("Failed to sync counters from store", "error", err)
	}

	return &deps{
		store:    mongoStore,
		queue:    q,
		pubsub:   ps,
		counters: counters,
		service:  service.NewTaskService(mongoStore, q, ps, counters),
		rdb:      rdb,
	}, nil
}

func (d *deps) close(ctx context.Context) {
	if err := d.store.Close(ctx); err != nil {
		log.Warn("Failed to close MongoDB connection", "error", err)
	}
	if err := d.rdb.Close(); err != nil {
		log.Warn("Failed to close Redis connection", "error", err)
	}
}

func loadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// 無設定檔時以預設值執行
		log.Warn("Config file not found, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// ============================================================================
// api 命令
// ============================================================================

func buildAPICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Start the REST API server",
		Long:  "Start the task submission and management HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			d, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer d.close(context.Background())

			srv := server.New(d.service, d.store, d.queue, d.counters)
			addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
			return server.Serve(ctx, addr, srv.Router())
		},
	}
}

// ============================================================================
// worker 命令
// ============================================================================

func buildWorkerCommand() *cobra.Command {
	var taskType string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Start a worker process",
		Long:  "Start a worker consuming one task type queue (video, audio or image)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}

			if !types.TaskType(taskType).Valid() {
				return fmt.Errorf("invalid task type %q, must be 'video', 'audio', or 'image'", taskType)
			}

			ctx, stop := signalContext()
			defer stop()

			d, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer d.close(context.Background())

			processor, err := buildProcessor(types.TaskType(taskType), cfg.Worker.OutputDir)
			if err != nil {
				return err
			}

			engine := worker.NewEngine(
				worker.Config{WorkerID: cfg.Worker.WorkerID},
				d.store, d.queue, d.pubsub, processor, d.counters,
			)

			if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&taskType, "task-type", "t", "video", "task type to consume (video|audio|image)")
	return cmd
}

func buildProcessor(taskType types.TaskType, outputDir string) (worker.Processor, error) {
	switch taskType {
	case types.TaskTypeVideo:
		return worker.NewVideoProcessor(outputDir), nil
	case types.TaskTypeAudio:
		return worker.NewAudioProcessor(outputDir), nil
	case types.TaskTypeImage:
		return worker.NewImageProcessor(outputDir), nil
	}
	return nil, fmt.Errorf("no processor for task type %q", taskType)
}

// ============================================================================
// monitor 命令
// ============================================================================

func buildMonitorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Start the dashboard server",
		Long:  "Start the monitoring server exposing stats and recent tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			d, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer d.close(context.Background())

			srv := server.New(d.service, d.store, d.queue, d.counters)
			addr := fmt.Sprintf("%s:%d", cfg.Monitor.Host, cfg.Monitor.Port)
			return server.Serve(ctx, addr, srv.MonitorRouter())
		},
	}
}

// ============================================================================
// submit 命令
// ============================================================================

func buildSubmitCommand() *cobra.Command {
	var taskFile string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit tasks from a JSON file",
		Long: `Batch submit tasks from a JSON file.
JSON format:
[
  {
    "task_type": "video",
    "file_path": "/data/input.mp4",
    "file_size": 1048576,
    "original_name": "input.mp4",
    "mime_type": "video/mp4",
    "options": {"video_codec": "libx264"}
  }
]`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(taskFile)
			if err != nil {
				return fmt.Errorf("failed to read task file: %w", err)
			}

			var inputs []service.CreateTaskInput
			if err := json.Unmarshal(data, &inputs); err != nil {
				return fmt.Errorf("failed to parse task file: %w", err)
			}

			ctx, stop := signalContext()
			defer stop()

			d, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer d.close(context.Background())

			submitted := 0
			for i, input := range inputs {
				taskID, err := d.service.Create(ctx, input)
				if err != nil {
					// 單筆失敗不中斷整批
					fmt.Printf("❌ Task %d failed: %v\n", i+1, err)
					continue
				}
				fmt.Printf("✅ Task %d submitted: %s (%s)\n", i+1, taskID, input.TaskType)
				submitted++
			}

			fmt.Printf("\nSubmitted %d/%d tasks\n", submitted, len(inputs))
			return nil
		},
	}

	cmd.Flags().StringVarP(&taskFile, "file", "f", "tasks.json", "task definitions JSON file")
	return cmd
}

// ============================================================================
// status 命令
// ============================================================================

func buildStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system status",
		Long:  "Display task counts and queue depths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			d, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer d.close(context.Background())

			return showStatus(ctx, cfg, d)
		},
	}
}

func showStatus(ctx context.Context, cfg *Config, d *deps) error {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║              Media-Queue System Status                    ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	fmt.Println("📋 Configuration:")
	fmt.Printf("  └─ Config File:  %s\n", configFile)
	fmt.Printf("  └─ MongoDB:      %s (%s)\n", cfg.MongoDB.URI, cfg.MongoDB.Database)
	fmt.Printf("  └─ Redis:        %s\n", cfg.Redis.URI)
	fmt.Println()

	total, err := d.store.CountByStatus(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to count tasks: %w", err)
	}

	countFor := func(status types.TaskStatus) int64 {
		n, err := d.store.CountByStatus(ctx, &status)
		if err != nil {
			return 0
		}
		return n
	}

	fmt.Println("📊 Task Statistics:")
	fmt.Printf("  ├─ Total:         %d\n", total)
	fmt.Printf("  ├─ ⏳ Pending:     %d\n", countFor(types.StatusPending))
	fmt.Printf("  ├─ 🔄 Processing:  %d\n", countFor(types.StatusProcessing))
	fmt.Printf("  ├─ ✅ Completed:   %d\n", countFor(types.StatusCompleted))
	fmt.Printf("  ├─ ❌ Failed:      %d\n", countFor(types.StatusFailed))
	fmt.Printf("  └─ 🚫 Cancelled:   %d\n", countFor(types.StatusCancelled))
	fmt.Println()

	fmt.Println("📦 Queue Depths:")
	for _, taskType := range []types.TaskType{types.TaskTypeVideo, types.TaskTypeAudio, types.TaskTypeImage} {
		length, err := d.queue.Len(ctx, taskType)
		if err != nil {
			length = 0
		}
		fmt.Printf("  └─ %-6s %d\n", string(taskType)+":", length)
	}
	fmt.Println()

	fmt.Println("═══════════════════════════════════════════════════════════")
	return nil
}

// ============================================================================
// Media-Queue HTTP Server - REST API 與監控端點
// ============================================================================
//
// Package: internal/server
// 文件: server.go
// 功能: 任務生命週期的 HTTP 介面
//
// 路由:
//   POST   /tasks            建立任務
//   GET    /tasks            列表（?status=&limit=&skip=）
//   GET    /tasks/{id}       查詢單一任務
//   DELETE /tasks/{id}       取消任務
//   GET    /health           健康檢查（Mongo + Redis ping）
//   GET    /metrics          Prometheus 格式指標
//   POST   /metrics/reset    計數器歸零
//   GET    /metrics/sync     計數器與持久層對齊
//   GET    /api/stats        儀表板統計（狀態計數 + 佇列深度）
//   GET    /api/tasks/recent 最近 50 筆任務摘要
//
// 回應格式統一為 {success, data, message} 信封，錯誤為 {success, error}。
//
// ============================================================================

package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ChuLiYu/media-queue/internal/metrics"
	"github.com/ChuLiYu/media-queue/internal/queue"
	"github.com/ChuLiYu/media-queue/internal/service"
	"github.com/ChuLiYu/media-queue/internal/store"
)

var log = slog.Default()

// Server 綁定服務層與儲存層的 HTTP 伺服器
type Server struct {
	service  *service.TaskService
	store    store.TaskStore
	queue    *queue.Queue
	counters *metrics.Counters
	registry *prometheus.Registry
}

// New 建立伺服器並註冊 Prometheus 收集器
func New(svc *service.TaskService, s store.TaskStore, q *queue.Queue, c *metrics.Counters) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(c))

	return &Server{
		service:  svc,
		store:    s,
		queue:    q,
		counters: c,
		registry: registry,
	}
}

// Router 組裝路由
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Get("/metrics", s.handleMetrics)
	r.Post("/metrics/reset", s.handleMetricsReset)
	r.Get("/metrics/sync", s.handleMetricsSync)

	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", s.handleCreateTask)
		r.Get("/", s.handleListTasks)
		r.Get("/{id}", s.handleGetTask)
		r.Delete("/{id}", s.handleCancelTask)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/tasks/recent", s.handleRecentTasks)
	})

	return r
}

// MonitorRouter 僅含儀表板端點的路由，供獨立的 monitor 行程使用
func (s *Server) MonitorRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/tasks/recent", s.handleRecentTasks)
	})

	return r
}

// Serve 啟動 HTTP 伺服器，ctx 結束時優雅關閉
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// handleMetrics 以 Prometheus exposition 格式輸出指標
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

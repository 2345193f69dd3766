// ============================================================================
// Media-Queue Metrics - Prometheus 橋接
// ============================================================================
//
// Package: internal/metrics
// 文件: prometheus.go
// 功能: 將任務計數器以 Prometheus 格式暴露於 /metrics
//
// 指標:
//   mediaqueue_tasks_total{status="created|completed|failed|cancelled"}
//
// 計數器支援重置與同步，因此不使用 prometheus.Counter（只增不減），
// 改以自訂 Collector 在抓取當下輸出 const metric。
//
// ============================================================================

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector 將 Counters 轉為 Prometheus 指標的收集器
type Collector struct {
	counters *Counters
	desc     *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector 建立收集器，呼叫端負責註冊
func NewCollector(counters *Counters) *Collector {
	return &Collector{
		counters: counters,
		desc: prometheus.NewDesc(
			"mediaqueue_tasks_total",
			"Total number of tasks by status",
			[]string{"status"},
			nil,
		),
	}
}

// Describe 實作 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect 實作 prometheus.Collector，於抓取當下讀取計數
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.counters.Read()

	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(snap.Created), "created")
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(snap.Completed), "completed")
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(snap.Failed), "failed")
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(snap.Cancelled), "cancelled")
}

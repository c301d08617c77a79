// Package monitoring 提供运行指标与实时事件推送
package monitoring

import (
	"runtime"
	"sync"
	"time"
)

// Collector 进程内指标收集器
type Collector struct {
	mu        sync.RWMutex
	counters  map[string]int64
	latencies map[string]*latencySummary
	startTime time.Time
}

type latencySummary struct {
	Count int64
	Total time.Duration
	Max   time.Duration
}

// NewCollector 创建指标收集器
func NewCollector() *Collector {
	return &Collector{
		counters:  make(map[string]int64),
		latencies: make(map[string]*latencySummary),
		startTime: time.Now(),
	}
}

// Inc 计数器加一
func (c *Collector) Inc(name string) {
	c.mu.Lock()
	c.counters[name]++
	c.mu.Unlock()
}

// Observe 记录一次耗时
func (c *Collector) Observe(name string, d time.Duration) {
	c.mu.Lock()
	summary, ok := c.latencies[name]
	if !ok {
		summary = &latencySummary{}
		c.latencies[name] = summary
	}
	summary.Count++
	summary.Total += d
	if d > summary.Max {
		summary.Max = d
	}
	c.mu.Unlock()
}

// Snapshot 导出当前指标
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counters := make(map[string]int64, len(c.counters))
	for name, value := range c.counters {
		counters[name] = value
	}

	latencies := make(map[string]map[string]interface{}, len(c.latencies))
	for name, summary := range c.latencies {
		avg := time.Duration(0)
		if summary.Count > 0 {
			avg = summary.Total / time.Duration(summary.Count)
		}
		latencies[name] = map[string]interface{}{
			"count":  summary.Count,
			"avg_ms": float64(avg) / float64(time.Millisecond),
			"max_ms": float64(summary.Max) / float64(time.Millisecond),
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.startTime).Seconds(),
		"counters":       counters,
		"latencies":      latencies,
		"goroutines":     runtime.NumGoroutine(),
		"heap_alloc":     mem.HeapAlloc,
		"timestamp":      time.Now().UTC(),
	}
}

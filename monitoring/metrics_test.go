package monitoring

import (
	"testing"
	"time"
)

func TestCollectorCounters(t *testing.T) {
	collector := NewCollector()

	collector.Inc("predictions_total")
	collector.Inc("predictions_total")
	collector.Inc("predictions_exoplanet")

	snapshot := collector.Snapshot()
	counters := snapshot["counters"].(map[string]int64)
	if counters["predictions_total"] != 2 {
		t.Fatalf("expected 2, got %d", counters["predictions_total"])
	}
	if counters["predictions_exoplanet"] != 1 {
		t.Fatalf("expected 1, got %d", counters["predictions_exoplanet"])
	}
}

func TestCollectorLatencies(t *testing.T) {
	collector := NewCollector()

	collector.Observe("predict_csv", 10*time.Millisecond)
	collector.Observe("predict_csv", 30*time.Millisecond)

	snapshot := collector.Snapshot()
	latencies := snapshot["latencies"].(map[string]map[string]interface{})
	summary, ok := latencies["predict_csv"]
	if !ok {
		t.Fatal("expected predict_csv latency summary")
	}
	if summary["count"].(int64) != 2 {
		t.Fatalf("expected count 2, got %v", summary["count"])
	}
	if summary["avg_ms"].(float64) != 20 {
		t.Fatalf("expected avg 20ms, got %v", summary["avg_ms"])
	}
	if summary["max_ms"].(float64) != 30 {
		t.Fatalf("expected max 30ms, got %v", summary["max_ms"])
	}
}

func TestSnapshotHasRuntimeFacts(t *testing.T) {
	snapshot := NewCollector().Snapshot()

	if snapshot["goroutines"].(int) <= 0 {
		t.Fatal("expected goroutine count")
	}
	if _, ok := snapshot["uptime_seconds"]; !ok {
		t.Fatal("expected uptime")
	}
}

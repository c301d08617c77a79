package db

import (
	"path/filepath"
	"testing"
	"time"
)

func setupDB(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	if err := InitDB(path); err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { Close() })
}

func TestSaveAndQueryPredictions(t *testing.T) {
	setupDB(t)

	base := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		err := SavePrediction(PredictionRecord{
			Source:      "csv",
			Verdict:     i % 2,
			Probability: 0.5 + float64(i)*0.1,
			Confidence:  50 + float64(i)*10,
			PlanetType:  "Hot Jupiter",
			NumSamples:  2,
			LatencyMS:   12.5,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("save prediction: %v", err)
		}
	}

	records, err := RecentPredictions(2)
	if err != nil {
		t.Fatalf("query predictions: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// newest first
	if !records[0].CreatedAt.After(records[1].CreatedAt) {
		t.Fatalf("expected newest-first ordering: %v vs %v", records[0].CreatedAt, records[1].CreatedAt)
	}
	if records[0].PlanetType != "Hot Jupiter" {
		t.Fatalf("unexpected planet type: %s", records[0].PlanetType)
	}
}

func TestSavePredictionDefaultsTimestamp(t *testing.T) {
	setupDB(t)

	if err := SavePrediction(PredictionRecord{Source: "flux", Verdict: 1, Probability: 0.9, Confidence: 90}); err != nil {
		t.Fatalf("save prediction: %v", err)
	}

	records, err := RecentPredictions(1)
	if err != nil {
		t.Fatalf("query predictions: %v", err)
	}
	if len(records) != 1 || records[0].CreatedAt.IsZero() {
		t.Fatal("expected timestamp to be backfilled")
	}
}

func TestQueriesRequireInit(t *testing.T) {
	if err := Close(); err != nil {
		t.Fatal(err)
	}
	if err := SavePrediction(PredictionRecord{}); err == nil {
		t.Fatal("expected error before InitDB")
	}
	if _, err := RecentPredictions(10); err == nil {
		t.Fatal("expected error before InitDB")
	}
}

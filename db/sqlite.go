package db

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var database *sql.DB

// InitDB initializes the SQLite database
func InitDB(path string) error {
	var err error
	database, err = sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        source VARCHAR(10) NOT NULL,
        verdict INTEGER NOT NULL,
        probability REAL NOT NULL,
        confidence REAL NOT NULL,
        planet_type VARCHAR(30),
        num_samples INTEGER,
        latency_ms REAL,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created_at);
    `
	_, err = database.Exec(query)
	return err
}

// Close closes the database handle
func Close() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database = nil
	return err
}

// PredictionRecord is one row of served-verdict history
type PredictionRecord struct {
	Source      string    `json:"source"`
	Verdict     int       `json:"verdict"`
	Probability float64   `json:"probability"`
	Confidence  float64   `json:"confidence"`
	PlanetType  string    `json:"planet_type,omitempty"`
	NumSamples  int       `json:"num_samples"`
	LatencyMS   float64   `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

func SavePrediction(rec PredictionRecord) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := database.Exec(`
        INSERT INTO predictions (source, verdict, probability, confidence, planet_type, num_samples, latency_ms, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Source, rec.Verdict, rec.Probability, rec.Confidence, rec.PlanetType, rec.NumSamples, rec.LatencyMS, rec.CreatedAt)
	return err
}

func RecentPredictions(limit int) ([]PredictionRecord, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := database.Query(`
        SELECT source, verdict, probability, confidence, planet_type, num_samples, latency_ms, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0)
	for rows.Next() {
		var rec PredictionRecord
		if err := rows.Scan(&rec.Source, &rec.Verdict, &rec.Probability, &rec.Confidence, &rec.PlanetType, &rec.NumSamples, &rec.LatencyMS, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

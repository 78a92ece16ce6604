package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var database *sql.DB

// InitDB opens the SQLite database and creates the schema.
func InitDB(path string) error {
	var err error
	database, err = sql.Open("sqlite3", path)
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS training_runs (
        id TEXT PRIMARY KEY,
        started_at DATETIME,
        finished_at DATETIME,
        family VARCHAR(40),
        best_params TEXT,
        mean_auc REAL,
        test_auc REAL,
        threshold REAL,
        dataset_rows INTEGER
    );
    CREATE TABLE IF NOT EXISTS predictions (
        id TEXT PRIMARY KEY,
        created_at DATETIME,
        record TEXT,
        probability REAL,
        label INTEGER
    );
    `
	_, err = database.Exec(query)
	return err
}

// Close releases the database handle.
func Close() error {
	if database == nil {
		return nil
	}
	return database.Close()
}

// NewID returns a fresh identifier for runs and prediction rows.
func NewID() string {
	return uuid.NewString()
}

// TrainingRun is one row of the run registry.
type TrainingRun struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Family      string    `json:"family"`
	BestParams  string    `json:"best_params"`
	MeanAUC     float64   `json:"mean_auc"`
	TestAUC     float64   `json:"test_auc"`
	Threshold   float64   `json:"threshold"`
	DatasetRows int       `json:"dataset_rows"`
}

// SaveTrainingRun records a finished training run.
func SaveTrainingRun(run TrainingRun) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	_, err := database.Exec(`
        INSERT INTO training_runs (id, started_at, finished_at, family, best_params, mean_auc, test_auc, threshold, dataset_rows)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.FinishedAt, run.Family, run.BestParams,
		run.MeanAUC, run.TestAUC, run.Threshold, run.DatasetRows)
	return err
}

// QueryTrainingRuns returns the most recent runs, newest first.
func QueryTrainingRuns(limit int) ([]TrainingRun, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := database.Query(`
        SELECT id, started_at, finished_at, family, best_params, mean_auc, test_auc, threshold, dataset_rows
        FROM training_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []TrainingRun
	for rows.Next() {
		var run TrainingRun
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Family,
			&run.BestParams, &run.MeanAUC, &run.TestAUC, &run.Threshold, &run.DatasetRows); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SavePrediction appends one row to the prediction audit log.
func SavePrediction(record string, probability float64, label int) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	_, err := database.Exec(`
        INSERT INTO predictions (id, created_at, record, probability, label)
        VALUES (?, ?, ?, ?, ?)`,
		NewID(), time.Now().UTC(), record, probability, label)
	return err
}

// CountPredictions returns the audit log size.
func CountPredictions() (int, error) {
	if database == nil {
		return 0, errors.New("database not initialized")
	}
	var n int
	err := database.QueryRow(`SELECT COUNT(*) FROM predictions`).Scan(&n)
	return n, err
}

package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one invocation of the batch processor.
type Run struct {
	RunID        string          `json:"run_id"`
	Version      string          `json:"version"`
	Input        string          `json:"input"`
	ConfigJSON   json.RawMessage `json:"config_json,omitempty"`
	StartedAtNs  int64           `json:"started_at_ns"`
	FinishedAtNs *int64          `json:"finished_at_ns,omitempty"`
	ProfileCount int             `json:"profile_count"`
}

// CreateRun inserts run. An empty RunID is replaced by a new UUID and a zero
// StartedAtNs by the current time.
func (db *DB) CreateRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAtNs == 0 {
		run.StartedAtNs = time.Now().UnixNano()
	}
	var cfg sql.NullString
	if len(run.ConfigJSON) > 0 {
		cfg = sql.NullString{String: string(run.ConfigJSON), Valid: true}
	}
	_, err := db.Exec(`
		INSERT INTO dealias_runs (run_id, version, input, config_json, started_at_ns, profile_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.RunID, run.Version, run.Input, cfg, run.StartedAtNs, run.ProfileCount)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stamps the run as finished with its processed profile count.
func (db *DB) FinishRun(runID string, profileCount int, finishedAt time.Time) error {
	res, err := db.Exec(`
		UPDATE dealias_runs SET finished_at_ns = ?, profile_count = ? WHERE run_id = ?
	`, finishedAt.UnixNano(), profileCount, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `run_id, version, input, config_json, started_at_ns, finished_at_ns, profile_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var cfg sql.NullString
	var finished sql.NullInt64
	if err := row.Scan(&run.RunID, &run.Version, &run.Input, &cfg,
		&run.StartedAtNs, &finished, &run.ProfileCount); err != nil {
		return nil, err
	}
	if cfg.Valid && cfg.String != "" {
		run.ConfigJSON = json.RawMessage(cfg.String)
	}
	if finished.Valid {
		v := finished.Int64
		run.FinishedAtNs = &v
	}
	return &run, nil
}

// GetRun retrieves a run by id.
func (db *DB) GetRun(runID string) (*Run, error) {
	run, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM dealias_runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (db *DB) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM dealias_runs ORDER BY started_at_ns DESC, run_id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

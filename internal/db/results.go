package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/banshee-data/cloudradar/internal/dealias"
)

// ProfileSummary is the per-profile row of a run.
type ProfileSummary struct {
	RunID            string                `json:"run_id"`
	ProfileIndex     int                   `json:"profile_index"`
	Time             time.Time             `json:"time"`
	Path             dealias.Path          `json:"path"`
	NoData           bool                  `json:"no_data"`
	Gates            int                   `json:"gates"`
	Layers           []dealias.LayerResult `json:"layers"`
	FoldedGates      int                   `json:"folded_gates"`
	FlaggedGates     int                   `json:"flagged_gates"`
	InvalidatedGates int                   `json:"invalidated_gates"`
}

// GateResult is the stored moments and diagnostics of one gate. Missing
// moments read back as NaN.
type GateResult struct {
	Gate           int
	Ze             float64
	Vm             float64
	Sigma          float64
	Skew           float64
	Kurt           float64
	PeakNoise      float64
	MeanNoise      float64
	AliasCandidate bool
	Folded         bool
	Status         dealias.Status
}

// nullable maps NaN and infinities to NULL.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func summarize(runID string, index int, res *dealias.Result) ProfileSummary {
	s := ProfileSummary{
		RunID:            runID,
		ProfileIndex:     index,
		Time:             res.Time,
		Path:             res.Path,
		NoData:           res.NoData,
		Gates:            res.Gates(),
		Layers:           res.Layers,
		InvalidatedGates: len(res.Invalidated),
	}
	for g, st := range res.Status {
		if res.Folded[g] {
			s.FoldedGates++
		}
		if st != 0 {
			s.FlaggedGates++
		}
	}
	return s
}

// RecordResult stores the summary and per-gate values of one processed
// profile in a single transaction. Recording the same profile twice
// replaces the earlier rows.
func (db *DB) RecordResult(ctx context.Context, runID string, index int, res *dealias.Result) error {
	s := summarize(runID, index, res)
	layers, err := json.Marshal(s.Layers)
	if err != nil {
		return fmt.Errorf("encode layers: %w", err)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin result transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("warning: failed to rollback transaction: %v", err)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dealias_gates WHERE run_id = ? AND profile_index = ?`, runID, index); err != nil {
		return fmt.Errorf("clear gates: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO dealias_profiles (
			run_id, profile_index, time_ns, path, no_data, gate_count, layers_json,
			folded_gates, flagged_gates, invalidated_gates
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, index, s.Time.UnixNano(), string(s.Path), s.NoData, s.Gates, string(layers),
		s.FoldedGates, s.FlaggedGates, s.InvalidatedGates)
	if err != nil {
		return fmt.Errorf("insert profile summary: %w", err)
	}

	if !res.NoData {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO dealias_gates (
				run_id, profile_index, gate, ze, vm, sigma, skew, kurt,
				peak_noise, mean_noise, alias_candidate, folded, status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare gate insert: %w", err)
		}
		defer stmt.Close()

		ms := res.Moments
		for g := range res.Status {
			_, err := stmt.ExecContext(ctx, runID, index, g,
				nullable(ms.Ze[g]), nullable(ms.Vm[g]), nullable(ms.Sigma[g]),
				nullable(ms.Skew[g]), nullable(ms.Kurt[g]),
				nullable(ms.PeakNoise[g]), nullable(ms.MeanNoise[g]),
				res.AliasCandidate[g], res.Folded[g], res.Status[g].Code())
			if err != nil {
				return fmt.Errorf("insert gate %d: %w", g, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit result: %w", err)
	}
	return nil
}

// ProfileSummaries returns the summaries of a run in profile order.
func (db *DB) ProfileSummaries(runID string) ([]ProfileSummary, error) {
	rows, err := db.Query(`
		SELECT profile_index, time_ns, path, no_data, gate_count, layers_json,
		       folded_gates, flagged_gates, invalidated_gates
		FROM dealias_profiles
		WHERE run_id = ?
		ORDER BY profile_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query profile summaries: %w", err)
	}
	defer rows.Close()

	var out []ProfileSummary
	for rows.Next() {
		s := ProfileSummary{RunID: runID}
		var timeNs int64
		var path string
		var layers sql.NullString
		if err := rows.Scan(&s.ProfileIndex, &timeNs, &path, &s.NoData, &s.Gates, &layers,
			&s.FoldedGates, &s.FlaggedGates, &s.InvalidatedGates); err != nil {
			return nil, fmt.Errorf("scan profile summary: %w", err)
		}
		s.Time = time.Unix(0, timeNs).UTC()
		s.Path = dealias.Path(path)
		if layers.Valid && layers.String != "" && layers.String != "null" {
			if err := json.Unmarshal([]byte(layers.String), &s.Layers); err != nil {
				return nil, fmt.Errorf("decode layers of profile %d: %w", s.ProfileIndex, err)
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GateResults returns the stored gates of one profile in range order.
func (db *DB) GateResults(runID string, profileIndex int) ([]GateResult, error) {
	rows, err := db.Query(`
		SELECT gate, ze, vm, sigma, skew, kurt, peak_noise, mean_noise, alias_candidate, folded, status
		FROM dealias_gates
		WHERE run_id = ? AND profile_index = ?
		ORDER BY gate
	`, runID, profileIndex)
	if err != nil {
		return nil, fmt.Errorf("query gates: %w", err)
	}
	defer rows.Close()

	var out []GateResult
	for rows.Next() {
		var gr GateResult
		var ze, vm, sigma, skew, kurt, pn, mn sql.NullFloat64
		var code int
		if err := rows.Scan(&gr.Gate, &ze, &vm, &sigma, &skew, &kurt, &pn, &mn,
			&gr.AliasCandidate, &gr.Folded, &code); err != nil {
			return nil, fmt.Errorf("scan gate: %w", err)
		}
		gr.Ze, gr.Vm, gr.Sigma = orNaN(ze), orNaN(vm), orNaN(sigma)
		gr.Skew, gr.Kurt = orNaN(skew), orNaN(kurt)
		gr.PeakNoise, gr.MeanNoise = orNaN(pn), orNaN(mn)
		gr.Status = dealias.StatusFromCode(code)
		out = append(out, gr)
	}
	return out, rows.Err()
}

// StatusCounts counts the gates of a run per status flag. A gate carrying
// several flags is counted under each of them; StatusOK counts gates with
// no flag set.
func (db *DB) StatusCounts(runID string) (map[string]int, error) {
	rows, err := db.Query(`
		SELECT status, COUNT(*) FROM dealias_gates WHERE run_id = ? GROUP BY status
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var code, n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		st := dealias.StatusFromCode(code)
		if st == 0 {
			counts[StatusOK] += n
			continue
		}
		for _, flag := range dealias.AllStatusFlags() {
			if st.Has(flag) {
				counts[flag.String()] += n
			}
		}
	}
	return counts, rows.Err()
}

// StatusOK is the StatusCounts key of unflagged gates.
const StatusOK = "ok"

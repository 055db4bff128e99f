// Package sqlite persists merger-resolution runs and their reports.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeIvanCervantes/hytra/internal/merger"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Run is one persisted merger-resolution run.
type Run struct {
	RunID          string          `json:"run_id"`
	GraphPath      string          `json:"graph_path"`
	PlotPath       string          `json:"plot_path,omitempty"`
	ConfigJSON     json.RawMessage `json:"config_json,omitempty"`
	MergerCount    int             `json:"merger_count"`
	NewObjectCount int             `json:"new_object_count"`
	TimestepCount  int             `json:"timestep_count"`
	CreatedAt      int64           `json:"created_at"`
}

// RunStore provides persistence for resolution runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Insert persists a run and its report in one transaction. If RunID is
// empty, a UUID is generated. The counts are derived from the report.
func (s *RunStore) Insert(run *Run, report merger.Report) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}
	run.MergerCount = report.Mergers()
	run.TimestepCount = len(report)
	run.NewObjectCount = 0
	for _, mergers := range report {
		for _, ids := range mergers {
			run.NewObjectCount += len(ids)
		}
	}

	var configStr, plotStr interface{}
	if len(run.ConfigJSON) > 0 {
		configStr = string(run.ConfigJSON)
	}
	if run.PlotPath != "" {
		plotStr = run.PlotPath
	}

	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO resolution_runs (
				run_id, graph_path, plot_path, config_json,
				merger_count, new_object_count, timestep_count, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.GraphPath, plotStr, configStr,
			run.MergerCount, run.NewObjectCount, run.TimestepCount, run.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO resolved_mergers (run_id, timestep, merger_id, position, new_id)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare merger insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range report.Timesteps() {
			for _, id := range sortedIDs(report[t]) {
				for pos, newID := range report[t][id] {
					if _, err := stmt.Exec(run.RunID, t, id, pos, newID); err != nil {
						return fmt.Errorf("insert merger (%d, %d): %w", t, id, err)
					}
				}
			}
		}
		return tx.Commit()
	})
}

// Get returns a single run by ID.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, graph_path, plot_path, config_json,
		       merger_count, new_object_count, timestep_count, created_at
		FROM resolution_runs
		WHERE run_id = ?`, runID)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	return r, err
}

// List returns all runs, newest first.
func (s *RunStore) List() ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, graph_path, plot_path, config_json,
		       merger_count, new_object_count, timestep_count, created_at
		FROM resolution_runs
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Report reloads the merger report of a run.
func (s *RunStore) Report(runID string) (merger.Report, error) {
	if _, err := s.Get(runID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`
		SELECT timestep, merger_id, new_id
		FROM resolved_mergers
		WHERE run_id = ?
		ORDER BY timestep, merger_id, position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query mergers: %w", err)
	}
	defer rows.Close()

	report := make(merger.Report)
	for rows.Next() {
		var t, id, newID int
		if err := rows.Scan(&t, &id, &newID); err != nil {
			return nil, fmt.Errorf("scan merger row: %w", err)
		}
		if report[t] == nil {
			report[t] = make(map[int][]int)
		}
		report[t][id] = append(report[t][id], newID)
	}
	return report, rows.Err()
}

// Delete removes a run and its mergers.
func (s *RunStore) Delete(runID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM resolution_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var plotStr, configStr sql.NullString
	err := row.Scan(
		&r.RunID, &r.GraphPath, &plotStr, &configStr,
		&r.MergerCount, &r.NewObjectCount, &r.TimestepCount, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if plotStr.Valid {
		r.PlotPath = plotStr.String
	}
	if configStr.Valid {
		r.ConfigJSON = json.RawMessage(configStr.String)
	}
	return &r, nil
}

func sortedIDs(m map[int][]int) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

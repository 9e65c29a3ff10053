// Package store persists run history, either as a single JSON/YAML document
// or in SQLite.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/verte-zerg/splits/internal/errors"
	"github.com/verte-zerg/splits/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for run history.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapWithDetails(errors.EPersistFailed, "failed to create history dir", err, map[string]string{"path": path})
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapWithDetails(errors.EPersistFailed, "failed to open history db", err, map[string]string{"path": path})
	}
	store := &Store{db: db, path: path}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, errors.WrapWithDetails(errors.EPersistFailed, "failed to migrate history db", err, map[string]string{"path": path})
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			seq INTEGER PRIMARY KEY,
			run_id TEXT NOT NULL,
			run_date TEXT NOT NULL,
			is_real_time INTEGER NOT NULL,
			run_finished INTEGER NOT NULL,
			final_time REAL NOT NULL,
			game_version TEXT NOT NULL,
			level_name TEXT NOT NULL,
			ascent_difficulty INTEGER NOT NULL,
			player_count INTEGER NOT NULL,
			was_randomized INTEGER NOT NULL,
			seed INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_segments (
			run_seq INTEGER NOT NULL,
			segment TEXT NOT NULL,
			duration REAL NOT NULL,
			PRIMARY KEY (run_seq, segment)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_run_segments_segment ON run_segments(segment);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the history in insertion order. An empty database is an empty history.
func (s *Store) Load(ctx context.Context) ([]model.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, run_id, run_date, is_real_time, run_finished, final_time,
			game_version, level_name, ascent_difficulty, player_count, was_randomized, seed
		FROM runs
		ORDER BY seq ASC`)
	if err != nil {
		return nil, s.decodeErr(err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var runs []model.RunRecord
	index := map[int64]int{}
	for rows.Next() {
		var seq int64
		var realTime, finished, randomized int
		run := model.NewRunRecord()
		if err := rows.Scan(&seq, &run.ID, &run.RunDate, &realTime, &finished, &run.FinalTime,
			&run.GameVersion, &run.LevelName, &run.AscentDifficulty, &run.PlayerCount, &randomized, &run.Seed); err != nil {
			return nil, s.decodeErr(err)
		}
		run.IsRealTime = realTime != 0
		run.RunFinished = finished != 0
		run.WasRandomized = randomized != 0
		index[seq] = len(runs)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, s.decodeErr(err)
	}
	if len(runs) == 0 {
		return nil, nil
	}

	segRows, err := s.db.QueryContext(ctx, `SELECT run_seq, segment, duration FROM run_segments`)
	if err != nil {
		return nil, s.decodeErr(err)
	}
	defer func() {
		if cerr := segRows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	for segRows.Next() {
		var seq int64
		var name string
		var duration float64
		if err := segRows.Scan(&seq, &name, &duration); err != nil {
			return nil, s.decodeErr(err)
		}
		i, ok := index[seq]
		if !ok {
			continue
		}
		runs[i].SetSegment(name, duration)
	}
	if err := segRows.Err(); err != nil {
		return nil, s.decodeErr(err)
	}
	return runs, nil
}

// Save replaces the stored history in one transaction.
func (s *Store) Save(ctx context.Context, runs []model.RunRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.persistErr(err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM run_segments`); err != nil {
		return s.persistErr(err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM runs`); err != nil {
		return s.persistErr(err)
	}

	runStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO runs (seq, run_id, run_date, is_real_time, run_finished, final_time,
			game_version, level_name, ascent_difficulty, player_count, was_randomized, seed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return s.persistErr(err)
	}
	defer func() {
		if cerr := runStmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	segStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_segments (run_seq, segment, duration) VALUES (?, ?, ?)`)
	if err != nil {
		return s.persistErr(err)
	}
	defer func() {
		if cerr := segStmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()

	for i, run := range runs {
		if _, err = runStmt.ExecContext(ctx, i, run.ID, run.RunDate, boolInt(run.IsRealTime), boolInt(run.RunFinished),
			run.FinalTime, run.GameVersion, run.LevelName, run.AscentDifficulty, run.PlayerCount,
			boolInt(run.WasRandomized), run.Seed); err != nil {
			return s.persistErr(err)
		}
		for _, name := range run.SegmentNames() {
			if _, err = segStmt.ExecContext(ctx, i, name, run.Segments[name]); err != nil {
				return s.persistErr(err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return s.persistErr(err)
	}
	return nil
}

func (s *Store) persistErr(err error) error {
	return errors.WrapWithDetails(errors.EPersistFailed, "failed to save history", err, map[string]string{"path": s.path})
}

func (s *Store) decodeErr(err error) error {
	return errors.WrapWithDetails(errors.EDecodeFailed, "failed to load history", err, map[string]string{"path": s.path})
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Package store persists pricing runs in SQLite so later runs can reuse
// their coefficients.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ppiankov/cardpricer/internal/model"
)

// ErrRunNotFound is returned when no run has the requested ID
var ErrRunNotFound = errors.New("run not found")

// Store wraps the run database
type Store struct {
	conn *sql.DB
}

// Open migrates and opens the database at path, creating it if needed
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	if err := Migrate(path); err != nil {
		return nil, err
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{conn: conn}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.conn.Close()
}

// RunSummary is one row of the run listing
type RunSummary struct {
	ID          string
	Source      string
	GeneratedAt time.Time
	Strict      bool
	ChargeMode  model.ChargeMode
	Refitted    bool
	Total       int
	Accepted    int
}

// SaveReport stores a report with its coefficients and priced cards
func (s *Store) SaveReport(ctx context.Context, r *model.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, source, generated_at, strict, charge_mode, refitted, total, accepted, report)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, r.Source, r.GeneratedAt.UTC(), r.Strict, string(r.ChargeMode), r.Refitted,
			r.Stats.Total, r.Stats.Accepted, string(data)); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for i, c := range r.Coefficients {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO coefficients (run_id, position, name, weight) VALUES (?, ?, ?, ?)`,
				r.RunID, i, c.Column, c.Weight); err != nil {
				return fmt.Errorf("insert coefficient %s: %w", c.Column, err)
			}
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO priced_cards (run_id, name, player_class, cost, price, diff, value) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare card insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, c := range r.Cards {
			if _, err := stmt.ExecContext(ctx, r.RunID, c.Name, c.PlayerClass, c.Cost, c.Price, c.Diff, c.Value); err != nil {
				return fmt.Errorf("insert card %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

// ListRuns returns the most recent runs first; limit <= 0 returns all
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `SELECT id, source, generated_at, strict, charge_mode, refitted, total, accepted
	          FROM runs ORDER BY generated_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var mode string
		if err := rows.Scan(&r.ID, &r.Source, &r.GeneratedAt, &r.Strict, &mode, &r.Refitted, &r.Total, &r.Accepted); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.ChargeMode = model.ChargeMode(mode)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestRunID returns the ID of the most recent run
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := s.conn.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY generated_at DESC, id LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRunNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query latest run: %w", err)
	}
	return id, nil
}

// LoadCoefficients returns the coefficients of a run in column order
func (s *Store) LoadCoefficients(ctx context.Context, runID string) ([]model.Coefficient, error) {
	if err := s.exists(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT name, weight FROM coefficients WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query coefficients: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Coefficient
	for rows.Next() {
		var c model.Coefficient
		if err := rows.Scan(&c.Column, &c.Weight); err != nil {
			return nil, fmt.Errorf("scan coefficient: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LoadReport returns the full report of a run
func (s *Store) LoadReport(ctx context.Context, runID string) (*model.Report, error) {
	var data string
	err := s.conn.QueryRowContext(ctx, `SELECT report FROM runs WHERE id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}

	var r model.Report
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &r, nil
}

func (s *Store) exists(ctx context.Context, runID string) error {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&n); err != nil {
		return fmt.Errorf("query run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// withTx commits when fn succeeds and rolls back otherwise
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else if err = tx.Commit(); err != nil {
			err = fmt.Errorf("commit transaction: %w", err)
		}
	}()

	return fn(tx)
}

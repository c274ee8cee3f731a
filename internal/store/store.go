// Package store persists the latest compatibility assessment per file so
// monitoring state survives restarts.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kmattern/basewatch/internal/analyzer"
)

// ErrNotFound is returned when no assessment exists for a path.
var ErrNotFound = errors.New("store: record not found")

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store is the persistence contract for analysis records. Each path holds
// at most one assessment; Put replaces any previous one.
type Store interface {
	Put(a *analyzer.Assessment) error
	Get(path string) (*analyzer.Assessment, error)
	List() ([]analyzer.Assessment, error)
	Delete(path string) error
	Count() (int, error)
	Close() error
}

// SQLite persists assessments in a SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// Open opens (or creates) an assessments database.
func Open(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open records db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS assessments (
		path                 TEXT PRIMARY KEY,
		risk_score           INTEGER NOT NULL,
		compatibility_score  INTEGER NOT NULL,
		features_json        TEXT NOT NULL DEFAULT '[]',
		recommendations_json TEXT NOT NULL DEFAULT '[]',
		analyzed_at          TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create assessments: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_assessments_analyzed_at ON assessments(analyzed_at)`)

	return &SQLite{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put inserts or replaces the assessment for a path.
func (s *SQLite) Put(a *analyzer.Assessment) error {
	featuresJSON, err := json.Marshal(a.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	recsJSON, err := json.Marshal(a.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}

	_, err = s.db.Exec(`INSERT INTO assessments (path, risk_score, compatibility_score, features_json, recommendations_json, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			risk_score = excluded.risk_score,
			compatibility_score = excluded.compatibility_score,
			features_json = excluded.features_json,
			recommendations_json = excluded.recommendations_json,
			analyzed_at = excluded.analyzed_at`,
		a.Path,
		a.RiskScore,
		a.CompatScore,
		string(featuresJSON),
		string(recsJSON),
		a.AnalyzedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert assessment: %w", err)
	}
	return nil
}

// Get returns the assessment for one path.
func (s *SQLite) Get(path string) (*analyzer.Assessment, error) {
	row := s.db.QueryRow(`SELECT path, risk_score, compatibility_score, features_json, recommendations_json, analyzed_at
		FROM assessments WHERE path = ?`, path)

	a, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// List returns all assessments ordered by path.
func (s *SQLite) List() ([]analyzer.Assessment, error) {
	rows, err := s.db.Query(`SELECT path, risk_score, compatibility_score, features_json, recommendations_json, analyzed_at
		FROM assessments
		ORDER BY path ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]analyzer.Assessment, 0)
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			continue
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Delete removes the assessment for a path.
func (s *SQLite) Delete(path string) error {
	result, err := s.db.Exec(`DELETE FROM assessments WHERE path = ?`, path)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored assessments.
func (s *SQLite) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM assessments`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(s rowScanner) (*analyzer.Assessment, error) {
	var (
		a                      analyzer.Assessment
		featuresJSON, recsJSON string
		analyzedAt             string
	)

	if err := s.Scan(
		&a.Path,
		&a.RiskScore,
		&a.CompatScore,
		&featuresJSON,
		&recsJSON,
		&analyzedAt,
	); err != nil {
		return nil, err
	}

	_ = json.Unmarshal([]byte(featuresJSON), &a.Features)
	_ = json.Unmarshal([]byte(recsJSON), &a.Recommendations)
	a.AnalyzedAt, _ = time.Parse(time.RFC3339Nano, analyzedAt)

	return &a, nil
}

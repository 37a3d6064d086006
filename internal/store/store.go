// Package store keeps the history of generated reports in SQLite so the
// HTTP surface can serve past aggregations without re-reading source files.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nanoqc/nanoqc/internal/report"
)

const schemaVersion = 1

// ErrNotFound is returned when no report matches the query.
var ErrNotFound = errors.New("store: report not found")

// Entry is one row of the report history.
type Entry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source"`
	RunType   string    `json:"run_type"`
	Reads     int       `json:"reads"`
	Bases     int64     `json:"bases"`
}

// Store persists full report documents keyed by report ID.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at dbPath and applies the
// schema.
func Open(dbPath string) (*Store, error) {
	db, err := openDB(dbPath, DefaultPoolConfig())
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	var current int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		source TEXT NOT NULL,
		run_type TEXT NOT NULL,
		reads INTEGER NOT NULL,
		bases INTEGER NOT NULL,
		document BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Save inserts a report document. An existing document with the same ID is
// replaced.
func (s *Store) Save(ctx context.Context, r *report.Report) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: encode report: %w", err)
	}

	query := `
	INSERT INTO reports (id, created_at, source, run_type, reads, bases, document)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		created_at = excluded.created_at,
		source = excluded.source,
		run_type = excluded.run_type,
		reads = excluded.reads,
		bases = excluded.bases,
		document = excluded.document
	`
	_, err = s.db.ExecContext(ctx, query,
		r.ID,
		r.CreatedAt.Format(time.RFC3339Nano),
		r.Source,
		string(r.RunType),
		r.AllReads.Basecall.Reads,
		r.AllReads.Basecall.Bases,
		doc,
	)
	if err != nil {
		return fmt.Errorf("store: save report %s: %w", r.ID, err)
	}
	return nil
}

// Get returns the full report document for one ID.
func (s *Store) Get(ctx context.Context, id string) (*report.Report, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM reports WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get report %s: %w", id, err)
	}
	return decodeReport(doc)
}

// Latest returns the most recently created report document.
func (s *Store) Latest(ctx context.Context) (*report.Report, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM reports ORDER BY created_at DESC LIMIT 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest report: %w", err)
	}
	return decodeReport(doc)
}

// History lists report metadata, newest first. A limit <= 0 lists everything.
func (s *Store) History(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, created_at, source, run_type, reads, bases
	FROM reports ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var out []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &created, &e.Source, &e.RunType, &e.Reads, &e.Bases); err != nil {
			return nil, fmt.Errorf("store: history scan: %w", err)
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("store: history timestamp %q: %w", created, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: history rows: %w", err)
	}
	return out, nil
}

// Prune deletes all but the newest keep reports. It returns the number of
// rows removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
	DELETE FROM reports WHERE id NOT IN (
		SELECT id FROM reports ORDER BY created_at DESC LIMIT ?
	)`, keep)
	if err != nil {
		return 0, fmt.Errorf("store: prune: %w", err)
	}
	return res.RowsAffected()
}

// Ping verifies the database connection is still usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func decodeReport(doc []byte) (*report.Report, error) {
	var r report.Report
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("store: decode report: %w", err)
	}
	return &r, nil
}

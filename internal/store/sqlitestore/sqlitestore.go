// Package sqlitestore runs store queries against the bundled SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	// registers the "sqlite" database/sql driver
	_ "modernc.org/sqlite"

	"github.com/mohammed-shakir/botanitours-map/internal/core/observability"
	"github.com/mohammed-shakir/botanitours-map/internal/store"
)

type Store struct {
	db *sql.DB
}

var _ store.Querier = (*Store)(nil)

// Open opens path with a single connection and pings it.
func Open(ctx context.Context, path string, readOnly bool) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	if readOnly {
		params.Set("mode", "ro")
	}
	dsn := "file:" + path + "?" + params.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// one physical connection; statements are serialised by database/sql
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Row, error) {
	start := time.Now()
	out, err := s.query(ctx, q)
	observability.ObserveStoreQuery(q.Name, err, time.Since(start).Seconds())
	return out, err
}

func (s *Store) query(ctx context.Context, q store.Query) ([]store.Row, error) {
	rows, err := s.db.QueryContext(ctx, q.Text, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Name, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query %s columns: %w", q.Name, err)
	}

	var out []store.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("query %s scan: %w", q.Name, err)
		}
		out = append(out, store.Row(vals))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s rows: %w", q.Name, err)
	}
	return out, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS position_infos (
	positionable_id   INTEGER NOT NULL,
	positionable_type TEXT    NOT NULL,
	year              INTEGER,
	lon               REAL    NOT NULL,
	lat               REAL    NOT NULL,
	geometry          TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS position_infos_lon_lat ON position_infos (lon, lat);
CREATE TABLE IF NOT EXISTS plants (
	OGC_FID         INTEGER PRIMARY KEY,
	scientific_name TEXT NOT NULL,
	eol_image       TEXT
);
CREATE TABLE IF NOT EXISTS plant_common_names (
	plant_id INTEGER NOT NULL,
	name     TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS gardens (
	OGC_FID           INTEGER PRIMARY KEY,
	name              TEXT NOT NULL,
	opening_times_txt TEXT
);`

// EnsureSchema creates the tables the queries expect when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Exec runs a write statement; used by importers and tests.
func (s *Store) Exec(ctx context.Context, text string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, text, args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

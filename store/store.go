package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/encodeous/bgpr/state"
	"github.com/goccy/go-yaml"
	_ "modernc.org/sqlite" // sqlite driver
)

const schemaVersion = 1

const schema = `
CREATE TABLE ribs (
	asn          INTEGER NOT NULL,
	prefix       TEXT    NOT NULL,
	as_path      TEXT    NOT NULL,
	relationship TEXT    NOT NULL,
	announcement TEXT    NOT NULL,
	PRIMARY KEY (asn, prefix)
);
CREATE INDEX idx_ribs_prefix ON ribs(prefix);
`

var ErrNotFound = errors.New("route not found")

// Store persists the final local ribs of a simulation run.
type Store struct {
	db *sql.DB
}

// Open opens or creates the results database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening results database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err = s.setup(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) setup() error {
	var existing int
	if err := s.db.QueryRow("PRAGMA user_version;").Scan(&existing); err != nil {
		return fmt.Errorf("checking database schema version: %w", err)
	}
	switch existing {
	case 0:
		if _, err := s.db.Exec(schema); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("writing schema version: %w", err)
		}
		return nil
	case schemaVersion:
		return nil
	default:
		return fmt.Errorf("database schema version mismatch: expected %d, have %d", schemaVersion, existing)
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRibs replaces the stored ribs with ribs and returns the number of routes written.
func (s *Store) SaveRibs(ctx context.Context, ribs map[state.Asn][]state.Announcement) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM ribs`); err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ribs(asn, prefix, as_path, relationship, announcement) VALUES(?,?,?,?,?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	n := 0
	for _, asn := range slices.Sorted(maps.Keys(ribs)) {
		for _, ann := range ribs[asn] {
			body, err := yaml.Marshal(ann)
			if err != nil {
				return 0, fmt.Errorf("encoding route %s at %d: %w", ann.Prefix, asn, err)
			}
			_, err = stmt.ExecContext(ctx, asn, ann.Prefix, state.FormatPath(ann.AsPath), ann.RecvRelationship.String(), string(body))
			if err != nil {
				return 0, fmt.Errorf("storing route %s at %d: %w", ann.Prefix, asn, err)
			}
			n++
		}
	}
	return n, tx.Commit()
}

// Lookup returns the route asn selected for prefix.
func (s *Store) Lookup(ctx context.Context, asn state.Asn, prefix string) (state.Announcement, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT announcement FROM ribs WHERE asn = ? AND prefix = ?`, asn, prefix).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return state.Announcement{}, fmt.Errorf("%w: %s at %d", ErrNotFound, prefix, asn)
	}
	if err != nil {
		return state.Announcement{}, err
	}
	return decode(body)
}

// ListRib returns every route stored for asn ordered by prefix.
func (s *Store) ListRib(ctx context.Context, asn state.Asn) ([]state.Announcement, error) {
	return s.query(ctx, `SELECT announcement FROM ribs WHERE asn = ? ORDER BY prefix`, asn)
}

// Holders returns the route every AS selected for prefix, keyed by ASN.
func (s *Store) Holders(ctx context.Context, prefix string) (map[state.Asn]state.Announcement, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT asn, announcement FROM ribs WHERE prefix = ? ORDER BY asn`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[state.Asn]state.Announcement)
	for rows.Next() {
		var asn state.Asn
		var body string
		if err = rows.Scan(&asn, &body); err != nil {
			return nil, err
		}
		ann, err := decode(body)
		if err != nil {
			return nil, err
		}
		out[asn] = ann
	}
	return out, rows.Err()
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]state.Announcement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]state.Announcement, 0)
	for rows.Next() {
		var body string
		if err = rows.Scan(&body); err != nil {
			return nil, err
		}
		ann, err := decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, ann)
	}
	return out, rows.Err()
}

func decode(body string) (state.Announcement, error) {
	var ann state.Announcement
	if err := yaml.Unmarshal([]byte(body), &ann); err != nil {
		return state.Announcement{}, fmt.Errorf("decoding stored route: %w", err)
	}
	return ann, nil
}

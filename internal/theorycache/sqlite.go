package theorycache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/san-kum/chronodyn/internal/cosmo"
)

const schema = `CREATE TABLE IF NOT EXISTS theory (
	key        TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	created_at INTEGER NOT NULL
)`

var errNilStore = errors.New("theorycache: store is not configured")

// SQLiteStore persists results as JSON rows keyed by the parameter vector.
type SQLiteStore struct {
	sqlDB *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key cosmo.Key) (Result, bool, error) {
	if s == nil || s.sqlDB == nil {
		return Result{}, false, errNilStore
	}
	var payload []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT payload FROM theory WHERE key = ?`, key.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("select theory: %w", err)
	}

	var r Result
	if err := json.Unmarshal(payload, &r); err != nil {
		return Result{}, false, fmt.Errorf("decode theory: %w", err)
	}
	return r, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key cosmo.Key, r Result) error {
	if s == nil || s.sqlDB == nil {
		return errNilStore
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode theory: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO theory (key, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		key.String(), payload, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert theory: %w", err)
	}
	return nil
}

// Count reports how many results are persisted.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	if s == nil || s.sqlDB == nil {
		return 0, errNilStore
	}
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM theory`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count theory: %w", err)
	}
	return n, nil
}

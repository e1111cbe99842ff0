package artifacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"solvency/internal/domain"

	_ "modernc.org/sqlite"
)

const sqliteBusyTimeoutMs = 5000

// SQLiteStore keeps artifacts in a single sqlite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", sqliteBusyTimeoutMs)); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS artifacts (
		epoch_id TEXT NOT NULL,
		name TEXT NOT NULL,
		data BLOB NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (epoch_id, name)
	)`)
	if err != nil {
		return fmt.Errorf("create artifacts table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Put(ctx context.Context, epochID, name string, data []byte) error {
	if err := validateKey(epochID, name); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO artifacts (epoch_id, name, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(epoch_id, name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		epochID, name, data, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, epochID, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM artifacts WHERE epoch_id = ? AND name = ?`, epochID, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", epochID, name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return data, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, epochID, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM artifacts WHERE epoch_id = ? AND name = ?`, epochID, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check artifact: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) List(ctx context.Context, epochID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM artifacts WHERE epoch_id = ? ORDER BY name`, epochID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	names, err := scanStrings(rows)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("epoch %s: %w", epochID, domain.ErrNotFound)
	}
	return names, nil
}

func (s *SQLiteStore) Epochs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT epoch_id FROM artifacts ORDER BY epoch_id`)
	if err != nil {
		return nil, fmt.Errorf("list epochs: %w", err)
	}
	return scanStrings(rows)
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"
)

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresStore keeps checkpoints in a (key, blob) table.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// OpenPostgresStore connects through lib/pq and creates the table if needed.
func OpenPostgresStore(ctx context.Context, dsn, table string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	s, err := NewPostgresStore(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewPostgresStore(db *sql.DB, table string) (*PostgresStore, error) {
	if table == "" {
		table = "checkpoints"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid checkpoint table name %q", table)
	}
	return &PostgresStore{db: db, table: table}, nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
		key TEXT PRIMARY KEY,
		blob BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create checkpoint table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, blob []byte) error {
	query := `INSERT INTO ` + s.table + ` (key, blob) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`
	res, err := s.db.ExecContext(ctx, query, key, blob)
	if err != nil {
		return fmt.Errorf("failed to put checkpoint %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to put checkpoint %s: %w", key, err)
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT blob FROM ` + s.table + ` WHERE key = $1`
	var blob []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint %s: %w", key, err)
	}
	return blob, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

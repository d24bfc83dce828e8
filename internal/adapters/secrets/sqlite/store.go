// Package sqlite is a SQLite-backed secret store for single-node
// deployments, typically on-prem installs without external secret
// infrastructure.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ansible-wisdom/wca-pipeline/internal/credentials"
	"github.com/ansible-wisdom/wca-pipeline/internal/domain"
)

// Store persists per-tenant secrets in a single SQLite table.
type Store struct {
	db *sql.DB
}

var _ credentials.Store = (*Store)(nil)

// New opens (or creates) the database at path and initializes the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS secrets (
			tenant_id INTEGER NOT NULL,
			suffix TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (tenant_id, suffix)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_secrets_tenant ON secrets(tenant_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Set stores or replaces the secret for (tenant, suffix).
func (s *Store) Set(ctx context.Context, tenant domain.TenantID, suffix, value string) error {
	query := `INSERT INTO secrets (tenant_id, suffix, value, updated_at)
	          VALUES (?, ?, ?, ?)
	          ON CONFLICT(tenant_id, suffix) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, int64(tenant), suffix, value, time.Now()); err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}
	return nil
}

// Delete removes the secret for (tenant, suffix). Deleting a missing secret
// is not an error.
func (s *Store) Delete(ctx context.Context, tenant domain.TenantID, suffix string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE tenant_id = ? AND suffix = ?`,
		int64(tenant), suffix); err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, tenant domain.TenantID, suffix string) (*credentials.Secret, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM secrets WHERE tenant_id = ? AND suffix = ?`,
		int64(tenant), suffix).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, credentials.ErrSecretNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}
	return &credentials.Secret{Value: value}, nil
}

func (s *Store) Exists(ctx context.Context, tenant domain.TenantID, suffix string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM secrets WHERE tenant_id = ? AND suffix = ?`,
		int64(tenant), suffix).Scan(&one)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check secret: %w", err)
	}
	return true, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

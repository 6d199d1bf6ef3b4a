package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sitegen/internal/company/models"
	"sitegen/pkg/domain"
	"sitegen/pkg/platform/sentinel"
)

const createCompanyCacheTable = `
CREATE TABLE IF NOT EXISTS company_cache (
	cnpj         CHAR(14) PRIMARY KEY,
	record       JSONB NOT NULL,
	retrieved_at TIMESTAMPTZ NOT NULL
)`

const selectCompanyCache = `
SELECT record, retrieved_at FROM company_cache WHERE cnpj = $1`

const upsertCompanyCache = `
INSERT INTO company_cache (cnpj, record, retrieved_at)
VALUES ($1, $2, $3)
ON CONFLICT (cnpj) DO UPDATE
SET record = EXCLUDED.record, retrieved_at = EXCLUDED.retrieved_at`

// PostgresCache persists snapshots in the company_cache table.
type PostgresCache struct {
	db *sql.DB
}

// NewPostgresCache constructs a PostgreSQL-backed cache.
func NewPostgresCache(db *sql.DB) *PostgresCache {
	return &PostgresCache{db: db}
}

// EnsureSchema creates the company_cache table when missing.
func (c *PostgresCache) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, createCompanyCacheTable); err != nil {
		return fmt.Errorf("create company_cache: %w", err)
	}
	return nil
}

// Find returns the snapshot for cnpj or sentinel.ErrNotFound.
func (c *PostgresCache) Find(ctx context.Context, cnpj domain.CNPJ) (*models.CacheEntry, error) {
	var (
		raw         []byte
		retrievedAt time.Time
	)
	err := c.db.QueryRowContext(ctx, selectCompanyCache, cnpj.String()).Scan(&raw, &retrievedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find company cache: %w", err)
	}

	var record models.CompanyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode cache entry %s: %w: %w", cnpj, sentinel.ErrNotFound, err)
	}
	return &models.CacheEntry{
		CNPJ:        cnpj.String(),
		Record:      &record,
		RetrievedAt: retrievedAt,
	}, nil
}

// Save upserts the snapshot for entry.CNPJ.
func (c *PostgresCache) Save(ctx context.Context, entry *models.CacheEntry) error {
	if err := validEntry(entry); err != nil {
		return err
	}
	raw, err := json.Marshal(entry.Record)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, upsertCompanyCache, entry.CNPJ, raw, entry.RetrievedAt); err != nil {
		return fmt.Errorf("save company cache: %w", err)
	}
	return nil
}

package api

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresCredentialStore resolves API keys against the key table owned by
// the write-side API. Revoked keys are filtered here rather than deleted so
// audit history survives.
type PostgresCredentialStore struct {
	db *sql.DB
}

func NewPostgresCredentialStore(db *sql.DB) *PostgresCredentialStore {
	return &PostgresCredentialStore{db: db}
}

func (s *PostgresCredentialStore) Lookup(ctx context.Context, apiKey string) (*Principal, error) {
	query := `
		SELECT application_id, environment_id, requests_per_second, monthly_quota
		FROM api_keys
		WHERE key = $1 AND revoked_at IS NULL`

	var p Principal
	err := s.db.QueryRowContext(ctx, query, apiKey).Scan(
		&p.ApplicationID,
		&p.EnvironmentID,
		&p.RequestsPerSecond,
		&p.MonthlyQuota,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up API key: %w", err)
	}
	return &p, nil
}

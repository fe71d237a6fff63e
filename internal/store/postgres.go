package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/hephaistos-io/pyro/internal/template"
)

// PostgresStore reads template schemas and overrides from the relational
// store owned by the write-side API. Schemas and override values are held
// as JSONB columns.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// FindSchema loads the schema for an application and template type.
// Returns (nil, nil) when the application has no such template.
func (s *PostgresStore) FindSchema(ctx context.Context, applicationID string, templateType TemplateType) (*template.Schema, error) {
	query := `
		SELECT schema
		FROM templates
		WHERE application_id = $1 AND template_type = $2`

	var raw []byte
	err := s.db.QueryRowContext(ctx, query, applicationID, string(templateType)).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query template schema: %w", err)
	}

	var schema template.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("failed to decode template schema: %w", err)
	}
	return &schema, nil
}

// FindOverride loads the override for one identifier. Returns (nil, nil)
// when none is stored.
func (s *PostgresStore) FindOverride(ctx context.Context, applicationID, environmentID string, templateType TemplateType, identifier string) (*Override, error) {
	query := `
		SELECT values
		FROM template_overrides
		WHERE application_id = $1 AND environment_id = $2 AND template_type = $3 AND identifier = $4`

	var raw []byte
	err := s.db.QueryRowContext(ctx, query, applicationID, environmentID, string(templateType), identifier).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query template override: %w", err)
	}

	values, err := decodeValues(raw)
	if err != nil {
		return nil, err
	}
	return &Override{Identifier: identifier, Values: values}, nil
}

// FindOverrides loads overrides for the given identifiers in one query and
// returns them re-sorted into the caller's order. Identifiers without a
// stored override are skipped.
func (s *PostgresStore) FindOverrides(ctx context.Context, applicationID, environmentID string, templateType TemplateType, identifiers []string) ([]Override, error) {
	if len(identifiers) == 0 {
		return nil, nil
	}

	query := `
		SELECT identifier, values
		FROM template_overrides
		WHERE application_id = $1 AND environment_id = $2 AND template_type = $3 AND identifier = ANY($4)`

	rows, err := s.db.QueryContext(ctx, query, applicationID, environmentID, string(templateType), pq.Array(identifiers))
	if err != nil {
		return nil, fmt.Errorf("failed to query template overrides: %w", err)
	}
	defer rows.Close()

	found := make(map[string]Override, len(identifiers))
	for rows.Next() {
		var identifier string
		var raw []byte
		if err := rows.Scan(&identifier, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan template override: %w", err)
		}
		values, err := decodeValues(raw)
		if err != nil {
			return nil, err
		}
		found[identifier] = Override{Identifier: identifier, Values: values}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read template overrides: %w", err)
	}

	out := make([]Override, 0, len(found))
	for _, id := range identifiers {
		if ov, ok := found[id]; ok {
			out = append(out, ov)
		}
	}
	return out, nil
}

func decodeValues(raw []byte) (map[string]any, error) {
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("failed to decode override values: %w", err)
	}
	return values, nil
}

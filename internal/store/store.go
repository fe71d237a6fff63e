// Package store provides read access to template schemas and overrides.
// The resolution service depends only on the interfaces here; the Postgres
// implementation lives alongside for the customer API.
package store

import (
	"context"

	"github.com/hephaistos-io/pyro/internal/template"
)

// TemplateType selects which of an application's templates is addressed.
type TemplateType string

const (
	TypeSystem TemplateType = "SYSTEM"
	TypeUser   TemplateType = "USER"
)

// Valid reports whether t is a known template type.
func (t TemplateType) Valid() bool {
	return t == TypeSystem || t == TypeUser
}

// Override is a partial value map layered over template defaults for one
// identifier. The empty identifier denotes the environment-level default.
type Override struct {
	Identifier string
	Values     map[string]any
}

// SchemaStore looks up template schemas. A missing schema is reported as
// (nil, nil), not an error; callers decide whether absence is fatal.
type SchemaStore interface {
	FindSchema(ctx context.Context, applicationID string, templateType TemplateType) (*template.Schema, error)
}

// OverrideStore looks up override layers for a template.
type OverrideStore interface {
	// FindOverride returns the override for one identifier, or (nil, nil)
	// when none is stored.
	FindOverride(ctx context.Context, applicationID, environmentID string, templateType TemplateType, identifier string) (*Override, error)

	// FindOverrides returns the stored overrides for the given identifiers
	// in the order the identifiers were supplied, skipping identifiers with
	// no stored override.
	FindOverrides(ctx context.Context, applicationID, environmentID string, templateType TemplateType, identifiers []string) ([]Override, error)
}

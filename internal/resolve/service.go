// Package resolve orchestrates template resolution: load the schema, load
// the applicable override layers, merge, and shape the response. The
// service itself is side-effect free; caching wraps it from the outside.
package resolve

import (
	"context"
	"strings"

	"github.com/hephaistos-io/pyro/internal/common/errors"
	"github.com/hephaistos-io/pyro/internal/store"
	"github.com/hephaistos-io/pyro/internal/template"
)

// Service resolves merged template values from the backing stores.
type Service struct {
	schemas   store.SchemaStore
	overrides store.OverrideStore
}

func NewService(schemas store.SchemaStore, overrides store.OverrideStore) *Service {
	return &Service{
		schemas:   schemas,
		overrides: overrides,
	}
}

// ResolveSystem serves the customer-facing SYSTEM endpoint: defaults plus
// at most one identifier override. A blank identifier, or one with no
// stored override, silently falls back to defaults — only a missing schema
// is an error.
func (s *Service) ResolveSystem(ctx context.Context, applicationID, environmentID, identifier string) (*template.MergedValues, error) {
	schema, err := s.schemas.FindSchema(ctx, applicationID, store.TypeSystem)
	if err != nil {
		return nil, err
	}
	if schema == nil {
		return nil, errors.NewTemplateNotFoundError(applicationID)
	}

	var layers []map[string]any
	var applied []string
	if strings.TrimSpace(identifier) != "" {
		override, err := s.overrides.FindOverride(ctx, applicationID, environmentID, store.TypeSystem, identifier)
		if err != nil {
			return nil, err
		}
		if override != nil {
			layers = append(layers, override.Values)
			applied = append(applied, identifier)
		}
	}

	return &template.MergedValues{
		ApplicationID:      applicationID,
		EnvironmentID:      environmentID,
		Type:               string(store.TypeSystem),
		Schema:             schema,
		Values:             template.Merge(schema, layers...),
		AppliedIdentifiers: applied,
	}, nil
}

// Resolve serves the multi-identifier variant used by the web-app API.
// Override layers apply in the order the caller lists the identifiers, so
// the last listed wins on conflicting keys. Identifiers with no stored
// override contribute nothing, but the reported list still mirrors the
// request as given.
func (s *Service) Resolve(ctx context.Context, applicationID, environmentID string, templateType store.TemplateType, identifiers []string) (*template.MergedValues, error) {
	schema, err := s.schemas.FindSchema(ctx, applicationID, templateType)
	if err != nil {
		return nil, err
	}
	if schema == nil {
		return nil, errors.NewTemplateNotFoundError(applicationID)
	}

	overrides, err := s.overrides.FindOverrides(ctx, applicationID, environmentID, templateType, identifiers)
	if err != nil {
		return nil, err
	}

	layers := make([]map[string]any, 0, len(overrides))
	for _, ov := range overrides {
		layers = append(layers, ov.Values)
	}

	return &template.MergedValues{
		ApplicationID:      applicationID,
		EnvironmentID:      environmentID,
		Type:               string(templateType),
		Schema:             schema,
		Values:             template.Merge(schema, layers...),
		AppliedIdentifiers: append([]string(nil), identifiers...),
	}, nil
}

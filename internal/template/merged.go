package template

// MergedValues is the resolved view of a template for one application and
// environment: the schema plus the values produced by layering overrides
// over defaults.
type MergedValues struct {
	ApplicationID      string         `json:"applicationId"`
	EnvironmentID      string         `json:"environmentId"`
	Type               string         `json:"type"`
	Schema             *Schema        `json:"schema"`
	Values             map[string]any `json:"values"`
	AppliedIdentifiers []string       `json:"appliedIdentifiers"`
}

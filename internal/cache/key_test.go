package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hephaistos-io/pyro/internal/events"
)

func TestBuildKey(t *testing.T) {
	assert.Equal(t, "template:cache:app-1:env-1:SYSTEM:region-eu",
		BuildKey("app-1", "env-1", "SYSTEM", "region-eu"))

	// Deterministic, and the empty identifier is its own valid coordinate.
	assert.Equal(t,
		BuildKey("app-1", "env-1", "SYSTEM", ""),
		BuildKey("app-1", "env-1", "SYSTEM", ""))
	assert.Equal(t, "template:cache:app-1:env-1:SYSTEM:",
		BuildKey("app-1", "env-1", "SYSTEM", ""))
}

func TestPatternFor(t *testing.T) {
	env := "env-1"
	id := "region-eu"

	tests := []struct {
		name string
		evt  events.Event
		want string
	}{
		{
			name: "schema change widens to all environments and identifiers",
			evt: events.Event{
				Type:         events.SchemaChange,
				AppID:        "app-1",
				EnvID:        &env,
				TemplateType: "SYSTEM",
				Identifier:   &id,
			},
			want: "template:cache:app-1:*:SYSTEM:*",
		},
		{
			name: "override change with env and identifier targets one key",
			evt: events.Event{
				Type:         events.OverrideChange,
				AppID:        "app-1",
				EnvID:        &env,
				TemplateType: "SYSTEM",
				Identifier:   &id,
			},
			want: "template:cache:app-1:env-1:SYSTEM:region-eu",
		},
		{
			name: "override change without env widens environment",
			evt: events.Event{
				Type:         events.OverrideChange,
				AppID:        "app-1",
				TemplateType: "SYSTEM",
				Identifier:   &id,
			},
			want: "template:cache:app-1:*:SYSTEM:region-eu",
		},
		{
			name: "override change without identifier wipes the type scope",
			evt: events.Event{
				Type:         events.OverrideChange,
				AppID:        "app-1",
				EnvID:        &env,
				TemplateType: "USER",
			},
			want: "template:cache:app-1:env-1:USER:*",
		},
		{
			name: "user change always targets USER entries",
			evt: events.Event{
				Type:         events.UserChange,
				AppID:        "app-1",
				EnvID:        &env,
				TemplateType: "USER",
				Identifier:   &id,
			},
			want: "template:cache:app-1:env-1:USER:region-eu",
		},
		{
			name: "user change with nothing but app widens everything",
			evt: events.Event{
				Type:         events.UserChange,
				AppID:        "app-1",
				TemplateType: "USER",
			},
			want: "template:cache:app-1:*:USER:*",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PatternFor(tt.evt))
		})
	}
}

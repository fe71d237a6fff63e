// Package cache is the read-through response cache in front of template
// resolution. All Redis failures degrade to cache misses; the cache must
// never fail a request.
package cache

import (
	"github.com/hephaistos-io/pyro/internal/events"
)

const keyPrefix = "template:cache:"

// BuildKey derives the cache key for one resolved response. Deterministic:
// the same coordinates always yield the same key, and an absent identifier
// is keyed the same as the empty string.
func BuildKey(appID, envID, templateType, identifier string) string {
	return keyPrefix + appID + ":" + envID + ":" + templateType + ":" + identifier
}

// PatternFor derives the key pattern an invalidation event covers. Absent
// coordinates widen to "*": a schema change affects every environment and
// identifier of the app and type, an override change without an identifier
// wipes the whole type scope for its environment(s), and user changes always
// target USER-type entries.
func PatternFor(evt events.Event) string {
	env := "*"
	if evt.EnvID != nil {
		env = *evt.EnvID
	}
	identifier := "*"
	if evt.Identifier != nil {
		identifier = *evt.Identifier
	}

	switch evt.Type {
	case events.SchemaChange:
		return keyPrefix + evt.AppID + ":*:" + evt.TemplateType + ":*"
	case events.UserChange:
		return keyPrefix + evt.AppID + ":" + env + ":USER:" + identifier
	default:
		return keyPrefix + evt.AppID + ":" + env + ":" + evt.TemplateType + ":" + identifier
	}
}

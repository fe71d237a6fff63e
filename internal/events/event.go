// Package events carries cache invalidation messages between the write-side
// API and every read-side instance, over a Redis pub/sub channel.
package events

// EventType classifies what kind of mutation invalidated cached data.
type EventType string

const (
	SchemaChange   EventType = "SCHEMA_CHANGE"
	OverrideChange EventType = "OVERRIDE_CHANGE"
	UserChange     EventType = "USER_CHANGE"
)

// Event describes one invalidation. EnvID and Identifier are pointers with
// no omitempty so an absent value round-trips as an explicit JSON null —
// subscribers widen absent coordinates to wildcards, which is a different
// thing from an empty string.
type Event struct {
	Type         EventType `json:"type"`
	AppID        string    `json:"appId"`
	EnvID        *string   `json:"envId"`
	TemplateType string    `json:"templateType"`
	Identifier   *string   `json:"identifier"`
}

package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/hephaistos-io/pyro/internal/common/logger"
)

// Publisher emits invalidation events from write-side mutations. Publishing
// is best-effort: failures are logged and swallowed, because TTL expiry
// bounds staleness and a mutation must never fail over a notification.
type Publisher struct {
	client  *redis.Client
	channel string
	logger  logger.Logger
}

func NewPublisher(client *redis.Client, channel string, log logger.Logger) *Publisher {
	return &Publisher{
		client:  client,
		channel: channel,
		logger:  log,
	}
}

// PublishSchemaChange signals that an application's template schema changed,
// widening to every environment and identifier of that app and type.
func (p *Publisher) PublishSchemaChange(ctx context.Context, appID, templateType string) {
	p.publish(ctx, Event{
		Type:         SchemaChange,
		AppID:        appID,
		TemplateType: templateType,
	})
}

// PublishOverrideChange signals a created, updated, or deleted override.
// Pass nil envID or identifier when the mutation spans all environments or
// identifiers.
func (p *Publisher) PublishOverrideChange(ctx context.Context, appID string, envID *string, templateType string, identifier *string) {
	p.publish(ctx, Event{
		Type:         OverrideChange,
		AppID:        appID,
		EnvID:        envID,
		TemplateType: templateType,
		Identifier:   identifier,
	})
}

// PublishUserChange signals a mutation on one end user's settings.
func (p *Publisher) PublishUserChange(ctx context.Context, appID string, envID, identifier *string) {
	p.publish(ctx, Event{
		Type:         UserChange,
		AppID:        appID,
		EnvID:        envID,
		TemplateType: "USER",
		Identifier:   identifier,
	})
}

// PublishEnvironmentDeleted signals cascade deletion of an environment's
// overrides, one event per template type.
func (p *Publisher) PublishEnvironmentDeleted(ctx context.Context, appID, envID string) {
	for _, templateType := range []string{"SYSTEM", "USER"} {
		p.publish(ctx, Event{
			Type:         OverrideChange,
			AppID:        appID,
			EnvID:        &envID,
			TemplateType: templateType,
		})
	}
}

func (p *Publisher) publish(ctx context.Context, evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		p.logger.WithError(err).Error("Failed to encode invalidation event", nil)
		return
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.WithError(err).Warn("Failed to publish invalidation event, relying on TTL expiry", map[string]interface{}{
			"channel":    p.channel,
			"event_type": string(evt.Type),
			"app_id":     evt.AppID,
		})
	}
}

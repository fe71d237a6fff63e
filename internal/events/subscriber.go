package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/hephaistos-io/pyro/internal/common/logger"
	"github.com/hephaistos-io/pyro/internal/common/metrics"
)

// Handler consumes one invalidation event. Handlers must tolerate duplicate
// and out-of-order delivery; the bus is best-effort.
type Handler func(ctx context.Context, evt Event)

// Subscriber listens on the invalidation channel and dispatches events to a
// handler. Start and Stop each take effect exactly once, so the subscription
// is held for the whole process lifetime and released on every exit path.
type Subscriber struct {
	client  *redis.Client
	channel string
	handler Handler
	logger  logger.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	pubsub    *redis.PubSub
	done      chan struct{}
}

func NewSubscriber(client *redis.Client, channel string, handler Handler, log logger.Logger) *Subscriber {
	return &Subscriber{
		client:  client,
		channel: channel,
		handler: handler,
		logger:  log,
		done:    make(chan struct{}),
	}
}

// Start subscribes and launches the receive loop. A subscribe failure is
// returned so the caller can decide to run degraded (TTL-only consistency)
// rather than crash. Subsequent calls are no-ops returning the first
// outcome's error state.
func (s *Subscriber) Start(ctx context.Context) error {
	var startErr error
	s.startOnce.Do(func() {
		pubsub := s.client.Subscribe(ctx, s.channel)

		// Force the SUBSCRIBE round trip so a dead broker surfaces here
		// instead of silently never delivering.
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			startErr = fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
			return
		}

		s.pubsub = pubsub
		go s.receiveLoop()

		s.logger.Info("Subscribed to cache invalidation channel", map[string]interface{}{
			"channel": s.channel,
		})
	})
	return startErr
}

func (s *Subscriber) receiveLoop() {
	defer close(s.done)
	ctx := context.Background()

	for msg := range s.pubsub.Channel() {
		var evt Event
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			// Malformed messages are dropped, never crash the loop.
			s.logger.WithError(err).Warn("Dropping malformed invalidation message", map[string]interface{}{
				"channel": s.channel,
			})
			continue
		}

		metrics.InvalidationEvents.WithLabelValues(string(evt.Type)).Inc()
		s.handler(ctx, evt)
	}
}

// Stop unsubscribes and waits for the receive loop to drain. Safe to call
// from multiple shutdown paths; only the first call does work.
func (s *Subscriber) Stop() {
	s.stopOnce.Do(func() {
		if s.pubsub == nil {
			// Start never succeeded; nothing to release.
			close(s.done)
			return
		}
		if err := s.pubsub.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close invalidation subscription", nil)
		}
		<-s.done
		s.logger.Info("Unsubscribed from cache invalidation channel", map[string]interface{}{
			"channel": s.channel,
		})
	})
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/alanyang/lead-pipeline/internal/domain/event"
	porteventbus "github.com/alanyang/lead-pipeline/internal/port/eventbus"
)

var _ porteventbus.EventBus = (*EventBus)(nil)

// EventBus publishes events over Redis pub/sub. Delivery is at most once;
// a subscriber that misses an event recovers on its next refresh.
type EventBus struct {
	client *redis.Client
	prefix string
}

func NewEventBus(client *redis.Client, prefix string) *EventBus {
	if prefix == "" {
		prefix = "lead_pipeline"
	}
	return &EventBus{client: client, prefix: prefix}
}

func (eb *EventBus) channelName(ch event.Channel) string {
	return eb.prefix + ":" + string(ch)
}

func (eb *EventBus) Publish(ctx context.Context, e event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	channel := eb.channelName(event.ChannelFor(e.Type))
	if err := eb.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing event on channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so an event
// published after it returns is delivered.
func (eb *EventBus) Subscribe(ctx context.Context, ch event.Channel, handler porteventbus.Handler) (porteventbus.Subscription, error) {
	channel := eb.channelName(ch)
	ps := eb.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribing to channel %s: %w", channel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{ps: ps, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		msgs := ps.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e event.Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					slog.Warn("eventbus: dropping malformed message", "channel", channel, "error", err)
					continue
				}
				handler(subCtx, e)
			}
		}
	}()

	return sub, nil
}

type subscription struct {
	ps     *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *subscription) Unsubscribe() {
	s.cancel()
	s.ps.Close()
	<-s.done
}

package eventbus

import (
	"context"

	"github.com/alanyang/lead-pipeline/internal/domain/event"
)

type Handler func(ctx context.Context, e event.Event)

type Subscription interface {
	Unsubscribe()
}

// EventBus fans domain events out to every subscriber of the event's channel.
// Postgres LISTEN/NOTIFY, Redis pub/sub and the in-process bus all satisfy it.
type EventBus interface {
	Publish(ctx context.Context, e event.Event) error
	Subscribe(ctx context.Context, ch event.Channel, handler Handler) (Subscription, error)
}

//go:build integration

package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/alanyang/lead-pipeline/internal/domain/event"
	porteventbus "github.com/alanyang/lead-pipeline/internal/port/eventbus"
)

// CaptureBus is an EventBus double that records every published event.
// It never delivers to subscribers. It is safe for concurrent use.
type CaptureBus struct {
	mu     sync.Mutex
	Events []event.Event
}

var _ porteventbus.EventBus = (*CaptureBus)(nil)

func (c *CaptureBus) Publish(_ context.Context, e event.Event) error {
	c.mu.Lock()
	c.Events = append(c.Events, e)
	c.mu.Unlock()
	return nil
}

func (c *CaptureBus) Subscribe(context.Context, event.Channel, porteventbus.Handler) (porteventbus.Subscription, error) {
	return noopSubscription{}, nil
}

// TenantEvents returns the types published for tenantID, in order.
func (c *CaptureBus) TenantEvents(tenantID uuid.UUID) []event.Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []event.Type
	for _, e := range c.Events {
		if e.TenantID == tenantID {
			out = append(out, e.Type)
		}
	}
	return out
}

// Reset clears all recorded events.
func (c *CaptureBus) Reset() {
	c.mu.Lock()
	c.Events = nil
	c.mu.Unlock()
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}

package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeLeadCreated   Type = "lead_created"
	TypeLeadMoved     Type = "lead_moved"
	TypeLeadGated     Type = "lead_gated"
	TypeStageCreated  Type = "stage_created"
	TypeStagesDeleted Type = "stages_deleted"
)

// Channel is a domain-scoped notification channel.
// All event types within a domain share one subscription.
type Channel string

const (
	ChannelLead  Channel = "lead"
	ChannelStage Channel = "stage"
)

var typeToChannel = map[Type]Channel{
	TypeLeadCreated:   ChannelLead,
	TypeLeadMoved:     ChannelLead,
	TypeLeadGated:     ChannelLead,
	TypeStageCreated:  ChannelStage,
	TypeStagesDeleted: ChannelStage,
}

// Channels lists every domain channel, for subscribers that want all of them.
var Channels = []Channel{ChannelLead, ChannelStage}

// ChannelFor returns the domain channel for a given event type.
func ChannelFor(t Type) Channel { return typeToChannel[t] }

// Event carries identifiers only, not full state. A client that receives
// one treats its board as stale and refetches.
type Event struct {
	Type      Type      `json:"type"`
	TenantID  uuid.UUID `json:"tenant_id"`
	EntityID  string    `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`
}

func New(eventType Type, tenantID uuid.UUID, entityID string) Event {
	return Event{
		Type:      eventType,
		TenantID:  tenantID,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

package tenant

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
)

var ErrNotFound = errors.New("tenant not found")

// Tenant owns a stage set and the leads flowing through it. Gates overrides
// the server-wide completion rules for this tenant's gated stages.
type Tenant struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Gates     pipeline.Gates `json:"gates,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func New(name string, gates pipeline.Gates) Tenant {
	if gates == nil {
		gates = pipeline.Gates{}
	}
	return Tenant{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Gates:     gates,
		CreatedAt: time.Now().UTC(),
	}
}

// EffectiveGates layers the tenant's rules over defaults.
func (t Tenant) EffectiveGates(defaults pipeline.Gates) pipeline.Gates {
	out := make(pipeline.Gates, len(defaults)+len(t.Gates))
	for ft, g := range defaults {
		out[ft] = g
	}
	for ft, g := range t.Gates {
		out[ft] = g
	}
	return out
}

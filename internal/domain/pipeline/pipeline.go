package pipeline

import (
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
)

// Gate defines what the server does when a gated form for a given form type
// is completed.
type Gate struct {
	// RedirectTo, when set, moves the completed lead into the first stage of
	// this form type instead of the stage the lead was dropped on. Clients
	// cannot predict this, which is why they refetch after every write.
	RedirectTo stage.FormType `yaml:"redirect_to" json:"redirectTo,omitempty"`
}

// Gates maps each gated form type to its completion rule.
// Form types missing from the map complete with the zero Gate.
type Gates map[stage.FormType]Gate

// DefaultGates carries the three kinds with dedicated forms and no redirects.
// To redirect conversions into onboarding, set
// Gates[stage.FormConverted] = Gate{RedirectTo: stage.FormOnboarding}.
var DefaultGates = Gates{
	stage.FormConverted: {},
	stage.FormJunk:      {},
	stage.FormLost:      {},
}

// Destination returns the stage a completed gated form actually lands in.
// It falls back to target when no redirect applies or the redirect stage is missing.
func (g Gates) Destination(ft stage.FormType, target stage.Stage, reg *stage.Registry) stage.Stage {
	rule, ok := g[ft]
	if !ok || rule.RedirectTo == stage.FormNone {
		return target
	}
	if dest, ok := reg.ByFormType(rule.RedirectTo); ok {
		return dest
	}
	return target
}

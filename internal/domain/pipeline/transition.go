package pipeline

import (
	"github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
)

// Kind is the outcome of evaluating a candidate move.
type Kind string

const (
	// Commit: issue a direct move command now.
	Commit Kind = "commit"
	// NoOp: issue nothing.
	NoOp Kind = "noop"
	// Deferred: open the gating form for FormType; do not move yet.
	Deferred Kind = "deferred"
)

const (
	ReasonUnknownStage = "target stage not found"
	ReasonSameStage    = "lead already in target stage"
)

// Decision is the result of Evaluate. TargetStageID is carried forward so a
// deferred move can attach it to the eventual form submission.
type Decision struct {
	Kind          Kind           `json:"kind"`
	FormType      stage.FormType `json:"formType,omitempty"`
	SourceStageID stage.ID       `json:"sourceStageId,omitempty"`
	TargetStageID stage.ID       `json:"targetStageId,omitempty"`
	Reason        string         `json:"reason,omitempty"`
}

// Evaluate decides what dropping l onto the stage named targetStageName
// means. It is pure: the caller performs any I/O based on the result.
func Evaluate(l lead.Lead, targetStageName string, reg *stage.Registry) Decision {
	target, ok := reg.ByName(targetStageName)
	if !ok {
		return Decision{Kind: NoOp, SourceStageID: l.StageID, Reason: ReasonUnknownStage}
	}
	return EvaluateTarget(l, target)
}

// EvaluateTarget is Evaluate with the target already resolved.
// Stage ids are compared in canonical string form, so a numeric id from one
// wire shape equals the string id from the other.
func EvaluateTarget(l lead.Lead, target stage.Stage) Decision {
	d := Decision{SourceStageID: l.StageID, TargetStageID: target.ID}
	if l.StageID.String() == target.ID.String() {
		d.Kind = NoOp
		d.Reason = ReasonSameStage
		return d
	}
	if target.Gated() {
		d.Kind = Deferred
		d.FormType = target.FormType
		return d
	}
	d.Kind = Commit
	return d
}

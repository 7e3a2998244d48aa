package gate

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
)

var (
	ErrNotDeferred    = errors.New("decision does not require a form")
	ErrFormMismatch   = errors.New("form payload does not match the stage form type")
	ErrInvalidPayload = errors.New("invalid form payload")
)

// PendingTransition is a move waiting on its gating form. It lives only
// between the drop and the form's submission or cancellation.
type PendingTransition struct {
	ID               uuid.UUID      `json:"id"`
	Lead             lead.Lead      `json:"lead"`
	SourceStageID    stage.ID       `json:"sourceStageId,omitempty"`
	TargetStageID    stage.ID       `json:"targetStageId"`
	RequiredFormType stage.FormType `json:"requiredFormType"`
	OpenedAt         time.Time      `json:"openedAt"`
}

// Open starts a pending transition from a deferred decision.
func Open(d pipeline.Decision, l lead.Lead) (PendingTransition, error) {
	if d.Kind != pipeline.Deferred {
		return PendingTransition{}, ErrNotDeferred
	}
	return PendingTransition{
		ID:               uuid.New(),
		Lead:             l,
		SourceStageID:    d.SourceStageID,
		TargetStageID:    d.TargetStageID,
		RequiredFormType: d.FormType,
		OpenedAt:         time.Now().UTC(),
	}, nil
}

// Payload is the form-specific part of a gated submission.
type Payload interface {
	FormType() stage.FormType
	Validate() error
	// Apply writes the terminal fields onto l.
	Apply(l *lead.Lead, now time.Time)
}

// Conversion completes a CONVERTED gate.
type Conversion struct {
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	PaymentMethod    string  `json:"paymentMethod,omitempty"`
	PaymentReference string  `json:"paymentReference,omitempty"`
}

func (Conversion) FormType() stage.FormType { return stage.FormConverted }

func (c Conversion) Validate() error {
	if c.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPayload)
	}
	if len(strings.TrimSpace(c.Currency)) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidPayload)
	}
	return nil
}

func (c Conversion) Apply(l *lead.Lead, now time.Time) {
	l.Conversion = &lead.Conversion{
		Amount:           c.Amount,
		Currency:         strings.ToUpper(strings.TrimSpace(c.Currency)),
		PaymentMethod:    c.PaymentMethod,
		PaymentReference: c.PaymentReference,
		ConvertedAt:      now,
	}
	l.Status = "converted"
}

// Junk completes a JUNK gate.
type Junk struct {
	Reason string `json:"reason"`
}

func (Junk) FormType() stage.FormType { return stage.FormJunk }

func (j Junk) Validate() error { return requireReason(j.Reason) }

func (j Junk) Apply(l *lead.Lead, _ time.Time) {
	l.ReasonForJunk = strings.TrimSpace(j.Reason)
	l.Status = "junk"
}

// Lost completes a LOST gate.
type Lost struct {
	Reason string `json:"reason"`
}

func (Lost) FormType() stage.FormType { return stage.FormLost }

func (x Lost) Validate() error { return requireReason(x.Reason) }

func (x Lost) Apply(l *lead.Lead, _ time.Time) {
	l.ReasonForLost = strings.TrimSpace(x.Reason)
	l.Status = "lost"
}

// Custom completes any tenant-defined gate (ONBOARDING, APPROVAL, ...).
type Custom struct {
	Kind   stage.FormType `json:"kind"`
	Fields map[string]any `json:"fields"`
}

func (c Custom) FormType() stage.FormType { return c.Kind }

func (c Custom) Validate() error {
	if !c.Kind.Gated() {
		return fmt.Errorf("%w: custom form needs a kind", ErrInvalidPayload)
	}
	if c.Kind.HasDedicatedForm() {
		return fmt.Errorf("%w: %s has a dedicated form", ErrInvalidPayload, c.Kind)
	}
	return nil
}

// Apply replaces FormData with a fresh map so earlier copies of l keep
// their own view.
func (c Custom) Apply(l *lead.Lead, _ time.Time) {
	data := make(map[string]any, len(l.FormData)+len(c.Fields))
	maps.Copy(data, l.FormData)
	maps.Copy(data, c.Fields)
	l.FormData = data
}

func requireReason(r string) error {
	if strings.TrimSpace(r) == "" {
		return fmt.Errorf("%w: reason is required", ErrInvalidPayload)
	}
	return nil
}

// Command is the single atomic gated move: terminal fields and the target
// stage travel together so no observer sees one without the other.
type Command struct {
	LeadID        lead.ID        `json:"leadId"`
	TargetStageID stage.ID       `json:"targetStageId"`
	FormType      stage.FormType `json:"formType"`
	Payload       Payload        `json:"payload"`
}

// Complete turns a pending transition plus its form into one command.
func Complete(p PendingTransition, payload Payload) (Command, error) {
	if payload == nil {
		return Command{}, fmt.Errorf("%w: missing payload", ErrInvalidPayload)
	}
	if payload.FormType() != p.RequiredFormType {
		return Command{}, fmt.Errorf("%w: want %s, got %s", ErrFormMismatch, p.RequiredFormType, payload.FormType())
	}
	if err := payload.Validate(); err != nil {
		return Command{}, err
	}
	return Command{
		LeadID:        p.Lead.ID,
		TargetStageID: p.TargetStageID,
		FormType:      p.RequiredFormType,
		Payload:       payload,
	}, nil
}

// Apply mutates l into its post-commit state: terminal fields and stage
// reference in one step.
func (c Command) Apply(l *lead.Lead, dest stage.ID, now time.Time) {
	c.Payload.Apply(l, now)
	l.StageID = dest
	l.UpdatedAt = now
}

func (c *Command) UnmarshalJSON(data []byte) error {
	var w struct {
		LeadID        lead.ID         `json:"leadId"`
		TargetStageID stage.ID        `json:"targetStageId"`
		FormType      stage.FormType  `json:"formType"`
		Payload       json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	payload, err := DecodePayload(w.FormType, w.Payload)
	if err != nil {
		return err
	}
	*c = Command{LeadID: w.LeadID, TargetStageID: w.TargetStageID, FormType: w.FormType, Payload: payload}
	return nil
}

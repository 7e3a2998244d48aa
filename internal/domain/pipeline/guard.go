package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
)

// OccupiedReason is the substring a delete rejection carries when a stage
// still holds leads. Servers and clients both match on it.
const OccupiedReason = "stage has leads"

var (
	ErrStageOccupied       = errors.New(OccupiedReason)
	ErrNoStagesSelected    = errors.New("no stages selected")
	ErrStageNameRequired   = errors.New("stage name is required")
	ErrStageNameTaken      = errors.New("stage name already exists")
	ErrGatedStageNeedsForm = errors.New("gated stage requires a form type")
	ErrUngatedStageHasForm = errors.New("non-gated stage must not carry a form type")
)

// BlockedError reports which stages in a delete batch are occupied.
type BlockedError struct {
	StageIDs []stage.ID
}

func (e *BlockedError) Error() string {
	ids := make([]string, 0, len(e.StageIDs))
	for _, id := range e.StageIDs {
		ids = append(ids, id.String())
	}
	return fmt.Sprintf("%s: %s", OccupiedReason, strings.Join(ids, ", "))
}

func (e *BlockedError) Is(target error) bool { return target == ErrStageOccupied }

// GuardResult is the outcome of CanDelete.
type GuardResult struct {
	OK               bool       `json:"ok"`
	BlockingStageIDs []stage.ID `json:"blockingStageIds,omitempty"`
}

// Err converts a blocked result into a *BlockedError.
func (r GuardResult) Err() error {
	if r.OK {
		return nil
	}
	return &BlockedError{StageIDs: r.BlockingStageIDs}
}

// Occupancy counts leads per referenced stage. Always computed from the
// collection passed in; never cache the result.
func Occupancy(leads []lead.Lead) map[stage.ID]int {
	out := make(map[stage.ID]int)
	for _, l := range leads {
		if l.HasStage() {
			out[l.StageID]++
		}
	}
	return out
}

// CanDelete allows a batch only if every selected stage is empty. One
// occupied stage blocks the whole batch; blocking ids are returned in
// request order without duplicates.
func CanDelete(ids []stage.ID, leads []lead.Lead) GuardResult {
	occ := Occupancy(leads)
	var blocking []stage.ID
	seen := make(map[stage.ID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if occ[id] > 0 {
			blocking = append(blocking, id)
		}
	}
	if len(blocking) > 0 {
		return GuardResult{OK: false, BlockingStageIDs: blocking}
	}
	return GuardResult{OK: true}
}

// CreateStageRequest is an admin request to add a stage.
type CreateStageRequest struct {
	Name     string         `json:"name"`
	Color    string         `json:"color,omitempty"`
	Gated    bool           `json:"gated"`
	FormType stage.FormType `json:"formType,omitempty"`
}

// ValidateCreate rejects a request before any command is sent: gated stages
// need a form type, non-gated stages must not have one, and names must be
// present and unique within the tenant.
func ValidateCreate(req CreateStageRequest, reg *stage.Registry) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return ErrStageNameRequired
	}
	if req.Gated && !req.FormType.Gated() {
		return ErrGatedStageNeedsForm
	}
	if !req.Gated && req.FormType.Gated() {
		return ErrUngatedStageHasForm
	}
	if reg != nil && reg.HasNameFold(name) {
		return fmt.Errorf("%w: %q", ErrStageNameTaken, name)
	}
	return nil
}

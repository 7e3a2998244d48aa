package stage

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("stage not found")

// ID is the canonical stage identifier. Legacy payloads carry stage ids as
// JSON numbers or strings; both decode to the same string form so that
// 1, "1" and 1.0 compare equal.
type ID string

func (id ID) String() string { return string(id) }

func (id ID) IsZero() bool { return id == "" }

// Tail returns the last n characters of the id, or the whole id if shorter.
func (id ID) Tail(n int) string {
	r := []rune(string(id))
	if len(r) <= n {
		return string(r)
	}
	return string(r[len(r)-n:])
}

func (id *ID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*id = ""
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("stage id: %w", err)
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	parsed, err := ParseID(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

// ParseID normalises a numeric literal into its canonical id form.
// Integral values drop any fractional part ("1.0" becomes "1").
func ParseID(raw string) (ID, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ID(strconv.FormatInt(n, 10)), nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", fmt.Errorf("stage id: invalid literal %q", raw)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return ID(strconv.FormatInt(int64(f), 10)), nil
	}
	return ID(raw), nil
}

// FormType names the supplementary form a stage requires on entry.
// The empty value means the stage is not gated.
type FormType string

const (
	FormNone       FormType = ""
	FormConverted  FormType = "CONVERTED"
	FormJunk       FormType = "JUNK"
	FormLost       FormType = "LOST"
	FormOnboarding FormType = "ONBOARDING"
	FormApproval   FormType = "APPROVAL"
	FormCustom     FormType = "CUSTOM"
)

// ParseFormType upper-cases and trims tenant input. Unknown values are kept;
// tenants may define their own kinds.
func ParseFormType(s string) FormType {
	return FormType(strings.ToUpper(strings.TrimSpace(s)))
}

func (f *FormType) UnmarshalText(text []byte) error {
	*f = ParseFormType(string(text))
	return nil
}

// Gated reports whether entering a stage of this form type requires a form.
func (f FormType) Gated() bool { return f != FormNone }

// HasDedicatedForm reports whether the form type has its own payload shape.
// Other gated kinds are completed with the generic custom form.
func (f FormType) HasDedicatedForm() bool {
	switch f {
	case FormConverted, FormJunk, FormLost:
		return true
	}
	return false
}

// Stage is one column of a tenant's lead workflow.
type Stage struct {
	ID         ID        `json:"stageId"`
	TenantID   uuid.UUID `json:"-"`
	Name       string    `json:"name"`
	OrderIndex int       `json:"orderIndex"`
	ColorCode  string    `json:"colorCode,omitempty"`
	FormType   FormType  `json:"formType,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Gated reports whether entering the stage requires a completed form.
func (s Stage) Gated() bool { return s.FormType.Gated() }

// wireStage accepts both id spellings found in stored data.
type wireStage struct {
	StageID    *ID       `json:"stageId"`
	PipelineID *ID       `json:"pipelineId"`
	Name       string    `json:"name"`
	OrderIndex *int      `json:"orderIndex"`
	ColorCode  string    `json:"colorCode"`
	Color      string    `json:"color"`
	FormType   FormType  `json:"formType"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (w wireStage) toStage(position int) Stage {
	s := Stage{
		ID:        FirstID(w.PipelineID, w.StageID),
		Name:      strings.TrimSpace(w.Name),
		ColorCode: w.ColorCode,
		FormType:  w.FormType,
		CreatedAt: w.CreatedAt,
	}
	if s.ColorCode == "" {
		s.ColorCode = w.Color
	}
	if w.OrderIndex != nil {
		s.OrderIndex = *w.OrderIndex
	} else {
		s.OrderIndex = position
	}
	return s
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	var w wireStage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = w.toStage(0)
	return nil
}

// DecodeList decodes a fetched stage list. Records without an orderIndex
// take their position in the list.
func DecodeList(data []byte) ([]Stage, error) {
	var ws []wireStage
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("decoding stages: %w", err)
	}
	out := make([]Stage, 0, len(ws))
	for i, w := range ws {
		out = append(out, w.toStage(i))
	}
	return out, nil
}

// FirstID returns the first non-empty id. Stored records may carry the stage
// reference as pipelineId or stageId; the first non-null spelling wins.
func FirstID(ids ...*ID) ID {
	for _, id := range ids {
		if id != nil && !id.IsZero() {
			return *id
		}
	}
	return ""
}

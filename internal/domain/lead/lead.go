package lead

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyang/lead-pipeline/internal/domain/stage"
)

var ErrNotFound = errors.New("lead not found")

type ID string

func (id ID) String() string { return string(id) }

// UnmarshalJSON accepts numeric ids from older payloads.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s stage.ID
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	*id = ID(s)
	return nil
}

// Conversion holds the financial fields recorded when a lead is converted.
type Conversion struct {
	Amount           float64   `json:"amount"`
	Currency         string    `json:"currency"`
	PaymentMethod    string    `json:"paymentMethod,omitempty"`
	PaymentReference string    `json:"paymentReference,omitempty"`
	ConvertedAt      time.Time `json:"convertedAt"`
}

// Lead is a prospect record. StageID is the single stage reference; the
// legacy pipelineId spelling is folded into it at decode time.
type Lead struct {
	ID            ID             `json:"leadId"`
	TenantID      uuid.UUID      `json:"-"`
	Name          string         `json:"name"`
	Email         string         `json:"email,omitempty"`
	Phone         string         `json:"phone,omitempty"`
	Company       string         `json:"company,omitempty"`
	Budget        float64        `json:"budget"`
	Status        string         `json:"status,omitempty"`
	StageID       stage.ID       `json:"stageId,omitempty"`
	ReasonForLost string         `json:"reasonForLost,omitempty"`
	ReasonForJunk string         `json:"reasonForJunk,omitempty"`
	Conversion    *Conversion    `json:"conversion,omitempty"`
	FormData      map[string]any `json:"formData,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func New(tenantID uuid.UUID, name, email, phone, company string, budget float64, stageID stage.ID) Lead {
	now := time.Now().UTC()
	return Lead{
		ID:        ID(uuid.New().String()),
		TenantID:  tenantID,
		Name:      strings.TrimSpace(name),
		Email:     email,
		Phone:     phone,
		Company:   company,
		Budget:    budget,
		Status:    "new",
		StageID:   stageID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (l Lead) HasStage() bool { return !l.StageID.IsZero() }

// Terminal reports whether any field written by a gated transition is set.
func (l Lead) Terminal() bool {
	return l.ReasonForLost != "" || l.ReasonForJunk != "" || l.Conversion != nil || len(l.FormData) > 0
}

// wireLead is the ingestion shape: leadId or id, pipelineId or stageId.
type wireLead struct {
	LeadID        ID             `json:"leadId"`
	LegacyID      ID             `json:"id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	Phone         string         `json:"phone"`
	Company       string         `json:"company"`
	Budget        float64        `json:"budget"`
	Status        string         `json:"status"`
	PipelineID    *stage.ID      `json:"pipelineId"`
	StageID       *stage.ID      `json:"stageId"`
	ReasonForLost string         `json:"reasonForLost"`
	ReasonForJunk string         `json:"reasonForJunk"`
	Conversion    *Conversion    `json:"conversion"`
	FormData      map[string]any `json:"formData"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (l *Lead) UnmarshalJSON(data []byte) error {
	var w wireLead
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id := w.LeadID
	if id == "" {
		id = w.LegacyID
	}
	*l = Lead{
		ID:            id,
		Name:          w.Name,
		Email:         w.Email,
		Phone:         w.Phone,
		Company:       w.Company,
		Budget:        w.Budget,
		Status:        w.Status,
		StageID:       stage.FirstID(w.PipelineID, w.StageID),
		ReasonForLost: w.ReasonForLost,
		ReasonForJunk: w.ReasonForJunk,
		Conversion:    w.Conversion,
		FormData:      w.FormData,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
	return nil
}

// IDs returns the ids of leads in order.
func IDs(leads []Lead) []ID {
	out := make([]ID, 0, len(leads))
	for _, l := range leads {
		out = append(out, l.ID)
	}
	return out
}

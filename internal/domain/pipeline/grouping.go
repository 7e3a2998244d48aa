package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
)

// Shape discriminates the two wire representations of "all leads".
type Shape string

const (
	ShapeGrouped Shape = "grouped"
	ShapeFlat    Shape = "flat"
)

var ErrUnknownShape = errors.New("unknown lead payload shape")

// Group is one record of the grouped shape.
type Group struct {
	StageID stage.ID    `json:"stageId"`
	Leads   []lead.Lead `json:"leads"`
}

func (g *Group) UnmarshalJSON(data []byte) error {
	var w struct {
		StageID    *stage.ID   `json:"stageId"`
		PipelineID *stage.ID   `json:"pipelineId"`
		Leads      []lead.Lead `json:"leads"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	g.StageID = stage.FirstID(w.PipelineID, w.StageID)
	g.Leads = w.Leads
	return nil
}

// Payload is the tagged union returned by a lead fetch. Exactly one of
// Groups or Leads is meaningful, selected by Shape.
type Payload struct {
	Shape  Shape       `json:"shape"`
	Groups []Group     `json:"groups,omitempty"`
	Leads  []lead.Lead `json:"leads,omitempty"`
}

func Grouped(groups []Group) Payload { return Payload{Shape: ShapeGrouped, Groups: groups} }

func Flat(leads []lead.Lead) Payload { return Payload{Shape: ShapeFlat, Leads: leads} }

// DecodePayload classifies and decodes a lead fetch response.
// An object with a "shape" field is authoritative. A bare array comes from
// older servers: it is grouped when its first element has a "leads" key.
func DecodePayload(data []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Flat(nil), nil
	}

	switch trimmed[0] {
	case '{':
		var p Payload
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return Payload{}, fmt.Errorf("decoding lead payload: %w", err)
		}
		switch p.Shape {
		case ShapeGrouped:
			p.Leads = nil
		case ShapeFlat:
			p.Groups = nil
		default:
			return Payload{}, fmt.Errorf("%w: %q", ErrUnknownShape, p.Shape)
		}
		return p, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Payload{}, fmt.Errorf("decoding lead payload: %w", err)
		}
		if len(items) == 0 {
			return Flat(nil), nil
		}
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(items[0], &probe); err != nil {
			return Payload{}, fmt.Errorf("decoding lead payload: %w", err)
		}
		if _, grouped := probe["leads"]; grouped {
			var groups []Group
			if err := json.Unmarshal(trimmed, &groups); err != nil {
				return Payload{}, fmt.Errorf("decoding grouped leads: %w", err)
			}
			return Grouped(groups), nil
		}
		var leads []lead.Lead
		if err := json.Unmarshal(trimmed, &leads); err != nil {
			return Payload{}, fmt.Errorf("decoding flat leads: %w", err)
		}
		return Flat(leads), nil
	}
	return Payload{}, ErrUnknownShape
}

// AllLeads flattens the payload regardless of shape.
func (p Payload) AllLeads() []lead.Lead {
	if p.Shape == ShapeFlat {
		return p.Leads
	}
	var out []lead.Lead
	for _, g := range p.Groups {
		out = append(out, g.Leads...)
	}
	return out
}

// Bucket is one display column of the normalised grouping.
type Bucket struct {
	StageID   stage.ID    `json:"stageId"`
	Name      string      `json:"name"`
	Leads     []lead.Lead `json:"leads"`
	Synthetic bool        `json:"synthetic,omitempty"`
}

// Grouping is the canonical stage-to-leads mapping. Buckets follow registry
// order, with synthetic buckets for unknown stage ids appended after them.
// Unassigned holds flat-shape leads that had no destination because the
// registry was empty.
type Grouping struct {
	Buckets    []Bucket    `json:"buckets"`
	Unassigned []lead.Lead `json:"unassigned,omitempty"`
}

// ByName keys buckets by display name. Unassigned leads are not included.
func (g Grouping) ByName() map[string][]lead.Lead {
	out := make(map[string][]lead.Lead, len(g.Buckets))
	for _, b := range g.Buckets {
		out[b.Name] = append(out[b.Name], b.Leads...)
	}
	return out
}

func (g Grouping) StageNames() []string {
	out := make([]string, 0, len(g.Buckets))
	for _, b := range g.Buckets {
		out = append(out, b.Name)
	}
	return out
}

// Count is the number of leads across all buckets, including Unassigned.
func (g Grouping) Count() int {
	n := len(g.Unassigned)
	for _, b := range g.Buckets {
		n += len(b.Leads)
	}
	return n
}

// Find locates a lead and the bucket holding it.
func (g Grouping) Find(id lead.ID) (lead.Lead, Bucket, bool) {
	for _, b := range g.Buckets {
		for _, l := range b.Leads {
			if l.ID == id {
				return l, b, true
			}
		}
	}
	for _, l := range g.Unassigned {
		if l.ID == id {
			return l, Bucket{}, true
		}
	}
	return lead.Lead{}, Bucket{}, false
}

// fallbackLabel names a bucket for a stage id the registry does not know.
func fallbackLabel(id stage.ID) string {
	if id.IsZero() {
		return "Unknown stage"
	}
	return "Stage " + id.Tail(4)
}

// Normalize converts either payload shape into one Grouping. Every input
// lead lands in exactly one bucket; a lead id seen twice keeps its first
// placement.
func Normalize(p Payload, reg *stage.Registry) Grouping {
	b := newBuilder(reg)
	switch p.Shape {
	case ShapeGrouped:
		for _, grp := range p.Groups {
			idx := b.bucketFor(grp.StageID)
			for _, l := range grp.Leads {
				b.place(idx, l)
			}
		}
	case ShapeFlat:
		initial, hasInitial := reg.Initial()
		for _, l := range p.Leads {
			if st, ok := reg.ByID(l.StageID); ok {
				b.place(b.index[st.ID], l)
				continue
			}
			if hasInitial {
				if l.HasStage() {
					slog.Info("grouping: unresolved stage, using initial stage",
						"lead_id", l.ID, "stage_id", l.StageID, "initial", initial.Name)
				}
				b.place(b.index[initial.ID], l)
				continue
			}
			slog.Warn("grouping: no stages exist, lead has no destination", "lead_id", l.ID)
			b.unassign(l)
		}
	default:
		slog.Warn("grouping: unknown payload shape", "shape", p.Shape)
	}
	return b.grouping()
}

type builder struct {
	buckets    []Bucket
	index      map[stage.ID]int
	names      map[string]struct{}
	seen       map[lead.ID]struct{}
	unassigned []lead.Lead
}

func newBuilder(reg *stage.Registry) *builder {
	b := &builder{
		index: make(map[stage.ID]int, reg.Len()),
		names: make(map[string]struct{}, reg.Len()),
		seen:  make(map[lead.ID]struct{}),
	}
	for _, st := range reg.Ordered() {
		b.index[st.ID] = len(b.buckets)
		b.names[st.Name] = struct{}{}
		b.buckets = append(b.buckets, Bucket{StageID: st.ID, Name: st.Name, Leads: []lead.Lead{}})
	}
	return b
}

func (b *builder) bucketFor(id stage.ID) int {
	if idx, ok := b.index[id]; ok {
		return idx
	}
	label := b.uniqueLabel(fallbackLabel(id), id)
	slog.Info("grouping: unknown stage id, using fallback label", "stage_id", id, "label", label)
	idx := len(b.buckets)
	b.index[id] = idx
	b.buckets = append(b.buckets, Bucket{StageID: id, Name: label, Leads: []lead.Lead{}, Synthetic: true})
	return idx
}

// uniqueLabel keeps a synthetic bucket from sharing a name with a real
// stage or another synthetic bucket.
func (b *builder) uniqueLabel(label string, id stage.ID) string {
	if _, taken := b.names[label]; taken {
		label = fmt.Sprintf("%s (%s)", label, id)
	}
	for n := 2; ; n++ {
		if _, taken := b.names[label]; !taken {
			break
		}
		label = fmt.Sprintf("%s (%s #%d)", fallbackLabel(id), id, n)
	}
	b.names[label] = struct{}{}
	return label
}

func (b *builder) claim(l lead.Lead) bool {
	if _, dup := b.seen[l.ID]; dup {
		slog.Warn("grouping: duplicate lead ignored", "lead_id", l.ID)
		return false
	}
	b.seen[l.ID] = struct{}{}
	return true
}

func (b *builder) place(idx int, l lead.Lead) {
	if b.claim(l) {
		b.buckets[idx].Leads = append(b.buckets[idx].Leads, l)
	}
}

func (b *builder) unassign(l lead.Lead) {
	if b.claim(l) {
		b.unassigned = append(b.unassigned, l)
	}
}

func (b *builder) grouping() Grouping {
	return Grouping{Buckets: b.buckets, Unassigned: b.unassigned}
}

package stage

import (
	"sort"
	"strings"
)

// InitialName is the conventional name of the intake stage.
const InitialName = "New"

// Registry is an immutable, ordered view of a tenant's stages.
// Build a new one after every refresh; never mutate in place.
type Registry struct {
	ordered []Stage
	byID    map[ID]int
	byName  map[string]int
}

// NewRegistry orders stages by OrderIndex (stable, so ties keep fetch order).
// Duplicate ids or names keep their first occurrence.
func NewRegistry(stages []Stage) *Registry {
	ordered := make([]Stage, len(stages))
	copy(ordered, stages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OrderIndex < ordered[j].OrderIndex
	})

	r := &Registry{
		ordered: make([]Stage, 0, len(ordered)),
		byID:    make(map[ID]int, len(ordered)),
		byName:  make(map[string]int, len(ordered)),
	}
	for _, s := range ordered {
		if s.ID.IsZero() {
			continue
		}
		if _, dup := r.byID[s.ID]; dup {
			continue
		}
		idx := len(r.ordered)
		r.ordered = append(r.ordered, s)
		r.byID[s.ID] = idx
		if _, dup := r.byName[s.Name]; !dup {
			r.byName[s.Name] = idx
		}
	}
	return r
}

// Ordered returns the stages in display order. The slice is a copy.
func (r *Registry) Ordered() []Stage {
	out := make([]Stage, len(r.ordered))
	copy(out, r.ordered)
	return out
}

func (r *Registry) Len() int { return len(r.ordered) }

func (r *Registry) ByID(id ID) (Stage, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return Stage{}, false
	}
	return r.ordered[idx], true
}

// ByName matches the display name exactly.
func (r *Registry) ByName(name string) (Stage, bool) {
	idx, ok := r.byName[name]
	if !ok {
		return Stage{}, false
	}
	return r.ordered[idx], true
}

// HasNameFold reports whether a stage with the given name exists, ignoring case.
func (r *Registry) HasNameFold(name string) bool {
	for _, s := range r.ordered {
		if strings.EqualFold(s.Name, name) {
			return true
		}
	}
	return false
}

// Initial returns the intake stage: the one named "New" (any case), otherwise
// the first stage in order. ok is false only when the registry is empty.
func (r *Registry) Initial() (Stage, bool) {
	for _, s := range r.ordered {
		if strings.EqualFold(strings.TrimSpace(s.Name), InitialName) {
			return s, true
		}
	}
	if len(r.ordered) == 0 {
		return Stage{}, false
	}
	return r.ordered[0], true
}

// ByFormType returns the first stage, in order, carrying the given form type.
func (r *Registry) ByFormType(ft FormType) (Stage, bool) {
	for _, s := range r.ordered {
		if s.FormType == ft {
			return s, true
		}
	}
	return Stage{}, false
}

// NextOrderIndex is one past the highest OrderIndex in the registry.
func (r *Registry) NextOrderIndex() int {
	if len(r.ordered) == 0 {
		return 0
	}
	return r.ordered[len(r.ordered)-1].OrderIndex + 1
}

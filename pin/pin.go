// Package pin provides the pin data model for flow graph nodes.
package pin

import (
	"github.com/google/uuid"
)

// Direction for pin data flow
type Direction string

// Direction constants for pin data flow
const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Category distinguishes execution pins from data-typed pins
type Category string

// Category constants for pin typing
const (
	CategoryExec Category = "exec"
	CategoryData Category = "data"
)

// MaxPinsPerDirection caps the number of pins a node may expose per direction.
// Attempts to add pins beyond the cap are rejected without mutating state.
const MaxPinsPerDirection = 256

// Spec describes a declared pin: its identity and presentation metadata.
// Identity for matching purposes is (Name, Category); FriendlyName and
// Tooltip are presentation-only and never participate in matching.
type Spec struct {
	Name         string   `json:"name"`
	Category     Category `json:"category"`
	SubCategory  string   `json:"sub_category,omitempty"` // type reference for data pins
	FriendlyName string   `json:"friendly_name,omitempty"`
	Tooltip      string   `json:"tooltip,omitempty"`
}

// Valid reports whether the spec is well formed. Malformed specs (empty name)
// are dropped silently by callers rather than surfaced as errors.
func (s Spec) Valid() bool {
	return s.Name != ""
}

// Matches reports whether two specs are equal for matching purposes.
func (s Spec) Matches(other Spec) bool {
	return s.Name == other.Name && s.Category == other.Category
}

// CleanInvalidSpecs returns the specs with malformed entries removed,
// preserving order. The input slice is not modified.
func CleanInvalidSpecs(specs []Spec) []Spec {
	result := make([]Spec, 0, len(specs))
	for _, s := range specs {
		if s.Valid() {
			result = append(result, s)
		}
	}
	return result
}

// Ref identifies a live pin instance on a node. Both fields must be set;
// a zero Ref is invalid.
type Ref struct {
	NodeID string `json:"node_id"`
	PinID  string `json:"pin_id"`
}

// Valid reports whether the reference identifies a pin.
func (r Ref) Valid() bool {
	return r.NodeID != "" && r.PinID != ""
}

// Instance is a live pin attached to a graph node. Links are recorded
// symmetrically on both endpoints; the graph's connection store keeps the
// two sides consistent within a single synchronous call.
type Instance struct {
	ID             string    `json:"id"`
	Spec           Spec      `json:"spec"`
	Direction      Direction `json:"direction"`
	Links          []Ref     `json:"links,omitempty"`
	Orphaned       bool      `json:"orphaned,omitempty"`
	Hidden         bool      `json:"hidden,omitempty"`
	NotConnectable bool      `json:"not_connectable,omitempty"`
	DefaultValue   string    `json:"default_value,omitempty"`
	ParentID       string    `json:"parent_id,omitempty"` // parent pin for split pins
	SaveIfOrphaned bool      `json:"save_if_orphaned,omitempty"`
}

// NewInstance creates a live pin for the given spec and direction.
func NewInstance(spec Spec, direction Direction) *Instance {
	return &Instance{
		ID:             uuid.NewString(),
		Spec:           spec,
		Direction:      direction,
		SaveIfOrphaned: true,
	}
}

// Name returns the pin's declared name.
func (p *Instance) Name() string {
	return p.Spec.Name
}

// Connected reports whether the pin has at least one live link.
func (p *Instance) Connected() bool {
	return len(p.Links) > 0
}

// HasLink reports whether the pin links to the given peer.
func (p *Instance) HasLink(peer Ref) bool {
	for _, l := range p.Links {
		if l == peer {
			return true
		}
	}
	return false
}

// AddLink records a link to the given peer. Duplicate links are ignored.
func (p *Instance) AddLink(peer Ref) {
	if p.HasLink(peer) {
		return
	}
	p.Links = append(p.Links, peer)
}

// RemoveLink removes the link to the given peer, preserving order.
// Returns true if a link was removed.
func (p *Instance) RemoveLink(peer Ref) bool {
	for i, l := range p.Links {
		if l == peer {
			p.Links = append(p.Links[:i], p.Links[i+1:]...)
			return true
		}
	}
	return false
}

// MovePersistentData copies the old pin's persisted value and link list onto
// this pin. The caller is responsible for repointing peer back-references;
// see the graph connection store.
func (p *Instance) MovePersistentData(old *Instance) {
	p.DefaultValue = old.DefaultValue
	p.Links = old.Links
	old.Links = nil
}

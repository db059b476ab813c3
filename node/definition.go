// Package node provides node definitions, the kind registry, and node instances.
package node

import (
	"github.com/c360/flowkit/pin"
)

// OrphanSaveMode controls whether a node retains removed-but-connected pins
// as orphans during reconciliation.
type OrphanSaveMode string

// OrphanSaveMode constants
const (
	// OrphanSaveAll retains all eligible orphan pins (the default).
	OrphanSaveAll OrphanSaveMode = "save_all"
	// OrphanSaveNone discards removed pins regardless of connections.
	OrphanSaveNone OrphanSaveMode = "none"
)

// SignalMode controls how a node participates in execution. Editing tooling
// only stores the mode; execution semantics belong to the runtime.
type SignalMode string

// SignalMode constants
const (
	SignalEnabled     SignalMode = "enabled"
	SignalDisabled    SignalMode = "disabled"
	SignalPassThrough SignalMode = "pass_through"
)

// Definition describes a node kind: its static pins and capability flags.
// Static pins are the built-in pins every instance of the kind starts with;
// context pins are computed per instance by a ContextPinProvider.
type Definition struct {
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`

	InputPins  []pin.Spec `json:"input_pins"`
	OutputPins []pin.Spec `json:"output_pins"`

	// Capability flags (flattened from subtype dispatch)
	SupportsContextPins      bool `json:"supports_context_pins,omitempty"`
	CanUserAddInput          bool `json:"can_user_add_input,omitempty"`
	CanUserAddOutput         bool `json:"can_user_add_output,omitempty"`
	RefreshContextPinsOnLoad bool `json:"refresh_context_pins_on_load,omitempty"`

	OrphanSaveMode OrphanSaveMode `json:"orphan_save_mode,omitempty"`
}

// StaticPins returns the definition's declared pins for a direction, with
// malformed entries dropped.
func (d Definition) StaticPins(direction pin.Direction) []pin.Spec {
	if direction == pin.DirectionInput {
		return pin.CleanInvalidSpecs(d.InputPins)
	}
	return pin.CleanInvalidSpecs(d.OutputPins)
}

// SaveMode returns the orphan save mode, defaulting to OrphanSaveAll.
func (d Definition) SaveMode() OrphanSaveMode {
	if d.OrphanSaveMode == "" {
		return OrphanSaveAll
	}
	return d.OrphanSaveMode
}

// HasStaticPin reports whether the definition declares a pin with the given
// name in the given direction. User-added instance pins are exactly those
// not declared here.
func (d Definition) HasStaticPin(name string, direction pin.Direction) bool {
	pins := d.InputPins
	if direction == pin.DirectionOutput {
		pins = d.OutputPins
	}
	for _, p := range pins {
		if p.Name == name {
			return true
		}
	}
	return false
}

// ContextPinProvider computes dynamic pins for a node instance from its
// current configuration. Providers may return different results between
// calls without any explicit user edit, so reconciliation is re-run
// opportunistically rather than only on structural edits.
type ContextPinProvider interface {
	ContextInputs(n *Node) []pin.Spec
	ContextOutputs(n *Node) []pin.Spec
}

// ContextPinFunc adapts a pair of functions to the ContextPinProvider interface.
type ContextPinFunc struct {
	Inputs  func(n *Node) []pin.Spec
	Outputs func(n *Node) []pin.Spec
}

// ContextInputs implements ContextPinProvider.
func (f ContextPinFunc) ContextInputs(n *Node) []pin.Spec {
	if f.Inputs == nil {
		return nil
	}
	return f.Inputs(n)
}

// ContextOutputs implements ContextPinProvider.
func (f ContextPinFunc) ContextOutputs(n *Node) []pin.Spec {
	if f.Outputs == nil {
		return nil
	}
	return f.Outputs(n)
}

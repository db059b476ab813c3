package node

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/pin"
)

// Node is a node instance placed in a flow. It owns the persisted pin spec
// lists that form the baseline the reconciler diffs against: static pins
// seeded from the definition, plus user-added instance pins, plus whatever a
// managed-pin pass wrote before reconciliation.
type Node struct {
	ID     string         `json:"id"`
	Kind   string         `json:"kind"`
	Name   string         `json:"name,omitempty"`
	Config map[string]any `json:"config,omitempty"`

	InputPins  []pin.Spec `json:"input_pins"`
	OutputPins []pin.Spec `json:"output_pins"`

	SignalMode             SignalMode `json:"signal_mode,omitempty"`
	DisableOrphanPinSaving bool       `json:"disable_orphan_pin_saving,omitempty"`
}

// New creates a node instance of the given kind, seeding its persisted pins
// from the definition's static pins.
func New(def Definition) *Node {
	return &Node{
		ID:         uuid.NewString(),
		Kind:       def.Kind,
		Config:     make(map[string]any),
		InputPins:  append([]pin.Spec(nil), def.StaticPins(pin.DirectionInput)...),
		OutputPins: append([]pin.Spec(nil), def.StaticPins(pin.DirectionOutput)...),
		SignalMode: SignalEnabled,
	}
}

// Pins returns the node's persisted pins for a direction, malformed entries
// stripped.
func (n *Node) Pins(direction pin.Direction) []pin.Spec {
	if direction == pin.DirectionInput {
		return pin.CleanInvalidSpecs(n.InputPins)
	}
	return pin.CleanInvalidSpecs(n.OutputPins)
}

// SetPins replaces the node's persisted pins for a direction.
func (n *Node) SetPins(direction pin.Direction, specs []pin.Spec) {
	replacement := append([]pin.Spec(nil), specs...)
	if direction == pin.DirectionInput {
		n.InputPins = replacement
		return
	}
	n.OutputPins = replacement
}

// CountNumberedPins counts persisted pins whose name is a plain number.
// User-added instance pins are numbered sequentially from zero.
func (n *Node) CountNumberedPins(direction pin.Direction) int {
	count := 0
	for _, p := range n.Pins(direction) {
		if _, err := strconv.Atoi(p.Name); err == nil {
			count++
		}
	}
	return count
}

// CanAddUserPin reports whether a user pin can be added in the given
// direction: the definition must allow it and the per-direction cap must not
// be exceeded.
func (n *Node) CanAddUserPin(def Definition, direction pin.Direction) bool {
	allowed := def.CanUserAddInput
	count := len(n.InputPins)
	if direction == pin.DirectionOutput {
		allowed = def.CanUserAddOutput
		count = len(n.OutputPins)
	}
	return allowed && count < pin.MaxPinsPerDirection
}

// AddUserPin appends a numbered instance pin in the given direction and
// returns its spec. The pin is inserted at the position matching its number
// so numbered pins stay contiguous. Rejected without mutating state when the
// definition disallows user pins or the cap is reached.
func (n *Node) AddUserPin(def Definition, direction pin.Direction) (pin.Spec, error) {
	if !n.CanAddUserPin(def, direction) {
		msg := fmt.Errorf("%w: node '%s' direction %s", errors.ErrPinCapExceeded, n.ID, direction)
		return pin.Spec{}, errors.WrapInvalid(msg, "Node", "AddUserPin", "user pin admission")
	}

	number := n.CountNumberedPins(direction)
	spec := pin.Spec{Name: strconv.Itoa(number), Category: pin.CategoryExec}

	existing := n.InputPins
	if direction == pin.DirectionOutput {
		existing = n.OutputPins
	}

	pins := make([]pin.Spec, 0, len(existing)+1)
	if number < len(existing) {
		pins = append(pins, existing[:number]...)
		pins = append(pins, spec)
		pins = append(pins, existing[number:]...)
	} else {
		pins = append(pins, existing...)
		pins = append(pins, spec)
	}
	n.SetPins(direction, pins)

	return spec, nil
}

// RemoveUserPin removes a user-added instance pin by name. Pins declared by
// the definition cannot be removed. Remaining numbered pins are renumbered
// to stay sequential.
func (n *Node) RemoveUserPin(def Definition, direction pin.Direction, name string) error {
	if def.HasStaticPin(name, direction) {
		msg := fmt.Errorf("pin '%s' is declared by kind '%s'", name, n.Kind)
		return errors.WrapInvalid(msg, "Node", "RemoveUserPin", "static pin guard")
	}

	pins := n.Pins(direction)
	index := -1
	for i, p := range pins {
		if p.Name == name {
			index = i
			break
		}
	}
	if index < 0 {
		msg := fmt.Errorf("%w: '%s'", errors.ErrPinNotFound, name)
		return errors.WrapInvalid(msg, "Node", "RemoveUserPin", "pin lookup")
	}

	pins = append(pins[:index], pins[index+1:]...)

	// Renumber the surviving numbered pins so user pins stay 0..n-1
	next := 0
	for i := range pins {
		if _, err := strconv.Atoi(pins[i].Name); err == nil {
			pins[i].Name = strconv.Itoa(next)
			next++
		}
	}

	n.SetPins(direction, pins)
	return nil
}

package graph

import (
	"github.com/c360/flowkit/node"
	"github.com/c360/flowkit/pin"
)

// State is a graph node's pin lifecycle state.
type State string

// State constants for the node pin lifecycle:
//   - StateUninitialized: node placed or loaded, pins not yet reconciled
//   - StateStable: pins agree with the node's required pin set
//   - StateReconciling: a reconciliation pass is running (re-entrant guarded)
//   - StateDestroyed: node removed from the graph
const (
	StateUninitialized State = "uninitialized"
	StateStable        State = "stable"
	StateReconciling   State = "reconciling"
	StateDestroyed     State = "destroyed"
)

// Node is a placed node with its live pins. Pins are ordered inputs first,
// then outputs, with orphaned pins appended after all canonical pins. The
// graph node exclusively owns its pin instances.
type Node struct {
	ID      string
	Backing *node.Node // nil indicates corruption; reconciliation aborts

	Pins []*pin.Instance

	Position Position

	state                   State
	needsFullReconstruction bool
}

// Position is the node's canvas placement.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State returns the node's lifecycle state.
func (n *Node) State() State { return n.state }

// PinByID returns the live pin with the given instance ID, or nil.
func (n *Node) PinByID(id string) *pin.Instance {
	for _, p := range n.Pins {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// PinByName returns the first non-orphaned pin with the given name and
// direction, or nil. Orphaned pins may collide by name and are skipped.
func (n *Node) PinByName(name string, direction pin.Direction) *pin.Instance {
	for _, p := range n.Pins {
		if !p.Orphaned && p.Direction == direction && p.Name() == name {
			return p
		}
	}
	return nil
}

// InputPins returns the node's input pins in render order.
func (n *Node) InputPins() []*pin.Instance {
	return n.pinsByDirection(pin.DirectionInput)
}

// OutputPins returns the node's output pins in render order.
func (n *Node) OutputPins() []*pin.Instance {
	return n.pinsByDirection(pin.DirectionOutput)
}

func (n *Node) pinsByDirection(direction pin.Direction) []*pin.Instance {
	result := make([]*pin.Instance, 0, len(n.Pins))
	for _, p := range n.Pins {
		if p.Direction == direction {
			result = append(result, p)
		}
	}
	return result
}

// SetNeedsFullReconstruction forces the next reconciliation pass to rebuild
// the pin list even if no pin-set difference is detected.
func (n *Node) SetNeedsFullReconstruction() {
	n.needsFullReconstruction = true
}

// NeedsFullReconstruction reports whether a full rebuild has been requested.
func (n *Node) NeedsFullReconstruction() bool { return n.needsFullReconstruction }

// ClearNeedsFullReconstruction resets the full-rebuild request.
func (n *Node) ClearNeedsFullReconstruction() { n.needsFullReconstruction = false }

// BeginReconcile transitions the node into StateReconciling. Returns false
// when the node is already reconciling (re-entrancy) or destroyed; the
// caller must skip the pass in that case.
func (n *Node) BeginReconcile() bool {
	if n.state == StateReconciling || n.state == StateDestroyed {
		return false
	}
	n.state = StateReconciling
	return true
}

// EndReconcile transitions the node back to StateStable.
func (n *Node) EndReconcile() {
	if n.state == StateReconciling {
		n.state = StateStable
	}
}

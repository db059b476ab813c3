package flowstore

import (
	"fmt"
	"time"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/graph"
	"github.com/c360/flowkit/node"
	"github.com/c360/flowkit/pin"
)

// Flow is a persisted flow document: node-graph layout, pin state including
// orphans, and metadata.
type Flow struct {
	// Identity
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Version for optimistic concurrency control
	Version int64 `json:"version"`

	// Canvas layout
	Nodes       []FlowNode       `json:"nodes"`
	Connections []FlowConnection `json:"connections"`

	// Audit
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy string    `json:"created_by,omitempty"`
}

// FlowNode is a node on the canvas: its persisted pin baseline plus a
// snapshot of the live pins, so orphaned pins and user connections survive
// a save/load round trip.
type FlowNode struct {
	Node     *node.Node      `json:"node"`
	Position graph.Position  `json:"position"`
	Pins     []*pin.Instance `json:"pins,omitempty"`
}

// FlowConnection is one edge between two live pins. Pins are addressed by
// instance ID, not name, since retained orphans may collide by name.
type FlowConnection struct {
	Source pin.Ref `json:"source"`
	Target pin.Ref `json:"target"`
}

// Validate checks structural integrity before the flow is persisted.
func (f *Flow) Validate() error {
	if f.ID == "" {
		return errors.WrapInvalid(fmt.Errorf("flow ID cannot be empty"), "flowstore", "Validate", "validation failed")
	}
	if f.Name == "" {
		return errors.WrapInvalid(fmt.Errorf("flow name cannot be empty"), "flowstore", "Validate", "validation failed")
	}

	nodeIDs := make(map[string]bool, len(f.Nodes))
	pinIDs := make(map[pin.Ref]bool)
	for i, fn := range f.Nodes {
		if fn.Node == nil {
			return errors.WrapInvalid(
				fmt.Errorf("node at index %d has no node data", i),
				"flowstore", "Validate", "node validation failed")
		}
		if fn.Node.ID == "" {
			return errors.WrapInvalid(
				fmt.Errorf("node at index %d has empty ID", i),
				"flowstore", "Validate", "node ID validation failed")
		}
		if fn.Node.Kind == "" {
			return errors.WrapInvalid(
				fmt.Errorf("node '%s' has empty kind", fn.Node.ID),
				"flowstore", "Validate", "node kind validation failed")
		}
		if nodeIDs[fn.Node.ID] {
			return errors.WrapInvalid(
				fmt.Errorf("duplicate node ID: %s", fn.Node.ID),
				"flowstore", "Validate", "duplicate node ID detected")
		}
		nodeIDs[fn.Node.ID] = true

		for _, p := range fn.Pins {
			pinIDs[pin.Ref{NodeID: fn.Node.ID, PinID: p.ID}] = true
		}
	}

	for i, conn := range f.Connections {
		if !conn.Source.Valid() || !conn.Target.Valid() {
			return errors.WrapInvalid(
				fmt.Errorf("connection at index %d has an incomplete endpoint", i),
				"flowstore", "Validate", "connection endpoint validation failed")
		}
		if !pinIDs[conn.Source] {
			return errors.WrapInvalid(
				fmt.Errorf("connection %d references unknown source pin %s on node %s",
					i, conn.Source.PinID, conn.Source.NodeID),
				"flowstore", "Validate", "connection source validation failed")
		}
		if !pinIDs[conn.Target] {
			return errors.WrapInvalid(
				fmt.Errorf("connection %d references unknown target pin %s on node %s",
					i, conn.Target.PinID, conn.Target.NodeID),
				"flowstore", "Validate", "connection target validation failed")
		}
	}

	return nil
}

// Package graph provides the editor graph: placed nodes, their live pins,
// and the connection store that keeps links symmetric.
package graph

import (
	"fmt"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/node"
	"github.com/c360/flowkit/pin"
)

// Graph is the live editing state of one flow: placed nodes and the links
// between their pins. A Graph is confined to the interaction goroutine; all
// mutation is synchronous and no internal locking is performed.
type Graph struct {
	ID string

	nodes map[string]*Node
	order []string // node IDs in placement order

	locked  bool
	saving  bool
	loading bool
}

// New creates an empty graph.
func New(id string) *Graph {
	return &Graph{
		ID:    id,
		nodes: make(map[string]*Node),
	}
}

// AddNode places a node instance on the graph. The returned graph node is
// Uninitialized until its first reconciliation pass.
func (g *Graph) AddNode(n *node.Node) (*Node, error) {
	if n == nil {
		return nil, errors.WrapInvalid(errors.ErrNodeNotFound, "Graph", "AddNode", "node validation")
	}
	if _, exists := g.nodes[n.ID]; exists {
		msg := fmt.Errorf("node '%s' already placed", n.ID)
		return nil, errors.WrapInvalid(msg, "Graph", "AddNode", "duplicate node check")
	}

	gn := &Node{
		ID:      n.ID,
		Backing: n,
		state:   StateUninitialized,
	}
	g.nodes[n.ID] = gn
	g.order = append(g.order, n.ID)
	return gn, nil
}

// NodeByID returns the graph node with the given ID.
func (g *Graph) NodeByID(id string) (*Node, error) {
	gn, exists := g.nodes[id]
	if !exists {
		msg := fmt.Errorf("%w: '%s'", errors.ErrNodeNotFound, id)
		return nil, errors.WrapInvalid(msg, "Graph", "NodeByID", "node lookup")
	}
	return gn, nil
}

// Nodes returns the graph nodes in placement order.
func (g *Graph) Nodes() []*Node {
	result := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		result = append(result, g.nodes[id])
	}
	return result
}

// RemoveNode breaks all of a node's links and removes it from the graph.
// The node transitions to Destroyed.
func (g *Graph) RemoveNode(id string) error {
	gn, err := g.NodeByID(id)
	if err != nil {
		return err
	}

	for _, p := range gn.Pins {
		g.DisconnectPin(gn, p)
	}

	gn.state = StateDestroyed
	delete(g.nodes, id)
	for i, nodeID := range g.order {
		if nodeID == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return nil
}

// ResolvePin returns the live pin instance a reference points at.
func (g *Graph) ResolvePin(ref pin.Ref) (*pin.Instance, error) {
	gn, exists := g.nodes[ref.NodeID]
	if !exists {
		msg := fmt.Errorf("%w: node '%s'", errors.ErrDanglingLink, ref.NodeID)
		return nil, errors.WrapFatal(msg, "Graph", "ResolvePin", "node lookup")
	}
	p := gn.PinByID(ref.PinID)
	if p == nil {
		msg := fmt.Errorf("%w: pin '%s' on node '%s'", errors.ErrDanglingLink, ref.PinID, ref.NodeID)
		return nil, errors.WrapFatal(msg, "Graph", "ResolvePin", "pin lookup")
	}
	return p, nil
}

// Validate checks every recorded link for dangling references and missing
// symmetric back-links. A failure indicates corruption, not user error.
func (g *Graph) Validate() error {
	for _, id := range g.order {
		gn := g.nodes[id]
		for _, p := range gn.Pins {
			self := pin.Ref{NodeID: gn.ID, PinID: p.ID}
			for _, link := range p.Links {
				peer, err := g.ResolvePin(link)
				if err != nil {
					return errors.Wrap(err, "Graph", "Validate", "link resolution")
				}
				if !peer.HasLink(self) {
					msg := fmt.Errorf("%w: link %s/%s -> %s/%s has no back-reference",
						errors.ErrGraphCorrupt, gn.ID, p.Name(), link.NodeID, peer.Name())
					return errors.WrapFatal(msg, "Graph", "Validate", "symmetry check")
				}
			}
		}
	}
	return nil
}

// Locked reports whether the graph is refusing structural changes.
func (g *Graph) Locked() bool { return g.locked }

// SetLocked toggles the structural-change lock.
func (g *Graph) SetLocked(locked bool) { g.locked = locked }

// Saving reports whether the graph is being serialized.
func (g *Graph) Saving() bool { return g.saving }

// SetSaving toggles the saving flag; reconstruction is skipped while set.
func (g *Graph) SetSaving(saving bool) { g.saving = saving }

// Loading reports whether the graph is being deserialized. During load,
// context pins are only refreshed for kinds that opt in.
func (g *Graph) Loading() bool { return g.loading }

// SetLoading toggles the loading flag.
func (g *Graph) SetLoading(loading bool) { g.loading = loading }

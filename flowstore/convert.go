package flowstore

import (
	"time"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/graph"
	"github.com/c360/flowkit/pin"
)

// FromGraph snapshots a graph into a flow document. Pin links are stored
// once, as the Connections list; the saved pin instances carry everything
// else (identity, orphan flags, default values).
func FromGraph(g *graph.Graph, name, description string) *Flow {
	f := &Flow{
		ID:          g.ID,
		Name:        name,
		Description: description,
		UpdatedAt:   time.Now(),
	}

	for _, gn := range g.Nodes() {
		fn := FlowNode{
			Node:     gn.Backing,
			Position: gn.Position,
			Pins:     make([]*pin.Instance, 0, len(gn.Pins)),
		}
		for _, p := range gn.Pins {
			saved := *p
			saved.Links = nil
			fn.Pins = append(fn.Pins, &saved)

			// every edge is recorded once, from its output side
			if p.Direction == pin.DirectionOutput {
				source := pin.Ref{NodeID: gn.ID, PinID: p.ID}
				for _, target := range p.Links {
					f.Connections = append(f.Connections, FlowConnection{Source: source, Target: target})
				}
			}
		}
		f.Nodes = append(f.Nodes, fn)
	}

	return f
}

// BuildGraph reconstructs a graph from a flow document. Links are restored
// directly on both endpoints, bypassing connectability checks so retained
// orphan pins keep their connections.
func (f *Flow) BuildGraph() (*graph.Graph, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	g := graph.New(f.ID)
	for _, fn := range f.Nodes {
		gn, err := g.AddNode(fn.Node)
		if err != nil {
			return nil, err
		}
		gn.Position = fn.Position
		for _, p := range fn.Pins {
			loaded := *p
			loaded.Links = nil
			gn.Pins = append(gn.Pins, &loaded)
		}
	}

	for _, conn := range f.Connections {
		source, err := g.ResolvePin(conn.Source)
		if err != nil {
			return nil, errors.WrapInvalid(err, "flowstore", "BuildGraph", "resolve connection source")
		}
		target, err := g.ResolvePin(conn.Target)
		if err != nil {
			return nil, errors.WrapInvalid(err, "flowstore", "BuildGraph", "resolve connection target")
		}
		source.AddLink(conn.Target)
		target.AddLink(conn.Source)
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

package graph

import (
	"fmt"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/pin"
)

// Connect links two pins. Links are recorded symmetrically on both endpoints
// within this call; a failure leaves neither side modified. Orphaned and
// otherwise not-connectable pins are rejected, as are same-direction links.
func (g *Graph) Connect(a, b pin.Ref) error {
	if g.locked {
		return errors.WrapInvalid(errors.ErrGraphLocked, "Graph", "Connect", "lock check")
	}

	pinA, err := g.ResolvePin(a)
	if err != nil {
		return errors.Wrap(err, "Graph", "Connect", "source resolution")
	}
	pinB, err := g.ResolvePin(b)
	if err != nil {
		return errors.Wrap(err, "Graph", "Connect", "target resolution")
	}

	if pinA.NotConnectable || pinB.NotConnectable {
		return errors.WrapInvalid(errors.ErrNotConnectable, "Graph", "Connect", "connectability check")
	}
	if pinA.Direction == pinB.Direction {
		msg := fmt.Errorf("cannot link two %s pins", pinA.Direction)
		return errors.WrapInvalid(msg, "Graph", "Connect", "direction check")
	}

	pinA.AddLink(b)
	pinB.AddLink(a)
	return nil
}

// BreakLink removes the link between two pins from both endpoints.
func (g *Graph) BreakLink(a, b pin.Ref) error {
	pinA, err := g.ResolvePin(a)
	if err != nil {
		return errors.Wrap(err, "Graph", "BreakLink", "source resolution")
	}
	pinB, err := g.ResolvePin(b)
	if err != nil {
		return errors.Wrap(err, "Graph", "BreakLink", "target resolution")
	}

	pinA.RemoveLink(b)
	pinB.RemoveLink(a)
	return nil
}

// BreakAllLinks disconnects a pin from every peer, removing the back
// references in the same call.
func (g *Graph) BreakAllLinks(ref pin.Ref) error {
	p, err := g.ResolvePin(ref)
	if err != nil {
		return errors.Wrap(err, "Graph", "BreakAllLinks", "pin resolution")
	}

	gn := g.nodes[ref.NodeID]
	g.DisconnectPin(gn, p)
	return nil
}

// DisconnectPin removes all of a pin's links, including peer back-references.
// Peers that cannot be resolved are skipped; Validate reports them.
func (g *Graph) DisconnectPin(owner *Node, p *pin.Instance) {
	self := pin.Ref{NodeID: owner.ID, PinID: p.ID}
	for _, link := range p.Links {
		if peer, err := g.ResolvePin(link); err == nil {
			peer.RemoveLink(self)
		}
	}
	p.Links = nil
}

// MovePinLinks transfers old's persisted value and links onto replacement,
// repointing every peer's back-reference so no dangling link survives the
// move. Both pins must belong to owner.
func (g *Graph) MovePinLinks(owner *Node, old, replacement *pin.Instance) {
	oldRef := pin.Ref{NodeID: owner.ID, PinID: old.ID}
	newRef := pin.Ref{NodeID: owner.ID, PinID: replacement.ID}

	replacement.MovePersistentData(old)

	for _, link := range replacement.Links {
		if peer, err := g.ResolvePin(link); err == nil {
			peer.RemoveLink(oldRef)
			peer.AddLink(newRef)
		}
	}
}

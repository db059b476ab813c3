package reconcile

import (
	"github.com/c360/flowkit/graph"
	"github.com/c360/flowkit/node"
	"github.com/c360/flowkit/pin"
)

// rewireStats summarizes a rewire pass. destroyed holds the old pins that
// neither matched a new pin nor qualified for orphan retention; the caller
// disconnects them.
type rewireStats struct {
	rewired   int
	orphaned  int
	destroyed []*pin.Instance
}

// rewireMatch pairs an old pin with the new pin slot it claimed.
type rewireMatch struct {
	oldPin *pin.Instance
	newPin *pin.Instance
}

// rewireOldPinsToNewPins moves connections and persisted values from the old
// pin list onto the freshly allocated pins in gn.Pins, matching by name and
// direction. Each new pin is consumed at most once. The name search starts at
// the old pin's index modulo the new pin count and wraps, so unchanged
// layouts match on the first probe. Old pins are visited in reverse so split
// child pins claim their slots before their parents.
//
// Unmatched old pins that are connected may be retained as orphans: they are
// appended after the canonical pins in their pre-existing relative order,
// flagged orphaned and not-connectable. Everything else is returned for
// destruction.
//
// Matching and link movement are separate phases. A link between two pins of
// the same node still references the peer's old pin ID when movement starts,
// and the old pin is no longer resolvable against gn.Pins; every link list
// (matched, orphaned, and destroyed pins alike) is therefore rewritten
// through the complete match map before any peer back-reference is
// repointed.
func (r *Reconciler) rewireOldPinsToNewPins(g *graph.Graph, gn *graph.Node, oldPins []*pin.Instance) rewireStats {
	newPins := gn.Pins
	numNew := len(newPins)
	consumed := make([]bool, numNew)

	var stats rewireStats
	var matches []rewireMatch
	var orphans []*pin.Instance

	for oldIndex := len(oldPins) - 1; oldIndex >= 0; oldIndex-- {
		oldPin := oldPins[oldIndex]

		matched := false
		if numNew > 0 {
			idx := oldIndex % numNew
			for probes := 0; probes < numNew; probes++ {
				candidate := newPins[idx]
				if !consumed[idx] && candidate.Direction == oldPin.Direction && candidate.Name() == oldPin.Name() {
					consumed[idx] = true
					matched = true
					matches = append(matches, rewireMatch{oldPin: oldPin, newPin: candidate})
					break
				}
				idx = (idx + 1) % numNew
			}
		}
		if matched {
			continue
		}

		if r.shouldRetainOrphan(gn.Backing, oldPin) {
			oldPin.Orphaned = true
			oldPin.NotConnectable = true
			orphans = append(orphans, oldPin)
		} else {
			stats.destroyed = append(stats.destroyed, oldPin)
		}
	}
	stats.rewired = len(matches)

	// orphans were collected in reverse, so walk backwards to append them in
	// their original relative order. Only top-level pins are kept; a split
	// child whose parent is gone has nothing to anchor to and is destroyed.
	for i := len(orphans) - 1; i >= 0; i-- {
		if orphans[i].ParentID == "" {
			gn.Pins = append(gn.Pins, orphans[i])
			stats.orphaned++
		} else {
			stats.destroyed = append(stats.destroyed, orphans[i])
		}
	}

	replacedBy := make(map[string]string, len(matches))
	for _, m := range matches {
		replacedBy[m.oldPin.ID] = m.newPin.ID
	}
	for _, m := range matches {
		remapSameNodeLinks(gn.ID, m.oldPin, replacedBy)
	}
	for _, p := range orphans {
		remapSameNodeLinks(gn.ID, p, replacedBy)
	}
	for _, p := range stats.destroyed {
		remapSameNodeLinks(gn.ID, p, replacedBy)
	}

	for _, m := range matches {
		g.MovePinLinks(gn, m.oldPin, m.newPin)
	}
	return stats
}

// remapSameNodeLinks rewrites a pin's links to sibling pins that claimed a
// new slot, so peer resolution works against the node's new pin list. Links
// to orphaned siblings keep their IDs and need no rewrite; links to
// destroyed siblings are cleaned up when the caller disconnects them.
func remapSameNodeLinks(nodeID string, p *pin.Instance, replacedBy map[string]string) {
	for i, link := range p.Links {
		if link.NodeID != nodeID {
			continue
		}
		if newID, ok := replacedBy[link.PinID]; ok {
			p.Links[i].PinID = newID
		}
	}
}

// shouldRetainOrphan reports whether a removed pin keeps its connections as
// an orphan. Every condition must hold: the global toggle, the node's own
// opt-out, the kind's save mode, and the pin being visible, connected, and
// flagged saveable.
func (r *Reconciler) shouldRetainOrphan(n *node.Node, p *pin.Instance) bool {
	if !r.settings.OrphanPinsEnabled || n.DisableOrphanPinSaving {
		return false
	}
	def, err := r.registry.Definition(n.Kind)
	if err == nil && def.SaveMode() != node.OrphanSaveAll {
		return false
	}
	return !p.Hidden && p.SaveIfOrphaned && p.Connected()
}

// Package reconcile keeps a graph node's live pins in agreement with the
// node's required pin set while preserving user connections.
//
// # Overview
//
// A node's required pins come from two places: static pins declared by its
// registered definition, and context pins computed per instance from the
// node's configuration. Whenever either source changes, the live pin
// instances on the canvas have to be rebuilt, and naively rebuilding them
// would sever every connection the user drew. The Reconciler rebuilds pins
// and then rewires old connections onto the new pins by name, retaining
// removed-but-connected pins as orphans so no link is lost silently.
//
// # Architecture
//
// The Reconciler owns the algorithm and nothing else. Undo recording,
// change notification, managed data pins, breakpoint cleanup, and metrics
// are all injected through small interfaces in Dependencies, each with a
// no-op default. The entry point is ReconstructNode; ReconstructGraph maps
// it over a whole graph.
//
// A reconstruction pass runs three checks in order: the managed-pin pass
// (which may rewrite persisted pins), tryUpdateNodePins (which re-derives
// required pins and replaces the persisted lists on divergence), and
// checkGraphPinsMatchNodePins (which compares live pins against whatever
// the first two passes left behind). If any reports a change, or a full
// reconstruction was requested, the pins are reallocated and rewired.
//
// Reconciliation is idempotent: a second pass over an already-stable node
// reports no change and touches nothing.
package reconcile

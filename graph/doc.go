// Package graph provides the editor graph: placed nodes, their live pin
// instances, and the connection store.
//
// # Ownership
//
// Each graph node exclusively owns its pin instances. Connections are a
// many-to-many relation recorded symmetrically on both endpoint pins; every
// mutation (Connect, BreakLink, BreakAllLinks, MovePinLinks) updates both
// sides within the same synchronous call, so the graph is never observable
// with a half-broken link. Validate detects dangling references and missing
// back-links, which indicate corruption rather than user error.
//
// # Concurrency
//
// A Graph is confined to the interaction goroutine. All operations are
// synchronous, nothing blocks, and no internal locking is performed. The
// only re-entrancy hazard is reconciliation triggering itself through change
// notifications; the node lifecycle state (StateReconciling) guards that.
package graph

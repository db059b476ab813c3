// Package flowkit is the authoring backend for visual node graphs.
//
// # Overview
//
// Flowkit manages the editor-side model of a flow: nodes placed on a canvas,
// the pins those nodes expose, and the links users draw between pins. Node
// kinds are declared in JSON catalogs and registered at startup; placed
// nodes carry a persisted pin set that can drift from the kind's current
// declaration as catalogs evolve.
//
// The core of the module is pin reconciliation: when a node's required pin
// set changes (a catalog update, a context-pin recompute, an added user
// pin), the reconciler rebuilds the node's live pins and carries over every
// user connection it can. Pins that disappeared but are still connected are
// retained as orphans rather than silently losing the user's work.
//
// # Architecture
//
//	catalog  -> node registry  (kind definitions and context-pin providers)
//	flowstore -> graph         (flow documents persisted in NATS KV)
//	reconcile                  (pin diffing, rewiring, orphan retention)
//	debugger                   (node and pin breakpoints)
//	service                    (HTTP editor API + websocket notifications)
//	cmd/flowkit                (entrypoint wiring the layers together)
//
// The reconciler knows nothing about transports or storage; it works on a
// graph and reports through small interfaces (transaction host, notifier,
// breakpoint pruner, metrics recorder) that the service implements.
package flowkit

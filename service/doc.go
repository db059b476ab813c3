// Package service provides the flowkit editor API.
//
// # Overview
//
// The service exposes the editing surface over HTTP: node kind discovery,
// flow CRUD, graph edits (place nodes, connect and disconnect pins, add and
// remove user instance pins), explicit node reconstruction, and breakpoint
// management. Every graph edit runs through the pin reconciler so live pins
// track the node's required pin set, and every resulting pin change is
// pushed to connected editor clients over a websocket.
//
// # Architecture
//
// Each mutating request is a load-edit-save cycle: the flow document is read
// from the store, rebuilt into a graph, reconciled, edited, reconciled
// again, and written back carrying the document version for the optimistic
// concurrency check. A concurrent editor losing the race receives 409 and
// retries against the fresh document. The service holds no graph state
// between requests.
//
// The Hub fans editor events out to websocket clients and doubles as the
// reconciler's notifier, so pin changes reach open editors regardless of
// which request (or background pass) produced them.
package service

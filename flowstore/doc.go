// Package flowstore provides persistence for flow documents.
//
// # Overview
//
// A Flow is the saved form of a node graph: every node's persisted pin
// baseline, a snapshot of its live pins including retained orphans, canvas
// positions, and the connection list. FromGraph and BuildGraph convert
// between the document and the in-memory graph; links are stored once in
// the Connections list and restored onto both endpoints on load.
//
// # Architecture
//
// Flows are stored in the NATS KV bucket "flowkit_flows" with optimistic
// concurrency control via document version numbers: Update fails with
// errors.ErrVersionConflict when the stored version no longer matches the
// caller's. The store works against the narrow KV interface so tests can
// substitute an in-memory bucket.
package flowstore

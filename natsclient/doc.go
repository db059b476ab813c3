// Package natsclient manages the NATS connection and JetStream KV access
// used for flow persistence.
//
// # Overview
//
// Client wraps a single NATS connection with reconnect handling and status
// tracking. KVStore wraps a JetStream KV bucket with per-operation timeouts,
// a value size limit, and errors normalized to the flowkit errors package:
// missing keys map to errors.ErrKeyNotFound, create conflicts to
// errors.ErrAlreadyExists, and CAS failures to errors.ErrVersionConflict,
// so callers can branch on sentinel errors instead of parsing NATS error
// strings.
package natsclient

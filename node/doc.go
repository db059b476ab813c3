// Package node provides node kind definitions, the kind registry, and node
// instances.
//
// # Overview
//
// A Definition describes a node kind: the static pins every instance starts
// with, plus capability flags (user-addable pins, context pin support,
// orphan save mode). Kinds are registered in a Registry together with an
// optional ContextPinProvider that computes dynamic pins from a node's
// configuration.
//
// A Node is a placed instance. It owns the persisted pin spec lists that the
// reconciler treats as the "existing" baseline: static pins seeded from the
// definition, numbered user-added pins, and any pins a managed-pin pass
// rewrote before reconciliation runs.
//
// # User pins
//
// Kinds that allow it expose numbered instance pins ("0", "1", ...). Adding
// a pin beyond the per-direction cap is rejected without mutating state;
// removing a pin renumbers the survivors so the sequence stays contiguous.
package node

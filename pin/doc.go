// Package pin provides the pin data model for flow graph nodes.
//
// # Overview
//
// A pin is a named, directional connection point on a node. Pins come in two
// categories: exec pins carry control flow, data pins carry typed values
// (the type reference lives in Spec.SubCategory).
//
// Two representations exist:
//
//   - Spec: a declared pin as it appears in a node definition or a node's
//     persisted pin list. Identity for matching is (Name, Category).
//   - Instance: a live pin attached to a graph node, carrying links to peer
//     pins, an orphaned flag, and a persisted default value.
//
// # Matching
//
// CheckSpecsMatch and CheckInstancesMatchSpecs implement the structural
// pin-set comparison used by the reconciler: same cardinality plus
// order-independent membership. Orphaned instances and invalid specs are
// excluded from matching by the callers.
//
// # Invariants
//
//   - Pin names are unique within a direction at any committed state.
//     Orphaned pins may collide by name but are marked not-connectable.
//   - Every entry in Instance.Links must reference an existing peer pin;
//     a dangling reference is a corruption bug surfaced by graph validation.
//   - Orphaned pins are never matched against a required pin set and always
//     render after canonical pins.
package pin

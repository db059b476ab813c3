// Package debugger manages node and pin breakpoints for flow playback.
//
// Breakpoints are keyed by node ID plus pin name, so they survive pin
// reconstruction as long as the pin name does. The Subsystem implements the
// reconciler's breakpoint pruning hook: after a node's pins are rebuilt,
// breakpoints on vanished pins are dropped.
//
// Breakpoint enablement persists to a YAML settings file across editor
// sessions; hit state is transient and cleared on resume.
package debugger

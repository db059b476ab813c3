// Package errors provides standardized error handling patterns for FlowKit.
//
// # Overview
//
// The errors package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing).
//
// The pin reconciler never surfaces errors across its boundary for routine
// mismatches; those are communicated as boolean change signals. Errors are
// reserved for corruption (missing backing state, dangling links) and
// infrastructure failures (storage, connections).
//
// # Quick Start
//
// Use standard error variables for known conditions:
//
//	if node == nil {
//	    return errors.ErrNodeNotFound
//	}
//
// Wrap errors with component context for debugging:
//
//	if err := store.Update(ctx, flow); err != nil {
//	    return errors.Wrap(err, "EditorService", "UpdateFlow", "flow persistence")
//	}
//
// Check classification before retrying:
//
//	if errors.IsTransient(err) {
//	    // safe to retry
//	}
//
// The classification system supports errors.Is(), errors.As(), and error
// wrapping chains.
package errors

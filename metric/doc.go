// Package metric provides Prometheus metrics for the editor service.
//
// Registry owns a private Prometheus registry pre-populated with the core
// metrics: reconciliation counts and durations, pin rewire/orphan/destroy
// totals, flow counts, API request durations, and NATS connectivity.
// Components register their own collectors under a component.name key so
// duplicate registrations fail loudly at startup.
//
// ReconcileRecorder adapts the core metrics to the reconciler's Recorder
// hook, keeping the reconcile package free of a Prometheus dependency.
package metric

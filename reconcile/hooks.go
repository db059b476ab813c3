package reconcile

import (
	"time"

	"github.com/c360/flowkit/node"
)

// TransactionHost records state about to be mutated so an external undo
// system can snapshot and restore it. The reconciler's only obligation is to
// call Modify before mutating; everything else is the host's concern.
type TransactionHost interface {
	Modify(subjects ...any)
}

// Notifier receives pin-change notifications so dependent editor UI can
// refresh. Notifications fired while the same node is already reconciling
// are ignored by the lifecycle guard.
type Notifier interface {
	NotifyPinsChanged(nodeID string)
}

// ManagedPinUpdater is the asset-level pass that may rewrite a node's
// persisted pin list before structural reconciliation. The reconciler treats
// its changes as part of the existing baseline and re-diffs against them.
type ManagedPinUpdater interface {
	TryUpdateManagedPins(n *node.Node) bool
}

// BreakpointPruner drops breakpoints bound to pins that no longer exist
// after reconstruction.
type BreakpointPruner interface {
	RemoveObsoletePinBreakpoints(nodeID string, livePinNames []string)
}

// Recorder receives reconciliation observations for metrics.
type Recorder interface {
	ReconcileCompleted(changed bool, duration time.Duration)
	PinsRewired(count int)
	PinsOrphaned(count int)
	PinsDestroyed(count int)
}

// Settings holds editor-wide reconciliation settings.
type Settings struct {
	// OrphanPinsEnabled is the global toggle for retaining removed-but-
	// connected pins as orphans. When false no orphans are ever kept.
	OrphanPinsEnabled bool
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{OrphanPinsEnabled: true}
}

// no-op collaborator defaults

type nopTransactionHost struct{}

func (nopTransactionHost) Modify(...any) {}

type nopNotifier struct{}

func (nopNotifier) NotifyPinsChanged(string) {}

type nopRecorder struct{}

func (nopRecorder) ReconcileCompleted(bool, time.Duration) {}
func (nopRecorder) PinsRewired(int)                        {}
func (nopRecorder) PinsOrphaned(int)                       {}
func (nopRecorder) PinsDestroyed(int)                      {}

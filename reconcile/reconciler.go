package reconcile

import (
	"log/slog"
	"time"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/graph"
	"github.com/c360/flowkit/node"
	"github.com/c360/flowkit/pin"
)

// Dependencies holds the reconciler's collaborators. Only Registry is
// required; the rest default to no-ops so the reconciler stays usable in
// tests and headless tooling.
type Dependencies struct {
	Registry     *node.Registry
	Managed      ManagedPinUpdater
	Transactions TransactionHost
	Notifier     Notifier
	Breakpoints  BreakpointPruner
	Metrics      Recorder
	Logger       *slog.Logger
}

// Reconciler drives pin reconciliation: it diffs a graph node's live pins
// against the node's required pin set and rewires, orphans, or destroys pins
// so user connections survive definition changes.
type Reconciler struct {
	registry     *node.Registry
	managed      ManagedPinUpdater
	transactions TransactionHost
	notifier     Notifier
	breakpoints  BreakpointPruner
	metrics      Recorder
	settings     Settings
	logger       *slog.Logger
}

// New creates a Reconciler. Deps.Registry must be set.
func New(settings Settings, deps Dependencies) (*Reconciler, error) {
	if deps.Registry == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "reconcile", "New", "registry is required")
	}

	r := &Reconciler{
		registry:     deps.Registry,
		managed:      deps.Managed,
		transactions: deps.Transactions,
		notifier:     deps.Notifier,
		breakpoints:  deps.Breakpoints,
		metrics:      deps.Metrics,
		settings:     settings,
		logger:       deps.Logger,
	}
	if r.transactions == nil {
		r.transactions = nopTransactionHost{}
	}
	if r.notifier == nil {
		r.notifier = nopNotifier{}
	}
	if r.metrics == nil {
		r.metrics = nopRecorder{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r, nil
}

// ReconstructNode reconciles a single graph node. It reports whether the
// node's pins changed. On a corrupt node (no backing instance) it aborts
// with an error and leaves prior state untouched. A node that is already
// reconciling, destroyed, or whose graph is locked or mid-save is skipped
// without error.
func (r *Reconciler) ReconstructNode(g *graph.Graph, gn *graph.Node) (bool, error) {
	if gn.Backing == nil {
		r.logger.Error("aborting pin reconstruction on corrupt node", "node_id", gn.ID)
		return false, errors.WrapFatal(errors.ErrGraphCorrupt, "reconcile", "ReconstructNode", "node has no backing instance")
	}
	if g.Locked() || g.Saving() {
		return false, nil
	}
	if !gn.BeginReconcile() {
		return false, nil
	}
	defer gn.EndReconcile()

	start := time.Now()

	dataChanged := false
	if r.managed != nil {
		dataChanged = r.managed.TryUpdateManagedPins(gn.Backing)
	}
	pinsChanged := r.tryUpdateNodePins(g, gn)

	// Checked last so it sees the persisted pins the passes above produced.
	mismatched := !r.checkGraphPinsMatchNodePins(gn)

	changed := gn.NeedsFullReconstruction() || dataChanged || pinsChanged || mismatched
	if changed {
		r.transactions.Modify(gn, gn.Backing)

		oldPins := gn.Pins
		gn.Pins = nil
		r.allocatePins(gn)

		stats := r.rewireOldPinsToNewPins(g, gn, oldPins)
		for _, p := range stats.destroyed {
			g.DisconnectPin(gn, p)
		}
		r.metrics.PinsRewired(stats.rewired)
		r.metrics.PinsOrphaned(stats.orphaned)
		r.metrics.PinsDestroyed(len(stats.destroyed))

		if r.breakpoints != nil {
			live := make([]string, 0, len(gn.Pins))
			for _, p := range gn.Pins {
				live = append(live, p.Name())
			}
			r.breakpoints.RemoveObsoletePinBreakpoints(gn.ID, live)
		}

		gn.ClearNeedsFullReconstruction()
		r.notifier.NotifyPinsChanged(gn.ID)
	}

	r.metrics.ReconcileCompleted(changed, time.Since(start))
	return changed, nil
}

// ReconstructGraph reconciles every node in the graph in placement order.
// It reports whether any node changed and returns the first corruption
// error encountered, after attempting the remaining nodes.
func (r *Reconciler) ReconstructGraph(g *graph.Graph) (bool, error) {
	var firstErr error
	changed := false
	for _, gn := range g.Nodes() {
		c, err := r.ReconstructNode(g, gn)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		changed = changed || c
	}
	return changed, firstErr
}

// tryUpdateNodePins recomputes the node's required pin set (static pins plus
// context pins) and replaces the persisted pin lists when they diverge. It
// reports whether either list changed. Kinds without context pins are left
// alone unless a full reconstruction was requested; their persisted pins only
// change through user pins or the managed-pin pass.
func (r *Reconciler) tryUpdateNodePins(g *graph.Graph, gn *graph.Node) bool {
	n := gn.Backing
	def, err := r.registry.Definition(n.Kind)
	if err != nil {
		r.logger.Warn("node kind is not registered, forcing pin rebuild",
			"node_id", gn.ID, "kind", n.Kind)
		return true
	}

	allowedToRefresh := !g.Loading() || def.RefreshContextPinsOnLoad
	shouldRefresh := (allowedToRefresh && def.SupportsContextPins) || gn.NeedsFullReconstruction()
	if !shouldRefresh {
		return false
	}

	provider := r.registry.ContextProvider(n.Kind)

	requiredInputs := append([]pin.Spec(nil), def.StaticPins(pin.DirectionInput)...)
	requiredOutputs := append([]pin.Spec(nil), def.StaticPins(pin.DirectionOutput)...)
	if provider != nil {
		requiredInputs = append(requiredInputs, provider.ContextInputs(n)...)
		requiredOutputs = append(requiredOutputs, provider.ContextOutputs(n)...)
	}
	requiredInputs = pin.CleanInvalidSpecs(requiredInputs)
	requiredOutputs = pin.CleanInvalidSpecs(requiredOutputs)

	changed := false
	if !pin.CheckSpecsMatch(requiredInputs, pin.CleanInvalidSpecs(n.Pins(pin.DirectionInput))) {
		r.transactions.Modify(n)
		n.SetPins(pin.DirectionInput, requiredInputs)
		changed = true
	}
	if !pin.CheckSpecsMatch(requiredOutputs, pin.CleanInvalidSpecs(n.Pins(pin.DirectionOutput))) {
		r.transactions.Modify(n)
		n.SetPins(pin.DirectionOutput, requiredOutputs)
		changed = true
	}
	return changed
}

// checkGraphPinsMatchNodePins reports whether the graph node's live pins
// agree with the backing node's persisted pins. Orphaned live pins and
// invalid persisted specs are excluded before comparison; the match is by
// name only, since live pins came from these specs in the first place.
func (r *Reconciler) checkGraphPinsMatchNodePins(gn *graph.Node) bool {
	n := gn.Backing
	declared := append([]pin.Spec(nil), pin.CleanInvalidSpecs(n.Pins(pin.DirectionInput))...)
	declared = append(declared, pin.CleanInvalidSpecs(n.Pins(pin.DirectionOutput))...)
	return pin.CheckInstancesMatchSpecs(pin.FilterOrphaned(gn.Pins), declared)
}

// allocatePins creates fresh pin instances from the backing node's persisted
// pins, inputs first then outputs. Specs beyond the per-direction cap are
// dropped with a warning.
func (r *Reconciler) allocatePins(gn *graph.Node) {
	for _, direction := range []pin.Direction{pin.DirectionInput, pin.DirectionOutput} {
		specs := pin.CleanInvalidSpecs(gn.Backing.Pins(direction))
		if len(specs) > pin.MaxPinsPerDirection {
			r.logger.Warn("node declares more pins than the cap allows, truncating",
				"node_id", gn.ID, "direction", string(direction), "declared", len(specs))
			specs = specs[:pin.MaxPinsPerDirection]
		}
		for _, spec := range specs {
			gn.Pins = append(gn.Pins, pin.NewInstance(spec, direction))
		}
	}
}

package reconcile

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/flowkit/graph"
	"github.com/c360/flowkit/node"
	"github.com/c360/flowkit/pin"
)

type recordingTxn struct {
	calls int
}

func (r *recordingTxn) Modify(...any) { r.calls++ }

type recordingNotifier struct {
	nodes []string
}

func (r *recordingNotifier) NotifyPinsChanged(nodeID string) {
	r.nodes = append(r.nodes, nodeID)
}

type recordingPruner struct {
	calls  int
	nodeID string
	live   []string
}

func (r *recordingPruner) RemoveObsoletePinBreakpoints(nodeID string, livePinNames []string) {
	r.calls++
	r.nodeID = nodeID
	r.live = livePinNames
}

type recordingRecorder struct {
	completed int
	changed   int
	rewired   int
	orphaned  int
	destroyed int
}

func (r *recordingRecorder) ReconcileCompleted(changed bool, _ time.Duration) {
	r.completed++
	if changed {
		r.changed++
	}
}
func (r *recordingRecorder) PinsRewired(n int)   { r.rewired += n }
func (r *recordingRecorder) PinsOrphaned(n int)  { r.orphaned += n }
func (r *recordingRecorder) PinsDestroyed(n int) { r.destroyed += n }

type managedStub struct {
	fn func(*node.Node) bool
}

func (m managedStub) TryUpdateManagedPins(n *node.Node) bool {
	if m.fn == nil {
		return false
	}
	return m.fn(n)
}

func exec(name string) pin.Spec {
	return pin.Spec{Name: name, Category: pin.CategoryExec}
}

func gateDefinition() node.Definition {
	return node.Definition{
		Kind:       "gate",
		InputPins:  []pin.Spec{exec("In"), {Name: "Condition", Category: pin.CategoryData, SubCategory: "bool"}},
		OutputPins: []pin.Spec{exec("Out")},
	}
}

// branchRegistration declares a kind whose output pins are computed from the
// node's "branches" config value.
func branchRegistration() node.Registration {
	return node.Registration{
		Definition: node.Definition{
			Kind:                "branch",
			InputPins:           []pin.Spec{exec("In")},
			SupportsContextPins: true,
		},
		ContextPins: node.ContextPinFunc{
			Outputs: func(n *node.Node) []pin.Spec {
				count, _ := n.Config["branches"].(int)
				specs := make([]pin.Spec, 0, count)
				for i := 0; i < count; i++ {
					specs = append(specs, exec(fmt.Sprintf("Branch %d", i)))
				}
				return specs
			},
		},
	}
}

func testRegistry(t *testing.T, regs ...node.Registration) *node.Registry {
	t.Helper()
	r := node.NewRegistry()
	for _, reg := range regs {
		require.NoError(t, r.Register(reg))
	}
	return r
}

func testReconciler(t *testing.T, registry *node.Registry, mutate func(*Settings, *Dependencies)) *Reconciler {
	t.Helper()
	settings := DefaultSettings()
	deps := Dependencies{Registry: registry}
	if mutate != nil {
		mutate(&settings, &deps)
	}
	r, err := New(settings, deps)
	require.NoError(t, err)
	return r
}

// place adds a node of the given kind and runs the initial reconciliation
// that materializes its pins.
func place(t *testing.T, r *Reconciler, g *graph.Graph, registry *node.Registry, kind string) *graph.Node {
	t.Helper()
	def, err := registry.Definition(kind)
	require.NoError(t, err)
	gn, err := g.AddNode(node.New(def))
	require.NoError(t, err)
	_, err = r.ReconstructNode(g, gn)
	require.NoError(t, err)
	return gn
}

func connect(t *testing.T, g *graph.Graph, from *graph.Node, fromPin string, to *graph.Node, toPin string) {
	t.Helper()
	a := pin.Ref{NodeID: from.ID, PinID: from.PinByName(fromPin, pin.DirectionOutput).ID}
	b := pin.Ref{NodeID: to.ID, PinID: to.PinByName(toPin, pin.DirectionInput).ID}
	require.NoError(t, g.Connect(a, b))
}

func pinNames(pins []*pin.Instance) []string {
	names := make([]string, 0, len(pins))
	for _, p := range pins {
		names = append(names, p.Name())
	}
	return names
}

func TestReconcilerRequiresRegistry(t *testing.T) {
	_, err := New(DefaultSettings(), Dependencies{})
	assert.Error(t, err)
}

func TestReconstructNodeInitialAllocation(t *testing.T) {
	registry := testRegistry(t, node.Registration{Definition: gateDefinition()})
	r := testReconciler(t, registry, nil)
	g := graph.New("flow")

	gn, err := g.AddNode(node.New(gateDefinition()))
	require.NoError(t, err)
	assert.Equal(t, graph.StateUninitialized, gn.State())

	changed, err := r.ReconstructNode(g, gn)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, graph.StateStable, gn.State())
	assert.Equal(t, []string{"In", "Condition"}, pinNames(gn.InputPins()))
	assert.Equal(t, []string{"Out"}, pinNames(gn.OutputPins()))
}

func TestReconstructNodeIdempotent(t *testing.T) {
	registry := testRegistry(t, node.Registration{Definition: gateDefinition()})
	r := testReconciler(t, registry, nil)
	g := graph.New("flow")

	a := place(t, r, g, registry, "gate")
	b := place(t, r, g, registry, "gate")
	connect(t, g, a, "Out", b, "In")

	before := append([]*pin.Instance(nil), b.Pins...)
	changed, err := r.ReconstructNode(g, b)
	require.NoError(t, err)
	assert.False(t, changed)

	// a no-change pass must not even reallocate the instances
	require.Len(t, b.Pins, len(before))
	for i := range before {
		assert.Same(t, before[i], b.Pins[i])
	}
	assert.NoError(t, g.Validate())
}

func TestReconstructNodeCorruptBacking(t *testing.T) {
	registry := testRegistry(t, node.Registration{Definition: gateDefinition()})
	r := testReconciler(t, registry, nil)
	g := graph.New("flow")

	gn := place(t, r, g, registry, "gate")
	pinsBefore := append([]*pin.Instance(nil), gn.Pins...)
	gn.Backing = nil

	changed, err := r.ReconstructNode(g, gn)
	assert.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, pinsBefore, gn.Pins)
}

func TestReconstructNodeSkipsLockedAndSavingGraphs(t *testing.T) {
	registry := testRegistry(t, branchRegistration())
	r := testReconciler(t, registry, nil)
	g := graph.New("flow")

	gn := place(t, r, g, registry, "branch")
	gn.Backing.Config["branches"] = 2

	t.Run("locked", func(t *testing.T) {
		g.SetLocked(true)
		changed, err := r.ReconstructNode(g, gn)
		require.NoError(t, err)
		assert.False(t, changed)
		g.SetLocked(false)
	})

	t.Run("saving", func(t *testing.T) {
		g.SetSaving(true)
		changed, err := r.ReconstructNode(g, gn)
		require.NoError(t, err)
		assert.False(t, changed)
		g.SetSaving(false)
	})

	// once unlocked the pending context pins come through
	changed, err := r.ReconstructNode(g, gn)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"Branch 0", "Branch 1"}, pinNames(gn.OutputPins()))
}

func TestReconstructNodeReentrancyRefused(t *testing.T) {
	registry := testRegistry(t, node.Registration{Definition: gateDefinition()})
	g := graph.New("flow")

	var r *Reconciler
	var reentrant bool
	notifier := reentrantNotifier{fn: func(nodeID string) {
		gn, err := g.NodeByID(nodeID)
		require.NoError(t, err)
		changed, err := r.ReconstructNode(g, gn)
		require.NoError(t, err)
		reentrant = true
		assert.False(t, changed)
	}}
	r = testReconciler(t, registry, func(_ *Settings, d *Dependencies) {
		d.Notifier = notifier
	})

	gn, err := g.AddNode(node.New(gateDefinition()))
	require.NoError(t, err)
	changed, err := r.ReconstructNode(g, gn)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, reentrant, "notifier should have fired during the pass")
}

type reentrantNotifier struct {
	fn func(string)
}

func (n reentrantNotifier) NotifyPinsChanged(nodeID string) { n.fn(nodeID) }

func TestContextPinRecompute(t *testing.T) {
	registry := testRegistry(t, branchRegistration())
	r := testReconciler(t, registry, nil)
	g := graph.New("flow")

	gn := place(t, r, g, registry, "branch")
	assert.Empty(t, gn.OutputPins())

	gn.Backing.Config["branches"] = 3
	changed, err := r.ReconstructNode(g, gn)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"Branch 0", "Branch 1", "Branch 2"}, pinNames(gn.OutputPins()))

	t.Run("shrink keeps connected pin as orphan", func(t *testing.T) {
		sinkRegistry := testRegistry(t, node.Registration{Definition: gateDefinition()}, branchRegistration())
		rr := testReconciler(t, sinkRegistry, nil)
		sink := place(t, rr, g, sinkRegistry, "gate")
		connect(t, g, gn, "Branch 2", sink, "In")

		gn.Backing.Config["branches"] = 2
		changed, err := rr.ReconstructNode(g, gn)
		require.NoError(t, err)
		assert.True(t, changed)

		outputs := gn.OutputPins()
		require.Equal(t, []string{"Branch 0", "Branch 1", "Branch 2"}, pinNames(outputs))
		orphan := outputs[2]
		assert.True(t, orphan.Orphaned)
		assert.True(t, orphan.NotConnectable)
		assert.True(t, orphan.Connected())
		assert.NoError(t, g.Validate())
	})
}

func TestContextPinsOnLoad(t *testing.T) {
	t.Run("held back by default", func(t *testing.T) {
		registry := testRegistry(t, branchRegistration())
		r := testReconciler(t, registry, nil)
		g := graph.New("flow")
		gn := place(t, r, g, registry, "branch")

		gn.Backing.Config["branches"] = 2
		g.SetLoading(true)
		defer g.SetLoading(false)

		changed, err := r.ReconstructNode(g, gn)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Empty(t, gn.OutputPins())
	})

	t.Run("refreshed when the kind opts in", func(t *testing.T) {
		reg := branchRegistration()
		reg.Definition.RefreshContextPinsOnLoad = true
		registry := testRegistry(t, reg)
		r := testReconciler(t, registry, nil)
		g := graph.New("flow")
		gn := place(t, r, g, registry, "branch")

		gn.Backing.Config["branches"] = 2
		g.SetLoading(true)
		defer g.SetLoading(false)

		changed, err := r.ReconstructNode(g, gn)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, []string{"Branch 0", "Branch 1"}, pinNames(gn.OutputPins()))
	})
}

func TestConnectionPreservationAcrossReorder(t *testing.T) {
	registry := testRegistry(t, node.Registration{Definition: gateDefinition()})
	r := testReconciler(t, registry, nil)
	g := graph.New("flow")

	a := place(t, r, g, registry, "gate")
	b := place(t, r, g, registry, "gate")
	connect(t, g, a, "Out", b, "In")

	// simulate a definition update that reorders the persisted inputs; the
	// match check is order-independent, so the rebuild has to be requested
	b.Backing.SetPins(pin.DirectionInput, []pin.Spec{
		{Name: "Condition", Category: pin.CategoryData, SubCategory: "bool"},
		exec("In"),
	})
	b.SetNeedsFullReconstruction()

	changed, err := r.ReconstructNode(g, b)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, []string{"Condition", "In"}, pinNames(b.InputPins()))
	in := b.PinByName("In", pin.DirectionInput)
	require.NotNil(t, in)
	assert.True(t, in.Connected())
	assert.NoError(t, g.Validate())
}

func TestRewireScenario(t *testing.T) {
	// inputs [In, A, B] with B connected; the schema becomes [In, B, C].
	// B keeps its connection, A is discarded (unconnected), C arrives fresh.
	def := node.Definition{
		Kind:       "scenario",
		InputPins:  []pin.Spec{exec("In"), exec("A"), exec("B")},
		OutputPins: []pin.Spec{exec("Out")},
	}
	registry := testRegistry(t, node.Registration{Definition: def})
	r := testReconciler(t, registry, nil)
	g := graph.New("flow")

	src := place(t, r, g, registry, "scenario")
	dst := place(t, r, g, registry, "scenario")
	connect(t, g, src, "Out", dst, "B")

	dst.Backing.SetPins(pin.DirectionInput, []pin.Spec{exec("In"), exec("B"), exec("C")})

	changed, err := r.ReconstructNode(g, dst)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, []string{"In", "B", "C"}, pinNames(dst.InputPins()))
	assert.True(t, dst.PinByName("B", pin.DirectionInput).Connected())
	assert.False(t, dst.PinByName("C", pin.DirectionInput).Connected())
	assert.NoError(t, g.Validate())
}

func TestOrphanRetention(t *testing.T) {
	def := node.Definition{
		Kind:       "shrinking",
		InputPins:  []pin.Spec{exec("A"), exec("B")},
		OutputPins: []pin.Spec{exec("Out")},
	}

	setup := func(t *testing.T, mutate func(*Settings, *Dependencies)) (*Reconciler, *graph.Graph, *graph.Node) {
		registry := testRegistry(t, node.Registration{Definition: def})
		r := testReconciler(t, registry, mutate)
		g := graph.New("flow")
		src := place(t, r, g, registry, "shrinking")
		dst := place(t, r, g, registry, "shrinking")
		connect(t, g, src, "Out", dst, "A")
		// both A and B vanish from the schema
		dst.Backing.SetPins(pin.DirectionInput, nil)
		return r, g, dst
	}

	t.Run("connected pin kept, unconnected discarded", func(t *testing.T) {
		r, g, dst := setup(t, nil)
		changed, err := r.ReconstructNode(g, dst)
		require.NoError(t, err)
		assert.True(t, changed)

		inputs := dst.InputPins()
		require.Len(t, inputs, 1)
		assert.Equal(t, "A", inputs[0].Name())
		assert.True(t, inputs[0].Orphaned)
		assert.True(t, inputs[0].NotConnectable)
		assert.True(t, inputs[0].Connected())
		assert.NoError(t, g.Validate())
	})

	t.Run("orphans come after canonical pins", func(t *testing.T) {
		r, g, dst := setup(t, nil)
		_, err := r.ReconstructNode(g, dst)
		require.NoError(t, err)

		// the output pin is canonical, the orphaned input trails it
		require.Len(t, dst.Pins, 2)
		assert.Equal(t, "Out", dst.Pins[0].Name())
		assert.Equal(t, "A", dst.Pins[1].Name())
	})

	t.Run("global toggle off discards everything", func(t *testing.T) {
		r, g, dst := setup(t, func(s *Settings, _ *Dependencies) {
			s.OrphanPinsEnabled = false
		})
		_, err := r.ReconstructNode(g, dst)
		require.NoError(t, err)
		assert.Empty(t, dst.InputPins())
		assert.NoError(t, g.Validate())
	})

	t.Run("node opt-out discards everything", func(t *testing.T) {
		r, g, dst := setup(t, nil)
		dst.Backing.DisableOrphanPinSaving = true
		_, err := r.ReconstructNode(g, dst)
		require.NoError(t, err)
		assert.Empty(t, dst.InputPins())
		assert.NoError(t, g.Validate())
	})

	t.Run("hidden pin never orphaned", func(t *testing.T) {
		r, g, dst := setup(t, nil)
		dst.PinByName("A", pin.DirectionInput).Hidden = true
		_, err := r.ReconstructNode(g, dst)
		require.NoError(t, err)
		assert.Empty(t, dst.InputPins())
		assert.NoError(t, g.Validate())
	})

	t.Run("pin flagged unsaveable never orphaned", func(t *testing.T) {
		r, g, dst := setup(t, nil)
		dst.PinByName("A", pin.DirectionInput).SaveIfOrphaned = false
		_, err := r.ReconstructNode(g, dst)
		require.NoError(t, err)
		assert.Empty(t, dst.InputPins())
		assert.NoError(t, g.Validate())
	})

	t.Run("kind save mode none discards everything", func(t *testing.T) {
		noneDef := def
		noneDef.Kind = "shrinking-none"
		noneDef.OrphanSaveMode = node.OrphanSaveNone
		registry := testRegistry(t,
			node.Registration{Definition: def},
			node.Registration{Definition: noneDef},
		)
		r := testReconciler(t, registry, nil)
		g := graph.New("flow")
		src := place(t, r, g, registry, "shrinking")
		dst := place(t, r, g, registry, "shrinking-none")
		connect(t, g, src, "Out", dst, "A")
		dst.Backing.SetPins(pin.DirectionInput, nil)

		_, err := r.ReconstructNode(g, dst)
		require.NoError(t, err)
		assert.Empty(t, dst.InputPins())
		assert.NoError(t, g.Validate())
	})

	t.Run("orphan reconnects when schema restores the pin", func(t *testing.T) {
		r, g, dst := setup(t, nil)
		_, err := r.ReconstructNode(g, dst)
		require.NoError(t, err)
		require.True(t, dst.InputPins()[0].Orphaned)

		dst.Backing.SetPins(pin.DirectionInput, []pin.Spec{exec("A")})
		changed, err := r.ReconstructNode(g, dst)
		require.NoError(t, err)
		assert.True(t, changed)

		inputs := dst.InputPins()
		require.Len(t, inputs, 1)
		assert.False(t, inputs[0].Orphaned)
		assert.True(t, inputs[0].Connected())
		assert.NoError(t, g.Validate())
	})
}

func TestDuplicateNamesConsumeDistinctSlots(t *testing.T) {
	def := node.Definition{
		Kind:       "dup",
		InputPins:  []pin.Spec{exec("X"), exec("X")},
		OutputPins: []pin.Spec{exec("Out")},
	}
	registry := testRegistry(t, node.Registration{Definition: def})
	r := testReconciler(t, registry, nil)
	g := graph.New("flow")

	src := place(t, r, g, registry, "dup")
	dst := place(t, r, g, registry, "dup")

	inputs := dst.InputPins()
	require.Len(t, inputs, 2)
	out := pin.Ref{NodeID: src.ID, PinID: src.PinByName("Out", pin.DirectionOutput).ID}
	require.NoError(t, g.Connect(out, pin.Ref{NodeID: dst.ID, PinID: inputs[0].ID}))
	require.NoError(t, g.Connect(out, pin.Ref{NodeID: dst.ID, PinID: inputs[1].ID}))

	dst.SetNeedsFullReconstruction()
	changed, err := r.ReconstructNode(g, dst)
	require.NoError(t, err)
	assert.True(t, changed)

	inputs = dst.InputPins()
	require.Len(t, inputs, 2)
	assert.NotEqual(t, inputs[0].ID, inputs[1].ID)
	assert.True(t, inputs[0].Connected())
	assert.True(t, inputs[1].Connected())
	assert.NoError(t, g.Validate())
}

func TestNeedsFullReconstructionForcesRebuild(t *testing.T) {
	registry := testRegistry(t, node.Registration{Definition: gateDefinition()})
	r := testReconciler(t, registry, nil)
	g := graph.New("flow")

	gn := place(t, r, g, registry, "gate")
	oldIn := gn.PinByName("In", pin.DirectionInput)

	gn.SetNeedsFullReconstruction()
	changed, err := r.ReconstructNode(g, gn)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, gn.NeedsFullReconstruction())

	newIn := gn.PinByName("In", pin.DirectionInput)
	require.NotNil(t, newIn)
	assert.NotEqual(t, oldIn.ID, newIn.ID)
}

func TestPinCapTruncatesExcess(t *testing.T) {
	reg := node.Registration{
		Definition: node.Definition{
			Kind:                "wide",
			SupportsContextPins: true,
		},
		ContextPins: node.ContextPinFunc{
			Outputs: func(*node.Node) []pin.Spec {
				specs := make([]pin.Spec, 0, pin.MaxPinsPerDirection+10)
				for i := 0; i < pin.MaxPinsPerDirection+10; i++ {
					specs = append(specs, exec(fmt.Sprintf("Out %d", i)))
				}
				return specs
			},
		},
	}
	registry := testRegistry(t, reg)
	r := testReconciler(t, registry, nil)
	g := graph.New("flow")

	gn := place(t, r, g, registry, "wide")
	assert.Len(t, gn.OutputPins(), pin.MaxPinsPerDirection)
}

func TestManagedPinPassTriggersRebuild(t *testing.T) {
	registry := testRegistry(t, node.Registration{Definition: gateDefinition()})

	invoked := 0
	r := testReconciler(t, registry, func(_ *Settings, d *Dependencies) {
		d.Managed = managedStub{fn: func(n *node.Node) bool {
			invoked++
			if invoked > 1 {
				return false
			}
			n.SetPins(pin.DirectionInput, append(n.Pins(pin.DirectionInput),
				pin.Spec{Name: "Payload", Category: pin.CategoryData, SubCategory: "string"}))
			return true
		}}
	})
	g := graph.New("flow")

	gn := place(t, r, g, registry, "gate")
	assert.Equal(t, []string{"In", "Condition", "Payload"}, pinNames(gn.InputPins()))
	assert.Equal(t, 1, invoked)

	changed, err := r.ReconstructNode(g, gn)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestCollaboratorsObserveChanges(t *testing.T) {
	registry := testRegistry(t, node.Registration{Definition: gateDefinition()})

	txn := &recordingTxn{}
	notifier := &recordingNotifier{}
	pruner := &recordingPruner{}
	recorder := &recordingRecorder{}
	r := testReconciler(t, registry, func(_ *Settings, d *Dependencies) {
		d.Transactions = txn
		d.Notifier = notifier
		d.Breakpoints = pruner
		d.Metrics = recorder
	})
	g := graph.New("flow")

	a := place(t, r, g, registry, "gate")
	b := place(t, r, g, registry, "gate")
	connect(t, g, a, "Out", b, "In")

	b.Backing.SetPins(pin.DirectionInput, []pin.Spec{exec("In")})
	changed, err := r.ReconstructNode(g, b)
	require.NoError(t, err)
	require.True(t, changed)

	assert.Positive(t, txn.calls)
	assert.Contains(t, notifier.nodes, b.ID)
	assert.Equal(t, b.ID, pruner.nodeID)
	assert.ElementsMatch(t, []string{"In", "Out"}, pruner.live)

	assert.Equal(t, 3, recorder.completed)
	assert.Equal(t, 3, recorder.changed)
	assert.Equal(t, 1, recorder.destroyed, "the unconnected Condition pin is destroyed")

	// a clean follow-up pass is observed but not counted as a change
	changed, err = r.ReconstructNode(g, b)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 4, recorder.completed)
	assert.Equal(t, 3, recorder.changed)
}

func TestReconstructGraph(t *testing.T) {
	registry := testRegistry(t, node.Registration{Definition: gateDefinition()})
	r := testReconciler(t, registry, nil)
	g := graph.New("flow")

	for i := 0; i < 3; i++ {
		_, err := g.AddNode(node.New(gateDefinition()))
		require.NoError(t, err)
	}

	changed, err := r.ReconstructGraph(g)
	require.NoError(t, err)
	assert.True(t, changed)
	for _, gn := range g.Nodes() {
		assert.Equal(t, graph.StateStable, gn.State())
	}

	changed, err = r.ReconstructGraph(g)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestUnknownKindForcesRebuild(t *testing.T) {
	registry := testRegistry(t, node.Registration{Definition: gateDefinition()})
	r := testReconciler(t, registry, nil)
	g := graph.New("flow")

	gn := place(t, r, g, registry, "gate")
	gn.Backing.Kind = "vanished"

	changed, err := r.ReconstructNode(g, gn)
	require.NoError(t, err)
	assert.True(t, changed)
	// persisted pins are untouched, so the live pins are rebuilt from them
	assert.Equal(t, []string{"In", "Condition"}, pinNames(gn.InputPins()))
}

func TestSelfConnectionSurvivesRebuild(t *testing.T) {
	registry := testRegistry(t, node.Registration{Definition: gateDefinition()})
	r := testReconciler(t, registry, nil)
	g := graph.New("flow")

	gn := place(t, r, g, registry, "gate")
	connect(t, g, gn, "Out", gn, "In")
	gn.SetNeedsFullReconstruction()

	changed, err := r.ReconstructNode(g, gn)
	require.NoError(t, err)
	assert.True(t, changed)

	// both endpoints live on the same node, so the rewire has to repoint
	// each side at the other's replacement instance
	in := gn.PinByName("In", pin.DirectionInput)
	out := gn.PinByName("Out", pin.DirectionOutput)
	require.NotNil(t, in)
	require.NotNil(t, out)
	assert.True(t, in.Connected())
	assert.True(t, out.Connected())
	assert.True(t, in.HasLink(pin.Ref{NodeID: gn.ID, PinID: out.ID}))
	assert.True(t, out.HasLink(pin.Ref{NodeID: gn.ID, PinID: in.ID}))
	require.Len(t, in.Links, 1)
	require.Len(t, out.Links, 1)
	assert.NoError(t, g.Validate())

	// a second steady-state pass must see nothing left to do
	changed, err = r.ReconstructNode(g, gn)
	require.NoError(t, err)
	assert.False(t, changed)
}

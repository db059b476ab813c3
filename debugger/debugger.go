package debugger

import (
	"log/slog"
	"sync"
)

// Breakpoint is a single node or pin breakpoint. Hit state is transient and
// never persisted; enablement is.
type Breakpoint struct {
	Enabled bool `yaml:"enabled"`

	hit bool
}

// Hit reports whether the breakpoint was hit since the last resume.
func (b *Breakpoint) Hit() bool { return b != nil && b.hit }

// NodeBreakpoints holds the breakpoints attached to one node: an optional
// node-level breakpoint plus per-pin breakpoints keyed by pin name.
type NodeBreakpoints struct {
	Node *Breakpoint            `yaml:"node,omitempty"`
	Pins map[string]*Breakpoint `yaml:"pins,omitempty"`
}

func (n *NodeBreakpoints) empty() bool {
	return n.Node == nil && len(n.Pins) == 0
}

// PauseHandler pauses and resumes whatever session the debugger is attached
// to when an enabled breakpoint is hit.
type PauseHandler interface {
	SetPaused(paused bool)
}

type nopPauseHandler struct{}

func (nopPauseHandler) SetPaused(bool) {}

// Subsystem tracks node and pin breakpoints across flows and persists them
// to a settings file so they survive editor restarts.
type Subsystem struct {
	mu     sync.RWMutex
	nodes  map[string]*NodeBreakpoints
	path   string
	pause  PauseHandler
	logger *slog.Logger
}

// New creates a Subsystem persisting to the given settings path. An empty
// path disables persistence. Existing settings at the path are loaded;
// a missing file is not an error.
func New(path string, pause PauseHandler, logger *slog.Logger) (*Subsystem, error) {
	if pause == nil {
		pause = nopPauseHandler{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Subsystem{
		nodes:  make(map[string]*NodeBreakpoints),
		path:   path,
		pause:  pause,
		logger: logger,
	}
	if path != "" {
		if err := s.loadSettings(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Subsystem) entry(nodeID string) *NodeBreakpoints {
	nb, ok := s.nodes[nodeID]
	if !ok {
		nb = &NodeBreakpoints{}
		s.nodes[nodeID] = nb
	}
	return nb
}

// AddNodeBreakpoint sets an enabled node-level breakpoint.
func (s *Subsystem) AddNodeBreakpoint(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entry(nodeID).Node = &Breakpoint{Enabled: true}
	s.saveSettings()
}

// AddPinBreakpoint sets an enabled breakpoint on a pin.
func (s *Subsystem) AddPinBreakpoint(nodeID, pinName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nb := s.entry(nodeID)
	if nb.Pins == nil {
		nb.Pins = make(map[string]*Breakpoint)
	}
	nb.Pins[pinName] = &Breakpoint{Enabled: true}
	s.saveSettings()
}

// RemoveAllBreakpoints drops every breakpoint attached to the node.
func (s *Subsystem) RemoveAllBreakpoints(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[nodeID]; ok {
		delete(s.nodes, nodeID)
		s.saveSettings()
	}
}

// RemoveNodeBreakpoint removes the node-level breakpoint. The entry survives
// while pin breakpoints remain.
func (s *Subsystem) RemoveNodeBreakpoint(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nb, ok := s.nodes[nodeID]
	if !ok {
		return
	}
	nb.Node = nil
	if nb.empty() {
		delete(s.nodes, nodeID)
	}
	s.saveSettings()
}

// RemovePinBreakpoint removes one pin breakpoint, dropping the node entry
// when nothing remains on it.
func (s *Subsystem) RemovePinBreakpoint(nodeID, pinName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nb, ok := s.nodes[nodeID]
	if !ok {
		return
	}
	delete(nb.Pins, pinName)
	if nb.empty() {
		delete(s.nodes, nodeID)
	}
	s.saveSettings()
}

// ToggleNodeBreakpoint adds the node breakpoint if absent, removes it if present.
func (s *Subsystem) ToggleNodeBreakpoint(nodeID string) {
	if s.nodeBreakpoint(nodeID) == nil {
		s.AddNodeBreakpoint(nodeID)
	} else {
		s.RemoveNodeBreakpoint(nodeID)
	}
}

// TogglePinBreakpoint adds the pin breakpoint if absent, removes it if present.
func (s *Subsystem) TogglePinBreakpoint(nodeID, pinName string) {
	if s.pinBreakpoint(nodeID, pinName) == nil {
		s.AddPinBreakpoint(nodeID, pinName)
	} else {
		s.RemovePinBreakpoint(nodeID, pinName)
	}
}

// SetNodeBreakpointEnabled enables or disables an existing node breakpoint.
func (s *Subsystem) SetNodeBreakpointEnabled(nodeID string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if nb, ok := s.nodes[nodeID]; ok && nb.Node != nil {
		nb.Node.Enabled = enabled
		s.saveSettings()
	}
}

// SetPinBreakpointEnabled enables or disables an existing pin breakpoint.
func (s *Subsystem) SetPinBreakpointEnabled(nodeID, pinName string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if nb, ok := s.nodes[nodeID]; ok {
		if bp, ok := nb.Pins[pinName]; ok {
			bp.Enabled = enabled
			s.saveSettings()
		}
	}
}

// IsNodeBreakpointEnabled reports whether an enabled node breakpoint exists.
func (s *Subsystem) IsNodeBreakpointEnabled(nodeID string) bool {
	bp := s.nodeBreakpoint(nodeID)
	return bp != nil && bp.Enabled
}

// IsPinBreakpointEnabled reports whether an enabled pin breakpoint exists.
func (s *Subsystem) IsPinBreakpointEnabled(nodeID, pinName string) bool {
	bp := s.pinBreakpoint(nodeID, pinName)
	return bp != nil && bp.Enabled
}

// IsNodeBreakpointHit reports whether the node breakpoint was hit since the
// last resume.
func (s *Subsystem) IsNodeBreakpointHit(nodeID string) bool {
	return s.nodeBreakpoint(nodeID).Hit()
}

// IsPinBreakpointHit reports whether the pin breakpoint was hit since the
// last resume.
func (s *Subsystem) IsPinBreakpointHit(nodeID, pinName string) bool {
	return s.pinBreakpoint(nodeID, pinName).Hit()
}

// OnPinTriggered is the signal hook: a pin fired during playback. A matching
// enabled pin breakpoint is marked hit, and a node breakpoint waits on any
// pin of its node. Either hit pauses the session.
func (s *Subsystem) OnPinTriggered(nodeID, pinName string) {
	s.mu.Lock()

	paused := false
	nb, ok := s.nodes[nodeID]
	if ok {
		if bp := nb.Pins[pinName]; bp != nil && bp.Enabled {
			bp.hit = true
			paused = true
		}
		if nb.Node != nil && nb.Node.Enabled {
			nb.Node.hit = true
			paused = true
		}
	}
	s.mu.Unlock()

	if paused {
		s.pause.SetPaused(true)
	}
}

// ResumeSession unpauses playback and clears all hit markers.
func (s *Subsystem) ResumeSession() {
	s.mu.Lock()
	for _, nb := range s.nodes {
		if nb.Node != nil {
			nb.Node.hit = false
		}
		for _, bp := range nb.Pins {
			bp.hit = false
		}
	}
	s.mu.Unlock()

	s.pause.SetPaused(false)
}

// RemoveObsoletePinBreakpoints drops pin breakpoints whose pins no longer
// exist on the node. The reconciler calls this after rebuilding pins.
func (s *Subsystem) RemoveObsoletePinBreakpoints(nodeID string, livePinNames []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nb, ok := s.nodes[nodeID]
	if !ok {
		return
	}

	live := make(map[string]struct{}, len(livePinNames))
	for _, name := range livePinNames {
		live[name] = struct{}{}
	}

	removed := false
	for name := range nb.Pins {
		if _, ok := live[name]; !ok {
			delete(nb.Pins, name)
			removed = true
		}
	}
	if nb.empty() {
		delete(s.nodes, nodeID)
		removed = true
	}
	if removed {
		s.saveSettings()
	}
}

func (s *Subsystem) nodeBreakpoint(nodeID string) *Breakpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if nb, ok := s.nodes[nodeID]; ok {
		return nb.Node
	}
	return nil
}

func (s *Subsystem) pinBreakpoint(nodeID, pinName string) *Breakpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if nb, ok := s.nodes[nodeID]; ok {
		return nb.Pins[pinName]
	}
	return nil
}

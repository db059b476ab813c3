package service

import (
	"bufio"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/flowstore"
	"github.com/c360/flowkit/graph"
	"github.com/c360/flowkit/node"
	"github.com/c360/flowkit/pin"
)

// maxRequestBody bounds editor API request bodies. Flows are small JSON
// documents; anything near this limit is malformed or hostile.
const maxRequestBody = 4 << 20

// Handler returns the editor API routes wrapped with request metrics.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/kinds", s.handleListKinds)

	mux.HandleFunc("POST /api/flows", s.handleCreateFlow)
	mux.HandleFunc("GET /api/flows", s.handleListFlows)
	mux.HandleFunc("GET /api/flows/{id}", s.handleGetFlow)
	mux.HandleFunc("DELETE /api/flows/{id}", s.handleDeleteFlow)

	mux.HandleFunc("POST /api/flows/{id}/nodes", s.handleAddNode)
	mux.HandleFunc("DELETE /api/flows/{id}/nodes/{node}", s.handleRemoveNode)
	mux.HandleFunc("POST /api/flows/{id}/nodes/{node}/reconstruct", s.handleReconstructNode)
	mux.HandleFunc("POST /api/flows/{id}/nodes/{node}/pins", s.handleAddUserPin)
	mux.HandleFunc("DELETE /api/flows/{id}/nodes/{node}/pins/{pin}", s.handleRemoveUserPin)

	mux.HandleFunc("POST /api/flows/{id}/connections", s.handleConnect)
	mux.HandleFunc("DELETE /api/flows/{id}/connections", s.handleDisconnect)

	mux.HandleFunc("POST /api/debug/nodes/{node}/breakpoint", s.handleToggleNodeBreakpoint)
	mux.HandleFunc("POST /api/debug/nodes/{node}/pins/{pin}/breakpoint", s.handleTogglePinBreakpoint)
	mux.HandleFunc("POST /api/debug/resume", s.handleResume)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /ws", s.hub)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return s.instrument(mux)
}

// instrument records request counts and durations around the mux.
func (s *Service) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.requestsServed.Add(1)

		if s.metrics == nil {
			return
		}
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.Metrics.RequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).
			Observe(time.Since(start).Seconds())
	})
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack delegates to the underlying writer so websocket upgrades work
// through the instrumentation wrapper.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, stderrors.New("underlying ResponseWriter does not implement http.Hijacker")
	}
	return hj.Hijack()
}

// kindSummary is the list-kinds response entry.
type kindSummary struct {
	Kind                string `json:"kind"`
	Description         string `json:"description,omitempty"`
	Version             string `json:"version,omitempty"`
	SupportsContextPins bool   `json:"supports_context_pins,omitempty"`
	CanUserAddInput     bool   `json:"can_user_add_input,omitempty"`
	CanUserAddOutput    bool   `json:"can_user_add_output,omitempty"`
}

func (s *Service) handleListKinds(w http.ResponseWriter, _ *http.Request) {
	kinds := s.registry.ListKinds()
	summaries := make([]kindSummary, 0, len(kinds))
	for _, def := range kinds {
		summaries = append(summaries, kindSummary{
			Kind:                def.Kind,
			Description:         def.Description,
			Version:             def.Version,
			SupportsContextPins: def.SupportsContextPins,
			CanUserAddInput:     def.CanUserAddInput,
			CanUserAddOutput:    def.CanUserAddOutput,
		})
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

type createFlowRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (s *Service) handleCreateFlow(w http.ResponseWriter, r *http.Request) {
	var req createFlowRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "flow name is required")
		return
	}

	flow := &flowstore.Flow{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
	}
	if err := s.store.Create(r.Context(), flow); err != nil {
		s.recordSave(false)
		s.writeClassifiedError(w, err)
		return
	}
	s.recordSave(true)
	if s.metrics != nil {
		s.metrics.Metrics.FlowsTotal.Inc()
	}
	s.hub.Broadcast(Event{Type: "flow_created", FlowID: flow.ID})
	s.writeJSON(w, http.StatusCreated, flow)
}

// flowSummary is the list-flows response entry.
type flowSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Version     int64     `json:"version"`
	Nodes       int       `json:"nodes"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Service) handleListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := s.store.List(r.Context())
	if err != nil {
		s.writeClassifiedError(w, err)
		return
	}
	summaries := make([]flowSummary, 0, len(flows))
	for _, f := range flows {
		summaries = append(summaries, flowSummary{
			ID:          f.ID,
			Name:        f.Name,
			Description: f.Description,
			Version:     f.Version,
			Nodes:       len(f.Nodes),
			UpdatedAt:   f.UpdatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

func (s *Service) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeClassifiedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, flow)
}

func (s *Service) handleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeClassifiedError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.Metrics.FlowsTotal.Dec()
	}
	s.hub.Broadcast(Event{Type: "flow_deleted", FlowID: id})
	w.WriteHeader(http.StatusNoContent)
}

type addNodeRequest struct {
	Kind     string         `json:"kind"`
	Position graph.Position `json:"position"`
	Name     string         `json:"name,omitempty"`
}

type addNodeResponse struct {
	NodeID string          `json:"node_id"`
	Flow   *flowstore.Flow `json:"flow"`
}

func (s *Service) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var req addNodeRequest
	if !s.decode(w, r, &req) {
		return
	}

	def, err := s.registry.Definition(req.Kind)
	if err != nil {
		s.writeClassifiedError(w, err)
		return
	}

	var nodeID string
	flow, err := s.mutateFlow(r, func(g *graph.Graph) error {
		n := node.New(def)
		n.Name = req.Name
		gn, err := g.AddNode(n)
		if err != nil {
			return err
		}
		gn.Position = req.Position
		nodeID = gn.ID
		_, err = s.reconciler.ReconstructNode(g, gn)
		return err
	})
	if err != nil {
		s.writeClassifiedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, addNodeResponse{NodeID: nodeID, Flow: flow})
}

func (s *Service) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("node")
	flow, err := s.mutateFlow(r, func(g *graph.Graph) error {
		return g.RemoveNode(nodeID)
	})
	if err != nil {
		s.writeClassifiedError(w, err)
		return
	}
	// breakpoints are keyed by node ID and would otherwise linger in the
	// persisted debugger settings after the node is gone
	if s.debugger != nil {
		s.debugger.RemoveAllBreakpoints(nodeID)
	}
	s.hub.Broadcast(Event{Type: "node_removed", FlowID: flow.ID, NodeID: nodeID})
	s.writeJSON(w, http.StatusOK, flow)
}

type reconstructRequest struct {
	// Full forces reconstruction from the persisted pin set even when the
	// live pins appear to match.
	Full bool `json:"full,omitempty"`
}

type reconstructResponse struct {
	Changed bool            `json:"changed"`
	Flow    *flowstore.Flow `json:"flow"`
}

func (s *Service) handleReconstructNode(w http.ResponseWriter, r *http.Request) {
	var req reconstructRequest
	if r.ContentLength > 0 && !s.decode(w, r, &req) {
		return
	}

	var changed bool
	flow, err := s.mutateFlow(r, func(g *graph.Graph) error {
		gn, err := g.NodeByID(r.PathValue("node"))
		if err != nil {
			return err
		}
		if req.Full {
			gn.SetNeedsFullReconstruction()
		}
		changed, err = s.reconciler.ReconstructNode(g, gn)
		return err
	})
	if err != nil {
		s.writeClassifiedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reconstructResponse{Changed: changed, Flow: flow})
}

type userPinRequest struct {
	Direction pin.Direction `json:"direction"`
}

func (s *Service) handleAddUserPin(w http.ResponseWriter, r *http.Request) {
	var req userPinRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Direction != pin.DirectionInput && req.Direction != pin.DirectionOutput {
		s.writeError(w, http.StatusBadRequest, "direction must be input or output")
		return
	}

	var added pin.Spec
	flow, err := s.mutateFlow(r, func(g *graph.Graph) error {
		gn, err := g.NodeByID(r.PathValue("node"))
		if err != nil {
			return err
		}
		if gn.Backing == nil {
			return errors.WrapFatal(errors.ErrGraphCorrupt, "Service", "handleAddUserPin", "node has no backing instance")
		}
		def, err := s.registry.Definition(gn.Backing.Kind)
		if err != nil {
			return err
		}
		added, err = gn.Backing.AddUserPin(def, req.Direction)
		if err != nil {
			return err
		}
		_, err = s.reconciler.ReconstructNode(g, gn)
		return err
	})
	if err != nil {
		s.writeClassifiedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"pin": added, "flow": flow})
}

func (s *Service) handleRemoveUserPin(w http.ResponseWriter, r *http.Request) {
	direction := pin.Direction(r.URL.Query().Get("direction"))
	if direction != pin.DirectionInput && direction != pin.DirectionOutput {
		s.writeError(w, http.StatusBadRequest, "direction query parameter must be input or output")
		return
	}

	flow, err := s.mutateFlow(r, func(g *graph.Graph) error {
		gn, err := g.NodeByID(r.PathValue("node"))
		if err != nil {
			return err
		}
		if gn.Backing == nil {
			return errors.WrapFatal(errors.ErrGraphCorrupt, "Service", "handleRemoveUserPin", "node has no backing instance")
		}
		def, err := s.registry.Definition(gn.Backing.Kind)
		if err != nil {
			return err
		}
		if err := gn.Backing.RemoveUserPin(def, direction, r.PathValue("pin")); err != nil {
			return err
		}
		_, err = s.reconciler.ReconstructNode(g, gn)
		return err
	})
	if err != nil {
		s.writeClassifiedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, flow)
}

type connectionRequest struct {
	Source pin.Ref `json:"source"`
	Target pin.Ref `json:"target"`
}

func (s *Service) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !req.Source.Valid() || !req.Target.Valid() {
		s.writeError(w, http.StatusBadRequest, "source and target pin references are required")
		return
	}

	flow, err := s.mutateFlow(r, func(g *graph.Graph) error {
		return g.Connect(req.Source, req.Target)
	})
	if err != nil {
		s.writeClassifiedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, flow)
}

func (s *Service) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !req.Source.Valid() || !req.Target.Valid() {
		s.writeError(w, http.StatusBadRequest, "source and target pin references are required")
		return
	}

	flow, err := s.mutateFlow(r, func(g *graph.Graph) error {
		return g.BreakLink(req.Source, req.Target)
	})
	if err != nil {
		s.writeClassifiedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, flow)
}

func (s *Service) handleToggleNodeBreakpoint(w http.ResponseWriter, r *http.Request) {
	if s.debugger == nil {
		s.writeError(w, http.StatusNotFound, "debugger not enabled")
		return
	}
	nodeID := r.PathValue("node")
	s.debugger.ToggleNodeBreakpoint(nodeID)
	s.writeJSON(w, http.StatusOK, map[string]bool{
		"enabled": s.debugger.IsNodeBreakpointEnabled(nodeID),
	})
}

func (s *Service) handleTogglePinBreakpoint(w http.ResponseWriter, r *http.Request) {
	if s.debugger == nil {
		s.writeError(w, http.StatusNotFound, "debugger not enabled")
		return
	}
	nodeID, pinName := r.PathValue("node"), r.PathValue("pin")
	s.debugger.TogglePinBreakpoint(nodeID, pinName)
	s.writeJSON(w, http.StatusOK, map[string]bool{
		"enabled": s.debugger.IsPinBreakpointEnabled(nodeID, pinName),
	})
}

func (s *Service) handleResume(w http.ResponseWriter, _ *http.Request) {
	if s.debugger == nil {
		s.writeError(w, http.StatusNotFound, "debugger not enabled")
		return
	}
	s.debugger.ResumeSession()
	s.hub.Broadcast(Event{Type: "session_resumed"})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": s.Status().String()})
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.GetStatus())
}

// mutateFlow loads a flow, rebuilds its graph, applies the edit, reconciles
// every node, and writes the result back with the flow's version for the
// optimistic concurrency check. Load-time reconciliation runs with the
// loading flag set so context pins are only refreshed for kinds that opt in.
func (s *Service) mutateFlow(r *http.Request, edit func(*graph.Graph) error) (*flowstore.Flow, error) {
	ctx := r.Context()
	flow, err := s.store.Get(ctx, r.PathValue("id"))
	if err != nil {
		return nil, err
	}

	g, err := flow.BuildGraph()
	if err != nil {
		return nil, err
	}

	g.SetLoading(true)
	_, err = s.reconciler.ReconstructGraph(g)
	g.SetLoading(false)
	if err != nil {
		return nil, err
	}

	if err := edit(g); err != nil {
		return nil, err
	}
	if _, err := s.reconciler.ReconstructGraph(g); err != nil {
		return nil, err
	}

	updated := flowstore.FromGraph(g, flow.Name, flow.Description)
	updated.Version = flow.Version
	updated.CreatedAt = flow.CreatedAt
	updated.CreatedBy = flow.CreatedBy
	if err := s.store.Update(ctx, updated); err != nil {
		s.recordSave(false)
		return nil, err
	}
	s.recordSave(true)
	return updated, nil
}

func (s *Service) recordSave(ok bool) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	s.metrics.Metrics.FlowSavesTotal.WithLabelValues(status).Inc()
}

// decode reads and unmarshals the request body, replying with 400 on
// malformed input. It reports whether the caller should proceed.
func (s *Service) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return true
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response write failed", "error", err)
	}
}

func (s *Service) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"error": message, "status": status})
}

// writeClassifiedError maps domain errors to HTTP statuses. Sentinel checks
// run before class checks so not-found and conflict outcomes keep their
// specific codes even when wrapped as invalid.
func (s *Service) writeClassifiedError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case stderrors.Is(err, errors.ErrKeyNotFound),
		stderrors.Is(err, errors.ErrNodeNotFound),
		stderrors.Is(err, errors.ErrPinNotFound),
		stderrors.Is(err, errors.ErrKindNotFound):
		status = http.StatusNotFound
	case stderrors.Is(err, errors.ErrVersionConflict),
		stderrors.Is(err, errors.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.IsInvalid(err):
		status = http.StatusBadRequest
	case errors.IsTransient(err):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeError(w, status, err.Error())
}

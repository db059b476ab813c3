package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/flowkit/config"
	"github.com/c360/flowkit/debugger"
	flowkiterrors "github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/flowstore"
	"github.com/c360/flowkit/metric"
	"github.com/c360/flowkit/node"
	"github.com/c360/flowkit/reconcile"
)

// Status represents the service lifecycle state.
type Status int

// Status constants for the service lifecycle
const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Info holds runtime information about the service.
type Info struct {
	Name           string        `json:"name"`
	Status         Status        `json:"status"`
	StartTime      time.Time     `json:"start_time"`
	Uptime         time.Duration `json:"uptime"`
	RequestsServed int64         `json:"requests_served"`
	EditorClients  int           `json:"editor_clients"`
}

// Option is a functional option for configuring the Service.
type Option func(*Service)

// Service is the editor API: flow CRUD, graph edits that trigger pin
// reconciliation, breakpoint management, and change notifications to
// connected editor clients.
type Service struct {
	name     string
	cfg      *config.SafeConfig
	registry *node.Registry
	store    *flowstore.Store
	logger   *slog.Logger

	metrics  *metric.Registry
	debugger *debugger.Subsystem
	hub      *Hub

	reconciler *reconcile.Reconciler

	status         atomic.Value // Status
	startTime      atomic.Value // time.Time
	requestsServed atomic.Int64

	httpServer *http.Server
	group      *errgroup.Group
	cancel     context.CancelFunc
	mu         sync.Mutex
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics registry. Reconciliation counters and HTTP
// request durations are recorded when present.
func WithMetrics(registry *metric.Registry) Option {
	return func(s *Service) {
		s.metrics = registry
	}
}

// WithDebugger sets the debugger subsystem. Breakpoint endpoints return 404
// without it, and obsolete pin breakpoints are only pruned when it is set.
func WithDebugger(sub *debugger.Subsystem) Option {
	return func(s *Service) {
		s.debugger = sub
	}
}

// New creates the editor service and wires the reconciler to the service's
// collaborators: the websocket hub receives pin-change notifications, the
// metrics registry records reconciliation counters, and the debugger prunes
// breakpoints for pins that no longer exist.
func New(cfg *config.SafeConfig, registry *node.Registry, store *flowstore.Store, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, flowkiterrors.WrapInvalid(flowkiterrors.ErrMissingConfig, "Service", "New", "config required")
	}
	if registry == nil {
		return nil, flowkiterrors.WrapInvalid(flowkiterrors.ErrMissingConfig, "Service", "New", "node registry required")
	}
	if store == nil {
		return nil, flowkiterrors.WrapInvalid(flowkiterrors.ErrMissingConfig, "Service", "New", "flow store required")
	}

	s := &Service{
		name:     "flowkit-editor",
		cfg:      cfg,
		registry: registry,
		store:    store,
		logger:   slog.Default().With("service", "flowkit-editor"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.hub = NewHub(s.logger)

	settings := reconcile.Settings{
		OrphanPinsEnabled: cfg.Get().Editor.OrphanPinsEnabled,
	}
	deps := reconcile.Dependencies{
		Registry: registry,
		Logger:   s.logger,
		Notifier: s.hub,
	}
	if s.metrics != nil {
		deps.Metrics = metric.NewReconcileRecorder(s.metrics.Metrics)
	}
	if s.debugger != nil {
		deps.Breakpoints = s.debugger
	}

	reconciler, err := reconcile.New(settings, deps)
	if err != nil {
		return nil, flowkiterrors.Wrap(err, "Service", "New", "reconciler construction")
	}
	s.reconciler = reconciler

	s.status.Store(StatusStopped)
	s.startTime.Store(time.Time{})
	return s, nil
}

// Name returns the service name.
func (s *Service) Name() string { return s.name }

// Status returns the current lifecycle state.
func (s *Service) Status() Status {
	return s.status.Load().(Status)
}

// GetStatus returns current runtime information.
func (s *Service) GetStatus() Info {
	startTime := s.startTime.Load().(time.Time)
	uptime := time.Duration(0)
	if !startTime.IsZero() && s.Status() == StatusRunning {
		uptime = time.Since(startTime)
	}
	return Info{
		Name:           s.name,
		Status:         s.Status(),
		StartTime:      startTime,
		Uptime:         uptime,
		RequestsServed: s.requestsServed.Load(),
		EditorClients:  s.hub.ClientCount(),
	}
}

// Reconciler returns the pin reconciler the service constructed. Callers
// that reconcile outside a request (catalog reload, startup migration) share
// it so notifications and metrics stay consistent.
func (s *Service) Reconciler() *reconcile.Reconciler {
	return s.reconciler
}

// Hub returns the websocket hub for direct broadcasts.
func (s *Service) Hub() *Hub { return s.hub }

// Start binds the HTTP listener and serves until Stop or context
// cancellation. It returns once the listener is running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.Status()
	if current == StatusRunning || current == StatusStarting {
		return flowkiterrors.WrapInvalid(flowkiterrors.ErrAlreadyStarted, "Service", "Start", "lifecycle check")
	}
	s.status.Store(StatusStarting)

	cfg := s.cfg.Get()
	s.httpServer = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	groupCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	group, groupCtx := errgroup.WithContext(groupCtx)
	s.group = group

	server := s.httpServer
	group.Go(func() error {
		s.logger.Info("editor API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return flowkiterrors.WrapTransient(err, "Service", "Start", "http listener")
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	s.startTime.Store(time.Now())
	s.status.Store(StatusRunning)
	return nil
}

// Stop gracefully stops the service: in-flight requests drain within the
// configured shutdown timeout, then editor clients are disconnected.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.Status()
	if current == StatusStopped || current == StatusStopping {
		return nil
	}
	s.status.Store(StatusStopping)

	if s.cancel != nil {
		s.cancel()
	}
	var err error
	if s.group != nil {
		err = s.group.Wait()
	}
	s.hub.Close()

	s.status.Store(StatusStopped)
	if err != nil {
		return flowkiterrors.Wrap(err, "Service", "Stop", "shutdown")
	}
	return nil
}

func (s *Service) shutdownTimeout() time.Duration {
	timeout := s.cfg.Get().HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return timeout
}

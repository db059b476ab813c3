package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/flowkit/errors"
)

// Registry manages the registration and lifecycle of metrics on top of a
// private Prometheus registry.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics

	mu         sync.RWMutex
	registered map[string]prometheus.Collector
}

// NewRegistry creates a registry with the core metrics and Go runtime
// collectors pre-registered.
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            NewMetrics(),
		registered:         make(map[string]prometheus.Collector),
	}

	r.prometheusRegistry.MustRegister(
		r.Metrics.ReconciliationsTotal,
		r.Metrics.ReconcileDuration,
		r.Metrics.PinsRewiredTotal,
		r.Metrics.PinsOrphanedTotal,
		r.Metrics.PinsDestroyedTotal,
		r.Metrics.FlowsTotal,
		r.Metrics.FlowSavesTotal,
		r.Metrics.RequestDuration,
		r.Metrics.NATSConnected,
	)
	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Register adds a component-specific collector under component.name.
// Registering the same key twice is an error.
func (r *Registry) Register(component, name string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", component, name)
	if _, exists := r.registered[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for component %s", name, component),
			"metric", "Register", "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegistered) {
			return errors.WrapInvalid(err, "metric", "Register",
				fmt.Sprintf("prometheus conflict for metric %s", name))
		}
		return errors.WrapFatal(err, "metric", "Register", "register collector with prometheus")
	}

	r.registered[key] = collector
	return nil
}

// Unregister removes a component-specific collector. Returns false when the
// key is unknown or prometheus refuses the unregistration.
func (r *Registry) Unregister(component, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", component, name)
	collector, exists := r.registered[key]
	if !exists {
		return false
	}

	if !r.prometheusRegistry.Unregister(collector) {
		return false
	}
	delete(r.registered, key)
	return true
}

// Package metrics exposes agent activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbrock/fcm/internal/agent"
)

// Collector implements agent.Metrics using Prometheus metrics.
type Collector struct {
	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	lastCycle      prometheus.Gauge
	launches       *prometheus.CounterVec
	launchFailures *prometheus.CounterVec
	exits          *prometheus.CounterVec
	unknown        prometheus.Counter
	lost           prometheus.Counter

	registry *prometheus.Registry
}

var _ agent.Metrics = (*Collector)(nil)

// New creates a Collector with its own registry.
func New(namespace string) *Collector {
	if namespace == "" {
		namespace = "fcm"
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
	}

	c.cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of completed cycles by result",
		},
		[]string{"result"},
	)

	c.cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a cycle from scan to the last reaped module",
			Buckets:   []float64{0.1, 1, 10, 30, 60, 300, 600, 1800, 3600},
		},
	)

	c.lastCycle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time at which the last cycle finished",
		},
	)

	c.launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_launches_total",
			Help:      "Total number of module processes started",
		},
		[]string{"module"},
	)

	c.launchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_launch_failures_total",
			Help:      "Total number of module processes that could not be started",
		},
		[]string{"module"},
	)

	c.exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_exits_total",
			Help:      "Total number of reaped module processes by outcome",
		},
		[]string{"module", "outcome"},
	)

	c.unknown = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_children_total",
			Help:      "Total number of reaped children that were not launched by the current cycle",
		},
	)

	c.lost = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lost_children_total",
			Help:      "Total number of launched modules that disappeared without being reaped",
		},
	)

	c.registry.MustRegister(
		c.cycles,
		c.cycleDuration,
		c.lastCycle,
		c.launches,
		c.launchFailures,
		c.exits,
		c.unknown,
		c.lost,
	)

	return c
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ModuleLaunched records a started module.
func (c *Collector) ModuleLaunched(name string) {
	c.launches.WithLabelValues(name).Inc()
}

// LaunchFailed records a module that could not be started.
func (c *Collector) LaunchFailed(name string) {
	c.launchFailures.WithLabelValues(name).Inc()
}

// ModuleExited records a reaped module.
func (c *Collector) ModuleExited(r agent.ExitReport) {
	c.exits.WithLabelValues(r.Name, outcome(r)).Inc()
}

// CycleCompleted records the end of a cycle.
func (c *Collector) CycleCompleted(s agent.CycleSummary, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	c.cycles.WithLabelValues(result).Inc()
	c.cycleDuration.Observe(s.Duration.Seconds())
	c.lastCycle.Set(float64(time.Now().Unix()))
	c.unknown.Add(float64(s.Unknown))
	c.lost.Add(float64(s.Lost))
}

func outcome(r agent.ExitReport) string {
	switch {
	case r.Kind == agent.KindSignaled:
		return "signaled"
	case r.Code == 0:
		return "success"
	default:
		return "failure"
	}
}

// Handler returns an HTTP handler serving the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Listen binds addr so that address errors surface before the agent starts.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	return ln, nil
}

// Serve serves /metrics on ln until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, ln net.Listener, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving metrics: %w", err)
	}
	return nil
}

// Package metrics processes and exposes Prometheus metrics for build sessions.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mlchallenge/forge/pkg/types"
)

var metrics *Metrics

// Metric holds data points from a single Forge build session.
type Metric struct {
	Built          int   // Number of images built successfully.
	Failed         int   // Number of targets whose build failed.
	Pruned         int   // Number of stale image tags removed.
	SpaceReclaimed int64 // Bytes reclaimed by pruning.
}

// Metrics handles processing and exposing build session metrics.
type Metrics struct {
	channel        chan *Metric       // Channel for queuing metrics.
	built          prometheus.Gauge   // Gauge for images built in the last session.
	failed         prometheus.Gauge   // Gauge for failed targets in the last session.
	pruned         prometheus.Gauge   // Gauge for tags pruned in the last session.
	builtTotal     prometheus.Counter // Counter for total images built.
	failedTotal    prometheus.Counter // Counter for total failed builds.
	reclaimedTotal prometheus.Counter // Counter for total bytes reclaimed.
	sessions       prometheus.Counter // Counter for total sessions.
	dropped        prometheus.Counter // Counter for dropped metrics.
	stopCh         chan struct{}      // Channel for shutdown signaling.
	shutdownOnce   sync.Once          // Ensures shutdown is called only once.
	//nolint:containedctx
	ctx    context.Context    // Context for cancellation.
	cancel context.CancelFunc // Cancel function for the context.
}

// NewWithRegistry creates a new Metrics handler with a custom Prometheus registry.
//
// Parameters:
//   - registry: Prometheus registerer to use for metric registration.
//
// Returns:
//   - (*Metrics, error): Metrics handler with Prometheus metrics and goroutine, or an error if registration fails.
func NewWithRegistry(registry prometheus.Registerer) (*Metrics, error) {
	// channelBufferSize sets the metrics channel capacity.
	const channelBufferSize = 10

	ctx, cancel := context.WithCancel(context.Background())

	metrics := &Metrics{
		built: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forge_images_built",
			Help: "Number of images built successfully during the last session",
		}),
		failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forge_builds_failed",
			Help: "Number of targets whose build failed during the last session",
		}),
		pruned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forge_tags_pruned",
			Help: "Number of stale image tags removed during the last session",
		}),
		builtTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forge_images_built_total",
			Help: "Total number of images built since forge started",
		}),
		failedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forge_builds_failed_total",
			Help: "Total number of failed builds since forge started",
		}),
		reclaimedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forge_bytes_reclaimed_total",
			Help: "Total bytes reclaimed by pruning since forge started",
		}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forge_sessions_total",
			Help: "Number of build sessions since forge started",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forge_metrics_dropped_total",
			Help: "Number of metrics dropped due to full channel",
		}),
		channel: make(chan *Metric, channelBufferSize),
		stopCh:  make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	// If a metric is already registered, return an error to avoid duplicate collectors.
	metricsList := []prometheus.Collector{
		metrics.built,
		metrics.failed,
		metrics.pruned,
		metrics.builtTotal,
		metrics.failedTotal,
		metrics.reclaimedTotal,
		metrics.sessions,
		metrics.dropped,
	}
	for _, m := range metricsList {
		err := registry.Register(m)
		if err != nil {
			alreadyRegisteredError := &prometheus.AlreadyRegisteredError{}
			if errors.As(err, &alreadyRegisteredError) {
				return nil, fmt.Errorf("failed to register metric: %w", err)
			}
		}
	}

	go metrics.HandleUpdate()

	return metrics, nil
}

// NewMetric creates a Metric from a build session report.
//
// Parameters:
//   - report: Session report.
//   - pruned: Prune result of the session's retention pass.
//
// Returns:
//   - *Metric: New metric instance.
func NewMetric(report types.Report, pruned types.PruneResult) *Metric {
	return &Metric{
		Built:          len(report.Built()),
		Failed:         len(report.Failed()),
		Pruned:         pruned.Removed,
		SpaceReclaimed: pruned.SpaceReclaimed,
	}
}

// QueueIsEmpty checks if the metrics channel is empty.
//
// Returns:
//   - bool: True if empty, false otherwise.
func (m *Metrics) QueueIsEmpty() bool {
	return len(m.channel) == 0
}

// Register attempts to enqueue a metric for processing.
// If the channel is full, the metric is dropped and the dropped counter is incremented.
//
// Parameters:
//   - metric: Metric to register.
func (m *Metrics) Register(metric *Metric) {
	select {
	case m.channel <- metric:
	default:
		// Channel is full, drop the metric
		m.dropped.Inc()
	}
}

// Default initializes or returns the singleton Metrics handler. It panics on
// registration failure against the default registry.
//
// Returns:
//   - *Metrics: Metrics handler with Prometheus metrics and goroutine.
func Default() *Metrics {
	if metrics != nil {
		return metrics
	}

	var err error

	metrics, err = NewWithRegistry(prometheus.DefaultRegisterer)
	if err != nil {
		panic(err)
	}

	return metrics
}

// Shutdown gracefully stops the metrics processing goroutine.
// This method is idempotent and can be called multiple times safely.
func (m *Metrics) Shutdown() {
	m.shutdownOnce.Do(func() {
		close(m.stopCh)
		m.cancel()
	})
}

// HandleUpdate processes metrics from the channel.
func (m *Metrics) HandleUpdate() {
	for {
		select {
		case change, ok := <-m.channel:
			if !ok {
				return
			}

			if change == nil {
				continue
			}

			m.sessions.Inc()
			m.built.Set(float64(change.Built))
			m.failed.Set(float64(change.Failed))
			m.pruned.Set(float64(change.Pruned))
			m.builtTotal.Add(float64(change.Built))
			m.failedTotal.Add(float64(change.Failed))
			m.reclaimedTotal.Add(float64(change.SpaceReclaimed))
		case <-m.stopCh:
			return
		case <-m.ctx.Done():
			return
		}
	}
}

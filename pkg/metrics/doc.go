// Package metrics provides tracking and exposure of Forge build session metrics.
// It integrates with Prometheus to monitor build outcomes.
//
// Key components:
//   - Metrics: Handles metric queuing and updates.
//   - NewMetric: Creates metrics from session reports.
//
// Usage example:
//
//	m := metrics.Default()
//	m.Register(metrics.NewMetric(report, pruned))
//	if !m.QueueIsEmpty() {
//	    logrus.Info("Metrics queued")
//	}
//
// The package uses Prometheus for metrics exposure and integrates with types.Report.
package metrics

// Package metrics produces the system health readings shown next to the
// workflow view. A Source fetches one reading; a Poller refreshes readings on
// a fixed cadence and serves a cached value while it is still fresh.
package metrics

import "time"

// SystemMetrics is one reading of system load.
type SystemMetrics struct {
	CPU             float64   `json:"cpu"`
	Memory          float64   `json:"memory"`
	Latency         float64   `json:"latency"`
	JobsProcessed   int       `json:"jobsProcessed"`
	ActiveWorkflows int       `json:"activeWorkflows"`
	Timestamp       time.Time `json:"timestamp"`
}

// Health classifies a reading.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthWarning  Health = "warning"
	HealthCritical Health = "critical"
)

// Health returns the banner classification for m. Thresholds are strict:
// a CPU of exactly 80 is a warning, not critical.
func (m SystemMetrics) Health() Health {
	switch {
	case m.CPU > 80 || m.Memory > 90 || m.Latency > 100:
		return HealthCritical
	case m.CPU > 60 || m.Memory > 75 || m.Latency > 70:
		return HealthWarning
	default:
		return HealthHealthy
	}
}

// LatencyRating describes response latency in words.
type LatencyRating string

const (
	LatencyExcellent      LatencyRating = "excellent"
	LatencyGood           LatencyRating = "good"
	LatencyNeedsAttention LatencyRating = "needs attention"
)

// LatencyRating rates m.Latency: under 50ms is excellent, under 100ms good.
func (m SystemMetrics) LatencyRating() LatencyRating {
	switch {
	case m.Latency < 50:
		return LatencyExcellent
	case m.Latency < 100:
		return LatencyGood
	default:
		return LatencyNeedsAttention
	}
}

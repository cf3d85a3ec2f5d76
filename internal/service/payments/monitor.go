package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paveldemidov/flightbook/internal/repository"
	"go.uber.org/zap"
)

// ReliabilityThreshold is the advertised target for payments processed
// without manual intervention, in percent.
const ReliabilityThreshold = 99.9

// Metrics is a point-in-time aggregate of the attempt ledger.
//
// Reliability is successful/total, the formula the system has always
// documented. It is a throughput success rate, not a time-based availability
// measure, and is kept literally for continuity.
type Metrics struct {
	TotalAttempts       int64   `json:"total_attempts"`
	Successful          int64   `json:"successful"`
	Failed              int64   `json:"failed"`
	Pending             int64   `json:"pending"`
	Recovered           int64   `json:"recovered"`
	AvgProcessingMillis float64 `json:"avg_processing_ms"`
	SuccessRate         float64 `json:"success_rate"`
	Reliability         float64 `json:"reliability"`
	UptimeHours         float64 `json:"uptime_hours"`
}

type Alert struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Monitor periodically recomputes reliability metrics from the ledger and
// derives threshold alerts. It only reads, never mutates.
type Monitor struct {
	ledger    repository.LedgerRepository
	log       *zap.Logger
	startedAt time.Time

	mu      sync.RWMutex
	metrics Metrics
}

func NewMonitor(ledger repository.LedgerRepository, log *zap.Logger) *Monitor {
	return &Monitor{
		ledger:    ledger,
		log:       log,
		startedAt: time.Now(),
		metrics:   Metrics{SuccessRate: 100, Reliability: 100},
	}
}

// Refresh recomputes the metrics from ledger state.
func (m *Monitor) Refresh(ctx context.Context) error {
	stats, err := m.ledger.Stats(ctx)
	if err != nil {
		return err
	}

	next := Metrics{
		TotalAttempts:       stats.Total,
		Successful:          stats.Processed,
		Failed:              stats.Failed,
		Pending:             stats.Pending,
		Recovered:           stats.Recovered,
		AvgProcessingMillis: stats.AvgProcessingMillis,
		SuccessRate:         100,
		Reliability:         100,
		UptimeHours:         time.Since(m.startedAt).Hours(),
	}
	if stats.Total > 0 {
		next.SuccessRate = float64(stats.Processed) / float64(stats.Total) * 100
		next.Reliability = next.SuccessRate
	}

	m.mu.Lock()
	m.metrics = next
	m.mu.Unlock()
	return nil
}

func (m *Monitor) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

func (m *Monitor) MeetsThreshold() bool {
	return m.Metrics().Reliability >= ReliabilityThreshold
}

// Alerts evaluates the current metrics against fixed degradation thresholds.
func (m *Monitor) Alerts() []Alert {
	metrics := m.Metrics()
	alerts := make([]Alert, 0)

	if metrics.Reliability < ReliabilityThreshold {
		alerts = append(alerts, Alert{
			Severity: "HIGH",
			Message:  fmt.Sprintf("reliability below threshold: %.3f%% (target: %.1f%%)", metrics.Reliability, ReliabilityThreshold),
		})
	}
	if metrics.SuccessRate < 95 {
		alerts = append(alerts, Alert{
			Severity: "CRITICAL",
			Message:  fmt.Sprintf("success rate critically low: %.3f%%", metrics.SuccessRate),
		})
	}
	if metrics.AvgProcessingMillis > 5000 {
		alerts = append(alerts, Alert{
			Severity: "MEDIUM",
			Message:  fmt.Sprintf("high processing time: %.0fms", metrics.AvgProcessingMillis),
		})
	}
	if metrics.Pending > 10 {
		alerts = append(alerts, Alert{
			Severity: "MEDIUM",
			Message:  fmt.Sprintf("%d payments pending recovery", metrics.Pending),
		})
	}
	return alerts
}

// LogMetrics writes the current snapshot to the log, meant for a periodic
// worker tick.
func (m *Monitor) LogMetrics() {
	metrics := m.Metrics()
	m.log.Info("payment reliability metrics",
		zap.Int64("total_attempts", metrics.TotalAttempts),
		zap.Int64("successful", metrics.Successful),
		zap.Int64("failed", metrics.Failed),
		zap.Int64("recovered", metrics.Recovered),
		zap.Float64("success_rate", metrics.SuccessRate),
		zap.Float64("reliability", metrics.Reliability),
		zap.Float64("avg_processing_ms", metrics.AvgProcessingMillis),
		zap.Bool("meets_threshold", metrics.Reliability >= ReliabilityThreshold),
	)
}

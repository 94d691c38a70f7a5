package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/vigil-fl/vigil/alert"
	"github.com/vigil-fl/vigil/pkg/cron"
	"github.com/vigil-fl/vigil/pkg/drift"
	"github.com/vigil-fl/vigil/pkg/mqtt"
	"github.com/vigil-fl/vigil/pkg/storage"
	"github.com/vigil-fl/vigil/round"
)

const (
	driftLookback     = time.Hour
	driftPatternCount = 3
	highConfidence    = 0.7
	accuracyDropLimit = 0.15
	cpuAlertPercent   = 90
	memAlertPercent   = 90
	diskAlertPercent  = 95
	patientSweepLimit = 1000

	// alertSuppression is how long a raised alert mutes identical
	// ones, so a condition that persists across sweeps does not
	// flood the alert log.
	alertSuppression = time.Hour
)

var monitorChecks = []string{"drift_patterns", "model_performance", "system_health", "alert_cleanup"}

type monitor struct {
	interval  time.Duration
	retention time.Duration
	topic     string
	detector  *drift.Detector
	patients  storage.PatientRepository
	alertsDB  storage.AlertRepository
	pubsub    mqtt.PubSub
	recent    func() []round.Record
	schedule  *cron.Schedule
	hooks     []func(alert.Alert)
	logger    *slog.Logger

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	lastSweep   time.Time
	alertCount  uint64
	nextCleanup time.Time
	suppressed  map[string]time.Time
}

func newMonitor(cfg Config, detector *drift.Detector, patients storage.PatientRepository, alertsDB storage.AlertRepository, pubsub mqtt.PubSub, recent func() []round.Record, logger *slog.Logger, hooks ...func(alert.Alert)) (*monitor, error) {
	schedule, err := cron.Parse(cfg.CleanupSchedule)
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", cfg.CleanupSchedule, err)
	}

	interval := cfg.MonitorInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	retention := cfg.AlertRetention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}

	return &monitor{
		interval:   interval,
		retention:  retention,
		topic:      mqtt.NewTopics(cfg.ChannelID).Alerts(),
		detector:   detector,
		patients:   patients,
		alertsDB:   alertsDB,
		pubsub:     pubsub,
		recent:     recent,
		schedule:   schedule,
		hooks:      hooks,
		logger:     logger,
		suppressed: make(map[string]time.Time),
	}, nil
}

// start runs the first sweep synchronously and then sweeps on every
// interval tick until the context is cancelled or stop is called.
// Calling start on a running monitor is a no-op.
func (m *monitor) start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()

		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.nextCleanup = m.schedule.Next(time.Now(), "")
	m.mu.Unlock()

	m.sweep(ctx)
	go m.run(ctx)

	return nil
}

func (m *monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()

			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *monitor) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}
	m.running = false
}

func (m *monitor) status() MonitorStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	return MonitorStatus{
		Running:    m.running,
		Interval:   m.interval.String(),
		LastSweep:  m.lastSweep,
		Checks:     append([]string(nil), monitorChecks...),
		AlertCount: m.alertCount,
	}
}

func (m *monitor) sweep(ctx context.Context) {
	m.checkDrift(ctx)
	m.checkPerformance(ctx)
	m.checkSystemHealth(ctx)
	m.cleanup(ctx)

	m.mu.Lock()
	m.lastSweep = time.Now()
	m.mu.Unlock()
}

// checkDrift scans recent drift detections: a confirmed detection
// above the confidence bar alerts on the patient, and three or more
// same-type detections across the fleet within the lookback window
// alert on the pattern.
func (m *monitor) checkDrift(ctx context.Context) {
	patients, _, err := m.patients.List(ctx, 0, patientSweepLimit)
	if err != nil {
		m.logger.Warn("drift sweep failed to list patients", slog.Any("error", err))

		return
	}

	cutoff := time.Now().Add(-driftLookback)
	typeCounts := make(map[string]int)

	for _, p := range patients {
		for _, res := range m.detector.History(p.ID) {
			if !res.Detected || res.At.Before(cutoff) {
				continue
			}
			typeCounts[res.DriftType]++

			if res.Confidence > highConfidence {
				key := alert.TypeHighConfidenceDrift + "|" + p.ID + "|" + res.DriftType
				m.raise(ctx, key, alert.Alert{
					Type:      alert.TypeHighConfidenceDrift,
					Severity:  alert.SeverityHigh,
					PatientID: p.ID,
					Message:   fmt.Sprintf("drift detected for patient %s with confidence %.2f", p.ID, res.Confidence),
					Details: map[string]any{
						"drift_type": res.DriftType,
						"confidence": res.Confidence,
						"method":     res.Method,
					},
				})
			}
		}
	}

	for driftType, count := range typeCounts {
		if count < driftPatternCount || driftType == "" {
			continue
		}
		key := alert.TypeDriftPattern + "|" + driftType
		m.raise(ctx, key, alert.Alert{
			Type:     alert.TypeDriftPattern,
			Severity: alert.SeverityMedium,
			Message:  fmt.Sprintf("recurring %s drift across the fleet: %d detections in the last hour", driftType, count),
			Details: map[string]any{
				"drift_type": driftType,
				"count":      count,
			},
		})
	}
}

func (m *monitor) checkPerformance(ctx context.Context) {
	records := m.recent()
	if len(records) < 2 {
		return
	}

	prev, last := records[len(records)-2], records[len(records)-1]
	drop := prev.AvgAccuracy - last.AvgAccuracy
	if drop <= accuracyDropLimit {
		return
	}

	key := fmt.Sprintf("%s|%d", alert.TypePerformanceDegradation, last.Round)
	m.raise(ctx, key, alert.Alert{
		Type:     alert.TypePerformanceDegradation,
		Severity: alert.SeverityHigh,
		Message:  fmt.Sprintf("average accuracy dropped from %.3f to %.3f between rounds %d and %d", prev.AvgAccuracy, last.AvgAccuracy, prev.Round, last.Round),
		Details: map[string]any{
			"previous_round":    prev.Round,
			"previous_accuracy": prev.AvgAccuracy,
			"round":             last.Round,
			"accuracy":          last.AvgAccuracy,
		},
	})
}

func (m *monitor) checkSystemHealth(ctx context.Context) {
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 && percents[0] > cpuAlertPercent {
		m.raise(ctx, alert.TypeSystemHealth+"|cpu", alert.Alert{
			Type:     alert.TypeSystemHealth,
			Severity: alert.SeverityHigh,
			Message:  fmt.Sprintf("coordinator CPU usage at %.1f%%", percents[0]),
			Details:  map[string]any{"resource": "cpu", "percent": percents[0]},
		})
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm.UsedPercent > memAlertPercent {
		m.raise(ctx, alert.TypeSystemHealth+"|memory", alert.Alert{
			Type:     alert.TypeSystemHealth,
			Severity: alert.SeverityHigh,
			Message:  fmt.Sprintf("coordinator memory usage at %.1f%%", vm.UsedPercent),
			Details:  map[string]any{"resource": "memory", "percent": vm.UsedPercent},
		})
	}

	if usage, err := disk.UsageWithContext(ctx, "/"); err == nil && usage.UsedPercent > diskAlertPercent {
		m.raise(ctx, alert.TypeSystemHealth+"|disk", alert.Alert{
			Type:     alert.TypeSystemHealth,
			Severity: alert.SeverityHigh,
			Message:  fmt.Sprintf("coordinator disk usage at %.1f%%", usage.UsedPercent),
			Details:  map[string]any{"resource": "disk", "percent": usage.UsedPercent},
		})
	}
}

func (m *monitor) cleanup(ctx context.Context) {
	now := time.Now()

	m.mu.Lock()
	due := !m.nextCleanup.IsZero() && now.After(m.nextCleanup)
	if due {
		m.nextCleanup = m.schedule.Next(now, "")
	}
	for key, raised := range m.suppressed {
		if now.Sub(raised) > alertSuppression {
			delete(m.suppressed, key)
		}
	}
	m.mu.Unlock()

	if !due {
		return
	}

	pruned, err := m.alertsDB.DeleteOlderThan(ctx, now.Add(-m.retention))
	if err != nil {
		m.logger.Warn("failed to prune expired alerts", slog.Any("error", err))

		return
	}
	m.logger.Info("pruned expired alerts", slog.Uint64("count", pruned))
}

// raise persists, publishes and fans an alert out to hooks unless an
// identical alert fired within the suppression window.
func (m *monitor) raise(ctx context.Context, key string, a alert.Alert) {
	m.mu.Lock()
	if raised, ok := m.suppressed[key]; ok && time.Since(raised) < alertSuppression {
		m.mu.Unlock()

		return
	}
	m.suppressed[key] = time.Now()
	m.alertCount++
	m.mu.Unlock()

	a.ID = uuid.NewString()
	a.At = time.Now()

	if err := m.alertsDB.Create(ctx, a); err != nil {
		m.logger.Warn("failed to persist alert", slog.String("type", a.Type), slog.Any("error", err))
	}
	if err := m.pubsub.Publish(ctx, m.topic, a); err != nil {
		m.logger.Warn("failed to publish alert", slog.String("type", a.Type), slog.Any("error", err))
	}
	for _, hook := range m.hooks {
		hook(a)
	}

	m.logger.Info("alert raised",
		slog.String("type", a.Type),
		slog.String("severity", a.Severity),
		slog.String("patient_id", a.PatientID),
	)
}

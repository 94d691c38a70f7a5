package middleware

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/vigil-fl/vigil/agent"
	"github.com/vigil-fl/vigil/alert"
	"github.com/vigil-fl/vigil/coordinator"
	"github.com/vigil-fl/vigil/patient"
	"github.com/vigil-fl/vigil/pkg/drift"
	"github.com/vigil-fl/vigil/pkg/models"
	"github.com/vigil-fl/vigil/pkg/params"
	"github.com/vigil-fl/vigil/round"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) RegisterUpdate(ctx context.Context, u round.Update) (round.Ack, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "register-update").Add(1)
		mm.latency.With("method", "register-update").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.RegisterUpdate(ctx, u)
}

func (mm *metricsMiddleware) Aggregate(ctx context.Context) (round.Record, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "aggregate").Add(1)
		mm.latency.With("method", "aggregate").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Aggregate(ctx)
}

func (mm *metricsMiddleware) GetGlobalModel(ctx context.Context) (coordinator.GlobalModel, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-global-model").Add(1)
		mm.latency.With("method", "get-global-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetGlobalModel(ctx)
}

func (mm *metricsMiddleware) SetGlobalModel(ctx context.Context, weights params.Map) (coordinator.GlobalModel, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "set-global-model").Add(1)
		mm.latency.With("method", "set-global-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SetGlobalModel(ctx, weights)
}

func (mm *metricsMiddleware) ResetRound(ctx context.Context) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "reset-round").Add(1)
		mm.latency.With("method", "reset-round").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ResetRound(ctx)
}

func (mm *metricsMiddleware) Status(ctx context.Context) (coordinator.Status, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-status").Add(1)
		mm.latency.With("method", "get-status").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Status(ctx)
}

func (mm *metricsMiddleware) ListRounds(ctx context.Context, offset, limit uint64) (round.RecordPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-rounds").Add(1)
		mm.latency.With("method", "list-rounds").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListRounds(ctx, offset, limit)
}

func (mm *metricsMiddleware) CreateAgent(ctx context.Context, a agent.Agent) (agent.Agent, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "create-agent").Add(1)
		mm.latency.With("method", "create-agent").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.CreateAgent(ctx, a)
}

func (mm *metricsMiddleware) GetAgent(ctx context.Context, agentID string) (agent.Agent, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-agent").Add(1)
		mm.latency.With("method", "get-agent").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetAgent(ctx, agentID)
}

func (mm *metricsMiddleware) ListAgents(ctx context.Context, offset, limit uint64) (agent.AgentPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-agents").Add(1)
		mm.latency.With("method", "list-agents").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListAgents(ctx, offset, limit)
}

func (mm *metricsMiddleware) DeleteAgent(ctx context.Context, agentID string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "delete-agent").Add(1)
		mm.latency.With("method", "delete-agent").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.DeleteAgent(ctx, agentID)
}

func (mm *metricsMiddleware) CreatePatient(ctx context.Context, p patient.Patient) (patient.Patient, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "create-patient").Add(1)
		mm.latency.With("method", "create-patient").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.CreatePatient(ctx, p)
}

func (mm *metricsMiddleware) GetPatient(ctx context.Context, patientID string) (patient.Patient, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-patient").Add(1)
		mm.latency.With("method", "get-patient").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetPatient(ctx, patientID)
}

func (mm *metricsMiddleware) ListPatients(ctx context.Context, offset, limit uint64) (patient.PatientPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-patients").Add(1)
		mm.latency.With("method", "list-patients").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListPatients(ctx, offset, limit)
}

func (mm *metricsMiddleware) Observe(ctx context.Context, patientID string, features []float64, prediction float64) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "observe").Add(1)
		mm.latency.With("method", "observe").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Observe(ctx, patientID, features, prediction)
}

func (mm *metricsMiddleware) DetectDrift(ctx context.Context, patientID string, features []float64, prediction float64, method drift.Method) (coordinator.DriftReport, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "detect-drift").Add(1)
		mm.latency.With("method", "detect-drift").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.DetectDrift(ctx, patientID, features, prediction, method)
}

func (mm *metricsMiddleware) DriftStatus(ctx context.Context, patientID string) (drift.Status, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "drift-status").Add(1)
		mm.latency.With("method", "drift-status").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.DriftStatus(ctx, patientID)
}

func (mm *metricsMiddleware) DriftHistory(ctx context.Context, patientID string, offset, limit uint64) (coordinator.DriftHistoryPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "drift-history").Add(1)
		mm.latency.With("method", "drift-history").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.DriftHistory(ctx, patientID, offset, limit)
}

func (mm *metricsMiddleware) ActiveModel(ctx context.Context, patientID string) (coordinator.ModelAssignment, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "active-model").Add(1)
		mm.latency.With("method", "active-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ActiveModel(ctx, patientID)
}

func (mm *metricsMiddleware) SwapModel(ctx context.Context, patientID, driftType string, confidence float64) (models.SwapRecord, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "swap-model").Add(1)
		mm.latency.With("method", "swap-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SwapModel(ctx, patientID, driftType, confidence)
}

func (mm *metricsMiddleware) ListSwaps(ctx context.Context, patientID string, offset, limit uint64) (coordinator.SwapPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-swaps").Add(1)
		mm.latency.With("method", "list-swaps").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListSwaps(ctx, patientID, offset, limit)
}

func (mm *metricsMiddleware) Predict(ctx context.Context, patientID string, features []float64) (coordinator.Prediction, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "predict").Add(1)
		mm.latency.With("method", "predict").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Predict(ctx, patientID, features)
}

func (mm *metricsMiddleware) Alerts(ctx context.Context, offset, limit uint64) (alert.AlertPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-alerts").Add(1)
		mm.latency.With("method", "list-alerts").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Alerts(ctx, offset, limit)
}

func (mm *metricsMiddleware) MonitorStatus(ctx context.Context) (coordinator.MonitorStatus, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "monitor-status").Add(1)
		mm.latency.With("method", "monitor-status").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.MonitorStatus(ctx)
}

func (mm *metricsMiddleware) Subscribe(ctx context.Context) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "subscribe").Add(1)
		mm.latency.With("method", "subscribe").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Subscribe(ctx)
}

func (mm *metricsMiddleware) StartMonitor(ctx context.Context) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "start-monitor").Add(1)
		mm.latency.With("method", "start-monitor").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.StartMonitor(ctx)
}

func (mm *metricsMiddleware) Shutdown(ctx context.Context) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "shutdown").Add(1)
		mm.latency.With("method", "shutdown").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Shutdown(ctx)
}

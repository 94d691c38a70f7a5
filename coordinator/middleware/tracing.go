package middleware

import (
	"context"

	"github.com/vigil-fl/vigil/agent"
	"github.com/vigil-fl/vigil/alert"
	"github.com/vigil-fl/vigil/coordinator"
	"github.com/vigil-fl/vigil/patient"
	"github.com/vigil-fl/vigil/pkg/drift"
	"github.com/vigil-fl/vigil/pkg/models"
	"github.com/vigil-fl/vigil/pkg/params"
	"github.com/vigil-fl/vigil/round"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ coordinator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) RegisterUpdate(ctx context.Context, u round.Update) (round.Ack, error) {
	ctx, span := tm.tracer.Start(ctx, "register-update", trace.WithAttributes(
		attribute.String("client_id", u.ClientID),
		attribute.Int("sample_count", u.SampleCount),
	))
	defer span.End()

	return tm.svc.RegisterUpdate(ctx, u)
}

func (tm *tracing) Aggregate(ctx context.Context) (round.Record, error) {
	ctx, span := tm.tracer.Start(ctx, "aggregate")
	defer span.End()

	return tm.svc.Aggregate(ctx)
}

func (tm *tracing) GetGlobalModel(ctx context.Context) (coordinator.GlobalModel, error) {
	ctx, span := tm.tracer.Start(ctx, "get-global-model")
	defer span.End()

	return tm.svc.GetGlobalModel(ctx)
}

func (tm *tracing) SetGlobalModel(ctx context.Context, weights params.Map) (coordinator.GlobalModel, error) {
	ctx, span := tm.tracer.Start(ctx, "set-global-model", trace.WithAttributes(
		attribute.Int("num_params", weights.NumParams()),
	))
	defer span.End()

	return tm.svc.SetGlobalModel(ctx, weights)
}

func (tm *tracing) ResetRound(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "reset-round")
	defer span.End()

	return tm.svc.ResetRound(ctx)
}

func (tm *tracing) Status(ctx context.Context) (coordinator.Status, error) {
	ctx, span := tm.tracer.Start(ctx, "status")
	defer span.End()

	return tm.svc.Status(ctx)
}

func (tm *tracing) ListRounds(ctx context.Context, offset, limit uint64) (round.RecordPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-rounds", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListRounds(ctx, offset, limit)
}

func (tm *tracing) CreateAgent(ctx context.Context, a agent.Agent) (agent.Agent, error) {
	ctx, span := tm.tracer.Start(ctx, "create-agent", trace.WithAttributes(
		attribute.String("id", a.ID),
		attribute.String("name", a.Name),
	))
	defer span.End()

	return tm.svc.CreateAgent(ctx, a)
}

func (tm *tracing) GetAgent(ctx context.Context, agentID string) (agent.Agent, error) {
	ctx, span := tm.tracer.Start(ctx, "get-agent", trace.WithAttributes(
		attribute.String("id", agentID),
	))
	defer span.End()

	return tm.svc.GetAgent(ctx, agentID)
}

func (tm *tracing) ListAgents(ctx context.Context, offset, limit uint64) (agent.AgentPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-agents", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListAgents(ctx, offset, limit)
}

func (tm *tracing) DeleteAgent(ctx context.Context, agentID string) error {
	ctx, span := tm.tracer.Start(ctx, "delete-agent", trace.WithAttributes(
		attribute.String("id", agentID),
	))
	defer span.End()

	return tm.svc.DeleteAgent(ctx, agentID)
}

func (tm *tracing) CreatePatient(ctx context.Context, p patient.Patient) (patient.Patient, error) {
	ctx, span := tm.tracer.Start(ctx, "create-patient", trace.WithAttributes(
		attribute.String("id", p.ID),
		attribute.String("category", p.Category),
	))
	defer span.End()

	return tm.svc.CreatePatient(ctx, p)
}

func (tm *tracing) GetPatient(ctx context.Context, patientID string) (patient.Patient, error) {
	ctx, span := tm.tracer.Start(ctx, "get-patient", trace.WithAttributes(
		attribute.String("id", patientID),
	))
	defer span.End()

	return tm.svc.GetPatient(ctx, patientID)
}

func (tm *tracing) ListPatients(ctx context.Context, offset, limit uint64) (patient.PatientPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-patients", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListPatients(ctx, offset, limit)
}

func (tm *tracing) Observe(ctx context.Context, patientID string, features []float64, prediction float64) error {
	ctx, span := tm.tracer.Start(ctx, "observe", trace.WithAttributes(
		attribute.String("patient_id", patientID),
	))
	defer span.End()

	return tm.svc.Observe(ctx, patientID, features, prediction)
}

func (tm *tracing) DetectDrift(ctx context.Context, patientID string, features []float64, prediction float64, method drift.Method) (coordinator.DriftReport, error) {
	ctx, span := tm.tracer.Start(ctx, "detect-drift", trace.WithAttributes(
		attribute.String("patient_id", patientID),
		attribute.String("method", method.String()),
	))
	defer span.End()

	return tm.svc.DetectDrift(ctx, patientID, features, prediction, method)
}

func (tm *tracing) DriftStatus(ctx context.Context, patientID string) (drift.Status, error) {
	ctx, span := tm.tracer.Start(ctx, "drift-status", trace.WithAttributes(
		attribute.String("patient_id", patientID),
	))
	defer span.End()

	return tm.svc.DriftStatus(ctx, patientID)
}

func (tm *tracing) DriftHistory(ctx context.Context, patientID string, offset, limit uint64) (coordinator.DriftHistoryPage, error) {
	ctx, span := tm.tracer.Start(ctx, "drift-history", trace.WithAttributes(
		attribute.String("patient_id", patientID),
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.DriftHistory(ctx, patientID, offset, limit)
}

func (tm *tracing) ActiveModel(ctx context.Context, patientID string) (coordinator.ModelAssignment, error) {
	ctx, span := tm.tracer.Start(ctx, "active-model", trace.WithAttributes(
		attribute.String("patient_id", patientID),
	))
	defer span.End()

	return tm.svc.ActiveModel(ctx, patientID)
}

func (tm *tracing) SwapModel(ctx context.Context, patientID, driftType string, confidence float64) (models.SwapRecord, error) {
	ctx, span := tm.tracer.Start(ctx, "swap-model", trace.WithAttributes(
		attribute.String("patient_id", patientID),
		attribute.String("drift_type", driftType),
		attribute.Float64("confidence", confidence),
	))
	defer span.End()

	return tm.svc.SwapModel(ctx, patientID, driftType, confidence)
}

func (tm *tracing) ListSwaps(ctx context.Context, patientID string, offset, limit uint64) (coordinator.SwapPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-swaps", trace.WithAttributes(
		attribute.String("patient_id", patientID),
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListSwaps(ctx, patientID, offset, limit)
}

func (tm *tracing) Predict(ctx context.Context, patientID string, features []float64) (coordinator.Prediction, error) {
	ctx, span := tm.tracer.Start(ctx, "predict", trace.WithAttributes(
		attribute.String("patient_id", patientID),
	))
	defer span.End()

	return tm.svc.Predict(ctx, patientID, features)
}

func (tm *tracing) Alerts(ctx context.Context, offset, limit uint64) (alert.AlertPage, error) {
	ctx, span := tm.tracer.Start(ctx, "alerts", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.Alerts(ctx, offset, limit)
}

func (tm *tracing) MonitorStatus(ctx context.Context) (coordinator.MonitorStatus, error) {
	ctx, span := tm.tracer.Start(ctx, "monitor-status")
	defer span.End()

	return tm.svc.MonitorStatus(ctx)
}

func (tm *tracing) Subscribe(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "subscribe")
	defer span.End()

	return tm.svc.Subscribe(ctx)
}

func (tm *tracing) StartMonitor(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "start-monitor")
	defer span.End()

	return tm.svc.StartMonitor(ctx)
}

func (tm *tracing) Shutdown(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "shutdown")
	defer span.End()

	return tm.svc.Shutdown(ctx)
}

package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/vigil-fl/vigil/agent"
	"github.com/vigil-fl/vigil/alert"
	"github.com/vigil-fl/vigil/coordinator"
	"github.com/vigil-fl/vigil/patient"
	"github.com/vigil-fl/vigil/pkg/drift"
	"github.com/vigil-fl/vigil/pkg/models"
	"github.com/vigil-fl/vigil/pkg/params"
	"github.com/vigil-fl/vigil/round"
)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) RegisterUpdate(ctx context.Context, u round.Update) (resp round.Ack, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("update",
				slog.String("client_id", u.ClientID),
				slog.Int("sample_count", u.SampleCount),
			),
			slog.String("status", resp.Status),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Register update failed", args...)

			return
		}
		lm.logger.Info("Register update completed successfully", args...)
	}(time.Now())

	return lm.svc.RegisterUpdate(ctx, u)
}

func (lm *loggingMiddleware) Aggregate(ctx context.Context) (resp round.Record, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.Uint64("number", resp.Round),
				slog.Int("clients", resp.ClientCount),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Aggregate failed", args...)

			return
		}
		lm.logger.Info("Aggregate completed successfully", args...)
	}(time.Now())

	return lm.svc.Aggregate(ctx)
}

func (lm *loggingMiddleware) GetGlobalModel(ctx context.Context) (resp coordinator.GlobalModel, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("round", resp.Round),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get global model failed", args...)

			return
		}
		lm.logger.Info("Get global model completed successfully", args...)
	}(time.Now())

	return lm.svc.GetGlobalModel(ctx)
}

func (lm *loggingMiddleware) SetGlobalModel(ctx context.Context, weights params.Map) (resp coordinator.GlobalModel, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("layers", len(weights)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Set global model failed", args...)

			return
		}
		lm.logger.Info("Set global model completed successfully", args...)
	}(time.Now())

	return lm.svc.SetGlobalModel(ctx, weights)
}

func (lm *loggingMiddleware) ResetRound(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Reset round failed", args...)

			return
		}
		lm.logger.Info("Reset round completed successfully", args...)
	}(time.Now())

	return lm.svc.ResetRound(ctx)
}

func (lm *loggingMiddleware) Status(ctx context.Context) (resp coordinator.Status, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("state", resp.State.String()),
			slog.Uint64("round", resp.Round),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get status failed", args...)

			return
		}
		lm.logger.Info("Get status completed successfully", args...)
	}(time.Now())

	return lm.svc.Status(ctx)
}

func (lm *loggingMiddleware) ListRounds(ctx context.Context, offset, limit uint64) (resp round.RecordPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List rounds failed", args...)

			return
		}
		lm.logger.Info("List rounds completed successfully", args...)
	}(time.Now())

	return lm.svc.ListRounds(ctx, offset, limit)
}

func (lm *loggingMiddleware) CreateAgent(ctx context.Context, a agent.Agent) (resp agent.Agent, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("agent",
				slog.String("id", resp.ID),
				slog.String("name", a.Name),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Create agent failed", args...)

			return
		}
		lm.logger.Info("Create agent completed successfully", args...)
	}(time.Now())

	return lm.svc.CreateAgent(ctx, a)
}

func (lm *loggingMiddleware) GetAgent(ctx context.Context, agentID string) (resp agent.Agent, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("agent",
				slog.String("id", agentID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get agent failed", args...)

			return
		}
		lm.logger.Info("Get agent completed successfully", args...)
	}(time.Now())

	return lm.svc.GetAgent(ctx, agentID)
}

func (lm *loggingMiddleware) ListAgents(ctx context.Context, offset, limit uint64) (resp agent.AgentPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List agents failed", args...)

			return
		}
		lm.logger.Info("List agents completed successfully", args...)
	}(time.Now())

	return lm.svc.ListAgents(ctx, offset, limit)
}

func (lm *loggingMiddleware) DeleteAgent(ctx context.Context, agentID string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("agent",
				slog.String("id", agentID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Delete agent failed", args...)

			return
		}
		lm.logger.Info("Delete agent completed successfully", args...)
	}(time.Now())

	return lm.svc.DeleteAgent(ctx, agentID)
}

func (lm *loggingMiddleware) CreatePatient(ctx context.Context, p patient.Patient) (resp patient.Patient, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("patient",
				slog.String("id", resp.ID),
				slog.String("category", resp.Category),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Create patient failed", args...)

			return
		}
		lm.logger.Info("Create patient completed successfully", args...)
	}(time.Now())

	return lm.svc.CreatePatient(ctx, p)
}

func (lm *loggingMiddleware) GetPatient(ctx context.Context, patientID string) (resp patient.Patient, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("patient",
				slog.String("id", patientID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get patient failed", args...)

			return
		}
		lm.logger.Info("Get patient completed successfully", args...)
	}(time.Now())

	return lm.svc.GetPatient(ctx, patientID)
}

func (lm *loggingMiddleware) ListPatients(ctx context.Context, offset, limit uint64) (resp patient.PatientPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List patients failed", args...)

			return
		}
		lm.logger.Info("List patients completed successfully", args...)
	}(time.Now())

	return lm.svc.ListPatients(ctx, offset, limit)
}

func (lm *loggingMiddleware) Observe(ctx context.Context, patientID string, features []float64, prediction float64) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("patient",
				slog.String("id", patientID),
			),
			slog.Int("features", len(features)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Observe failed", args...)

			return
		}
		lm.logger.Info("Observe completed successfully", args...)
	}(time.Now())

	return lm.svc.Observe(ctx, patientID, features, prediction)
}

func (lm *loggingMiddleware) DetectDrift(ctx context.Context, patientID string, features []float64, prediction float64, method drift.Method) (resp coordinator.DriftReport, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("patient",
				slog.String("id", patientID),
			),
			slog.String("method", method.String()),
			slog.Bool("detected", resp.Detected),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Detect drift failed", args...)

			return
		}
		lm.logger.Info("Detect drift completed successfully", args...)
	}(time.Now())

	return lm.svc.DetectDrift(ctx, patientID, features, prediction, method)
}

func (lm *loggingMiddleware) DriftStatus(ctx context.Context, patientID string) (resp drift.Status, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("patient",
				slog.String("id", patientID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get drift status failed", args...)

			return
		}
		lm.logger.Info("Get drift status completed successfully", args...)
	}(time.Now())

	return lm.svc.DriftStatus(ctx, patientID)
}

func (lm *loggingMiddleware) DriftHistory(ctx context.Context, patientID string, offset, limit uint64) (resp coordinator.DriftHistoryPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("patient",
				slog.String("id", patientID),
			),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get drift history failed", args...)

			return
		}
		lm.logger.Info("Get drift history completed successfully", args...)
	}(time.Now())

	return lm.svc.DriftHistory(ctx, patientID, offset, limit)
}

func (lm *loggingMiddleware) ActiveModel(ctx context.Context, patientID string) (resp coordinator.ModelAssignment, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("patient",
				slog.String("id", patientID),
			),
			slog.String("model", resp.ModelType),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get active model failed", args...)

			return
		}
		lm.logger.Info("Get active model completed successfully", args...)
	}(time.Now())

	return lm.svc.ActiveModel(ctx, patientID)
}

func (lm *loggingMiddleware) SwapModel(ctx context.Context, patientID, driftType string, confidence float64) (resp models.SwapRecord, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("patient",
				slog.String("id", patientID),
			),
			slog.String("drift_type", driftType),
			slog.Bool("swapped", resp.Swapped),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Swap model failed", args...)

			return
		}
		lm.logger.Info("Swap model completed successfully", args...)
	}(time.Now())

	return lm.svc.SwapModel(ctx, patientID, driftType, confidence)
}

func (lm *loggingMiddleware) ListSwaps(ctx context.Context, patientID string, offset, limit uint64) (resp coordinator.SwapPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("patient",
				slog.String("id", patientID),
			),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List swaps failed", args...)

			return
		}
		lm.logger.Info("List swaps completed successfully", args...)
	}(time.Now())

	return lm.svc.ListSwaps(ctx, patientID, offset, limit)
}

func (lm *loggingMiddleware) Predict(ctx context.Context, patientID string, features []float64) (resp coordinator.Prediction, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("patient",
				slog.String("id", patientID),
			),
			slog.String("model", resp.ModelUsed),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Predict failed", args...)

			return
		}
		lm.logger.Info("Predict completed successfully", args...)
	}(time.Now())

	return lm.svc.Predict(ctx, patientID, features)
}

func (lm *loggingMiddleware) Alerts(ctx context.Context, offset, limit uint64) (resp alert.AlertPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List alerts failed", args...)

			return
		}
		lm.logger.Info("List alerts completed successfully", args...)
	}(time.Now())

	return lm.svc.Alerts(ctx, offset, limit)
}

func (lm *loggingMiddleware) MonitorStatus(ctx context.Context) (resp coordinator.MonitorStatus, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Bool("running", resp.Running),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get monitor status failed", args...)

			return
		}
		lm.logger.Info("Get monitor status completed successfully", args...)
	}(time.Now())

	return lm.svc.MonitorStatus(ctx)
}

func (lm *loggingMiddleware) Subscribe(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Subscribe failed", args...)

			return
		}
		lm.logger.Info("Subscribe completed successfully", args...)
	}(time.Now())

	return lm.svc.Subscribe(ctx)
}

func (lm *loggingMiddleware) StartMonitor(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Start monitor failed", args...)

			return
		}
		lm.logger.Info("Start monitor completed successfully", args...)
	}(time.Now())

	return lm.svc.StartMonitor(ctx)
}

func (lm *loggingMiddleware) Shutdown(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Shutdown failed", args...)

			return
		}
		lm.logger.Info("Shutdown completed successfully", args...)
	}(time.Now())

	return lm.svc.Shutdown(ctx)
}

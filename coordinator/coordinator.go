// Package coordinator implements the federated aggregation service.
// It collects client parameter updates, runs the configured
// aggregation strategy once a quorum is reached, watches patient
// telemetry for concept drift, and reroutes patients to specialized
// models when drift is confirmed.
package coordinator

import (
	"context"
	"time"

	"github.com/vigil-fl/vigil/agent"
	"github.com/vigil-fl/vigil/alert"
	"github.com/vigil-fl/vigil/patient"
	"github.com/vigil-fl/vigil/pkg/drift"
	"github.com/vigil-fl/vigil/pkg/models"
	"github.com/vigil-fl/vigil/pkg/params"
	"github.com/vigil-fl/vigil/round"
)

type Config struct {
	MinClients      int           `env:"VIGIL_MIN_CLIENTS"      envDefault:"3"`
	SnapshotEvery   uint64        `env:"VIGIL_SNAPSHOT_EVERY"   envDefault:"10"`
	SnapshotDir     string        `env:"VIGIL_SNAPSHOT_DIR"     envDefault:"./data/snapshots"`
	MonitorInterval time.Duration `env:"VIGIL_MONITOR_INTERVAL" envDefault:"5m"`
	CleanupSchedule string        `env:"VIGIL_CLEANUP_SCHEDULE" envDefault:"0 3 * * *"`
	AlertRetention  time.Duration `env:"VIGIL_ALERT_RETENTION"  envDefault:"720h"`
	ChannelID       string        `env:"VIGIL_CHANNEL_ID"`
}

func DefaultConfig() Config {
	return Config{
		MinClients:      3,
		SnapshotEvery:   10,
		SnapshotDir:     "./data/snapshots",
		MonitorInterval: 5 * time.Minute,
		CleanupSchedule: "0 3 * * *",
		AlertRetention:  30 * 24 * time.Hour,
	}
}

// Status is a point-in-time view of the aggregation loop.
type Status struct {
	State           round.State `json:"state"`
	Round           uint64      `json:"round"`
	PendingClients  []string    `json:"pending_clients"`
	MinClients      int         `json:"min_clients"`
	Method          string      `json:"method"`
	LastAggregation time.Time   `json:"last_aggregation"`
	Uptime          string      `json:"uptime"`
}

// GlobalModel is the current aggregated parameter map.
type GlobalModel struct {
	Round     uint64     `json:"round"`
	Weights   params.Map `json:"weights"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DriftReport is a detection outcome plus the model swap it caused,
// when the drift was confirmed and routed.
type DriftReport struct {
	drift.Result
	Swap *models.SwapRecord `json:"swap,omitempty"`
}

type DriftHistoryPage struct {
	PatientID string         `json:"patient_id"`
	Offset    uint64         `json:"offset"`
	Limit     uint64         `json:"limit"`
	Total     uint64         `json:"total"`
	Results   []drift.Result `json:"results"`
}

type SwapPage struct {
	PatientID string              `json:"patient_id"`
	Offset    uint64              `json:"offset"`
	Limit     uint64              `json:"limit"`
	Total     uint64              `json:"total"`
	Swaps     []models.SwapRecord `json:"swaps"`
}

// ModelAssignment names the model currently serving a patient.
type ModelAssignment struct {
	PatientID string `json:"patient_id"`
	ModelType string `json:"model_type"`
	Version   string `json:"version,omitempty"`
}

// Prediction is the outcome of scoring one observation with the
// patient's active model. Drift carries the detection the observation
// triggered.
type Prediction struct {
	PatientID  string        `json:"patient_id"`
	Prediction float64       `json:"prediction"`
	ModelUsed  string        `json:"model_used"`
	Drift      *drift.Result `json:"drift,omitempty"`
}

type MonitorStatus struct {
	Running    bool      `json:"running"`
	Interval   string    `json:"interval"`
	LastSweep  time.Time `json:"last_sweep"`
	Checks     []string  `json:"checks"`
	AlertCount uint64    `json:"alert_count"`
}

type Service interface {
	RegisterUpdate(ctx context.Context, update round.Update) (round.Ack, error)
	Aggregate(ctx context.Context) (round.Record, error)
	GetGlobalModel(ctx context.Context) (GlobalModel, error)
	SetGlobalModel(ctx context.Context, weights params.Map) (GlobalModel, error)
	ResetRound(ctx context.Context) error
	Status(ctx context.Context) (Status, error)
	ListRounds(ctx context.Context, offset, limit uint64) (round.RecordPage, error)

	CreateAgent(ctx context.Context, a agent.Agent) (agent.Agent, error)
	GetAgent(ctx context.Context, agentID string) (agent.Agent, error)
	ListAgents(ctx context.Context, offset, limit uint64) (agent.AgentPage, error)
	DeleteAgent(ctx context.Context, agentID string) error

	CreatePatient(ctx context.Context, p patient.Patient) (patient.Patient, error)
	GetPatient(ctx context.Context, patientID string) (patient.Patient, error)
	ListPatients(ctx context.Context, offset, limit uint64) (patient.PatientPage, error)

	Observe(ctx context.Context, patientID string, features []float64, prediction float64) error
	DetectDrift(ctx context.Context, patientID string, features []float64, prediction float64, method drift.Method) (DriftReport, error)
	DriftStatus(ctx context.Context, patientID string) (drift.Status, error)
	DriftHistory(ctx context.Context, patientID string, offset, limit uint64) (DriftHistoryPage, error)

	ActiveModel(ctx context.Context, patientID string) (ModelAssignment, error)
	SwapModel(ctx context.Context, patientID, driftType string, confidence float64) (models.SwapRecord, error)
	ListSwaps(ctx context.Context, patientID string, offset, limit uint64) (SwapPage, error)
	Predict(ctx context.Context, patientID string, features []float64) (Prediction, error)

	Alerts(ctx context.Context, offset, limit uint64) (alert.AlertPage, error)
	MonitorStatus(ctx context.Context) (MonitorStatus, error)

	Subscribe(ctx context.Context) error
	StartMonitor(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

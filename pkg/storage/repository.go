package storage

import (
	"context"
	"time"

	"github.com/vigil-fl/vigil/agent"
	"github.com/vigil-fl/vigil/alert"
	"github.com/vigil-fl/vigil/patient"
	"github.com/vigil-fl/vigil/pkg/models"
	"github.com/vigil-fl/vigil/round"
)

type PatientRepository interface {
	Create(ctx context.Context, p patient.Patient) (patient.Patient, error)
	Get(ctx context.Context, id string) (patient.Patient, error)
	Update(ctx context.Context, p patient.Patient) error
	List(ctx context.Context, offset, limit uint64) ([]patient.Patient, uint64, error)
	Delete(ctx context.Context, id string) error
}

type AgentRepository interface {
	Create(ctx context.Context, a agent.Agent) error
	Get(ctx context.Context, id string) (agent.Agent, error)
	Update(ctx context.Context, a agent.Agent) error
	List(ctx context.Context, offset, limit uint64) ([]agent.Agent, uint64, error)
	Delete(ctx context.Context, id string) error
}

// RoundRepository keeps completed aggregation round summaries. Records
// are immutable once written; List returns them oldest first, Latest
// newest first.
type RoundRepository interface {
	Create(ctx context.Context, r round.Record) error
	Latest(ctx context.Context, n uint64) ([]round.Record, error)
	List(ctx context.Context, offset, limit uint64) ([]round.Record, uint64, error)
}

type SwapRepository interface {
	Create(ctx context.Context, rec models.SwapRecord) error
	ListByPatient(ctx context.Context, patientID string, offset, limit uint64) ([]models.SwapRecord, uint64, error)
}

type AlertRepository interface {
	Create(ctx context.Context, a alert.Alert) error
	List(ctx context.Context, offset, limit uint64) ([]alert.Alert, uint64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (uint64, error)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/vigil-fl/vigil/agent"
	"github.com/vigil-fl/vigil/alert"
	"github.com/vigil-fl/vigil/patient"
	pkgerrors "github.com/vigil-fl/vigil/pkg/errors"
	"github.com/vigil-fl/vigil/pkg/models"
	"github.com/vigil-fl/vigil/round"
)

var (
	ErrDBConnection = errors.New("database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrDBScan       = errors.New("database scan error")
	ErrCreate       = errors.New("create error")
	ErrUpdate       = errors.New("update error")
	ErrDelete       = errors.New("delete error")

	ErrPatientNotFound = fmt.Errorf("patient %w", pkgerrors.ErrNotFound)
	ErrAgentNotFound   = fmt.Errorf("agent %w", pkgerrors.ErrNotFound)
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

type Repositories struct {
	Patients PatientRepository
	Agents   AgentRepository
	Rounds   RoundRepository
	Swaps    SwapRepository
	Alerts   AlertRepository
}

func NewRepositories(db *Database) *Repositories {
	return &Repositories{
		Patients: NewPatientRepository(db),
		Agents:   NewAgentRepository(db),
		Rounds:   NewRoundRepository(db),
		Swaps:    NewSwapRepository(db),
		Alerts:   NewAlertRepository(db),
	}
}

type Database struct {
	*sqlx.DB
}

func NewDatabase(host, port, user, pass, name, sslMode string) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s", host, port, user, pass, name, sslMode)
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &Database{DB: db}

	if err := database.Migrate(); err != nil {
		return nil, err
	}

	return database, nil
}

func (db *Database) Migrate() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_tables",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS patients (
						id VARCHAR(36) PRIMARY KEY,
						name VARCHAR(255) NOT NULL,
						category VARCHAR(64) NOT NULL,
						active_model VARCHAR(64) NOT NULL,
						created_at TIMESTAMPTZ NOT NULL,
						updated_at TIMESTAMPTZ NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_patients_category ON patients(category)`,
					`CREATE TABLE IF NOT EXISTS agents (
						id VARCHAR(36) PRIMARY KEY,
						name VARCHAR(255) NOT NULL,
						alive BOOLEAN DEFAULT FALSE,
						alive_history JSONB,
						update_count BIGINT DEFAULT 0,
						last_update_at TIMESTAMPTZ
					)`,
					`CREATE INDEX IF NOT EXISTS idx_agents_alive ON agents(alive)`,
					`CREATE TABLE IF NOT EXISTS rounds (
						round BIGINT PRIMARY KEY,
						method VARCHAR(32) NOT NULL,
						client_count INTEGER NOT NULL,
						total_samples BIGINT NOT NULL,
						avg_accuracy DOUBLE PRECISION,
						avg_loss DOUBLE PRECISION,
						client_ids JSONB,
						timestamp TIMESTAMPTZ NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_rounds_timestamp ON rounds(timestamp DESC)`,
					`CREATE TABLE IF NOT EXISTS swaps (
						id VARCHAR(72) PRIMARY KEY,
						patient_id VARCHAR(36) NOT NULL,
						previous_model VARCHAR(64) NOT NULL,
						new_model VARCHAR(64) NOT NULL,
						drift_type VARCHAR(64),
						confidence DOUBLE PRECISION,
						swapped BOOLEAN DEFAULT FALSE,
						timestamp TIMESTAMPTZ NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_swaps_patient_id ON swaps(patient_id, timestamp DESC)`,
					`CREATE TABLE IF NOT EXISTS alerts (
						id VARCHAR(36) PRIMARY KEY,
						type VARCHAR(64) NOT NULL,
						severity VARCHAR(16) NOT NULL,
						patient_id VARCHAR(36),
						message TEXT,
						details JSONB,
						timestamp TIMESTAMPTZ NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp DESC)`,
				},
				Down: []string{
					`DROP INDEX IF EXISTS idx_alerts_timestamp`,
					`DROP TABLE IF EXISTS alerts`,
					`DROP INDEX IF EXISTS idx_swaps_patient_id`,
					`DROP TABLE IF EXISTS swaps`,
					`DROP INDEX IF EXISTS idx_rounds_timestamp`,
					`DROP TABLE IF EXISTS rounds`,
					`DROP INDEX IF EXISTS idx_agents_alive`,
					`DROP TABLE IF EXISTS agents`,
					`DROP INDEX IF EXISTS idx_patients_category`,
					`DROP TABLE IF EXISTS patients`,
				},
			},
		},
	}

	if _, err := migrate.Exec(db.DB.DB, "postgres", migrations, migrate.Up); err != nil {
		return fmt.Errorf("database migration error: %w", err)
	}

	return nil
}

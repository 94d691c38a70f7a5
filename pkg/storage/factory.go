package storage

import (
	"fmt"
	"io"

	"github.com/vigil-fl/vigil/pkg/storage/badger"
	"github.com/vigil-fl/vigil/pkg/storage/postgres"
	"github.com/vigil-fl/vigil/pkg/storage/sqlite"
)

type Config struct {
	Type string `env:"COORDINATOR_STORAGE_TYPE" envDefault:"memory"`

	PostgresHost    string `env:"COORDINATOR_POSTGRES_HOST"    envDefault:"localhost"`
	PostgresPort    string `env:"COORDINATOR_POSTGRES_PORT"    envDefault:"5432"`
	PostgresUser    string `env:"COORDINATOR_POSTGRES_USER"    envDefault:"vigil"`
	PostgresPass    string `env:"COORDINATOR_POSTGRES_PASS"    envDefault:"vigil"`
	PostgresDB      string `env:"COORDINATOR_POSTGRES_DB"      envDefault:"vigil"`
	PostgresSSLMode string `env:"COORDINATOR_POSTGRES_SSLMODE" envDefault:"disable"`

	SQLitePath string `env:"COORDINATOR_SQLITE_PATH" envDefault:"./vigil.db"`

	BadgerPath string `env:"COORDINATOR_BADGER_PATH" envDefault:"./data/badger"`
}

type Repositories struct {
	Patients PatientRepository
	Agents   AgentRepository
	Rounds   RoundRepository
	Swaps    SwapRepository
	Alerts   AlertRepository
	// Closer closes the underlying persistent storage connection.
	// It is nil for the in-memory backend.
	Closer io.Closer
}

func NewRepositories(cfg Config) (*Repositories, error) {
	switch cfg.Type {
	case "postgres":
		return newPostgresRepositories(cfg)
	case "sqlite":
		return newSQLiteRepositories(cfg)
	case "badger":
		return newBadgerRepositories(cfg)
	case "memory":
		return newMemoryRepositories()
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func newPostgresRepositories(cfg Config) (*Repositories, error) {
	db, err := postgres.NewDatabase(
		cfg.PostgresHost,
		cfg.PostgresPort,
		cfg.PostgresUser,
		cfg.PostgresPass,
		cfg.PostgresDB,
		cfg.PostgresSSLMode,
	)
	if err != nil {
		return nil, err
	}

	repos := postgres.NewRepositories(db)

	return &Repositories{
		Patients: repos.Patients,
		Agents:   repos.Agents,
		Rounds:   repos.Rounds,
		Swaps:    repos.Swaps,
		Alerts:   repos.Alerts,
		Closer:   db,
	}, nil
}

func newSQLiteRepositories(cfg Config) (*Repositories, error) {
	db, err := sqlite.NewDatabase(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	repos := sqlite.NewRepositories(db)

	return &Repositories{
		Patients: repos.Patients,
		Agents:   repos.Agents,
		Rounds:   repos.Rounds,
		Swaps:    repos.Swaps,
		Alerts:   repos.Alerts,
		Closer:   db,
	}, nil
}

func newBadgerRepositories(cfg Config) (*Repositories, error) {
	db, err := badger.NewDatabase(cfg.BadgerPath)
	if err != nil {
		return nil, err
	}

	repos := badger.NewRepositories(db)

	return &Repositories{
		Patients: repos.Patients,
		Agents:   repos.Agents,
		Rounds:   repos.Rounds,
		Swaps:    repos.Swaps,
		Alerts:   repos.Alerts,
		Closer:   db,
	}, nil
}

func newMemoryRepositories() (*Repositories, error) {
	patientStorage := NewInMemoryStorage()
	agentStorage := NewInMemoryStorage()
	roundStorage := NewInMemoryStorage()
	swapStorage := NewInMemoryStorage()
	alertStorage := NewInMemoryStorage()

	return &Repositories{
		Patients: newMemoryPatientRepository(patientStorage),
		Agents:   newMemoryAgentRepository(agentStorage),
		Rounds:   newMemoryRoundRepository(roundStorage),
		Swaps:    newMemorySwapRepository(swapStorage),
		Alerts:   newMemoryAlertRepository(alertStorage),
	}, nil
}

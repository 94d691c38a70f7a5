package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/vigil-fl/vigil/agent"
	"github.com/vigil-fl/vigil/alert"
	"github.com/vigil-fl/vigil/patient"
	pkgerrors "github.com/vigil-fl/vigil/pkg/errors"
	"github.com/vigil-fl/vigil/pkg/models"
	"github.com/vigil-fl/vigil/round"
)

var (
	ErrDBConnection = errors.New("badger database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrCreate       = errors.New("create error")
	ErrUpdate       = errors.New("update error")
	ErrDelete       = errors.New("delete error")
	ErrNotFound     = pkgerrors.ErrNotFound

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
	db *badger.DB
}

func NewDatabase(path string) (*Database, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) get(key []byte) ([]byte, error) {
	var val []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)

		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return val, nil
}

func (d *Database) set(key, val []byte) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}

func (d *Database) delete(key []byte) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelete, err)
	}

	return nil
}

func (d *Database) listWithPrefix(prefix []byte, offset, limit uint64) ([][]byte, error) {
	var items [][]byte
	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		skipped := uint64(0)
		count := uint64(0)

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if skipped < offset {
				skipped++

				continue
			}
			if count >= limit {
				break
			}

			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			items = append(items, val)
			count++
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return items, nil
}

func (d *Database) countWithPrefix(prefix []byte) (uint64, error) {
	count := uint64(0)
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return count, nil
}

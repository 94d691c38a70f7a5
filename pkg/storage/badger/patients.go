package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vigil-fl/vigil/patient"
)

type patientRepo struct {
	db *Database
}

func NewPatientRepository(db *Database) PatientRepository {
	return &patientRepo{db: db}
}

func (r *patientRepo) Create(ctx context.Context, p patient.Patient) (patient.Patient, error) {
	key := []byte("patient:" + p.ID)
	val, err := json.Marshal(p)
	if err != nil {
		return patient.Patient{}, fmt.Errorf("marshal error: %w", err)
	}
	if err := r.db.set(key, val); err != nil {
		return patient.Patient{}, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return p, nil
}

func (r *patientRepo) Get(ctx context.Context, id string) (patient.Patient, error) {
	key := []byte("patient:" + id)
	val, err := r.db.get(key)
	if err != nil {
		return patient.Patient{}, ErrPatientNotFound
	}
	var p patient.Patient
	if err := json.Unmarshal(val, &p); err != nil {
		return patient.Patient{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return p, nil
}

func (r *patientRepo) Update(ctx context.Context, p patient.Patient) error {
	key := []byte("patient:" + p.ID)
	val, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	if err := r.db.set(key, val); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}

func (r *patientRepo) List(ctx context.Context, offset, limit uint64) ([]patient.Patient, uint64, error) {
	prefix := []byte("patient:")
	total, err := r.db.countWithPrefix(prefix)
	if err != nil {
		return nil, 0, err
	}
	values, err := r.db.listWithPrefix(prefix, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	patients := make([]patient.Patient, len(values))
	for i, val := range values {
		var p patient.Patient
		if err := json.Unmarshal(val, &p); err != nil {
			return nil, 0, fmt.Errorf("unmarshal error: %w", err)
		}
		patients[i] = p
	}

	return patients, total, nil
}

func (r *patientRepo) Delete(ctx context.Context, id string) error {
	key := []byte("patient:" + id)

	return r.db.delete(key)
}

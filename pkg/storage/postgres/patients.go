package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vigil-fl/vigil/patient"
)

type patientRepo struct {
	db *Database
}

func NewPatientRepository(db *Database) PatientRepository {
	return &patientRepo{db: db}
}

type dbPatient struct {
	ID          string       `db:"id"`
	Name        string       `db:"name"`
	Category    string       `db:"category"`
	ActiveModel string       `db:"active_model"`
	CreatedAt   sql.NullTime `db:"created_at"`
	UpdatedAt   sql.NullTime `db:"updated_at"`
}

const patientColumns = `id, name, category, active_model, created_at, updated_at`

func (r *patientRepo) Create(ctx context.Context, p patient.Patient) (patient.Patient, error) {
	query := `INSERT INTO patients (` + patientColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Category, p.ActiveModel, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return patient.Patient{}, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return p, nil
}

func (r *patientRepo) Get(ctx context.Context, id string) (patient.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`

	var dbp dbPatient

	if err := r.db.GetContext(ctx, &dbp, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return patient.Patient{}, ErrPatientNotFound
		}

		return patient.Patient{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return toPatient(dbp), nil
}

func (r *patientRepo) Update(ctx context.Context, p patient.Patient) error {
	query := `UPDATE patients SET name = $2, category = $3, active_model = $4, updated_at = $5 WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Category, p.ActiveModel, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}

func (r *patientRepo) List(ctx context.Context, offset, limit uint64) ([]patient.Patient, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM patients"); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	query := `SELECT ` + patientColumns + ` FROM patients ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}
	defer rows.Close()

	patients := make([]patient.Patient, 0)
	for rows.Next() {
		var dbp dbPatient
		if err := rows.Scan(&dbp.ID, &dbp.Name, &dbp.Category, &dbp.ActiveModel, &dbp.CreatedAt, &dbp.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrDBScan, err)
		}

		patients = append(patients, toPatient(dbp))
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return patients, total, nil
}

func (r *patientRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM patients WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("%w: %w", ErrDelete, err)
	}

	return nil
}

func toPatient(dbp dbPatient) patient.Patient {
	return patient.Patient{
		ID:          dbp.ID,
		Name:        dbp.Name,
		Category:    dbp.Category,
		ActiveModel: dbp.ActiveModel,
		CreatedAt:   dbp.CreatedAt.Time,
		UpdatedAt:   dbp.UpdatedAt.Time,
	}
}

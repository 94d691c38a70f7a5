package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vigil-fl/vigil/alert"
)

type alertRepo struct {
	db *Database
}

func NewAlertRepository(db *Database) AlertRepository {
	return &alertRepo{db: db}
}

type dbAlert struct {
	ID        string       `db:"id"`
	Type      string       `db:"type"`
	Severity  string       `db:"severity"`
	PatientID *string      `db:"patient_id"`
	Message   string       `db:"message"`
	Details   []byte       `db:"details"`
	Timestamp sql.NullTime `db:"timestamp"`
}

const alertColumns = `id, type, severity, patient_id, message, details, timestamp`

func (r *alertRepo) Create(ctx context.Context, a alert.Alert) error {
	query := `INSERT INTO alerts (` + alertColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	details, err := jsonBytes(a.Details)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	_, err = r.db.ExecContext(ctx, query,
		a.ID, a.Type, a.Severity, nullString(a.PatientID), a.Message, details, a.At,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *alertRepo) List(ctx context.Context, offset, limit uint64) ([]alert.Alert, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM alerts"); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	query := `SELECT ` + alertColumns + ` FROM alerts ORDER BY timestamp DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}
	defer rows.Close()

	alerts := make([]alert.Alert, 0)
	for rows.Next() {
		var dba dbAlert
		if err := rows.Scan(
			&dba.ID, &dba.Type, &dba.Severity, &dba.PatientID,
			&dba.Message, &dba.Details, &dba.Timestamp,
		); err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrDBScan, err)
		}

		a, err := toAlert(dba)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrDBScan, err)
		}

		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return alerts, total, nil
}

func (r *alertRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (uint64, error) {
	query := `DELETE FROM alerts WHERE timestamp < $1`

	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDelete, err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDelete, err)
	}

	return uint64(removed), nil
}

func toAlert(dba dbAlert) (alert.Alert, error) {
	a := alert.Alert{
		ID:       dba.ID,
		Type:     dba.Type,
		Severity: dba.Severity,
		Message:  dba.Message,
	}

	if dba.PatientID != nil {
		a.PatientID = *dba.PatientID
	}
	if err := jsonUnmarshal(dba.Details, &a.Details); err != nil {
		return alert.Alert{}, err
	}
	if dba.Timestamp.Valid {
		a.At = dba.Timestamp.Time
	}

	return a, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vigil-fl/vigil/pkg/models"
)

type swapRepo struct {
	db *Database
}

func NewSwapRepository(db *Database) SwapRepository {
	return &swapRepo{db: db}
}

type dbSwap struct {
	ID         string       `db:"id"`
	PatientID  string       `db:"patient_id"`
	Previous   string       `db:"previous_model"`
	New        string       `db:"new_model"`
	DriftType  string       `db:"drift_type"`
	Confidence float64      `db:"confidence"`
	Swapped    bool         `db:"swapped"`
	Timestamp  sql.NullTime `db:"timestamp"`
}

const swapColumns = `id, patient_id, previous_model, new_model, drift_type, confidence, swapped, timestamp`

func (r *swapRepo) Create(ctx context.Context, rec models.SwapRecord) error {
	query := `INSERT INTO swaps (` + swapColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	id := fmt.Sprintf("%s:%d", rec.PatientID, rec.At.UnixNano())

	_, err := r.db.ExecContext(ctx, query,
		id, rec.PatientID, rec.Previous, rec.New,
		rec.DriftType, rec.Confidence, rec.Swapped, rec.At,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *swapRepo) ListByPatient(ctx context.Context, patientID string, offset, limit uint64) ([]models.SwapRecord, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM swaps WHERE patient_id = ?", patientID); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	query := `SELECT ` + swapColumns + ` FROM swaps WHERE patient_id = ? ORDER BY timestamp DESC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}
	defer rows.Close()

	records := make([]models.SwapRecord, 0)
	for rows.Next() {
		var dbs dbSwap
		if err := rows.Scan(
			&dbs.ID, &dbs.PatientID, &dbs.Previous, &dbs.New,
			&dbs.DriftType, &dbs.Confidence, &dbs.Swapped, &dbs.Timestamp,
		); err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrDBScan, err)
		}

		records = append(records, models.SwapRecord{
			PatientID:  dbs.PatientID,
			Previous:   dbs.Previous,
			New:        dbs.New,
			DriftType:  dbs.DriftType,
			Confidence: dbs.Confidence,
			Swapped:    dbs.Swapped,
			At:         dbs.Timestamp.Time,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return records, total, nil
}

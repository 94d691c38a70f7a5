package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vigil-fl/vigil/pkg/models"
)

type swapRepo struct {
	db *Database
}

func NewSwapRepository(db *Database) SwapRepository {
	return &swapRepo{db: db}
}

func swapPrefix(patientID string) []byte {
	return []byte("swap:" + patientID + ":")
}

func (r *swapRepo) Create(ctx context.Context, rec models.SwapRecord) error {
	key := append(swapPrefix(rec.PatientID), fmt.Sprintf("%020d", rec.At.UnixNano())...)
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	if err := r.db.set(key, val); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *swapRepo) ListByPatient(ctx context.Context, patientID string, offset, limit uint64) ([]models.SwapRecord, uint64, error) {
	prefix := swapPrefix(patientID)
	total, err := r.db.countWithPrefix(prefix)
	if err != nil {
		return nil, 0, err
	}
	if offset >= total {
		return []models.SwapRecord{}, total, nil
	}

	// Keys iterate oldest first; page from the tail so callers see
	// newest first.
	end := total - offset
	start := uint64(0)
	if end > limit {
		start = end - limit
	}

	values, err := r.db.listWithPrefix(prefix, start, end-start)
	if err != nil {
		return nil, 0, err
	}

	records := make([]models.SwapRecord, len(values))
	for i, val := range values {
		var rec models.SwapRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return nil, 0, fmt.Errorf("unmarshal error: %w", err)
		}
		records[len(values)-1-i] = rec
	}

	return records, total, nil
}

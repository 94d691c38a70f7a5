package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vigil-fl/vigil/round"
)

type roundRepo struct {
	db *Database
}

func NewRoundRepository(db *Database) RoundRepository {
	return &roundRepo{db: db}
}

// roundKey zero-pads the round number so prefix iteration yields
// numeric order.
func roundKey(n uint64) []byte {
	return []byte(fmt.Sprintf("round:%020d", n))
}

func (r *roundRepo) Create(ctx context.Context, rec round.Record) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	if err := r.db.set(roundKey(rec.Round), val); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *roundRepo) Latest(ctx context.Context, n uint64) ([]round.Record, error) {
	prefix := []byte("round:")
	total, err := r.db.countWithPrefix(prefix)
	if err != nil {
		return nil, err
	}

	if n > total {
		n = total
	}

	values, err := r.db.listWithPrefix(prefix, total-n, n)
	if err != nil {
		return nil, err
	}

	// Iteration returns oldest first; callers expect newest first.
	records := make([]round.Record, len(values))
	for i, val := range values {
		var rec round.Record
		if err := json.Unmarshal(val, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal error: %w", err)
		}
		records[len(values)-1-i] = rec
	}

	return records, nil
}

func (r *roundRepo) List(ctx context.Context, offset, limit uint64) ([]round.Record, uint64, error) {
	prefix := []byte("round:")
	total, err := r.db.countWithPrefix(prefix)
	if err != nil {
		return nil, 0, err
	}
	values, err := r.db.listWithPrefix(prefix, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	records := make([]round.Record, len(values))
	for i, val := range values {
		var rec round.Record
		if err := json.Unmarshal(val, &rec); err != nil {
			return nil, 0, fmt.Errorf("unmarshal error: %w", err)
		}
		records[i] = rec
	}

	return records, total, nil
}

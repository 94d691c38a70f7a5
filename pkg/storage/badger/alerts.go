package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/vigil-fl/vigil/alert"
)

type alertRepo struct {
	db *Database
}

func NewAlertRepository(db *Database) AlertRepository {
	return &alertRepo{db: db}
}

func alertKey(a alert.Alert) []byte {
	return []byte(fmt.Sprintf("alert:%020d:%s", a.At.UnixNano(), a.ID))
}

func (r *alertRepo) Create(ctx context.Context, a alert.Alert) error {
	val, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	if err := r.db.set(alertKey(a), val); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *alertRepo) List(ctx context.Context, offset, limit uint64) ([]alert.Alert, uint64, error) {
	prefix := []byte("alert:")
	total, err := r.db.countWithPrefix(prefix)
	if err != nil {
		return nil, 0, err
	}
	if offset >= total {
		return []alert.Alert{}, total, nil
	}

	// Keys are ordered by timestamp ascending; page from the tail so
	// callers see newest first.
	end := total - offset
	start := uint64(0)
	if end > limit {
		start = end - limit
	}

	values, err := r.db.listWithPrefix(prefix, start, end-start)
	if err != nil {
		return nil, 0, err
	}

	alerts := make([]alert.Alert, len(values))
	for i, val := range values {
		var a alert.Alert
		if err := json.Unmarshal(val, &a); err != nil {
			return nil, 0, fmt.Errorf("unmarshal error: %w", err)
		}
		alerts[len(values)-1-i] = a
	}

	return alerts, total, nil
}

func (r *alertRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (uint64, error) {
	prefix := []byte("alert:")
	var stale [][]byte

	err := r.db.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			var a alert.Alert
			if err := json.Unmarshal(val, &a); err != nil {
				return fmt.Errorf("unmarshal error: %w", err)
			}

			if !a.At.Before(cutoff) {
				// Keys are time-ordered, nothing newer is stale.
				break
			}
			stale = append(stale, it.Item().KeyCopy(nil))
		}

		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}

		return 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	err = r.db.db.Update(func(txn *badgerdb.Txn) error {
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDelete, err)
	}

	return uint64(len(stale)), nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vigil-fl/vigil/round"
)

type roundRepo struct {
	db *Database
}

func NewRoundRepository(db *Database) RoundRepository {
	return &roundRepo{db: db}
}

type dbRound struct {
	Round        uint64       `db:"round"`
	Method       string       `db:"method"`
	ClientCount  int          `db:"client_count"`
	TotalSamples int64        `db:"total_samples"`
	AvgAccuracy  float64      `db:"avg_accuracy"`
	AvgLoss      float64      `db:"avg_loss"`
	ClientIDs    []byte       `db:"client_ids"`
	Timestamp    sql.NullTime `db:"timestamp"`
}

const roundColumns = `round, method, client_count, total_samples, avg_accuracy, avg_loss, client_ids, timestamp`

func (r *roundRepo) Create(ctx context.Context, rec round.Record) error {
	query := `INSERT INTO rounds (` + roundColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	clientIDs, err := jsonBytes(rec.ClientIDs)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	_, err = r.db.ExecContext(ctx, query,
		rec.Round, rec.Method, rec.ClientCount, rec.TotalSamples,
		rec.AvgAccuracy, rec.AvgLoss, clientIDs, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *roundRepo) Latest(ctx context.Context, n uint64) ([]round.Record, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds ORDER BY round DESC LIMIT $1`

	return r.scanRounds(ctx, query, n)
}

func (r *roundRepo) List(ctx context.Context, offset, limit uint64) ([]round.Record, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM rounds"); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	query := `SELECT ` + roundColumns + ` FROM rounds ORDER BY round LIMIT $1 OFFSET $2`

	records, err := r.scanRounds(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (r *roundRepo) scanRounds(ctx context.Context, query string, args ...any) ([]round.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}
	defer rows.Close()

	records := make([]round.Record, 0)
	for rows.Next() {
		var dbr dbRound
		if err := rows.Scan(
			&dbr.Round, &dbr.Method, &dbr.ClientCount, &dbr.TotalSamples,
			&dbr.AvgAccuracy, &dbr.AvgLoss, &dbr.ClientIDs, &dbr.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDBScan, err)
		}

		rec, err := toRound(dbr)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDBScan, err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return records, nil
}

func toRound(dbr dbRound) (round.Record, error) {
	rec := round.Record{
		Round:        dbr.Round,
		Method:       dbr.Method,
		ClientCount:  dbr.ClientCount,
		TotalSamples: dbr.TotalSamples,
		AvgAccuracy:  dbr.AvgAccuracy,
		AvgLoss:      dbr.AvgLoss,
		Timestamp:    dbr.Timestamp.Time,
	}

	if err := jsonUnmarshal(dbr.ClientIDs, &rec.ClientIDs); err != nil {
		return round.Record{}, err
	}

	return rec, nil
}

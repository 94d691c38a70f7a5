package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vigil-fl/vigil/agent"
)

type agentRepo struct {
	db *Database
}

func NewAgentRepository(db *Database) AgentRepository {
	return &agentRepo{db: db}
}

type dbAgent struct {
	ID           string       `db:"id"`
	Name         string       `db:"name"`
	Alive        bool         `db:"alive"`
	AliveHistory []byte       `db:"alive_history"`
	UpdateCount  uint64       `db:"update_count"`
	LastUpdateAt sql.NullTime `db:"last_update_at"`
}

const agentColumns = `id, name, alive, alive_history, update_count, last_update_at`

func (r *agentRepo) Create(ctx context.Context, a agent.Agent) error {
	query := `INSERT INTO agents (` + agentColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`

	history, err := jsonBytes(a.AliveHistory)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	_, err = r.db.ExecContext(ctx, query, a.ID, a.Name, a.Alive, history, a.UpdateCount, nullTime(a.LastUpdateAt))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *agentRepo) Get(ctx context.Context, id string) (agent.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`

	var dba dbAgent

	if err := r.db.GetContext(ctx, &dba, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return agent.Agent{}, ErrAgentNotFound
		}

		return agent.Agent{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return toAgent(dba)
}

func (r *agentRepo) Update(ctx context.Context, a agent.Agent) error {
	query := `UPDATE agents SET name = $2, alive = $3, alive_history = $4, update_count = $5, last_update_at = $6 WHERE id = $1`

	history, err := jsonBytes(a.AliveHistory)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	_, err = r.db.ExecContext(ctx, query, a.ID, a.Name, a.Alive, history, a.UpdateCount, nullTime(a.LastUpdateAt))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}

func (r *agentRepo) List(ctx context.Context, offset, limit uint64) ([]agent.Agent, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM agents"); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	query := `SELECT ` + agentColumns + ` FROM agents ORDER BY id LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}
	defer rows.Close()

	agents := make([]agent.Agent, 0)
	for rows.Next() {
		var dba dbAgent
		if err := rows.Scan(&dba.ID, &dba.Name, &dba.Alive, &dba.AliveHistory, &dba.UpdateCount, &dba.LastUpdateAt); err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrDBScan, err)
		}

		a, err := toAgent(dba)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrDBScan, err)
		}

		agents = append(agents, a)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return agents, total, nil
}

func (r *agentRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM agents WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("%w: %w", ErrDelete, err)
	}

	return nil
}

func toAgent(dba dbAgent) (agent.Agent, error) {
	a := agent.Agent{
		ID:          dba.ID,
		Name:        dba.Name,
		Alive:       dba.Alive,
		UpdateCount: dba.UpdateCount,
	}

	if err := jsonUnmarshal(dba.AliveHistory, &a.AliveHistory); err != nil {
		return agent.Agent{}, err
	}
	if dba.LastUpdateAt.Valid {
		a.LastUpdateAt = dba.LastUpdateAt.Time
	}

	return a, nil
}

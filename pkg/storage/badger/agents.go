package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vigil-fl/vigil/agent"
)

type agentRepo struct {
	db *Database
}

func NewAgentRepository(db *Database) AgentRepository {
	return &agentRepo{db: db}
}

func (r *agentRepo) Create(ctx context.Context, a agent.Agent) error {
	key := []byte("agent:" + a.ID)
	val, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	if err := r.db.set(key, val); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *agentRepo) Get(ctx context.Context, id string) (agent.Agent, error) {
	key := []byte("agent:" + id)
	val, err := r.db.get(key)
	if err != nil {
		return agent.Agent{}, ErrAgentNotFound
	}
	var a agent.Agent
	if err := json.Unmarshal(val, &a); err != nil {
		return agent.Agent{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return a, nil
}

func (r *agentRepo) Update(ctx context.Context, a agent.Agent) error {
	key := []byte("agent:" + a.ID)
	val, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	if err := r.db.set(key, val); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}

func (r *agentRepo) List(ctx context.Context, offset, limit uint64) ([]agent.Agent, uint64, error) {
	prefix := []byte("agent:")
	total, err := r.db.countWithPrefix(prefix)
	if err != nil {
		return nil, 0, err
	}
	values, err := r.db.listWithPrefix(prefix, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	agents := make([]agent.Agent, len(values))
	for i, val := range values {
		var a agent.Agent
		if err := json.Unmarshal(val, &a); err != nil {
			return nil, 0, fmt.Errorf("unmarshal error: %w", err)
		}
		agents[i] = a
	}

	return agents, total, nil
}

func (r *agentRepo) Delete(ctx context.Context, id string) error {
	key := []byte("agent:" + id)

	return r.db.delete(key)
}

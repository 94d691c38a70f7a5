// Package storage provides the coordinator's persistence layer: typed
// repositories for patients, agents, rounds, model swaps, and alerts,
// with in-memory, SQLite, PostgreSQL, and Badger backends selected
// through an environment-driven factory.
package storage

import "context"

// Storage is a generic keyed store backing the in-memory repositories.
type Storage interface {
	Create(ctx context.Context, key string, value interface{}) error
	Get(ctx context.Context, key string) (interface{}, error)
	Update(ctx context.Context, key string, value interface{}) error
	List(ctx context.Context, offset, limit uint64) ([]interface{}, uint64, error)
	Delete(ctx context.Context, key string) error
}

// Package store persists saved queries and upload-run history, and owns the
// star-schema migration.
package store

import (
	"context"

	"github.com/final-funnel/funnel-cli/internal/model"
)

// QueryStore is the persistence interface for saved filter queries. Both the
// Postgres store and the standalone SQLite store implement it, so the queries
// command works with or without a warehouse connection.
type QueryStore interface {
	SaveQuery(ctx context.Context, q model.SavedQuery) (*model.SavedQuery, error)
	GetQuery(ctx context.Context, id string) (*model.SavedQuery, error)
	ListQueries(ctx context.Context) ([]model.SavedQuery, error)
	DeleteQuery(ctx context.Context, id string) error

	Migrate(ctx context.Context) error
	Close() error
}

// Store is the full persistence interface backed by the warehouse.
type Store interface {
	QueryStore

	CreateRun(ctx context.Context, report model.RunReport, log *model.RunLog) error
	GetRun(ctx context.Context, runID string) (*model.RunReport, *model.RunLog, error)
	ListRuns(ctx context.Context, limit int) ([]model.RunReport, error)
}

package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/final-funnel/funnel-cli/internal/cache"
	"github.com/final-funnel/funnel-cli/internal/pipeline"
	"github.com/final-funnel/funnel-cli/internal/store"
)

// env bundles the warehouse-backed subsystems a command needs.
type env struct {
	Store     *store.PostgresStore
	Pipeline  *pipeline.Pipeline
	Refresher *cache.Refresher
	Filters   *cache.FilterOptions
}

func initEnv(ctx context.Context) (*env, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("database URL is required (FUNNEL_STORE_DATABASE_URL)")
	}

	st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.Pool.MaxConns,
		MinConns: cfg.Store.Pool.MinConns,
	})
	if err != nil {
		return nil, err
	}

	filters := cache.NewFilterOptions(st.Pool())
	refresher := cache.NewRefresher(st.Pool(), filters)

	return &env{
		Store:     st,
		Pipeline:  pipeline.New(st.Pool(), refresher),
		Refresher: refresher,
		Filters:   filters,
	}, nil
}

func (e *env) Close() {
	_ = e.Store.Close()
}

// queryStore picks the saved-query backend from config: the warehouse by
// default, or a local SQLite file for offline use.
func queryStore(ctx context.Context) (store.QueryStore, error) {
	if cfg.Store.QueryDriver == "sqlite" {
		st, err := store.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	}

	e, err := initEnv(ctx)
	if err != nil {
		return nil, err
	}
	return e.Store, nil
}

package cache

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/final-funnel/funnel-cli/internal/db"
)

// filterableColumns are the categorical columns the UI offers as filters.
var filterableColumns = []string{
	"jobtitle", "manlevel", "emailstatus", "comp_industry",
	"comp_city", "comp_state", "comp_country",
}

// FilterOptions memoizes the distinct values of each filterable column so the
// UI dropdowns do not hit the warehouse on every page load. The refresher
// invalidates it whenever the cache tables change.
type FilterOptions struct {
	pool db.Pool

	mu     sync.RWMutex
	values map[string][]string
}

// NewFilterOptions creates a FilterOptions cache.
func NewFilterOptions(pool db.Pool) *FilterOptions {
	return &FilterOptions{pool: pool}
}

// Options returns the distinct values per filterable column, loading them on
// first use.
func (f *FilterOptions) Options(ctx context.Context) (map[string][]string, error) {
	f.mu.RLock()
	if f.values != nil {
		defer f.mu.RUnlock()
		return f.values, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values != nil {
		return f.values, nil
	}

	values := make(map[string][]string, len(filterableColumns))
	for _, col := range filterableColumns {
		opts, err := f.load(ctx, col)
		if err != nil {
			return nil, err
		}
		values[col] = opts
	}
	f.values = values
	return values, nil
}

// Invalidate drops the memoized values; the next Options call reloads.
func (f *FilterOptions) Invalidate() {
	f.mu.Lock()
	f.values = nil
	f.mu.Unlock()
}

func (f *FilterOptions) load(ctx context.Context, col string) ([]string, error) {
	sql := `SELECT DISTINCT ` + pgx.Identifier{col}.Sanitize() +
		` FROM cached_filters_contacts_data WHERE ` + pgx.Identifier{col}.Sanitize() +
		` IS NOT NULL ORDER BY 1`
	rows, err := f.pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrapf(err, "cache: load filter options %s", col)
	}
	defer rows.Close()

	var opts []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrapf(err, "cache: scan filter option %s", col)
		}
		opts = append(opts, v)
	}
	return opts, eris.Wrapf(rows.Err(), "cache: iterate filter options %s", col)
}

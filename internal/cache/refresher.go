// Package cache maintains the two denormalized contact tables that back the
// browse UI: the full view and the slimmer filters view. Ingest runs refresh
// only the ids they touched; a full rebuild is available for drift repair.
package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/final-funnel/funnel-cli/internal/db"
)

var fullColumns = []string{
	"id", "full_name", "firstname", "lastname", "email", "linkedin",
	"jobtitle", "manlevel", "emailstatus",
	"comp_name", "comp_domain", "comp_linkedin", "comp_phone",
	"annual_revenue", "emp_size", "comp_industry",
	"comp_street", "comp_city", "comp_state", "comp_country", "comp_zipcode",
	"last_updated",
}

var filterColumns = []string{
	"id", "jobtitle", "manlevel", "emailstatus", "comp_industry",
	"comp_city", "comp_state", "comp_country", "annual_revenue", "emp_size",
	"last_updated",
}

// fullJoinSelect flattens one contact into the full cache shape. Column
// order matches fullColumns exactly; last_updated is stamped at refresh time.
const fullJoinSelect = `SELECT c.id, c.full_name, c.firstname, c.lastname, c.email, c.linkedin,
	jt.name, ml.name, es.name,
	co.name, co.domain, co.linkedin, co.phone,
	co.annual_revenue, co.emp_size, ind.name,
	addr.name, city.name, st.name, ctry.name, zip.name, now()
 FROM fact_contacts c
 JOIN fact_companies co ON co.id = c.company_id
 JOIN dim_jobtitles jt ON jt.id = c.jobtitle_id
 JOIN dim_manlevels ml ON ml.id = c.manlevel_id
 JOIN dim_emailstatus es ON es.id = c.emailstatus_id
 JOIN dim_industries ind ON ind.id = co.industry_id
 JOIN dim_addresses addr ON addr.id = co.address_id
 JOIN dim_cities city ON city.id = co.city_id
 JOIN dim_states st ON st.id = co.state_id
 JOIN dim_countries ctry ON ctry.id = co.country_id
 JOIN dim_zipcodes zip ON zip.id = co.zipcode_id`

// Refresher rebuilds the denormalized cache tables.
type Refresher struct {
	pool    db.Pool
	filters *FilterOptions
	log     *zap.Logger
}

// NewRefresher creates a Refresher. The filter-options cache, when given, is
// invalidated after every refresh.
func NewRefresher(pool db.Pool, filters *FilterOptions) *Refresher {
	return &Refresher{
		pool:    pool,
		filters: filters,
		log:     zap.L().With(zap.String("component", "cache_refresher")),
	}
}

// RefreshIDs re-derives the cache rows for the given contact ids. Both cache
// tables are updated in one transaction so readers never see them disagree.
func (r *Refresher) RefreshIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "cache: begin refresh")
	}
	defer tx.Rollback(ctx)

	fullSQL := upsertFromSelectSQL("cached_full_contacts_data", fullColumns,
		fullJoinSelect+` WHERE c.id = ANY($1)`)
	if _, err := tx.Exec(ctx, fullSQL, ids); err != nil {
		return eris.Wrap(err, "cache: refresh full rows")
	}

	filtersSQL := upsertFromSelectSQL("cached_filters_contacts_data", filterColumns,
		`SELECT `+strings.Join(filterColumns, ", ")+` FROM cached_full_contacts_data WHERE id = ANY($1)`)
	if _, err := tx.Exec(ctx, filtersSQL, ids); err != nil {
		return eris.Wrap(err, "cache: refresh filter rows")
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "cache: commit refresh")
	}

	r.invalidate()
	r.log.Info("cache refreshed", zap.Int("contacts", len(ids)))
	return nil
}

// RefreshAll rebuilds both cache tables from scratch.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "cache: begin full rebuild")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE TABLE cached_full_contacts_data`); err != nil {
		return eris.Wrap(err, "cache: truncate full")
	}
	if _, err := tx.Exec(ctx, `TRUNCATE TABLE cached_filters_contacts_data`); err != nil {
		return eris.Wrap(err, "cache: truncate filters")
	}

	insertFull := fmt.Sprintf("INSERT INTO cached_full_contacts_data (%s) %s",
		strings.Join(fullColumns, ", "), fullJoinSelect)
	tag, err := tx.Exec(ctx, insertFull)
	if err != nil {
		return eris.Wrap(err, "cache: rebuild full")
	}

	insertFilters := fmt.Sprintf("INSERT INTO cached_filters_contacts_data (%s) SELECT %s FROM cached_full_contacts_data",
		strings.Join(filterColumns, ", "), strings.Join(filterColumns, ", "))
	if _, err := tx.Exec(ctx, insertFilters); err != nil {
		return eris.Wrap(err, "cache: rebuild filters")
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "cache: commit full rebuild")
	}

	r.invalidate()
	r.log.Info("cache fully rebuilt", zap.Int64("contacts", tag.RowsAffected()))
	return nil
}

func (r *Refresher) invalidate() {
	if r.filters != nil {
		r.filters.Invalidate()
	}
}

// upsertFromSelectSQL builds INSERT ... SELECT ... ON CONFLICT (id) DO UPDATE
// over every non-id column.
func upsertFromSelectSQL(table string, columns []string, selectSQL string) string {
	var setClauses []string
	for _, col := range columns {
		if col == "id" {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) %s ON CONFLICT (id) DO UPDATE SET %s",
		table, strings.Join(columns, ", "), selectSQL, strings.Join(setClauses, ", "))
}

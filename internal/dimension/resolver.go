// Package dimension resolves normalized text values to surrogate keys,
// inserting missing dimension rows as it goes.
package dimension

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/final-funnel/funnel-cli/internal/db"
	"github.com/final-funnel/funnel-cli/internal/model"
)

const uniqueViolation = "23505"

// Resolver looks up and creates dimension rows. Every lookup is batched per
// distinct value, so a 5,000-row upload costs a handful of queries per table.
type Resolver struct {
	pool db.Pool
	log  *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(pool db.Pool) *Resolver {
	return &Resolver{
		pool: pool,
		log:  zap.L().With(zap.String("component", "dimension_resolver")),
	}
}

// Resolve maps every normalized row onto its dimension ids. Countries go
// first so states can be scoped by them; everything else is independent.
func (r *Resolver) Resolve(ctx context.Context, rows []model.NormalizedRow, runLog *model.RunLog) ([]model.ResolvedRow, error) {
	countries, err := r.ResolveCountries(ctx, distinct(rows, func(n model.NormalizedRow) string { return n.Country }), runLog)
	if err != nil {
		return nil, err
	}

	stateKeys := make([]StateKey, 0, len(rows))
	for _, n := range rows {
		stateKeys = append(stateKeys, StateKey{Name: n.State, CountryID: countries[n.Country]})
	}
	states, err := r.ResolveStates(ctx, stateKeys, runLog)
	if err != nil {
		return nil, err
	}

	cities, err := r.ResolvePlain(ctx, "dim_cities", distinct(rows, func(n model.NormalizedRow) string { return n.City }), runLog)
	if err != nil {
		return nil, err
	}
	addresses, err := r.ResolvePlain(ctx, "dim_addresses", distinct(rows, func(n model.NormalizedRow) string { return n.Street }), runLog)
	if err != nil {
		return nil, err
	}
	zipcodes, err := r.ResolvePlain(ctx, "dim_zipcodes", distinct(rows, func(n model.NormalizedRow) string { return n.ZipCode }), runLog)
	if err != nil {
		return nil, err
	}
	industries, err := r.ResolvePlain(ctx, "dim_industries", distinct(rows, func(n model.NormalizedRow) string { return n.Industry }), runLog)
	if err != nil {
		return nil, err
	}
	manlevels, err := r.ResolvePlain(ctx, "dim_manlevels", distinct(rows, func(n model.NormalizedRow) string { return n.ManLevel }), runLog)
	if err != nil {
		return nil, err
	}

	titleKeys := make([]JobTitleKey, 0, len(rows))
	for _, n := range rows {
		titleKeys = append(titleKeys, JobTitleKey{Name: n.JobTitle, ManLevelID: manlevels[n.ManLevel]})
	}
	titles, err := r.ResolveJobTitles(ctx, titleKeys, runLog)
	if err != nil {
		return nil, err
	}

	resolved := make([]model.ResolvedRow, 0, len(rows))
	for _, n := range rows {
		resolved = append(resolved, model.ResolvedRow{
			NormalizedRow: n,
			AddressID:     addresses[n.Street],
			CityID:        cities[n.City],
			StateID:       states[StateKey{Name: n.State, CountryID: countries[n.Country]}],
			PostalCodeID:  zipcodes[n.ZipCode],
			CountryID:     countries[n.Country],
			IndustryID:    industries[n.Industry],
			ManLevelID:    manlevels[n.ManLevel],
			JobTitleID:    titles[JobTitleKey{Name: n.JobTitle, ManLevelID: manlevels[n.ManLevel]}],
		})
	}
	return resolved, nil
}

// ResolvePlain resolves a single-column name dimension. Missing names are
// inserted; a concurrent insert losing the unique race falls back to re-read.
func (r *Resolver) ResolvePlain(ctx context.Context, table string, names []string, runLog *model.RunLog) (map[string]int64, error) {
	ids := make(map[string]int64, len(names))
	if len(names) == 0 {
		return ids, nil
	}

	if err := r.selectByName(ctx, table, names, ids); err != nil {
		return nil, err
	}

	for _, name := range names {
		if _, ok := ids[name]; ok {
			continue
		}
		id, err := r.insertName(ctx, table, name, runLog)
		if err != nil {
			return nil, err
		}
		ids[name] = id
	}
	return ids, nil
}

// ResolveCountries is ResolvePlain for dim_countries, where new rows carry
// the sentinel subregion until a later enrichment classifies them.
func (r *Resolver) ResolveCountries(ctx context.Context, names []string, runLog *model.RunLog) (map[string]int64, error) {
	ids := make(map[string]int64, len(names))
	if len(names) == 0 {
		return ids, nil
	}

	if err := r.selectByName(ctx, "dim_countries", names, ids); err != nil {
		return nil, err
	}

	for _, name := range names {
		if _, ok := ids[name]; ok {
			continue
		}
		var id int64
		err := r.pool.QueryRow(ctx,
			`INSERT INTO dim_countries (name, subregion_id) VALUES ($1, $2) RETURNING id`,
			name, model.SentinelID,
		).Scan(&id)
		if isUniqueViolation(err) {
			id, err = r.reread(ctx, "dim_countries", name, runLog)
		}
		if err != nil {
			return nil, eris.Wrapf(err, "dimension: insert country %q", name)
		}
		ids[name] = id
	}
	return ids, nil
}

// StateKey identifies a state within its country.
type StateKey struct {
	Name      string
	CountryID int64
}

// ResolveStates resolves the composite (name, country_id) state dimension.
// A blank state maps straight to the sentinel row. A state arriving under the
// sentinel country is resolved there and counted, since it usually means the
// upload named a state without a recognizable country.
func (r *Resolver) ResolveStates(ctx context.Context, keys []StateKey, runLog *model.RunLog) (map[StateKey]int64, error) {
	ids := make(map[StateKey]int64, len(keys))
	for _, key := range keys {
		if _, ok := ids[key]; ok {
			continue
		}
		if key.Name == "" {
			ids[key] = model.SentinelID
			continue
		}
		if key.CountryID == model.SentinelID && runLog != nil {
			runLog.SentinelStates++
			runLog.Warnf("state %q has no country scope, resolving under sentinel", key.Name)
			r.log.Warn("state without country scope", zap.String("state", key.Name))
		}

		var id int64
		err := r.pool.QueryRow(ctx,
			`SELECT id FROM dim_states WHERE name = $1 AND country_id = $2`,
			key.Name, key.CountryID,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			err = r.pool.QueryRow(ctx,
				`INSERT INTO dim_states (name, country_id) VALUES ($1, $2) RETURNING id`,
				key.Name, key.CountryID,
			).Scan(&id)
			if isUniqueViolation(err) {
				if runLog != nil {
					runLog.ResolvedRaces++
				}
				err = r.pool.QueryRow(ctx,
					`SELECT id FROM dim_states WHERE name = $1 AND country_id = $2`,
					key.Name, key.CountryID,
				).Scan(&id)
			}
		}
		if err != nil {
			return nil, eris.Wrapf(err, "dimension: resolve state %q", key.Name)
		}
		ids[key] = id
	}
	return ids, nil
}

// JobTitleKey identifies a job title and the management level it arrived with.
type JobTitleKey struct {
	Name       string
	ManLevelID int64
}

// ResolveJobTitles resolves job titles, which are unique by name but carry a
// management level. When an upload carries a different level for an existing
// title, the stored row is reclassified; a sentinel incoming level never
// overwrites a known one.
func (r *Resolver) ResolveJobTitles(ctx context.Context, keys []JobTitleKey, runLog *model.RunLog) (map[JobTitleKey]int64, error) {
	ids := make(map[JobTitleKey]int64, len(keys))
	for _, key := range keys {
		if _, ok := ids[key]; ok {
			continue
		}

		var id, storedLevel int64
		err := r.pool.QueryRow(ctx,
			`SELECT id, manlevel_id FROM dim_jobtitles WHERE name = $1`,
			key.Name,
		).Scan(&id, &storedLevel)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			err = r.pool.QueryRow(ctx,
				`INSERT INTO dim_jobtitles (name, manlevel_id) VALUES ($1, $2) RETURNING id`,
				key.Name, key.ManLevelID,
			).Scan(&id)
			if isUniqueViolation(err) {
				if runLog != nil {
					runLog.ResolvedRaces++
				}
				err = r.pool.QueryRow(ctx,
					`SELECT id FROM dim_jobtitles WHERE name = $1`,
					key.Name,
				).Scan(&id)
			}
			if err != nil {
				return nil, eris.Wrapf(err, "dimension: insert job title %q", key.Name)
			}
		case err != nil:
			return nil, eris.Wrapf(err, "dimension: resolve job title %q", key.Name)
		default:
			if key.ManLevelID != model.SentinelID && storedLevel != key.ManLevelID {
				if _, err := r.pool.Exec(ctx,
					`UPDATE dim_jobtitles SET manlevel_id = $1 WHERE id = $2`,
					key.ManLevelID, id,
				); err != nil {
					return nil, eris.Wrapf(err, "dimension: correct job title %q", key.Name)
				}
				r.log.Info("corrected job title management level",
					zap.String("title", key.Name), zap.Int64("manlevel_id", key.ManLevelID))
			}
		}
		ids[key] = id
	}
	return ids, nil
}

func (r *Resolver) selectByName(ctx context.Context, table string, names []string, ids map[string]int64) error {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name FROM `+pgx.Identifier{table}.Sanitize()+` WHERE name = ANY($1)`,
		names,
	)
	if err != nil {
		return eris.Wrapf(err, "dimension: select %s", table)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return eris.Wrapf(err, "dimension: scan %s", table)
		}
		ids[name] = id
	}
	return eris.Wrapf(rows.Err(), "dimension: iterate %s", table)
}

func (r *Resolver) insertName(ctx context.Context, table string, name string, runLog *model.RunLog) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO `+pgx.Identifier{table}.Sanitize()+` (name) VALUES ($1) RETURNING id`,
		name,
	).Scan(&id)
	if isUniqueViolation(err) {
		return r.reread(ctx, table, name, runLog)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "dimension: insert into %s %q", table, name)
	}
	return id, nil
}

// reread recovers from losing an insert race: another writer created the row
// between our select and insert, so the id is there to read.
func (r *Resolver) reread(ctx context.Context, table string, name string, runLog *model.RunLog) (int64, error) {
	if runLog != nil {
		runLog.ResolvedRaces++
	}
	var id int64
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM `+pgx.Identifier{table}.Sanitize()+` WHERE name = $1`,
		name,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "dimension: reread %s %q", table, name)
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// distinct collects the unique values of one field, preserving first-seen order.
func distinct(rows []model.NormalizedRow, field func(model.NormalizedRow) string) []string {
	seen := make(map[string]struct{}, len(rows))
	var out []string
	for _, row := range rows {
		v := field(row)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Package match finds existing fact rows for incoming records using a
// multi-pass strategy: strongest identifier first, null-safe equality last.
package match

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/final-funnel/funnel-cli/internal/db"
	"github.com/final-funnel/funnel-cli/internal/model"
)

// CompanyMatcher matches incoming companies against fact_companies using a
// 3-pass strategy.
type CompanyMatcher struct {
	pool db.Pool
}

// NewCompanyMatcher creates a CompanyMatcher.
func NewCompanyMatcher(pool db.Pool) *CompanyMatcher {
	return &CompanyMatcher{pool: pool}
}

// Match returns the id of the existing company for rec, or 0 when the record
// is new. All passes compare case-insensitively, so a re-upload with
// different casing finds the same row.
// Pass 1: domain, the strongest company identifier.
// Pass 2: name.
// Pass 3: null-safe (name, domain, linkedin) triple, which also matches rows
// where both sides are empty.
func (m *CompanyMatcher) Match(ctx context.Context, rec model.CompanyRecord) (int64, error) {
	if rec.Domain != "" {
		id, err := m.one(ctx,
			`SELECT id FROM fact_companies WHERE LOWER(domain) = LOWER($1) ORDER BY id LIMIT 1`,
			rec.Domain)
		if err != nil || id != 0 {
			return id, err
		}
	}

	if rec.Name != "" {
		id, err := m.one(ctx,
			`SELECT id FROM fact_companies WHERE LOWER(name) = LOWER($1) ORDER BY id LIMIT 1`,
			rec.Name)
		if err != nil || id != 0 {
			return id, err
		}
	}

	return m.one(ctx,
		`SELECT id FROM fact_companies
		 WHERE LOWER(name) IS NOT DISTINCT FROM LOWER(NULLIF($1, ''))
		   AND LOWER(domain) IS NOT DISTINCT FROM LOWER(NULLIF($2, ''))
		   AND LOWER(linkedin) IS NOT DISTINCT FROM LOWER(NULLIF($3, ''))
		 ORDER BY id LIMIT 1`,
		rec.Name, rec.Domain, rec.LinkedIn)
}

func (m *CompanyMatcher) one(ctx context.Context, sql string, args ...any) (int64, error) {
	var id int64
	err := m.pool.QueryRow(ctx, sql, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "match: company lookup")
	}
	return id, nil
}

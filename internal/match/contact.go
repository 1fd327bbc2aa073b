package match

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/final-funnel/funnel-cli/internal/db"
	"github.com/final-funnel/funnel-cli/internal/model"
)

// ContactMatcher matches incoming contacts against fact_contacts. Rows
// without an email or linkedin never reach it; they are dropped upstream.
type ContactMatcher struct {
	pool db.Pool
}

// NewContactMatcher creates a ContactMatcher.
func NewContactMatcher(pool db.Pool) *ContactMatcher {
	return &ContactMatcher{pool: pool}
}

// Match returns the id of the existing contact for rec, or 0 when the record
// is new.
// Pass 1: email and linkedin together.
// Pass 2: email alone.
// Pass 3: linkedin alone.
func (m *ContactMatcher) Match(ctx context.Context, rec model.ContactRecord) (int64, error) {
	if rec.Email != "" && rec.LinkedIn != "" {
		id, err := m.one(ctx,
			`SELECT id FROM fact_contacts WHERE email = $1 AND linkedin = $2 ORDER BY id LIMIT 1`,
			rec.Email, rec.LinkedIn)
		if err != nil || id != 0 {
			return id, err
		}
	}

	if rec.Email != "" {
		id, err := m.one(ctx,
			`SELECT id FROM fact_contacts WHERE email = $1 ORDER BY id LIMIT 1`,
			rec.Email)
		if err != nil || id != 0 {
			return id, err
		}
	}

	if rec.LinkedIn != "" {
		id, err := m.one(ctx,
			`SELECT id FROM fact_contacts WHERE linkedin = $1 ORDER BY id LIMIT 1`,
			rec.LinkedIn)
		if err != nil || id != 0 {
			return id, err
		}
	}

	return 0, nil
}

func (m *ContactMatcher) one(ctx context.Context, sql string, args ...any) (int64, error) {
	var id int64
	err := m.pool.QueryRow(ctx, sql, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "match: contact lookup")
	}
	return id, nil
}

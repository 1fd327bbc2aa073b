// Package upsert applies matched, diffed records to the fact tables. Each
// Apply call runs in a single transaction: either the whole batch lands or
// none of it does.
package upsert

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/final-funnel/funnel-cli/internal/db"
	"github.com/final-funnel/funnel-cli/internal/model"
)

// CompanyOp pairs a status-tagged company record with the column changes the
// differ computed for it. Changes is nil for inserts.
type CompanyOp struct {
	Record  model.CompanyRecord
	Changes map[string]any
}

// ContactOp pairs a status-tagged contact record with its column changes.
type ContactOp struct {
	Record  model.ContactRecord
	Changes map[string]any
}

// Result counts what one Apply call did.
type Result struct {
	Inserted   int
	Updated    int
	NoUpdate   int
	ChangedIDs []int64
}

// Engine writes fact rows.
type Engine struct {
	pool db.Pool
	log  *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(pool db.Pool) *Engine {
	return &Engine{
		pool: pool,
		log:  zap.L().With(zap.String("component", "upsert_engine")),
	}
}

const insertCompanySQL = `INSERT INTO fact_companies
	(name, domain, linkedin, phone, annual_revenue, emp_size,
	 address_id, city_id, state_id, zipcode_id, country_id, industry_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING id`

const insertContactSQL = `INSERT INTO fact_contacts
	(full_name, firstname, lastname, email, linkedin,
	 company_id, jobtitle_id, manlevel_id, emailstatus_id,
	 address_id, city_id, state_id, zipcode_id, country_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	RETURNING id`

// ApplyCompanies writes a batch of company operations and returns the ids
// aligned with ops, so callers can link contacts to their companies.
func (e *Engine) ApplyCompanies(ctx context.Context, ops []CompanyOp) ([]int64, Result, error) {
	var res Result
	if len(ops) == 0 {
		return nil, res, nil
	}
	ids := make([]int64, len(ops))

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, res, eris.Wrap(err, "upsert: begin company batch")
	}
	defer tx.Rollback(ctx)

	for i, op := range ops {
		rec := op.Record
		switch rec.Status {
		case model.StatusInsert:
			var id int64
			err := tx.QueryRow(ctx, insertCompanySQL,
				textOrNil(rec.Name), textOrNil(rec.Domain), textOrNil(rec.LinkedIn), textOrNil(rec.Phone),
				rec.AnnualRevenue, rec.EmpSize,
				rec.AddressID, rec.CityID, rec.StateID, rec.PostalCodeID, rec.CountryID, rec.IndustryID,
			).Scan(&id)
			if err != nil {
				return nil, res, eris.Wrapf(err, "upsert: insert company row %d", rec.Index)
			}
			ids[i] = id
			res.Inserted++
			res.ChangedIDs = append(res.ChangedIDs, id)

		case model.StatusUpdate:
			if err := applyUpdate(ctx, tx, "fact_companies", rec.ID, op.Changes); err != nil {
				return nil, res, eris.Wrapf(err, "upsert: update company %d", rec.ID)
			}
			ids[i] = rec.ID
			res.Updated++
			res.ChangedIDs = append(res.ChangedIDs, rec.ID)

		default:
			ids[i] = rec.ID
			res.NoUpdate++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, res, eris.Wrap(err, "upsert: commit company batch")
	}

	e.log.Info("company batch applied",
		zap.Int("inserted", res.Inserted), zap.Int("updated", res.Updated), zap.Int("unchanged", res.NoUpdate))
	return ids, res, nil
}

// ApplyContacts writes a batch of contact operations.
func (e *Engine) ApplyContacts(ctx context.Context, ops []ContactOp) ([]int64, Result, error) {
	var res Result
	if len(ops) == 0 {
		return nil, res, nil
	}
	ids := make([]int64, len(ops))

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, res, eris.Wrap(err, "upsert: begin contact batch")
	}
	defer tx.Rollback(ctx)

	for i, op := range ops {
		rec := op.Record
		switch rec.Status {
		case model.StatusInsert:
			var id int64
			err := tx.QueryRow(ctx, insertContactSQL,
				textOrNil(rec.FullName), textOrNil(rec.First), textOrNil(rec.Last),
				textOrNil(rec.Email), textOrNil(rec.LinkedIn),
				rec.CompanyID, rec.JobTitleID, rec.ManLevelID, rec.EmailStatusID,
				rec.AddressID, rec.CityID, rec.StateID, rec.PostalCodeID, rec.CountryID,
			).Scan(&id)
			if err != nil {
				return nil, res, eris.Wrapf(err, "upsert: insert contact row %d", rec.Index)
			}
			ids[i] = id
			res.Inserted++
			res.ChangedIDs = append(res.ChangedIDs, id)

		case model.StatusUpdate:
			if err := applyUpdate(ctx, tx, "fact_contacts", rec.ID, op.Changes); err != nil {
				return nil, res, eris.Wrapf(err, "upsert: update contact %d", rec.ID)
			}
			ids[i] = rec.ID
			res.Updated++
			res.ChangedIDs = append(res.ChangedIDs, rec.ID)

		default:
			ids[i] = rec.ID
			res.NoUpdate++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, res, eris.Wrap(err, "upsert: commit contact batch")
	}

	e.log.Info("contact batch applied",
		zap.Int("inserted", res.Inserted), zap.Int("updated", res.Updated), zap.Int("unchanged", res.NoUpdate))
	return ids, res, nil
}

// applyUpdate builds a parameterized UPDATE from the change set. Columns are
// sorted so the generated SQL is stable.
func applyUpdate(ctx context.Context, tx pgx.Tx, table string, id int64, changes map[string]any) error {
	if len(changes) == 0 {
		return eris.New("upsert: update with empty change set")
	}

	cols := make([]string, 0, len(changes))
	for col := range changes {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	setClauses := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", pgx.Identifier{col}.Sanitize(), i+1))
		args = append(args, changes[col])
	}
	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		pgx.Identifier{table}.Sanitize(), strings.Join(setClauses, ", "), len(args))

	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("upsert: %s id %d vanished mid-batch", table, id)
	}
	return nil
}

// textOrNil stores blank strings as NULL so null-safe matching keeps working.
func textOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

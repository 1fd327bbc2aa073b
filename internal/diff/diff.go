// Package diff decides whether a matched record actually changes its stored
// row. Comparisons run on canonical projections so "500.0", "500", and " 500"
// never count as a change, and a blank incoming cell never wipes stored data.
package diff

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/final-funnel/funnel-cli/internal/db"
	"github.com/final-funnel/funnel-cli/internal/model"
	"github.com/final-funnel/funnel-cli/internal/normalize"
)

// Differ loads stored fact rows and computes per-column change sets.
type Differ struct {
	pool db.Pool
}

// NewDiffer creates a Differ.
func NewDiffer(pool db.Pool) *Differ {
	return &Differ{pool: pool}
}

// CompanyChanges returns the columns of fact_companies that rec would change,
// keyed by column name with the raw incoming value. An empty map means the
// row is already up to date.
func (d *Differ) CompanyChanges(ctx context.Context, rec model.CompanyRecord) (map[string]any, error) {
	var name, domain, linkedin, phone *string
	var annualRevenue, empSize int64
	var addressID, cityID, stateID, zipID int64
	var countryID, industryID int64
	err := d.pool.QueryRow(ctx,
		`SELECT name, domain, linkedin, phone, annual_revenue, emp_size,
		        address_id, city_id, state_id, zipcode_id, country_id, industry_id
		 FROM fact_companies WHERE id = $1`,
		rec.ID,
	).Scan(&name, &domain, &linkedin, &phone, &annualRevenue, &empSize,
		&addressID, &cityID, &stateID, &zipID, &countryID, &industryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("diff: company %d not found", rec.ID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "diff: load company %d", rec.ID)
	}

	changes := map[string]any{}
	diffText(changes, "name", deref(name), rec.Name)
	diffDomain(changes, "domain", deref(domain), rec.Domain)
	diffDomain(changes, "linkedin", deref(linkedin), rec.LinkedIn)
	diffText(changes, "phone", deref(phone), rec.Phone)
	diffNumber(changes, "annual_revenue", annualRevenue, rec.AnnualRevenue)
	diffNumber(changes, "emp_size", empSize, rec.EmpSize)
	diffDimension(changes, "address_id", addressID, rec.AddressID)
	diffDimension(changes, "city_id", cityID, rec.CityID)
	diffDimension(changes, "state_id", stateID, rec.StateID)
	diffDimension(changes, "zipcode_id", zipID, rec.PostalCodeID)
	diffDimension(changes, "country_id", countryID, rec.CountryID)
	diffDimension(changes, "industry_id", industryID, rec.IndustryID)
	return changes, nil
}

// ContactChanges returns the columns of fact_contacts that rec would change.
// Location columns are never diffed: a contact's location lives on its
// company, and the incoming record always carries the sentinel there.
func (d *Differ) ContactChanges(ctx context.Context, rec model.ContactRecord) (map[string]any, error) {
	var fullName, firstname, lastname, email, linkedin *string
	var companyID, jobtitleID, manlevelID, emailstatusID int64
	err := d.pool.QueryRow(ctx,
		`SELECT full_name, firstname, lastname, email, linkedin,
		        company_id, jobtitle_id, manlevel_id, emailstatus_id
		 FROM fact_contacts WHERE id = $1`,
		rec.ID,
	).Scan(&fullName, &firstname, &lastname, &email, &linkedin,
		&companyID, &jobtitleID, &manlevelID, &emailstatusID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("diff: contact %d not found", rec.ID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "diff: load contact %d", rec.ID)
	}

	changes := map[string]any{}
	diffText(changes, "full_name", deref(fullName), rec.FullName)
	diffText(changes, "firstname", deref(firstname), rec.First)
	diffText(changes, "lastname", deref(lastname), rec.Last)
	diffText(changes, "email", deref(email), rec.Email)
	diffDomain(changes, "linkedin", deref(linkedin), rec.LinkedIn)
	diffNumber(changes, "company_id", companyID, rec.CompanyID)
	diffDimension(changes, "jobtitle_id", jobtitleID, rec.JobTitleID)
	diffDimension(changes, "manlevel_id", manlevelID, rec.ManLevelID)
	diffNumber(changes, "emailstatus_id", emailstatusID, rec.EmailStatusID)
	return changes, nil
}

// diffText records a change when the canonical projections differ. A blank
// incoming value never overwrites stored data.
func diffText(changes map[string]any, col, stored, incoming string) {
	if normalize.Value(incoming) == "" {
		return
	}
	if normalize.Value(stored) != normalize.Value(incoming) {
		changes[col] = incoming
	}
}

// diffDomain is diffText with both sides canonicalized as URLs, so stored
// rows predating URL cleanup still compare equal.
func diffDomain(changes map[string]any, col, stored, incoming string) {
	if incoming == "" {
		return
	}
	if normalize.Domain(stored) != normalize.Domain(incoming) {
		changes[col] = incoming
	}
}

// diffNumber skips zero incoming values, the projection of a blank cell.
func diffNumber(changes map[string]any, col string, stored, incoming int64) {
	if incoming == 0 {
		return
	}
	if stored != incoming {
		changes[col] = incoming
	}
}

// diffDimension skips sentinel incoming ids: an upload that does not know a
// dimension must not reset it to Unknown.
func diffDimension(changes map[string]any, col string, stored, incoming int64) {
	if incoming == 0 || incoming == model.SentinelID {
		return
	}
	if stored != incoming {
		changes[col] = incoming
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

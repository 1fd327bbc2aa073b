package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/final-funnel/funnel-cli/internal/db"
	"github.com/final-funnel/funnel-cli/internal/model"
)

// dedupeStagingSQL keeps the lowest-id row of each duplicate group. The group
// key mirrors the in-process identity: company name and domain plus the
// contact's name and email.
const dedupeStagingSQL = `DELETE FROM staging_campaign_upload s
 USING staging_campaign_upload keep
 WHERE keep.comp_name IS NOT DISTINCT FROM s.comp_name
   AND keep.comp_domain IS NOT DISTINCT FROM s.comp_domain
   AND keep.firstname IS NOT DISTINCT FROM s.firstname
   AND keep.lastname IS NOT DISTINCT FROM s.lastname
   AND keep.empemail IS NOT DISTINCT FROM s.empemail
   AND keep.id < s.id`

// dropNoIdentitySQL removes staged rows that could never be matched. Blank
// aliases count as blank, same as the in-process cleaners.
const dropNoIdentitySQL = `DELETE FROM staging_campaign_upload
 WHERE (empemail IS NULL OR lower(btrim(empemail)) IN ('', 'n/a', 'na', 'none', 'null', 'nan', 'unknown'))
   AND (emplinkedin IS NULL OR lower(btrim(emplinkedin)) IN ('', 'n/a', 'na', 'none', 'null', 'nan', 'unknown'))`

// trimStagingSQL whitespace-trims every upload column in place.
const trimStagingSQL = `UPDATE staging_campaign_upload SET
 comp_name = btrim(comp_name), comp_domain = btrim(comp_domain),
 annrev = btrim(annrev), comp_industry = btrim(comp_industry),
 comp_linkedin = btrim(comp_linkedin), firstname = btrim(firstname),
 lastname = btrim(lastname), jobtitle = btrim(jobtitle),
 manlevel = btrim(manlevel), empemail = btrim(empemail),
 emplinkedin = btrim(emplinkedin), country_code = btrim(country_code),
 comp_phone = btrim(comp_phone), comp_street = btrim(comp_street),
 comp_city = btrim(comp_city), comp_state = btrim(comp_state),
 comp_country = btrim(comp_country), comp_zipcode = btrim(comp_zipcode),
 qa_disposition = btrim(qa_disposition), empsize = btrim(empsize)`

// runStaged bulk-loads an oversized upload into the staging table, then
// deduplicates and cleans it there. Fact enrichment from staging runs as a
// separate warehouse job, so the run stops after cleaning.
func (p *Pipeline) runStaged(ctx context.Context, rep model.RunReport, runLog *model.RunLog, cells [][]string) (model.RunReport, *model.RunLog, error) {
	rep.Staged = true
	log := p.log.With(zap.String("run_id", rep.RunID))

	log.Info("phase", zap.String("phase", string(PhaseCopyStaging)), zap.Int("rows", len(cells)))
	copyRows := make([][]any, 0, len(cells))
	for i, rowCells := range cells {
		raw := model.FromCells(i+1, rowCells)
		copyRows = append(copyRows, []any{
			raw.CompanyName, raw.Domain, raw.AnnualRevenue, raw.Industry, raw.CompanyLinked,
			raw.FirstName, raw.LastName, raw.JobTitle, raw.ManLevel, raw.Email,
			raw.ContactLinked, raw.CountryCode, raw.CompanyPhone, raw.Street, raw.City,
			raw.State, raw.Country, raw.ZipCode, raw.QADisposition, raw.EmpSize,
		})
	}
	copied, err := db.CopyFrom(ctx, p.pool, "staging_campaign_upload", model.UploadColumns, copyRows)
	if err != nil {
		return rep, runLog, &TransactionError{Phase: PhaseCopyStaging, Err: err}
	}
	runLog.Infof("copied %d rows to staging", copied)

	log.Info("phase", zap.String("phase", string(PhaseCleanStaging)))
	if _, err := p.pool.Exec(ctx, trimStagingSQL); err != nil {
		return rep, runLog, &TransactionError{Phase: PhaseCleanStaging, Err: err}
	}

	log.Info("phase", zap.String("phase", string(PhaseDeduplicate)))
	tag, err := p.pool.Exec(ctx, dedupeStagingSQL)
	if err != nil {
		return rep, runLog, &TransactionError{Phase: PhaseDeduplicate, Err: err}
	}
	if n := tag.RowsAffected(); n > 0 {
		runLog.Infof("removed %d duplicate staged rows", n)
	}

	tag, err = p.pool.Exec(ctx, dropNoIdentitySQL)
	if err != nil {
		return rep, runLog, &TransactionError{Phase: PhaseCleanStaging, Err: err}
	}
	if n := tag.RowsAffected(); n > 0 {
		rep.Skipped += int(n)
		runLog.SkippedNoIdentity += int(n)
		runLog.Infof("dropped %d staged rows without contact identity", n)
	}

	log.Info("staged run complete", zap.String("phase", string(PhaseDone)),
		zap.Int64("staged", copied-tag.RowsAffected()))
	return rep, runLog, nil
}

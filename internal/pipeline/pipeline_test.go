package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/final-funnel/funnel-cli/internal/cache"
	"github.com/final-funnel/funnel-cli/internal/model"
)

// anyArgs builds n pgxmock.AnyArg() placeholders; pgxmock requires the
// argument count to match even when the values don't matter.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newMockPipeline(t *testing.T) (*Pipeline, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return New(mock, cache.NewRefresher(mock, nil)), mock
}

func writeCSV(t *testing.T, rows ...[]string) string {
	t.Helper()
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.Join(row, ","))
		b.WriteString("\n")
	}
	path := filepath.Join(t.TempDir(), "upload.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func uploadRow() []string {
	return []string{
		"Acme", "acme.com", "1M", "Software", "",
		"Jane", "Doe", "Chief Technology Officer", "C-Level", "jane@acme.com",
		"", "US", "", "", "Springfield",
		"Illinois", "United States", "62701", "Qualified", "51-200",
	}
}

func TestRun_SchemaMismatch(t *testing.T) {
	p, mock := newMockPipeline(t)
	path := writeCSV(t, []string{"wrong", "header"}, uploadRow())

	_, _, err := p.Run(context.Background(), path, Options{})
	require.Error(t, err)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.False(t, schemaErr.Validation.SchemaOK())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_SkipsIdentitylessRows(t *testing.T) {
	p, mock := newMockPipeline(t)

	blank := uploadRow()
	blank[9] = "" // no email, no linkedin
	alias := uploadRow()
	alias[9] = "N/A" // blank alias, cleans to empty
	path := writeCSV(t, model.UploadColumns, blank, alias)

	rep, runLog, err := p.Run(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Total)
	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, 2, runLog.SkippedNoIdentity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// expectDimensionLookups satisfies the resolver for uploadRow(): every
// dimension value already exists.
func expectDimensionLookups(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery(`SELECT id, name FROM "dim_countries"`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(int64(5), "United States"))
	mock.ExpectQuery(`SELECT id FROM dim_states`).
		WithArgs("Illinois", int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery(`SELECT id, name FROM "dim_cities"`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(int64(8), "Springfield"))
	mock.ExpectQuery(`SELECT id, name FROM "dim_addresses"`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(model.SentinelID, "Unknown"))
	mock.ExpectQuery(`SELECT id, name FROM "dim_zipcodes"`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(int64(9), "62701"))
	mock.ExpectQuery(`SELECT id, name FROM "dim_industries"`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(int64(4), "Software"))
	mock.ExpectQuery(`SELECT id, name FROM "dim_manlevels"`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(int64(2), "C-Level"))
	mock.ExpectQuery(`SELECT id, manlevel_id FROM dim_jobtitles`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "manlevel_id"}).AddRow(int64(7), int64(2)))
}

// strPtr returns a pointer to s, matching the differ's nullable text scans.
func strPtr(s string) *string { return &s }

// storedCompanyRow is fact_companies id 100 exactly as uploadRow() resolves.
func storedCompanyRow() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"name", "domain", "linkedin", "phone", "annual_revenue", "emp_size",
		"address_id", "city_id", "state_id", "zipcode_id", "country_id", "industry_id",
	}).AddRow(strPtr("Acme"), strPtr("acme.com"), nil, nil, int64(1000000), int64(51),
		model.SentinelID, int64(8), int64(3), int64(9), int64(5), int64(4))
}

// storedContactRow is fact_contacts id 11 exactly as uploadRow() resolves.
func storedContactRow() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"full_name", "firstname", "lastname", "email", "linkedin",
		"company_id", "jobtitle_id", "manlevel_id", "emailstatus_id",
	}).AddRow(strPtr("Jane Doe"), strPtr("Jane"), strPtr("Doe"), strPtr("jane@acme.com"), nil,
		int64(100), int64(7), int64(2), int64(1))
}

func TestRun_InProcess_InsertsNewCompanyAndContact(t *testing.T) {
	p, mock := newMockPipeline(t)
	path := writeCSV(t, model.UploadColumns, uploadRow())

	expectDimensionLookups(mock)

	// Company match misses all three passes.
	mock.ExpectQuery(`SELECT id FROM fact_companies WHERE LOWER\(domain\)`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT id FROM fact_companies WHERE LOWER\(name\)`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`IS NOT DISTINCT FROM`).
		WithArgs(anyArgs(3)...).
		WillReturnError(pgx.ErrNoRows)

	// Company insert.
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO fact_companies`).
		WithArgs(anyArgs(12)...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectCommit()

	// Contact match misses, contact insert.
	mock.ExpectQuery(`SELECT id FROM fact_contacts WHERE email`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO fact_contacts`).
		WithArgs(anyArgs(14)...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectCommit()

	// Refresh widens to contacts of the new company, then updates both caches.
	mock.ExpectQuery(`SELECT id FROM fact_contacts WHERE company_id`).
		WithArgs([]int64{100}).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO cached_full_contacts_data`).
		WithArgs([]int64{11}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO cached_filters_contacts_data`).
		WithArgs([]int64{11}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	rep, runLog, err := p.Run(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Total)
	assert.Equal(t, 1, rep.Inserted)
	assert.Zero(t, rep.Updated)
	assert.Equal(t, []int64{11}, rep.ChangedIDs)
	assert.False(t, rep.Staged)
	assert.Zero(t, runLog.SkippedNoIdentity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_RepeatUploadMakesNoChanges(t *testing.T) {
	p, mock := newMockPipeline(t)
	path := writeCSV(t, model.UploadColumns, uploadRow())

	expectDimensionLookups(mock)

	// Both facts already exist with identical values, so both batches are
	// pure no-ops and nothing needs a cache refresh.
	mock.ExpectQuery(`SELECT id FROM fact_companies WHERE LOWER\(domain\)`).
		WithArgs("acme.com").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectQuery(`SELECT name, domain, linkedin, phone`).
		WithArgs(int64(100)).
		WillReturnRows(storedCompanyRow())
	mock.ExpectBegin()
	mock.ExpectCommit()

	mock.ExpectQuery(`SELECT id FROM fact_contacts WHERE email`).
		WithArgs("jane@acme.com").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectQuery(`SELECT full_name, firstname, lastname`).
		WithArgs(int64(11)).
		WillReturnRows(storedContactRow())
	mock.ExpectBegin()
	mock.ExpectCommit()

	rep, runLog, err := p.Run(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Total)
	assert.Zero(t, rep.Inserted)
	assert.Zero(t, rep.Updated)
	assert.Zero(t, rep.Skipped)
	assert.Empty(t, rep.ChangedIDs)
	assert.Zero(t, runLog.SkippedNoIdentity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_CompanyChangeCountsRowUpdated(t *testing.T) {
	p, mock := newMockPipeline(t)

	row := uploadRow()
	row[12] = "+1 555 0199" // company phone changed, contact untouched
	path := writeCSV(t, model.UploadColumns, row)

	expectDimensionLookups(mock)

	mock.ExpectQuery(`SELECT id FROM fact_companies WHERE LOWER\(domain\)`).
		WithArgs("acme.com").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectQuery(`SELECT name, domain, linkedin, phone`).
		WithArgs(int64(100)).
		WillReturnRows(storedCompanyRow())
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "fact_companies" SET "phone" = \$1, updated_at = now\(\) WHERE id = \$2`).
		WithArgs("+1 555 0199", int64(100)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	mock.ExpectQuery(`SELECT id FROM fact_contacts WHERE email`).
		WithArgs("jane@acme.com").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectQuery(`SELECT full_name, firstname, lastname`).
		WithArgs(int64(11)).
		WillReturnRows(storedContactRow())
	mock.ExpectBegin()
	mock.ExpectCommit()

	// The company change fans out to its contacts' cached rows.
	mock.ExpectQuery(`SELECT id FROM fact_contacts WHERE company_id`).
		WithArgs([]int64{100}).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO cached_full_contacts_data`).
		WithArgs([]int64{11}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO cached_filters_contacts_data`).
		WithArgs([]int64{11}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	rep, _, err := p.Run(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Zero(t, rep.Inserted)
	assert.Equal(t, 1, rep.Updated)
	assert.Empty(t, rep.ChangedIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_StagedPath(t *testing.T) {
	p, mock := newMockPipeline(t)
	path := writeCSV(t, model.UploadColumns, uploadRow(), uploadRow())

	mock.ExpectCopyFrom(pgx.Identifier{"staging_campaign_upload"}, model.UploadColumns).
		WillReturnResult(2)
	mock.ExpectExec(`UPDATE staging_campaign_upload SET`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec(`USING staging_campaign_upload keep`).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM staging_campaign_upload`).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	rep, runLog, err := p.Run(context.Background(), path, Options{StagingThreshold: 1})
	require.NoError(t, err)
	assert.True(t, rep.Staged)
	assert.Equal(t, 2, rep.Total)
	assert.Zero(t, rep.Inserted)
	assert.NotEmpty(t, runLog.Entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_StrictFailsOnBadRow(t *testing.T) {
	p, mock := newMockPipeline(t)

	row := uploadRow()
	row[2] = "plenty" // unparseable revenue
	path := writeCSV(t, model.UploadColumns, row)

	_, _, err := p.Run(context.Background(), path, Options{Strict: true})
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 1, parseErr.Row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

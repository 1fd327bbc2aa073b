// Package pipeline orchestrates an ingest run end to end: validate, clean,
// resolve, match, diff, write, refresh. Uploads above the staging threshold
// take the bulk path instead and stop after staging cleanup.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/final-funnel/funnel-cli/internal/cache"
	"github.com/final-funnel/funnel-cli/internal/db"
	"github.com/final-funnel/funnel-cli/internal/diff"
	"github.com/final-funnel/funnel-cli/internal/dimension"
	"github.com/final-funnel/funnel-cli/internal/fetcher"
	"github.com/final-funnel/funnel-cli/internal/match"
	"github.com/final-funnel/funnel-cli/internal/model"
	"github.com/final-funnel/funnel-cli/internal/normalize"
	"github.com/final-funnel/funnel-cli/internal/report"
	"github.com/final-funnel/funnel-cli/internal/upsert"
)

// DefaultStagingThreshold is the row count above which an upload is bulk
// loaded into staging instead of processed in-process.
const DefaultStagingThreshold = 5000

// Options tunes one ingest run.
type Options struct {
	// Strict fails the run on the first unparseable row instead of
	// skipping it.
	Strict bool
	// StagingThreshold overrides DefaultStagingThreshold when positive.
	StagingThreshold int
}

// Pipeline wires the ingest stages together over one database pool.
type Pipeline struct {
	pool      db.Pool
	resolver  *dimension.Resolver
	companies *match.CompanyMatcher
	contacts  *match.ContactMatcher
	differ    *diff.Differ
	engine    *upsert.Engine
	refresher *cache.Refresher
	log       *zap.Logger
}

// New creates a Pipeline.
func New(pool db.Pool, refresher *cache.Refresher) *Pipeline {
	return &Pipeline{
		pool:      pool,
		resolver:  dimension.NewResolver(pool),
		companies: match.NewCompanyMatcher(pool),
		contacts:  match.NewContactMatcher(pool),
		differ:    diff.NewDiffer(pool),
		engine:    upsert.NewEngine(pool),
		refresher: refresher,
		log:       zap.L().With(zap.String("component", "pipeline")),
	}
}

// Run ingests one upload file and returns the run report and log.
func (p *Pipeline) Run(ctx context.Context, filePath string, opts Options) (model.RunReport, *model.RunLog, error) {
	runLog := &model.RunLog{}
	rep := model.RunReport{RunID: uuid.New().String()}
	log := p.log.With(zap.String("run_id", rep.RunID))

	log.Info("run started", zap.String("file", filePath), zap.String("phase", string(PhaseValidating)))
	header, cells, err := fetcher.ReadUpload(filePath)
	if err != nil {
		return rep, runLog, err
	}

	validation := report.Validate(header, cells)
	if !validation.SchemaOK() {
		return rep, runLog, &SchemaError{Validation: validation}
	}
	if opts.Strict && !validation.Clean() {
		return rep, runLog, eris.Errorf("pipeline: upload has %d cell findings (strict mode)",
			len(validation.LengthViolations)+len(validation.ScientificNotation)+len(validation.NumericText))
	}
	rep.Total = len(cells)

	threshold := opts.StagingThreshold
	if threshold <= 0 {
		threshold = DefaultStagingThreshold
	}
	if len(cells) > threshold {
		log.Info("upload exceeds staging threshold, taking bulk path",
			zap.Int("rows", len(cells)), zap.Int("threshold", threshold))
		return p.runStaged(ctx, rep, runLog, cells)
	}

	return p.runInProcess(ctx, rep, runLog, cells, opts, log)
}

func (p *Pipeline) runInProcess(ctx context.Context, rep model.RunReport, runLog *model.RunLog, cells [][]string, opts Options, log *zap.Logger) (model.RunReport, *model.RunLog, error) {
	log.Info("phase", zap.String("phase", string(PhaseNormalizing)))
	var normalized []model.NormalizedRow
	for i, rowCells := range cells {
		raw := model.FromCells(i+1, rowCells)
		n, err := normalize.Row(raw, runLog)
		if err != nil {
			if opts.Strict {
				return rep, runLog, &ParseError{Row: raw.Index, Err: err}
			}
			rep.Skipped++
			runLog.Errorf("row %d: %v, skipped", raw.Index, err)
			continue
		}
		// Identity is checked after cleaning: an "N/A" email is blank.
		if !n.HasContactIdentity() {
			rep.Skipped++
			runLog.SkippedNoIdentity++
			runLog.Infof("row %d: no email or linkedin, skipped", raw.Index)
			continue
		}
		normalized = append(normalized, n)
	}

	log.Info("phase", zap.String("phase", string(PhaseResolving)), zap.Int("rows", len(normalized)))
	resolved, err := p.resolver.Resolve(ctx, normalized, runLog)
	if err != nil {
		return rep, runLog, err
	}

	log.Info("phase", zap.String("phase", string(PhaseMatching)))
	companyOps, rowCompanyOp, err := p.prepareCompanies(ctx, resolved)
	if err != nil {
		return rep, runLog, err
	}

	log.Info("phase", zap.String("phase", string(PhaseUpserting)),
		zap.Int("companies", len(companyOps)))
	companyIDs, companyRes, err := p.engine.ApplyCompanies(ctx, companyOps)
	if err != nil {
		return rep, runLog, &TransactionError{Phase: PhaseUpserting, Err: err}
	}

	contactOps, err := p.prepareContacts(ctx, resolved, rowCompanyOp, companyIDs)
	if err != nil {
		return rep, runLog, err
	}
	_, contactRes, err := p.engine.ApplyContacts(ctx, contactOps)
	if err != nil {
		return rep, runLog, &TransactionError{Phase: PhaseUpserting, Err: err}
	}

	rep.ChangedIDs = contactRes.ChangedIDs
	for i, op := range contactOps {
		switch op.Record.Status {
		case model.StatusInsert:
			rep.Inserted++
		case model.StatusUpdate:
			rep.Updated++
		default:
			// A company-side change still counts its rows as updated.
			if st := companyOps[rowCompanyOp[i]].Record.Status; st != model.StatusNoUpdate {
				rep.Updated++
			}
		}
	}

	log.Info("phase", zap.String("phase", string(PhaseRefreshing)))
	refreshIDs, err := p.contactsToRefresh(ctx, contactRes.ChangedIDs, companyRes.ChangedIDs)
	if err != nil {
		return rep, runLog, err
	}
	if err := p.refresher.RefreshIDs(ctx, refreshIDs); err != nil {
		return rep, runLog, &TransactionError{Phase: PhaseRefreshing, Err: err}
	}

	log.Info("run complete", zap.String("phase", string(PhaseDone)),
		zap.Int("inserted", rep.Inserted), zap.Int("updated", rep.Updated), zap.Int("skipped", rep.Skipped))
	return rep, runLog, nil
}

// prepareCompanies matches and diffs each distinct company in the upload.
// Rows sharing a company identity share one operation, so a company appearing
// on fifty contact rows is written once.
func (p *Pipeline) prepareCompanies(ctx context.Context, resolved []model.ResolvedRow) ([]upsert.CompanyOp, []int, error) {
	type key struct{ name, domain string }

	opIndex := make(map[key]int)
	var ops []upsert.CompanyOp
	rowOp := make([]int, len(resolved))

	for i, row := range resolved {
		k := key{name: row.CompanyName, domain: row.Domain}
		if idx, ok := opIndex[k]; ok {
			rowOp[i] = idx
			continue
		}

		rec := model.NewCompanyRecord(row)
		id, err := p.companies.Match(ctx, rec)
		if err != nil {
			return nil, nil, err
		}

		op := upsert.CompanyOp{Record: rec}
		if id == 0 {
			op.Record.Status = model.StatusInsert
		} else {
			op.Record.ID = id
			changes, err := p.differ.CompanyChanges(ctx, op.Record)
			if err != nil {
				return nil, nil, err
			}
			if len(changes) == 0 {
				op.Record.Status = model.StatusNoUpdate
			} else {
				op.Record.Status = model.StatusUpdate
				op.Changes = changes
			}
		}

		opIndex[k] = len(ops)
		rowOp[i] = len(ops)
		ops = append(ops, op)
	}
	return ops, rowOp, nil
}

// prepareContacts matches and diffs each contact row, linking it to the
// company id its row resolved to.
func (p *Pipeline) prepareContacts(ctx context.Context, resolved []model.ResolvedRow, rowOp []int, companyIDs []int64) ([]upsert.ContactOp, error) {
	ops := make([]upsert.ContactOp, 0, len(resolved))
	for i, row := range resolved {
		rec := model.NewContactRecord(row, companyIDs[rowOp[i]])

		id, err := p.contacts.Match(ctx, rec)
		if err != nil {
			return nil, err
		}

		op := upsert.ContactOp{Record: rec}
		if id == 0 {
			op.Record.Status = model.StatusInsert
		} else {
			op.Record.ID = id
			changes, err := p.differ.ContactChanges(ctx, op.Record)
			if err != nil {
				return nil, err
			}
			if len(changes) == 0 {
				op.Record.Status = model.StatusNoUpdate
			} else {
				op.Record.Status = model.StatusUpdate
				op.Changes = changes
			}
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// contactsToRefresh widens the changed-contact set with every contact of a
// changed company, since their denormalized rows embed company columns.
func (p *Pipeline) contactsToRefresh(ctx context.Context, contactIDs, companyIDs []int64) ([]int64, error) {
	seen := make(map[int64]struct{}, len(contactIDs))
	out := make([]int64, 0, len(contactIDs))
	for _, id := range contactIDs {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	if len(companyIDs) == 0 {
		return out, nil
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id FROM fact_contacts WHERE company_id = ANY($1)`,
		companyIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: contacts of changed companies")
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "pipeline: scan contact id")
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out, eris.Wrap(rows.Err(), "pipeline: iterate contact ids")
}

package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/final-funnel/funnel-cli/internal/pipeline"
)

var (
	ingestFile      string
	ingestStrict    bool
	ingestThreshold int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a contact upload file into the warehouse",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		opts := pipelineOptions()
		rep, runLog, err := e.Pipeline.Run(ctx, ingestFile, opts)
		if err != nil {
			return eris.Wrap(err, "ingest")
		}

		if err := e.Store.CreateRun(ctx, rep, runLog); err != nil {
			zap.L().Warn("run report not persisted", zap.Error(err))
		}

		zap.L().Info("ingest complete",
			zap.String("run_id", rep.RunID),
			zap.Int("total", rep.Total),
			zap.Int("inserted", rep.Inserted),
			zap.Int("updated", rep.Updated),
			zap.Int("skipped", rep.Skipped),
			zap.Bool("staged", rep.Staged),
		)
		return nil
	},
}

func pipelineOptions() pipeline.Options {
	opts := pipeline.Options{
		Strict:           ingestStrict || cfg.Pipeline.Strict,
		StagingThreshold: cfg.Pipeline.StagingThreshold,
	}
	if ingestThreshold > 0 {
		opts.StagingThreshold = ingestThreshold
	}
	return opts
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "path to CSV or XLSX upload (required)")
	ingestCmd.Flags().BoolVar(&ingestStrict, "strict", false, "fail on the first unparseable row")
	ingestCmd.Flags().IntVar(&ingestThreshold, "threshold", 0, "staging threshold override (default from config)")
	_ = ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd)
}

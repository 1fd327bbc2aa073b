package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/final-funnel/funnel-cli/internal/fetcher"
	"github.com/final-funnel/funnel-cli/internal/report"
)

var (
	validateFile   string
	validateReport string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an upload file without touching the database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		header, rows, err := fetcher.ReadUpload(validateFile)
		if err != nil {
			return eris.Wrap(err, "validate")
		}

		v := report.Validate(header, rows)

		if validateReport != "" {
			if err := report.WriteWorkbook(v, validateReport); err != nil {
				return err
			}
			zap.L().Info("validation report written", zap.String("path", validateReport))
		}

		zap.L().Info("validation complete",
			zap.Int("rows", v.RowCount),
			zap.Bool("schema_ok", v.SchemaOK()),
			zap.Int("length_violations", len(v.LengthViolations)),
			zap.Int("scientific_notation", len(v.ScientificNotation)),
			zap.Int("numeric_text", len(v.NumericText)),
		)

		if !v.SchemaOK() {
			return eris.Errorf("schema mismatch: missing %v, unexpected %v, out_of_order=%t",
				v.MissingColumns, v.UnexpectedColumns, v.OutOfOrder)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateFile, "file", "", "path to CSV or XLSX upload (required)")
	validateCmd.Flags().StringVar(&validateReport, "report", "", "write findings to this XLSX path")
	_ = validateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(validateCmd)
}

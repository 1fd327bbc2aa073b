package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var refreshIDs []int64

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the denormalized contact caches",
	Long:  "With --ids, re-derives only the given contact ids; without, truncates and rebuilds both cache tables.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if len(refreshIDs) > 0 {
			if err := e.Refresher.RefreshIDs(ctx, refreshIDs); err != nil {
				return eris.Wrap(err, "refresh ids")
			}
			zap.L().Info("cache refreshed", zap.Int("contacts", len(refreshIDs)))
			return nil
		}

		if err := e.Refresher.RefreshAll(ctx); err != nil {
			return eris.Wrap(err, "refresh all")
		}
		zap.L().Info("cache fully rebuilt")
		return nil
	},
}

func init() {
	refreshCmd.Flags().Int64SliceVar(&refreshIDs, "ids", nil, "contact ids to refresh (default: full rebuild)")
	rootCmd.AddCommand(refreshCmd)
}

package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/final-funnel/funnel-cli/internal/model"
)

var (
	queryName     string
	queryFilters  []string
	queryCampaign string
)

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Manage saved filter queries",
}

var queriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved queries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := queryStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		queries, err := st.ListQueries(ctx)
		if err != nil {
			return err
		}
		for _, q := range queries {
			fmt.Printf("%s\t%s\t%d filters\t%s\n", q.ID, q.Name, len(q.Filters), q.CreatedAt.Format("2006-01-02"))
		}
		return nil
	},
}

var queriesSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save a filter query",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		filters := make(map[string][]string, len(queryFilters))
		for _, f := range queryFilters {
			key, value, ok := strings.Cut(f, "=")
			if !ok {
				return eris.Errorf("invalid filter %q, expected column=value", f)
			}
			filters[key] = append(filters[key], value)
		}

		st, err := queryStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		saved, err := st.SaveQuery(ctx, model.SavedQuery{
			Name:       queryName,
			Filters:    filters,
			CampaignID: queryCampaign,
		})
		if err != nil {
			return err
		}
		zap.L().Info("query saved", zap.String("id", saved.ID), zap.String("name", saved.Name))
		return nil
	},
}

var queriesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := queryStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteQuery(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("query deleted", zap.String("id", args[0]))
		return nil
	},
}

func init() {
	queriesSaveCmd.Flags().StringVar(&queryName, "name", "", "query name (required)")
	queriesSaveCmd.Flags().StringArrayVar(&queryFilters, "filter", nil, "filter as column=value, repeatable")
	queriesSaveCmd.Flags().StringVar(&queryCampaign, "campaign", "", "campaign id to associate")
	_ = queriesSaveCmd.MarkFlagRequired("name")

	queriesCmd.AddCommand(queriesListCmd, queriesSaveCmd, queriesDeleteCmd)
	rootCmd.AddCommand(queriesCmd)
}

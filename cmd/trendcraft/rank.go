package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"trendcraft/internal/app"
	"trendcraft/internal/domain/trend"
	"trendcraft/internal/service/listening"
)

func newRankCommand(deps *commandDeps) *cobra.Command {
	var niche, categorySource string
	var limit int

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank stored trends by alignment with a brand niche",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Build(cmd.Context(), deps.config, deps.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ranked, err := a.Detector.RankForNiche(cmd.Context(), trend.Filter{
				CategorySource: trend.CategoryKey(categorySource),
			}, niche, limit)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"#", "Alignment", "Topic", "Category", "Source"})
			for i, r := range ranked {
				t.AppendRow(table.Row{i + 1, r.AlignmentScore, r.Trend.Topic, r.Trend.Category, r.Trend.CategorySource})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&niche, "niche", "n", "", "brand niche, e.g. fitness")
	cmd.Flags().StringVar(&categorySource, "category-source", "", "only rank trends from this category key")
	cmd.Flags().IntVarP(&limit, "limit", "k", listening.DefaultRankLimit, "number of trends to return")
	_ = cmd.MarkFlagRequired("niche")
	return cmd
}

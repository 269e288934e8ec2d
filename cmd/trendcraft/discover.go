package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"trendcraft/internal/app"
	"trendcraft/internal/domain/trend"
)

func newDiscoverCommand(deps *commandDeps) *cobra.Command {
	var category, source string

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run one discovery pass and store the resulting trends",
		Example: `  trendcraft discover --category technology
  trendcraft discover --source google_trends --category all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Build(cmd.Context(), deps.config, deps.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			req := trend.DiscoverRequest{Category: trend.CategoryKey(category), Source: trend.Source(source)}
			result := a.Detector.Discover(cmd.Context(), req)
			if !result.Success {
				if result.RetryAfter > 0 {
					return fmt.Errorf("%s: %s (retry after %s)", result.ErrorKind, result.Error, result.RetryAfter)
				}
				return fmt.Errorf("%s: %s", result.ErrorKind, result.Error)
			}

			trends, err := a.Detector.GetTrends(cmd.Context(), trend.Filter{
				Source:         req.Source,
				CategorySource: req.Category,
				SortBy:         trend.SortByEngagement,
			})
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.SetTitle(fmt.Sprintf("%d trends via %s path", result.TrendsDiscovered, result.SynthesisPath))
			t.AppendHeader(table.Row{"Topic", "Category", "Engagement", "Growth"})
			for _, tr := range trends {
				t.AppendRow(table.Row{tr.Topic, tr.Category, tr.EngagementScore, tr.GrowthRate})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "category key, e.g. technology")
	cmd.Flags().StringVarP(&source, "source", "s", string(trend.SourceReddit), "reddit or google_trends")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

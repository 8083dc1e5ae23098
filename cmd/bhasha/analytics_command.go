package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bhasha/internal/analytics"
	"bhasha/internal/logging"
)

func newAnalyticsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show usage rollups for the trailing window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}

			aggregator := analytics.New(store, cfg, logging.NewNop())
			now := time.Now()

			summary, err := aggregator.Summary(cmd.Context(), now)
			if err != nil {
				return err
			}
			trend, err := aggregator.MonthlyTrend(cmd.Context(), now)
			if err != nil {
				return err
			}
			languages, err := aggregator.LanguagePerformance(cmd.Context(), now)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"summary":   summary,
					"trend":     trend,
					"languages": languages,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Last %d days\n", summary.WindowDays)
			fmt.Fprintf(out, "  conversations   %d%s\n", summary.Conversations, growthSuffix(summary.Growth, summary.Growth.ConversationsPct))
			fmt.Fprintf(out, "  new users       %d%s\n", summary.NewUsers, growthSuffix(summary.Growth, summary.Growth.NewUsersPct))
			fmt.Fprintf(out, "  contributions   %d%s\n", summary.Contributions, growthSuffix(summary.Growth, summary.Growth.ContributionsPct))
			fmt.Fprintf(out, "  languages       %d\n", summary.LanguagesSupported)

			if len(languages) > 0 {
				fmt.Fprintln(out)
				headers := []string{"Language", "Conversations", "Contributions"}
				rows := make([][]string, 0, len(languages))
				for _, lang := range languages {
					rows = append(rows, []string{
						lang.DisplayName,
						fmt.Sprintf("%d", lang.Conversations),
						fmt.Sprintf("%d", lang.Contributions),
					})
				}
				aligns := []columnAlignment{alignLeft, alignRight, alignRight}
				if stdoutIsTerminal() {
					fmt.Fprintln(out, renderTable(headers, rows, aligns))
				} else {
					for _, row := range rows {
						fmt.Fprintln(out, strings.Join(row, "\t"))
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")
	return cmd
}

func growthSuffix(growth analytics.GrowthRate, pct float64) string {
	if !growth.HasBaseline {
		return ""
	}
	return fmt.Sprintf("  (%+.1f%%)", pct)
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bhasha/internal/catalog"
	"bhasha/internal/language"
)

type catalogListOptions struct {
	language string
	category string
	region   string
	search   string
	limit    int
	jsonOut  bool
}

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse published contributions",
	}
	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	catalogCmd.AddCommand(newCatalogSearchCommand(ctx))
	catalogCmd.AddCommand(newCatalogStatsCommand(ctx))
	return catalogCmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	opts := catalogListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List published contributions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogQuery(cmd, ctx, opts)
		},
	}
	addCatalogFilterFlags(cmd, &opts)
	return cmd
}

func newCatalogSearchCommand(ctx *commandContext) *cobra.Command {
	opts := catalogListOptions{}

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search contributions by title, body, and tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.search = args[0]
			return runCatalogQuery(cmd, ctx, opts)
		},
	}
	addCatalogFilterFlags(cmd, &opts)
	return cmd
}

func newCatalogStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show contribution counts by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, stats)
			}
			for _, status := range []catalog.Status{catalog.StatusPublished, catalog.StatusDraft, catalog.StatusFlagged} {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", status, stats[status])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func addCatalogFilterFlags(cmd *cobra.Command, opts *catalogListOptions) {
	cmd.Flags().StringVar(&opts.language, "language", "", "Filter by language code")
	cmd.Flags().StringVar(&opts.category, "category", "", "Filter by category")
	cmd.Flags().StringVar(&opts.region, "region", "", "Filter by region")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Maximum rows to return (0 uses the configured default)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Emit JSON instead of a table")
}

func runCatalogQuery(cmd *cobra.Command, ctx *commandContext, opts catalogListOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := ctx.ensureStore()
	if err != nil {
		return err
	}

	limit := opts.limit
	if limit <= 0 {
		limit = cfg.Upload.ListLimit
	}

	items, err := store.Query(cmd.Context(), catalog.Filters{
		Language:   opts.language,
		Category:   opts.category,
		Region:     opts.region,
		SearchText: opts.search,
		Limit:      limit,
	})
	if err != nil {
		return err
	}

	if opts.jsonOut {
		return writeJSON(cmd, items)
	}

	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no contributions found")
		return nil
	}

	headers := []string{"ID", "Type", "Title", "Language", "Category", "Likes", "Created"}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.ID),
			string(item.Type),
			item.Title,
			language.DisplayName(item.LanguageCode),
			item.Category,
			fmt.Sprintf("%d", item.LikesCount),
			item.CreatedAt.Format("2006-01-02"),
		})
	}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}

	if stdoutIsTerminal() {
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
		return nil
	}
	for _, row := range rows {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(row, "\t"))
	}
	return nil
}

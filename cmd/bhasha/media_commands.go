package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bhasha/internal/services/blobstore"
)

func newMediaCommand(ctx *commandContext) *cobra.Command {
	mediaCmd := &cobra.Command{
		Use:   "media",
		Short: "Inspect and manage stored media objects",
	}
	mediaCmd.AddCommand(newMediaListCommand(ctx))
	mediaCmd.AddCommand(newMediaDeleteCommand(ctx))
	return mediaCmd
}

func newMediaListCommand(ctx *commandContext) *cobra.Command {
	var (
		prefix  string
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored media objects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openBlobStore(ctx)
			if err != nil {
				return err
			}

			effective := limit
			if effective <= 0 {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				effective = cfg.Upload.ListLimit
			}

			objects, err := store.List(cmd.Context(), prefix, effective)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, objects)
			}
			if len(objects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no media objects found")
				return nil
			}

			headers := []string{"Pathname", "Type", "Size", "Uploaded"}
			rows := make([][]string, 0, len(objects))
			for _, obj := range objects {
				rows = append(rows, []string{
					obj.Pathname,
					obj.ContentType,
					fmt.Sprintf("%d", obj.Size),
					obj.UploadedAt.Format("2006-01-02 15:04"),
				})
			}
			aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}

			if stdoutIsTerminal() {
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			}
			for _, row := range rows {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(row, "\t"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Restrict to pathnames under this prefix")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum objects to list (0 uses the configured default)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newMediaDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <url>",
		Short: "Delete a stored media object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openBlobStore(ctx)
			if err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func openBlobStore(ctx *commandContext) (*blobstore.FSStore, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return blobstore.NewFSStore(cfg.Paths.MediaDir)
}

package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"p9e.in/siteprogress/models"
	"p9e.in/siteprogress/pkg/export"
)

func exportCommand(a *app) *cobra.Command {
	var siteRef, format, month, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a site's progress report as CSV or XLSX",
		RunE: func(cmd *cobra.Command, args []string) error {
			var write func(io.Writer, *export.Report) error
			switch format {
			case "csv":
				write = export.WriteCSV
			case "xlsx":
				write = export.WriteWorkbook
			default:
				return models.NewValidationError("format", "must be csv or xlsx, got %q", format)
			}

			db, st, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeDB(db)

			site, err := resolveSite(cmd, st, siteRef)
			if err != nil {
				return err
			}
			rep, err := export.NewBuilder(st, a.log).Build(cmd.Context(), site.ID, month)
			if err != nil {
				return err
			}

			path := out
			if path == "" || isDir(path) {
				path = filepath.Join(out, export.Filename(site, format, rep.GeneratedAt))
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := write(f, rep); err != nil {
				f.Close()
				return fmt.Errorf("write %s: %w", path, err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d updates to %s\n", len(rep.Updates), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&siteRef, "site", "", "Site ID or name (required)")
	cmd.Flags().StringVar(&format, "format", "xlsx", "Output format: csv or xlsx")
	cmd.Flags().StringVar(&month, "month", "", "Limit to one month, YYYY-MM")
	cmd.Flags().StringVar(&out, "out", "", "Output file or directory (default: generated name in the working directory)")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

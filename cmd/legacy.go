package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"p9e.in/siteprogress/pkg/legacy"
)

func legacyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "legacy",
		Short: "Bring records from the old SQLite database across",
	}
	cmd.AddCommand(legacyImportCommand(a), legacyMaterializeCommand(a))
	return cmd
}

func legacyImportCommand(a *app) *cobra.Command {
	var (
		source      string
		materialize bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import users, sites and progress from an old database file",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := legacy.Open(source)
			if err != nil {
				return err
			}
			defer r.Close()

			db, st, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeDB(db)

			misses := missCounter{}
			stats, err := legacy.NewImporter(st, a.log, misses).
				Import(cmd.Context(), r, legacy.Options{Materialize: materialize})
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stats)
			misses.print(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Path to the old SQLite database (required)")
	cmd.Flags().BoolVar(&materialize, "materialize", false, "Also turn text floor blocks into structured rows")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func legacyMaterializeCommand(a *app) *cobra.Command {
	var siteRef string
	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Add structured rows to imported records that only carry text",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, st, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeDB(db)

			var siteID *uuid.UUID
			if siteRef != "" {
				site, err := resolveSite(cmd, st, siteRef)
				if err != nil {
					return err
				}
				siteID = &site.ID
			}

			misses := missCounter{}
			stats, err := legacy.NewImporter(st, a.log, misses).Materialize(cmd.Context(), siteID)
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stats)
			misses.print(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&siteRef, "site", "", "Limit to one site, by ID or name")
	return cmd
}

func printStats(w io.Writer, s *legacy.Stats) {
	if s.UsersCreated+s.UsersReused > 0 {
		fmt.Fprintf(w, "users:   %d created, %d reused\n", s.UsersCreated, s.UsersReused)
	}
	if s.SitesCreated+s.SitesReused > 0 {
		fmt.Fprintf(w, "sites:   %d created, %d reused\n", s.SitesCreated, s.SitesReused)
	}
	fmt.Fprintf(w, "records: %d imported, %d skipped, %d failed\n", s.RecordsImported, s.RecordsSkipped, s.RecordsFailed)
	fmt.Fprintf(w, "rows:    %d floors, %d work types\n", s.FloorRows, s.WorkTypeRows)
}

// missCounter tallies parse misses by reason.
type missCounter map[string]int

func (m missCounter) ObserveParseMiss(reason string) { m[reason]++ }

func (m missCounter) print(w io.Writer) {
	if len(m) == 0 {
		return
	}
	reasons := make([]string, 0, len(m))
	for r := range m {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	fmt.Fprintln(w, "parse misses:")
	for _, r := range reasons {
		fmt.Fprintf(w, "  %-20s %d\n", r, m[r])
	}
}

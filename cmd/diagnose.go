package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"p9e.in/siteprogress/models"
	"p9e.in/siteprogress/pkg/extractor"
)

// diagnoseCommand reports how each site's records are read: structured
// rows or the text parser, how often the parser gave up, and how many
// imported records could still be materialized.
func diagnoseCommand(a *app) *cobra.Command {
	var siteRef string
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Report legacy parsing health per site",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, st, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeDB(db)

			var sites []models.Site
			if siteRef != "" {
				site, err := resolveSite(cmd, st, siteRef)
				if err != nil {
					return err
				}
				sites = []models.Site{*site}
			} else if sites, err = st.ListSites(cmd.Context()); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SITE\tRECORDS\tSTRUCTURED\tPARSED\tWITH MISSES\tMISSES\tUNMATERIALIZED")
			totals := missCounter{}
			for _, site := range sites {
				misses := missCounter{}
				facts, err := extractor.New(st, a.log, misses).SiteFacts(cmd.Context(), site.ID)
				if err != nil {
					return err
				}
				id := site.ID
				pending, err := st.UnmaterializedLegacy(cmd.Context(), &id)
				if err != nil {
					return err
				}

				var structured, parsed, withMisses, missTotal int
				for _, rf := range facts.Records {
					switch rf.Source {
					case extractor.SourceStructured:
						structured++
					case extractor.SourceLegacy:
						parsed++
					}
					if len(rf.Misses) > 0 {
						withMisses++
					}
				}
				for reason, n := range misses {
					missTotal += n
					totals[reason] += n
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
					site.Name, len(facts.Records), structured, parsed, withMisses, missTotal, materializable(pending))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			totals.print(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&siteRef, "site", "", "Limit to one site, by ID or name")
	return cmd
}

// materializable counts pending records whose text holds at least one
// floor block.
func materializable(records []models.ProgressRecord) int {
	n := 0
	for _, rec := range records {
		for _, f := range extractor.ParseLegacy(rec.Description).Floors {
			if !f.Detached {
				n++
				break
			}
		}
	}
	return n
}

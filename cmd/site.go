package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/datatypes"
	"p9e.in/siteprogress/models"
	"p9e.in/siteprogress/utils"
)

func siteCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site",
		Short: "Manage construction sites",
	}
	cmd.AddCommand(siteAddCommand(a), siteListCommand(a), siteStatusCommand(a))
	return cmd
}

func siteAddCommand(a *app) *cobra.Command {
	var (
		location, description, startDate string
		boundary                          string
		basements, floors                 int
		noRoof                            bool
	)
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Register a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			site := &models.Site{
				Name:         strings.TrimSpace(args[0]),
				Location:     location,
				Description:  description,
				NumBasements: basements,
				NumFloors:    floors,
				HasRoof:      !noRoof,
			}
			if startDate != "" {
				d, err := time.Parse(time.DateOnly, startDate)
				if err != nil {
					return models.NewValidationError("start-date", "expected YYYY-MM-DD")
				}
				site.StartDate = &d
			}
			if boundary != "" {
				fence, err := readBoundary(boundary)
				if err != nil {
					return models.NewValidationError("boundary", "%v", err)
				}
				site.Geofence = fence
			}

			db, st, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeDB(db)

			if err := st.CreateSite(cmd.Context(), site); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created site %s (%s) with %d floor labels\n",
				site.Name, site.ID, len(site.FloorLabels()))
			return nil
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "Site location (required)")
	cmd.Flags().StringVar(&description, "description", "", "Free text description")
	cmd.Flags().StringVar(&startDate, "start-date", "", "Start date, YYYY-MM-DD")
	cmd.Flags().IntVar(&basements, "basements", models.DefaultBasements, "Number of basement levels")
	cmd.Flags().IntVar(&floors, "floors", models.DefaultFloors, "Number of floors above ground")
	cmd.Flags().StringVar(&boundary, "boundary", "", "Site outline from a .kmz, .kml or .geojson file")
	cmd.Flags().BoolVar(&noRoof, "no-roof", !models.DefaultHasRoof, "The building has no roof/terrace level")
	_ = cmd.MarkFlagRequired("location")
	return cmd
}

// readBoundary loads a site outline and encodes it as a stored geofence.
func readBoundary(path string) (datatypes.JSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fence, err := utils.BoundaryFromFile(path, data)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(fence)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func siteListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, st, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeDB(db)

			sites, err := st.ListSites(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tLOCATION\tSTATUS\tSHAPE")
			for _, s := range sites {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Location, s.Status, shape(s))
			}
			return tw.Flush()
		},
	}
}

func shape(s models.Site) string {
	out := fmt.Sprintf("B%d+G+%d", s.NumBasements, s.NumFloors)
	if s.HasRoof {
		out += "+R"
	}
	return out
}

func siteStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status SITE STATUS",
		Short: "Change a site's status (Active, Completed, On Hold, Cancelled)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, st, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeDB(db)

			site, err := resolveSite(cmd, st, args[0])
			if err != nil {
				return err
			}
			updated, err := st.UpdateSiteStatus(cmd.Context(), site.ID, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", updated.Name, updated.Status)
			return nil
		},
	}
}

// siteLookup is the part of the store needed to find a site from a
// command argument.
type siteLookup interface {
	GetSite(ctx context.Context, id uuid.UUID) (*models.Site, error)
	GetSiteByName(ctx context.Context, name string) (*models.Site, error)
}

// resolveSite accepts a site ID or a site name.
func resolveSite(cmd *cobra.Command, st siteLookup, ref string) (*models.Site, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return st.GetSite(cmd.Context(), id)
	}
	return st.GetSiteByName(cmd.Context(), ref)
}

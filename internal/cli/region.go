package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tOgg1/leasedesk/internal/models"
)

var (
	buildingRegion     string
	buildingAddress    string
	buildingCity       string
	buildingFloors     int
	buildingArea       float64
	buildingPricePerM2 float64
)

func init() {
	rootCmd.AddCommand(migrateCmd)

	rootCmd.AddCommand(regionCmd)
	regionCmd.AddCommand(regionCreateCmd)
	regionCmd.AddCommand(regionListCmd)

	rootCmd.AddCommand(buildingCmd)
	buildingCmd.AddCommand(buildingCreateCmd)
	buildingCmd.AddCommand(buildingListCmd)

	buildingCreateCmd.Flags().StringVar(&buildingRegion, "region", "", "region name or ID (default: saved region)")
	buildingCreateCmd.Flags().StringVar(&buildingAddress, "address", "", "street address")
	buildingCreateCmd.Flags().StringVar(&buildingCity, "city", "", "city")
	buildingCreateCmd.Flags().IntVar(&buildingFloors, "floors", 0, "number of floors")
	buildingCreateCmd.Flags().Float64Var(&buildingArea, "area", 0, "total area in m2")
	buildingCreateCmd.Flags().Float64Var(&buildingPricePerM2, "price-per-m2", 0, "price per m2")
	buildingListCmd.Flags().StringVar(&buildingRegion, "region", "", "only buildings in this region")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		// openApp migrates; a second pass reports the schema is current.
		applied, err := a.DB.Migrate(cmd.Context())
		if err != nil {
			return err
		}
		if structuredOutput() {
			return WriteOutput(cmd.OutOrStdout(), map[string]any{"path": a.DB.Path(), "applied": applied})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Database %s is up to date.\n", a.DB.Path())
		return nil
	},
}

var regionCmd = &cobra.Command{
	Use:   "region",
	Short: "Manage regions",
}

var regionCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a region",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		region := &models.Region{Name: args[0]}
		if err := a.Store.Regions.Create(ctx, region); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, region)
		}
		fmt.Fprintf(out, "Created region %s (%s)\n", region.Name, shortID(region.ID))
		PrintNextSteps(out, HintContext{Action: "region_create", RegionName: region.Name})
		return nil
	},
}

var regionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List regions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		regions, err := a.Store.Regions.List(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, nonNil(regions))
		}
		if len(regions) == 0 {
			fmt.Fprintln(out, "No regions found.")
			return nil
		}
		rows := make([][]string, 0, len(regions))
		for _, region := range regions {
			rows = append(rows, []string{region.ID, region.Name, region.CreatedAt.Format("2006-01-02")})
		}
		return writeTable(out, []string{"ID", "NAME", "CREATED"}, rows)
	},
}

var buildingCmd = &cobra.Command{
	Use:   "building",
	Short: "Manage buildings",
}

var buildingCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a building in a region",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ref, err := resolveRegionRef(buildingRegion)
		if err != nil {
			return err
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		region, err := findRegion(ctx, a.Store, ref)
		if err != nil {
			return err
		}
		building := &models.Building{
			Name:       args[0],
			Address:    buildingAddress,
			City:       buildingCity,
			RegionID:   region.ID,
			Floors:     buildingFloors,
			TotalArea:  buildingArea,
			PricePerM2: buildingPricePerM2,
		}
		if err := a.Store.Buildings.Create(ctx, building); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, building)
		}
		fmt.Fprintf(out, "Created building %s (%s) in %s\n", building.Name, building.ID, region.Name)
		return nil
	},
}

var buildingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List buildings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		regionID := ""
		if buildingRegion != "" {
			region, err := findRegion(ctx, a.Store, buildingRegion)
			if err != nil {
				return err
			}
			regionID = region.ID
		}
		buildings, err := a.Store.Buildings.List(ctx, regionID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, nonNil(buildings))
		}
		if len(buildings) == 0 {
			fmt.Fprintln(out, "No buildings found.")
			return nil
		}
		rows := make([][]string, 0, len(buildings))
		for _, b := range buildings {
			rows = append(rows, []string{
				b.ID,
				b.Name,
				formatOptional(b.City),
				shortID(b.RegionID),
				strconv.Itoa(b.Floors),
				formatPrice(b.PricePerM2),
			})
		}
		return writeTable(out, []string{"ID", "NAME", "CITY", "REGION", "FLOORS", "PRICE/M2"}, rows)
	},
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tOgg1/leasedesk/internal/db"
	"github.com/tOgg1/leasedesk/internal/models"
	"github.com/tOgg1/leasedesk/internal/signer"
)

var (
	signerName     string
	signerPosition string
	signerEmail    string
	signerPhone    string
	signerRegion   string
	signerGlobal   bool
	signerOrder    int
	signerStatus   string
)

func init() {
	rootCmd.AddCommand(signerCmd)
	signerCmd.AddCommand(signerAddCmd)
	signerCmd.AddCommand(signerUpdateCmd)
	signerCmd.AddCommand(signerRemoveCmd)
	signerCmd.AddCommand(signerListCmd)
	signerCmd.AddCommand(signerChainCmd)
	signerCmd.AddCommand(signerImportCmd)

	for _, c := range []*cobra.Command{signerAddCmd, signerUpdateCmd} {
		c.Flags().StringVar(&signerName, "name", "", "full name")
		c.Flags().StringVar(&signerPosition, "position", "", "job title")
		c.Flags().StringVar(&signerEmail, "email", "", "email address")
		c.Flags().StringVar(&signerPhone, "phone", "", "phone number")
		c.Flags().StringVar(&signerRegion, "region", "", "region name or ID")
		c.Flags().BoolVar(&signerGlobal, "global", false, "sign for every region")
		c.Flags().IntVar(&signerOrder, "order", 0, "signing order within the region")
		c.Flags().StringVar(&signerStatus, "status", "", "active or inactive")
	}
	_ = signerAddCmd.MarkFlagRequired("name")
	_ = signerAddCmd.MarkFlagRequired("email")

	signerListCmd.Flags().StringVar(&signerRegion, "region", "", "only signers scoped to this region")
	signerListCmd.Flags().StringVar(&signerPosition, "position", "", "only signers with this position")
}

var signerCmd = &cobra.Command{
	Use:   "signer",
	Short: "Manage approval signers",
}

var signerAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a signer",
	Long: `Register a signer for a region, or for every region with --global.
Active signers get a login account if none exists for their email.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if signerGlobal && signerRegion != "" {
			return fmt.Errorf("--global and --region are mutually exclusive")
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := requireAdminActor(ctx, a.Store, "add signers")
		if err != nil {
			return err
		}

		s := &models.Signer{
			Name:         signerName,
			Position:     signerPosition,
			Email:        signerEmail,
			Phone:        signerPhone,
			SigningOrder: signerOrder,
		}
		if signerStatus != "" {
			if s.Status, err = models.ParseSignerStatus(signerStatus); err != nil {
				return err
			}
		}
		regionName := "global"
		if !signerGlobal {
			ref, err := resolveRegionRef(signerRegion)
			if err != nil {
				return err
			}
			region, err := findRegion(ctx, a.Store, ref)
			if err != nil {
				return err
			}
			s.RegionID = &region.ID
			regionName = region.Name
		}

		if err := a.Signers.Create(ctx, actor.ID, s); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, s)
		}
		fmt.Fprintf(out, "Added signer %s (%s) to %s at order %d\n", s.Name, shortID(s.ID), regionName, s.SigningOrder)
		if !signerGlobal {
			PrintNextSteps(out, HintContext{Action: "signer_add", RegionName: regionName})
		}
		return nil
	},
}

var signerUpdateCmd = &cobra.Command{
	Use:   "update <email|id>",
	Short: "Update a signer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if signerGlobal && signerRegion != "" {
			return fmt.Errorf("--global and --region are mutually exclusive")
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := requireAdminActor(ctx, a.Store, "update signers")
		if err != nil {
			return err
		}
		current, err := findSigner(ctx, a.Store, args[0])
		if err != nil {
			return err
		}

		update, err := signerUpdateFromFlags(ctx, cmd, a.Store)
		if err != nil {
			return err
		}
		updated, err := a.Signers.Update(ctx, actor.ID, current.ID, update)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, updated)
		}
		fmt.Fprintf(out, "Updated signer %s (%s)\n", updated.Name, shortID(updated.ID))
		return nil
	},
}

func signerUpdateFromFlags(ctx context.Context, cmd *cobra.Command, store *db.Store) (models.SignerUpdate, error) {
	var update models.SignerUpdate
	flags := cmd.Flags()
	if flags.Changed("name") {
		update.Name = models.Some(signerName)
	}
	if flags.Changed("position") {
		update.Position = models.Some(signerPosition)
	}
	if flags.Changed("email") {
		update.Email = models.Some(signerEmail)
	}
	if flags.Changed("phone") {
		update.Phone = models.Some(signerPhone)
	}
	if flags.Changed("order") {
		update.SigningOrder = models.Some(signerOrder)
	}
	if flags.Changed("status") {
		status, err := models.ParseSignerStatus(signerStatus)
		if err != nil {
			return update, err
		}
		update.Status = models.Some(status)
	}
	switch {
	case signerGlobal:
		update.RegionID = models.Some[*string](nil)
	case flags.Changed("region"):
		region, err := findRegion(ctx, store, signerRegion)
		if err != nil {
			return update, err
		}
		update.RegionID = models.Some(&region.ID)
	}
	return update, nil
}

var signerRemoveCmd = &cobra.Command{
	Use:     "remove <email|id>",
	Aliases: []string{"rm"},
	Short:   "Remove a signer",
	Long:    "Remove a signer. Approval tasks already assigned to it are kept.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := requireAdminActor(ctx, a.Store, "remove signers")
		if err != nil {
			return err
		}
		s, err := findSigner(ctx, a.Store, args[0])
		if err != nil {
			return err
		}
		if err := a.Signers.Delete(ctx, actor.ID, s.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed signer %s (%s)\n", s.Name, shortID(s.ID))
		return nil
	},
}

var signerListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List signers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		filter := models.SignerFilter{Position: signerPosition}
		if signerRegion != "" {
			region, err := findRegion(ctx, a.Store, signerRegion)
			if err != nil {
				return err
			}
			filter.RegionID = &region.ID
		}
		signers, err := a.Signers.List(ctx, filter)
		if err != nil {
			return err
		}
		return writeSigners(cmd.OutOrStdout(), signers, "No signers found.")
	},
}

var signerChainCmd = &cobra.Command{
	Use:   "chain [region]",
	Short: "Show the approval chain a new request in the region would get",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ref := ""
		if len(args) == 1 {
			ref = args[0]
		}
		ref, err := resolveRegionRef(ref)
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
		chain, err := a.Signers.ResolveChain(ctx, region.ID)
		if err != nil {
			return err
		}
		return writeSigners(cmd.OutOrStdout(), chain, fmt.Sprintf("Region %s has no active signers.", region.Name))
	},
}

var signerImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Create or update signers from a YAML roster",
	Long: `Import a YAML roster. Signers are matched by email and region;
matches are updated, the rest are created. The import is all-or-nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var in io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			in = file
		}
		roster, err := signer.ParseRoster(in)
		if err != nil {
			return err
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := requireAdminActor(ctx, a.Store, "import signers")
		if err != nil {
			return err
		}
		result, err := a.Signers.Import(ctx, actor.ID, roster)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, result)
		}
		fmt.Fprintf(out, "Imported %d signers (%d created, %d updated)\n", len(result.Signers), result.Created, result.Updated)
		return nil
	},
}

func writeSigners(out io.Writer, signers []*models.Signer, empty string) error {
	if structuredOutput() {
		return WriteOutput(out, nonNil(signers))
	}
	if len(signers) == 0 {
		fmt.Fprintln(out, empty)
		return nil
	}
	rows := make([][]string, 0, len(signers))
	for _, s := range signers {
		scope := "global"
		if s.RegionID != nil {
			scope = shortID(*s.RegionID)
		}
		rows = append(rows, []string{
			shortID(s.ID),
			strconv.Itoa(s.SigningOrder),
			s.Name,
			formatOptional(s.Position),
			s.Email,
			scope,
			string(s.Status),
		})
	}
	return writeTable(out, []string{"ID", "ORDER", "NAME", "POSITION", "EMAIL", "SCOPE", "STATUS"}, rows)
}

func requireAdminActor(ctx context.Context, store *db.Store, action string) (*models.User, error) {
	actor, err := resolveActor(ctx, store)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, &models.ForbiddenError{ActorID: actor.ID, Action: action}
	}
	return actor, nil
}

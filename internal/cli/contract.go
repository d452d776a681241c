package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tOgg1/leasedesk/internal/models"
	"github.com/tOgg1/leasedesk/internal/workflow"
)

var (
	contractAll         bool
	contractStatus      string
	contractZeroRisk    bool
	contractZeroRiskDoc string

	notifyLimit int
)

func init() {
	rootCmd.AddCommand(contractCmd)
	contractCmd.AddCommand(contractListCmd)
	contractCmd.AddCommand(contractUpdateCmd)

	contractListCmd.Flags().BoolVar(&contractAll, "all", false, "list every contract (admin)")
	contractUpdateCmd.Flags().StringVar(&contractStatus, "status", "", "pending, approved or rejected")
	contractUpdateCmd.Flags().BoolVar(&contractZeroRisk, "zero-risk", false, "mark the contract zero-risk")
	contractUpdateCmd.Flags().StringVar(&contractZeroRiskDoc, "zero-risk-doc", "", "zero-risk document reference")

	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyListCmd)
	notifyCmd.AddCommand(notifyReadCmd)
	notifyListCmd.Flags().IntVar(&notifyLimit, "limit", workflow.DefaultNotificationLimit, "max notifications to show")
}

var contractCmd = &cobra.Command{
	Use:   "contract",
	Short: "Review contracts created by approved requests",
}

var contractListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the acting user's contracts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := resolveActor(ctx, a.Store)
		if err != nil {
			return err
		}
		userID := actor.ID
		if contractAll {
			if !actor.IsAdmin() {
				return &models.ForbiddenError{ActorID: actor.ID, Action: "list all contracts"}
			}
			userID = ""
		}
		contracts, err := a.Engine.ListContracts(ctx, userID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, nonNil(contracts))
		}
		if len(contracts) == 0 {
			fmt.Fprintln(out, "No contracts found.")
			return nil
		}
		rows := make([][]string, 0, len(contracts))
		for _, c := range contracts {
			rows = append(rows, []string{
				c.ID,
				shortID(c.RequestID),
				shortID(c.BuildingID),
				formatPrice(c.TotalPrice),
				string(c.Status),
				formatYesNo(c.ZeroRisk),
			})
		}
		return writeTable(out, []string{"ID", "REQUEST", "BUILDING", "PRICE", "STATUS", "ZERO RISK"}, rows)
	},
}

var contractUpdateCmd = &cobra.Command{
	Use:   "update <contract-id>",
	Short: "Update a contract's administrative fields (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var update models.ContractUpdate
		flags := cmd.Flags()
		if flags.Changed("status") {
			status, err := models.ParseContractStatus(contractStatus)
			if err != nil {
				return err
			}
			update.Status = models.Some(status)
		}
		if flags.Changed("zero-risk") {
			update.ZeroRisk = models.Some(contractZeroRisk)
		}
		if flags.Changed("zero-risk-doc") {
			update.ZeroRiskDoc = models.Some(contractZeroRiskDoc)
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := resolveActor(ctx, a.Store)
		if err != nil {
			return err
		}
		contract, err := a.Engine.UpdateContract(ctx, actor.ID, args[0], update)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, contract)
		}
		fmt.Fprintf(out, "Contract %s is %s (zero risk: %s)\n", contract.ID, contract.Status, formatYesNo(contract.ZeroRisk))
		return nil
	},
}

var notifyCmd = &cobra.Command{
	Use:     "notify",
	Aliases: []string{"notifications"},
	Short:   "Read the acting user's notifications",
}

var notifyListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recent notifications, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := resolveActor(ctx, a.Store)
		if err != nil {
			return err
		}
		notes, err := a.Engine.ListNotifications(ctx, actor.ID, notifyLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, nonNil(notes))
		}
		if len(notes) == 0 {
			fmt.Fprintln(out, "No notifications.")
			return nil
		}
		rows := make([][]string, 0, len(notes))
		for _, note := range notes {
			unread := "*"
			if note.IsRead {
				unread = ""
			}
			rows = append(rows, []string{
				unread,
				note.ID,
				note.CreatedAt.Format("2006-01-02 15:04"),
				note.Title,
				note.Message,
			})
		}
		return writeTable(out, []string{"", "ID", "WHEN", "TITLE", "MESSAGE"}, rows)
	},
}

var notifyReadCmd = &cobra.Command{
	Use:   "read <notification-id>",
	Short: "Mark a notification read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := resolveActor(ctx, a.Store)
		if err != nil {
			return err
		}
		if err := a.Engine.MarkNotificationRead(ctx, actor.ID, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Notification %s marked read\n", shortID(args[0]))
		return nil
	},
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/leasedesk/internal/db"
	"github.com/tOgg1/leasedesk/internal/models"
	"github.com/tOgg1/leasedesk/internal/workflow"
)

var (
	requestBuilding string
	requestSpaces   string
	requestPrice    float64
	requestAll      bool
	requestStatus   string
)

func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.AddCommand(requestSubmitCmd)
	requestCmd.AddCommand(requestListCmd)
	requestCmd.AddCommand(requestShowCmd)
	requestCmd.AddCommand(requestHistoryCmd)

	requestSubmitCmd.Flags().StringVar(&requestBuilding, "building", "", "building ID (required)")
	requestSubmitCmd.Flags().StringVar(&requestSpaces, "spaces", "", "selected spaces as JSON, or @file (required)")
	requestSubmitCmd.Flags().Float64Var(&requestPrice, "price", 0, "total price")
	_ = requestSubmitCmd.MarkFlagRequired("building")
	_ = requestSubmitCmd.MarkFlagRequired("spaces")

	requestListCmd.Flags().BoolVar(&requestAll, "all", false, "list every request (admin)")
	requestListCmd.Flags().StringVar(&requestStatus, "status", "", "with --all, only this status (pending, approved, rejected)")
}

var requestCmd = &cobra.Command{
	Use:     "request",
	Aliases: []string{"req"},
	Short:   "Submit and track rental requests",
}

var requestSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a rental request as the acting user",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		spaces, err := readSpaces(requestSpaces)
		if err != nil {
			return err
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
		sub, err := a.Engine.SubmitRequest(ctx, workflow.SubmitInput{
			RequesterID:    actor.ID,
			BuildingID:     requestBuilding,
			SelectedSpaces: spaces,
			TotalPrice:     requestPrice,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, sub)
		}
		fmt.Fprintf(out, "Submitted request %s with %d approval task(s)\n", sub.Request.ID, len(sub.Approvals))
		PrintNextSteps(out, HintContext{Action: "submit", RequestID: sub.Request.ID, ChainLength: len(sub.Approvals)})
		return nil
	},
}

// readSpaces accepts inline JSON or @path.
func readSpaces(value string) (json.RawMessage, error) {
	if path, ok := strings.CutPrefix(value, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read spaces file: %w", err)
		}
		return json.RawMessage(data), nil
	}
	return json.RawMessage(value), nil
}

var requestListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the acting user's requests",
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

		var requests []*models.RentalRequest
		if requestAll {
			if !actor.IsAdmin() {
				return &models.ForbiddenError{ActorID: actor.ID, Action: "list all requests"}
			}
			requests, err = a.Engine.ListAllRequests(ctx, models.RequestStatus(requestStatus))
		} else {
			requests, err = a.Engine.ListRequests(ctx, actor.ID)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, nonNil(requests))
		}
		if len(requests) == 0 {
			fmt.Fprintln(out, "No requests found.")
			return nil
		}
		rows := make([][]string, 0, len(requests))
		for _, req := range requests {
			rows = append(rows, []string{
				req.ID,
				shortID(req.BuildingID),
				formatPrice(req.TotalPrice),
				string(req.Status),
				req.CreatedAt.Format("2006-01-02 15:04"),
			})
		}
		return writeTable(out, []string{"ID", "BUILDING", "PRICE", "STATUS", "SUBMITTED"}, rows)
	},
}

var requestShowCmd = &cobra.Command{
	Use:   "show <request-id>",
	Short: "Show a request with its approval chain",
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
		detail, err := a.Engine.ViewRequest(ctx, actor.ID, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, detail)
		}
		return writeRequestDetail(cmd, a.Store, out, detail)
	},
}

var requestHistoryCmd = &cobra.Command{
	Use:   "history <request-id>",
	Short: "Show the audit trail of a request",
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
		history, err := a.Engine.RequestHistory(ctx, actor.ID, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, nonNil(history))
		}
		rows := make([][]string, 0, len(history))
		for _, e := range history {
			rows = append(rows, []string{
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				string(e.Type),
				shortID(e.EntityID),
				formatOptional(shortID(e.ActorID)),
			})
		}
		return writeTable(out, []string{"TIME", "EVENT", "ENTITY", "ACTOR"}, rows)
	},
}

func writeRequestDetail(cmd *cobra.Command, store *db.Store, out io.Writer, detail *workflow.RequestDetail) error {
	req := detail.Request
	fmt.Fprintf(out, "Request:   %s\n", req.ID)
	fmt.Fprintf(out, "Building:  %s\n", req.BuildingID)
	fmt.Fprintf(out, "Price:     %s\n", formatPrice(req.TotalPrice))
	fmt.Fprintf(out, "Status:    %s\n", req.Status)
	fmt.Fprintf(out, "Submitted: %s\n", req.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Spaces:    %s\n", string(req.SelectedSpaces))
	if detail.Contract != nil {
		fmt.Fprintf(out, "Contract:  %s (%s)\n", detail.Contract.ID, detail.Contract.Status)
	}
	fmt.Fprintln(out)

	if len(detail.Approvals) == 0 {
		fmt.Fprintln(out, "No approval tasks.")
		return nil
	}
	rows := make([][]string, 0, len(detail.Approvals))
	for _, approval := range detail.Approvals {
		name := "(removed)"
		if s, err := store.Signers.Get(cmd.Context(), approval.SignerID); err == nil {
			name = s.Name
		}
		acted := "-"
		if approval.ActionAt != nil {
			acted = approval.ActionAt.Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			approval.ID,
			name,
			string(approval.Status),
			acted,
			formatOptional(approval.Reason),
		})
	}
	return writeTable(out, []string{"TASK", "SIGNER", "STATUS", "ACTED", "REASON"}, rows)
}

package cli

import (
	"fmt"
	"io"
)

// HintContext provides context for generating relevant next steps.
type HintContext struct {
	// Action is the command that was executed (e.g., "submit", "approve")
	Action string

	// RequestID is the rental request involved (if any)
	RequestID string

	// RegionName is the region involved (for display)
	RegionName string

	// SignerEmail is the signer involved (if any)
	SignerEmail string

	// Outcome is the request outcome after resolving a task
	Outcome string

	// ChainLength is the number of approval tasks created
	ChainLength int
}

// PrintNextSteps prints contextual next steps after a successful command.
// Does nothing if JSON output is enabled.
func PrintNextSteps(out io.Writer, ctx HintContext) {
	if structuredOutput() {
		return
	}

	hints := generateHints(ctx)
	if len(hints) == 0 {
		return
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	for _, hint := range hints {
		fmt.Fprintf(out, "  %s\n", hint)
	}
}

func generateHints(ctx HintContext) []string {
	switch ctx.Action {
	case "region_create":
		return []string{
			fmt.Sprintf("leasedesk building create --region %q <name>   # Add a building", ctx.RegionName),
			fmt.Sprintf("leasedesk signer add --region %q ...           # Add signers", ctx.RegionName),
		}
	case "signer_add":
		return []string{
			fmt.Sprintf("leasedesk signer chain %q                      # Review the chain", ctx.RegionName),
		}
	case "submit":
		return hintsForSubmit(ctx)
	case "resolve":
		return hintsForResolve(ctx)
	default:
		return nil
	}
}

func hintsForSubmit(ctx HintContext) []string {
	if ctx.ChainLength == 0 {
		return []string{
			"The region has no active signers; the request stays pending until one is added.",
			"leasedesk signer add --region <region> ...       # Add a signer",
		}
	}
	return []string{
		fmt.Sprintf("leasedesk request show %s                  # Track approvals", shortID(ctx.RequestID)),
		"leasedesk notify list                             # Check notifications",
	}
}

func hintsForResolve(ctx HintContext) []string {
	switch ctx.Outcome {
	case "request_approved":
		return []string{"leasedesk contract list --all                      # Review the new contract"}
	case "still_pending":
		return []string{"leasedesk task list                               # Remaining tasks"}
	default:
		return nil
	}
}

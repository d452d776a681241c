package cli

import (
	"github.com/spf13/cobra"

	"github.com/tOgg1/leasedesk/internal/tui"
)

func init() {
	rootCmd.AddCommand(inboxCmd)
}

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Work pending approval tasks in an interactive inbox",
	RunE: func(cmd *cobra.Command, args []string) error {
		if IsNonInteractive() {
			return &PreflightError{
				Message:  "the inbox requires an interactive terminal",
				Hint:     "use the task subcommands from scripts",
				NextStep: "leasedesk task list",
			}
		}

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
		signer, err := a.Engine.SignerForUser(ctx, actor.ID)
		if err != nil {
			return err
		}

		return tui.RunInbox(a.Engine, tui.Config{
			SignerID:        signer.ID,
			SignerName:      signer.Name,
			ActorID:         actor.ID,
			RefreshInterval: GetConfig().TUI.RefreshInterval,
		})
	},
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tOgg1/leasedesk/internal/app"
	"github.com/tOgg1/leasedesk/internal/models"
	"github.com/tOgg1/leasedesk/internal/workflow"
)

var (
	taskAll     bool
	taskSigner  string
	taskComment string
	taskReason  string
)

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskApproveCmd)
	taskCmd.AddCommand(taskDeclineCmd)

	taskListCmd.Flags().BoolVar(&taskAll, "all", false, "include resolved tasks")
	taskListCmd.Flags().StringVar(&taskSigner, "signer", "", "list another signer's tasks (admin)")
	taskApproveCmd.Flags().StringVar(&taskComment, "comment", "", "optional approval comment")
	taskDeclineCmd.Flags().StringVar(&taskReason, "reason", "", "decline reason (required)")
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Work the acting signer's approval tasks",
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List approval tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		signer, err := taskSignerFor(ctx, a)
		if err != nil {
			return err
		}

		var tasks []*models.RequestApproval
		if taskAll {
			tasks, err = a.Engine.ListTasks(ctx, signer.ID)
		} else {
			tasks, err = a.Engine.ListPendingTasks(ctx, signer.ID)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, nonNil(tasks))
		}
		if len(tasks) == 0 {
			fmt.Fprintf(out, "No tasks for %s.\n", signer.Email)
			return nil
		}
		rows := make([][]string, 0, len(tasks))
		for _, task := range tasks {
			rows = append(rows, []string{
				task.ID,
				task.RequestID,
				string(task.Status),
				task.CreatedAt.Format("2006-01-02 15:04"),
			})
		}
		return writeTable(out, []string{"TASK", "REQUEST", "STATUS", "ASSIGNED"}, rows)
	},
}

// taskSignerFor returns the signer record of the acting user, or of --signer
// for administrators.
func taskSignerFor(ctx context.Context, a *app.App) (*models.Signer, error) {
	actor, err := resolveActor(ctx, a.Store)
	if err != nil {
		return nil, err
	}
	if taskSigner != "" {
		if !actor.IsAdmin() {
			return nil, &models.ForbiddenError{ActorID: actor.ID, Action: "list another signer's tasks"}
		}
		return findSigner(ctx, a.Store, taskSigner)
	}
	return a.Engine.SignerForUser(ctx, actor.ID)
}

var taskApproveCmd = &cobra.Command{
	Use:   "approve <task-id>",
	Short: "Approve a pending task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveTaskCmd(cmd, args[0], func(ctx context.Context, a *app.App, actorID string) (*workflow.Resolution, error) {
			return a.Engine.Approve(ctx, args[0], actorID, taskComment)
		})
	},
}

var taskDeclineCmd = &cobra.Command{
	Use:   "decline <task-id>",
	Short: "Decline a pending task, rejecting its request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveTaskCmd(cmd, args[0], func(ctx context.Context, a *app.App, actorID string) (*workflow.Resolution, error) {
			return a.Engine.Decline(ctx, args[0], actorID, taskReason)
		})
	},
}

func resolveTaskCmd(cmd *cobra.Command, taskID string, resolve func(context.Context, *app.App, string) (*workflow.Resolution, error)) error {
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
	res, err := resolve(ctx, a, actor.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if structuredOutput() {
		return WriteOutput(out, res)
	}
	fmt.Fprintf(out, "Task %s %s; request %s is %s\n", shortID(taskID), res.Approval.Status, shortID(res.Request.ID), res.Request.Status)
	if res.Contract != nil {
		fmt.Fprintf(out, "Contract %s created\n", res.Contract.ID)
	}
	if len(res.Cancelled) > 0 {
		fmt.Fprintf(out, "Cancelled %d remaining task(s)\n", len(res.Cancelled))
	}
	PrintNextSteps(out, HintContext{Action: "resolve", RequestID: res.Request.ID, Outcome: string(res.Outcome)})
	return nil
}

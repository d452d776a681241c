package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/leasedesk/internal/db"
	"github.com/tOgg1/leasedesk/internal/models"
)

var (
	eventsTypes      []string
	eventsEntityType string
	eventsEntityID   string
	eventsSince      time.Duration
	eventsLimit      int
)

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().StringSliceVar(&eventsTypes, "type", nil, "event types (e.g. request.approved); repeatable")
	eventsCmd.Flags().StringVar(&eventsEntityType, "entity-type", "", "rental_request, request_approval, contract or signer")
	eventsCmd.Flags().StringVar(&eventsEntityID, "entity", "", "only events for this entity ID")
	eventsCmd.Flags().DurationVar(&eventsSince, "since", 0, "only events newer than this (e.g. 24h)")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "max events to list")
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the audit log",
	Long: `Show the audit log, oldest first.
With --watch --jsonl, stream new events until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		types := make([]models.EventType, 0, len(eventsTypes))
		for _, t := range eventsTypes {
			types = append(types, models.EventType(strings.TrimSpace(t)))
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		filter := db.EventFilter{
			Types:      types,
			EntityType: models.EntityType(eventsEntityType),
			EntityID:   eventsEntityID,
			Limit:      eventsLimit,
		}
		if eventsSince > 0 {
			filter.Since = time.Now().Add(-eventsSince)
		}

		if IsWatchMode() {
			opts := StreamOptions{Filter: filter, Backfill: eventsSince > 0}
			opts.Filter.Limit = 0
			if appCfg := GetConfig(); appCfg != nil {
				opts.Interval = appCfg.TUI.RefreshInterval
			}
			return NewEventStreamer(a.Store.Events, cmd.OutOrStdout(), opts).Stream(ctx)
		}

		page, err := a.Store.Events.Query(ctx, filter)
		if err != nil {
			return err
		}
		found := page.Events

		out := cmd.OutOrStdout()
		if structuredOutput() {
			return WriteOutput(out, nonNil(found))
		}
		if len(found) == 0 {
			fmt.Fprintln(out, "No events found.")
			return nil
		}
		rows := make([][]string, 0, len(found))
		for _, e := range found {
			rows = append(rows, []string{
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				string(e.Type),
				string(e.EntityType),
				shortID(e.EntityID),
				formatOptional(shortID(e.ActorID)),
			})
		}
		if err := writeTable(out, []string{"TIME", "TYPE", "ENTITY", "ID", "ACTOR"}, rows); err != nil {
			return err
		}
		if page.NextCursor != "" {
			fmt.Fprintf(out, "\n(more events; raise --limit)\n")
		}
		return nil
	},
}

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/byteforge/internal/model"
	"github.com/nao1215/byteforge/internal/schedule"
	"github.com/nao1215/byteforge/internal/store"
)

// NewScheduleCmd creates the schedule command group.
func NewScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage recurring scans",
		Long: `Schedule manages recurring jobs fired by 'byteforge serve'.

Each target has at most one schedule per job kind; adding a schedule for
the same target and kind replaces the previous one.`,
	}
	cmd.AddCommand(newScheduleAddCmd())
	cmd.AddCommand(newScheduleRemoveCmd())
	cmd.AddCommand(newScheduleListCmd())
	return cmd
}

// openRegistry opens the app and a registry that is never started, so
// nothing fires from this process.
func openRegistry(cmd *cobra.Command) (*app, *schedule.Registry, error) {
	a, err := openApp(cmd)
	if err != nil {
		return nil, nil, err
	}
	return a, schedule.NewRegistry(a.store, nil, schedule.WithLogger(a.logger.Logger)), nil
}

func newScheduleAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <target-id> <kind> <daily|weekly|monthly>",
		Short: "Schedule a recurring job",
		Long: `Add schedules a job kind against a target.

Daily runs at midnight, weekly on Sunday at midnight and monthly on the
first of the month at midnight, all in UTC.

Examples:
  byteforge schedule add 1 composite weekly
  byteforge schedule add 1 recon daily`,
		Args: cobra.ExactArgs(3),
		RunE: runScheduleAddCmd,
	}
}

// runScheduleAddCmd executes the schedule add command.
func runScheduleAddCmd(cmd *cobra.Command, args []string) error {
	targetID, err := parseID("target", args[0])
	if err != nil {
		return err
	}
	kind, err := model.ParseJobKind(args[1])
	if err != nil {
		return err
	}
	freq, err := model.ParseFrequency(args[2])
	if err != nil {
		return err
	}

	a, registry, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if _, err := a.store.GetTarget(ctx, targetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("target %d not found", targetID)
		}
		return err
	}

	sc, err := registry.Add(ctx, targetID, kind, freq)
	if err != nil {
		return fmt.Errorf("failed to add schedule: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Scheduled %s %s for target %d (id %s, next run %s)\n",
		sc.Frequency, sc.Kind, sc.TargetID, sc.ID, registry.Next(sc.ID).Format(timeLayout))
	return nil
}

func newScheduleRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <schedule-id>",
		Short: "Remove a recurring job",
		Long: `Remove deletes a schedule by id, for example target_1_composite.

Use 'byteforge schedule list' to see schedule ids.`,
		Args: cobra.ExactArgs(1),
		RunE: runScheduleRemoveCmd,
	}
}

// runScheduleRemoveCmd executes the schedule remove command.
func runScheduleRemoveCmd(cmd *cobra.Command, args []string) error {
	a, registry, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := registry.Remove(cmd.Context(), args[0]); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("schedule %s not found", args[0])
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed schedule %s\n", args[0])
	return nil
}

func newScheduleListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recurring jobs",
		Args:  cobra.NoArgs,
		RunE:  runScheduleListCmd,
	}
	cmd.Flags().BoolP("json", "j", false, "Output schedules in JSON format")
	return cmd
}

// scheduleView is the JSON form of a schedule.
type scheduleView struct {
	ID        string          `json:"id"`
	TargetID  int64           `json:"target_id"`
	Kind      model.JobKind   `json:"kind"`
	Frequency model.Frequency `json:"frequency"`
	Cron      string          `json:"cron"`
	NextRun   string          `json:"next_run"`
}

// runScheduleListCmd executes the schedule list command.
func runScheduleListCmd(cmd *cobra.Command, _ []string) error {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	a, registry, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	// Loading registers every schedule so that next run times are known.
	if err := registry.Load(ctx); err != nil {
		return err
	}
	schedules, err := registry.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list schedules: %w", err)
	}

	views := make([]scheduleView, 0, len(schedules))
	for _, sc := range schedules {
		views = append(views, scheduleView{
			ID:        sc.ID,
			TargetID:  sc.TargetID,
			Kind:      sc.Kind,
			Frequency: sc.Frequency,
			Cron:      sc.Cron,
			NextRun:   registry.Next(sc.ID).Format(timeLayout),
		})
	}

	if asJSON {
		return writeJSON(cmd.OutOrStdout(), views)
	}

	w := cmd.OutOrStdout()
	if len(views) == 0 {
		fmt.Fprintln(w, "No schedules.")
		return nil
	}
	fmt.Fprintf(w, "Schedules (%d):\n\n", len(views))
	fmt.Fprintf(w, "  %-28s  %-8s  %-10s  %s\n", "ID", "Target", "Frequency", "Next run (UTC)")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 70))
	for _, v := range views {
		fmt.Fprintf(w, "  %-28s  %-8d  %-10s  %s\n", v.ID, v.TargetID, v.Frequency, v.NextRun)
	}
	return nil
}

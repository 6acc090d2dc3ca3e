package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/byteforge/internal/config"
	"github.com/nao1215/byteforge/internal/dispatch"
	"github.com/nao1215/byteforge/internal/model"
	"github.com/nao1215/byteforge/internal/store"
)

// NewJobCmd creates the job command group.
func NewJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Submit and inspect scan jobs",
	}
	cmd.AddCommand(newJobSubmitCmd())
	cmd.AddCommand(newJobShowCmd())
	cmd.AddCommand(newJobListCmd())
	return cmd
}

func newJobSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <target-id> <kind>",
		Short: "Submit a job against a target",
		Long: `Submit creates a queued job and hands it to the configured dispatcher.

Kinds: recon, crawl, vulnerability-scan, active-probe, composite, report.

With the in-process dispatcher the job runs in this process and submit
returns once it has finished. With the Redis dispatcher submit returns as
soon as the job is queued for a worker.

Examples:
  byteforge job submit 1 composite
  byteforge job submit 1 vulnerability-scan`,
		Args: cobra.ExactArgs(2),
		RunE: runJobSubmitCmd,
	}
}

// runJobSubmitCmd executes the job submit command.
func runJobSubmitCmd(cmd *cobra.Command, args []string) error {
	targetID, err := parseID("target", args[0])
	if err != nil {
		return err
	}
	kind, err := model.ParseJobKind(args[1])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	if _, err := a.store.GetTarget(ctx, targetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("target %d not found", targetID)
		}
		return err
	}

	d, err := dispatch.New(a.cfg, a.executor(nil), a.logger.Logger)
	if err != nil {
		return err
	}

	job, err := dispatch.Submit(ctx, a.store, d, targetID, kind)
	if err != nil {
		_ = d.Close(context.Background())
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %d (%s) for target %d\n", job.ID, job.Kind, targetID)

	// The in-process dispatcher waits here for the job to finish.
	if err := d.Close(ctx); err != nil {
		return fmt.Errorf("job %d interrupted: %w", job.ID, err)
	}

	if a.cfg.Dispatcher == config.DispatcherRedis {
		fmt.Fprintln(cmd.OutOrStdout(), "Job queued for workers.")
		return nil
	}

	done, err := a.store.GetJob(context.WithoutCancel(ctx), job.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Job %d %s\n", done.ID, done.Status)
	return nil
}

func newJobShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job and its result",
		Args:  cobra.ExactArgs(1),
		RunE:  runJobShowCmd,
	}
	cmd.Flags().BoolP("json", "j", false, "Output the job in JSON format")
	return cmd
}

// jobView is the JSON form of a job. Result holds the pipeline result of a
// completed job; Error holds the failure of a failed one.
type jobView struct {
	ID        int64           `json:"id"`
	TargetID  int64           `json:"target_id"`
	Kind      model.JobKind   `json:"kind"`
	Status    model.JobStatus `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

func newJobView(job *model.Job) jobView {
	v := jobView{
		ID:        job.ID,
		TargetID:  job.TargetID,
		Kind:      job.Kind,
		Status:    job.Status,
		CreatedAt: job.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt: job.UpdatedAt.UTC().Format(timeLayout),
	}
	switch {
	case job.Log == "":
	case job.Status == model.JobStatusCompleted && json.Valid([]byte(job.Log)):
		v.Result = json.RawMessage(job.Log)
	default:
		v.Error = job.Log
	}
	return v
}

// runJobShowCmd executes the job show command.
func runJobShowCmd(cmd *cobra.Command, args []string) error {
	id, err := parseID("job", args[0])
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.store.GetJob(cmd.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("job %d not found", id)
		}
		return err
	}

	if asJSON {
		return writeJSON(cmd.OutOrStdout(), newJobView(job))
	}
	printJob(cmd.OutOrStdout(), job)
	return nil
}

// printJob writes a job and its log as text.
func printJob(w io.Writer, job *model.Job) {
	fmt.Fprintf(w, "Job %d\n", job.ID)
	fmt.Fprintf(w, "  Target:  %d\n", job.TargetID)
	fmt.Fprintf(w, "  Kind:    %s\n", job.Kind)
	fmt.Fprintf(w, "  Status:  %s\n", job.Status)
	fmt.Fprintf(w, "  Created: %s\n", job.CreatedAt.UTC().Format(timeLayout))
	fmt.Fprintf(w, "  Updated: %s\n", job.UpdatedAt.UTC().Format(timeLayout))
	if job.Log == "" {
		return
	}
	fmt.Fprintln(w, "\nLog:")
	fmt.Fprintln(w, job.Log)
}

func newJobListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [target-id]",
		Short: "List jobs, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runJobListCmd,
	}
	cmd.Flags().BoolP("json", "j", false, "Output jobs in JSON format")
	return cmd
}

// runJobListCmd executes the job list command.
func runJobListCmd(cmd *cobra.Command, args []string) error {
	var targetID int64
	if len(args) == 1 {
		id, err := parseID("target", args[0])
		if err != nil {
			return err
		}
		targetID = id
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.store.ListJobs(cmd.Context(), targetID)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if asJSON {
		views := make([]jobView, 0, len(jobs))
		for i := range jobs {
			views = append(views, newJobView(&jobs[i]))
		}
		return writeJSON(cmd.OutOrStdout(), views)
	}

	w := cmd.OutOrStdout()
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found.")
		return nil
	}
	fmt.Fprintf(w, "Jobs (%d):\n\n", len(jobs))
	fmt.Fprintf(w, "  %-6s  %-6s  %-20s  %-10s  %s\n", "ID", "Target", "Kind", "Status", "Updated")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 70))
	for _, j := range jobs {
		fmt.Fprintf(w, "  %-6d  %-6d  %-20s  %-10s  %s\n",
			j.ID, j.TargetID, j.Kind, j.Status, j.UpdatedAt.UTC().Format(timeLayout))
	}
	return nil
}

package main

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/byteforge/internal/model"
)

// NewFindingsCmd creates the findings command.
func NewFindingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "findings <target-id>",
		Short: "List stored findings of a target",
		Long: `Findings lists the findings persisted for a target, most severe first.

Examples:
  # All findings of target 1
  byteforge findings 1

  # Findings of a single job, with their evidence
  byteforge findings 1 --job 7 --evidence

  # Only high and critical findings as JSON
  byteforge findings 1 --min-severity high --json`,
		Args: cobra.ExactArgs(1),
		RunE: runFindingsCmd,
	}

	cmd.Flags().Int64("job", 0, "Only list findings created by this job")
	cmd.Flags().String("min-severity", "info", "Lowest severity to list (info, low, medium, high, critical)")
	cmd.Flags().BoolP("evidence", "e", false, "Load and print the evidence of each finding")
	cmd.Flags().BoolP("json", "j", false, "Output findings in JSON format")

	return cmd
}

// runFindingsCmd executes the findings command.
func runFindingsCmd(cmd *cobra.Command, args []string) error {
	targetID, err := parseID("target", args[0])
	if err != nil {
		return err
	}
	jobID, err := cmd.Flags().GetInt64("job")
	if err != nil {
		return err
	}
	minName, err := cmd.Flags().GetString("min-severity")
	if err != nil {
		return err
	}
	minSeverity, err := model.ParseSeverity(minName)
	if err != nil {
		return err
	}
	withEvidence, err := cmd.Flags().GetBool("evidence")
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

	ctx := cmd.Context()
	var findings []model.Finding
	if jobID != 0 {
		findings, err = a.store.ListJobFindings(ctx, jobID)
	} else {
		findings, err = a.store.ListFindings(ctx, targetID)
	}
	if err != nil {
		return fmt.Errorf("failed to list findings: %w", err)
	}

	selected := make([]model.Finding, 0, len(findings))
	for _, f := range findings {
		if f.TargetID != targetID || f.Severity < minSeverity {
			continue
		}
		if withEvidence {
			if f.Evidence, err = a.store.ListEvidence(ctx, f.ID); err != nil {
				return fmt.Errorf("failed to load evidence of finding %d: %w", f.ID, err)
			}
		}
		selected = append(selected, f)
	}
	slices.SortStableFunc(selected, func(x, y model.Finding) int {
		return cmp.Compare(y.Severity, x.Severity)
	})

	if asJSON {
		return writeJSON(cmd.OutOrStdout(), selected)
	}
	printFindings(cmd.OutOrStdout(), targetID, selected)
	return nil
}

// printFindings writes findings as text.
func printFindings(w io.Writer, targetID int64, findings []model.Finding) {
	if len(findings) == 0 {
		fmt.Fprintf(w, "No findings for target %d\n", targetID)
		return
	}

	fmt.Fprintf(w, "Findings for target %d (%d):\n\n", targetID, len(findings))
	for _, f := range findings {
		fmt.Fprintf(w, "  [%s] %s\n", strings.ToUpper(f.Severity.String()), f.Title)
		fmt.Fprintf(w, "    id: %d  job: %d", f.ID, f.JobID)
		if f.CWE != "" {
			fmt.Fprintf(w, "  %s", f.CWE)
		}
		if f.OWASP != "" {
			fmt.Fprintf(w, "  %s", f.OWASP)
		}
		fmt.Fprintln(w)
		if f.Description != "" {
			fmt.Fprintf(w, "    %s\n", f.Description)
		}
		for _, e := range f.Evidence {
			fmt.Fprintf(w, "    %s: %s\n", e.Kind, firstLine(e.Data))
		}
	}
}

// firstLine returns the first line of s, marking elided content.
func firstLine(s string) string {
	line, _, more := strings.Cut(s, "\n")
	if more {
		return line + " ..."
	}
	return line
}

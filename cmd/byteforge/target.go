package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/byteforge/internal/model"
)

// NewTargetCmd creates the target command group.
func NewTargetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Manage assessment targets",
	}
	cmd.AddCommand(newTargetAddCmd())
	cmd.AddCommand(newTargetListCmd())
	return cmd
}

func newTargetAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a target",
		Long: `Add registers a target whose scope may be scanned.

The scope is a comma separated list of domains or URLs. Scans are pointed
at the first entry; crawls stay within all of them.

Examples:
  byteforge target add --name acme --scope https://acme.example,api.acme.example
  byteforge target add --name staging --scope staging.acme.example --rate-limit 2`,
		Args: cobra.NoArgs,
		RunE: runTargetAddCmd,
	}

	cmd.Flags().StringP("name", "n", "", "Human-readable target name")
	cmd.Flags().StringP("scope", "s", "", "Comma separated domains or URLs in scope")
	cmd.Flags().IntP("rate-limit", "r", model.DefaultRateLimitRPS,
		"Active probe requests per second against this target")
	cmd.Flags().String("auth-profile", "", "Name of stored credentials for authenticated scans")

	return cmd
}

// runTargetAddCmd executes the target add command.
func runTargetAddCmd(cmd *cobra.Command, _ []string) error {
	t := &model.Target{}

	var err error
	if t.Name, err = cmd.Flags().GetString("name"); err != nil {
		return err
	}
	if t.Scope, err = cmd.Flags().GetString("scope"); err != nil {
		return err
	}
	if t.RateLimitRPS, err = cmd.Flags().GetInt("rate-limit"); err != nil {
		return err
	}
	if t.AuthProfile, err = cmd.Flags().GetString("auth-profile"); err != nil {
		return err
	}

	// Validate before opening the database.
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("target name is required (--name)")
	}
	if len(t.ScopeEntries()) == 0 {
		return errors.New("target scope is required (--scope)")
	}
	if t.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit must not be negative, got %d", t.RateLimitRPS)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.CreateTarget(cmd.Context(), t); err != nil {
		return fmt.Errorf("failed to create target: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created target %d (%s)\n", t.ID, t.Name)
	return nil
}

func newTargetListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered targets",
		Args:  cobra.NoArgs,
		RunE:  runTargetListCmd,
	}
	cmd.Flags().BoolP("json", "j", false, "Output targets in JSON format")
	return cmd
}

// targetView is the JSON form of a target.
type targetView struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Scope        []string `json:"scope"`
	RateLimitRPS int      `json:"rate_limit_rps"`
	AuthProfile  string   `json:"auth_profile,omitempty"`
	CreatedAt    string   `json:"created_at"`
}

// runTargetListCmd executes the target list command.
func runTargetListCmd(cmd *cobra.Command, _ []string) error {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	targets, err := a.store.ListTargets(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}

	if asJSON {
		views := make([]targetView, 0, len(targets))
		for _, t := range targets {
			views = append(views, targetView{
				ID:           t.ID,
				Name:         t.Name,
				Scope:        t.ScopeEntries(),
				RateLimitRPS: t.EffectiveRateLimit(),
				AuthProfile:  t.AuthProfile,
				CreatedAt:    t.CreatedAt.UTC().Format(timeLayout),
			})
		}
		return writeJSON(cmd.OutOrStdout(), views)
	}

	printTargets(cmd.OutOrStdout(), targets)
	return nil
}

// timeLayout formats timestamps in command output.
const timeLayout = "2006-01-02 15:04:05"

// printTargets writes targets as a text table.
func printTargets(w io.Writer, targets []model.Target) {
	if len(targets) == 0 {
		fmt.Fprintln(w, "No targets registered.")
		fmt.Fprintln(w, "\nUse 'byteforge target add' to register one.")
		return
	}

	fmt.Fprintf(w, "Targets (%d):\n\n", len(targets))
	fmt.Fprintf(w, "  %-6s  %-20s  %-5s  %s\n", "ID", "Name", "RPS", "Scope")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 60))
	for _, t := range targets {
		fmt.Fprintf(w, "  %-6d  %-20s  %-5d  %s\n",
			t.ID, t.Name, t.EffectiveRateLimit(), strings.Join(t.ScopeEntries(), ", "))
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/byteforge/internal/config"
	"github.com/nao1215/byteforge/internal/model"
	"github.com/nao1215/byteforge/internal/pipeline"
	"github.com/nao1215/byteforge/internal/scanapi"
)

// directJobID labels results of scans that are not persisted.
const directJobID = 0

// NewScanCmd creates the scan command group.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a scan directly without storing results",
		Long: `Scan runs one scan module against one or more targets and prints the
result as JSON. Nothing is written to the database and no encryption key
is needed.

With several targets the scans run concurrently and the output is a JSON
array with one entry per target, in argument order.`,
	}

	cmd.PersistentFlags().IntP("batch", "b", 4, "Number of concurrent scans when several targets are given")

	cmd.AddCommand(newScanReconCmd())
	cmd.AddCommand(newScanCrawlCmd())
	cmd.AddCommand(newScanVulnCmd())
	cmd.AddCommand(newScanProbeCmd())
	cmd.AddCommand(newScanFullCmd())
	return cmd
}

func newScanReconCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recon <domain>...",
		Short: "Enumerate subdomains",
		Example: `  byteforge scan recon acme.example
  byteforge scan recon acme.example other.example`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args, model.JobKindRecon, func(ctx context.Context, api *scanapi.API, target string) *model.ScanResult {
				return api.RunRecon(ctx, directJobID, target)
			})
		},
	}
}

func newScanCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>...",
		Short: "Discover and categorise URLs",
		Example: `  byteforge scan crawl https://acme.example --depth 2
  byteforge scan crawl https://acme.example --scope api.acme.example`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := cmd.Flags().GetStringSlice("scope")
			if err != nil {
				return err
			}
			return runScan(cmd, args, model.JobKindCrawl, func(ctx context.Context, api *scanapi.API, target string) *model.ScanResult {
				return api.RunCrawl(ctx, directJobID, target, 0, append([]string{target}, scope...))
			})
		},
	}
	cmd.Flags().IntP("depth", "d", 0, "Crawl recursion depth (default from configuration)")
	cmd.Flags().StringSlice("scope", nil, "Additional domains or URLs to stay within")
	return cmd
}

func newScanVulnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vuln <url>...",
		Short: "Match vulnerability templates",
		Example: `  byteforge scan vuln https://acme.example
  byteforge scan vuln https://acme.example --tags cves,exposures`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args, model.JobKindVulnerabilityScan, func(ctx context.Context, api *scanapi.API, target string) *model.ScanResult {
				return api.RunVulnerabilityScan(ctx, directJobID, target, "")
			})
		},
	}
	cmd.Flags().StringP("tags", "t", "", "Template tags (default from configuration)")
	return cmd
}

func newScanProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe <url>...",
		Short: "Send active XSS, SQL injection and path traversal payloads",
		Long: `Probe sends attack payloads to the query parameters of the target.

Only probe systems you are authorised to test.`,
		Example: `  byteforge scan probe "https://acme.example/search?q=test"
  byteforge scan probe https://acme.example --endpoint https://acme.example/item?id=1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoints, err := cmd.Flags().GetStringSlice("endpoint")
			if err != nil {
				return err
			}
			if len(endpoints) > 0 && len(args) > 1 {
				return errors.New("--endpoint requires a single target")
			}
			return runScan(cmd, args, model.JobKindActiveProbe, func(ctx context.Context, api *scanapi.API, target string) *model.ScanResult {
				if len(endpoints) > 0 {
					return api.RunActiveProbe(ctx, directJobID, target, append([]string{target}, endpoints...))
				}
				return api.RunActiveProbe(ctx, directJobID, target, nil)
			})
		},
	}
	cmd.Flags().StringSlice("endpoint", nil, "Additional endpoint URLs to probe")
	return cmd
}

func newScanFullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "full <url>...",
		Short: "Run recon, crawl and vulnerability scan in sequence",
		Example: `  byteforge scan full https://acme.example`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args, model.JobKindComposite, nil)
		},
	}
	cmd.Flags().IntP("depth", "d", 0, "Crawl recursion depth (default from configuration)")
	cmd.Flags().StringP("tags", "t", "", "Template tags (default from configuration)")
	return cmd
}

// directScan runs one scan module against a single target.
type directScan func(ctx context.Context, api *scanapi.API, target string) *model.ScanResult

// batchEntry is the JSON form of one scan in a batch.
type batchEntry struct {
	Target   string            `json:"target"`
	Result   *model.ScanResult `json:"result,omitempty"`
	Findings []model.Finding   `json:"findings"`
	Error    string            `json:"error,omitempty"`
}

// runScan prints the result of scanning args with kind. A single target
// goes through run when it is set; several targets, or a nil run, go
// through the batch processor.
func runScan(cmd *cobra.Command, args []string, kind model.JobKind, run directScan) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyScanFlags(cmd, cfg); err != nil {
		return err
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	api := scanapi.New(cfg, logger.Logger)

	if len(args) == 1 && run != nil {
		return writeJSON(cmd.OutOrStdout(), run(ctx, api, args[0]))
	}

	batch, err := persistentInt(cmd, "batch")
	if err != nil {
		return err
	}

	var scope []string
	if cmd.Flags().Lookup("scope") != nil {
		if scope, err = cmd.Flags().GetStringSlice("scope"); err != nil {
			return err
		}
	}
	targets := make([]*model.Target, len(args))
	for i, arg := range args {
		targets[i] = &model.Target{Name: arg, Scope: strings.Join(append([]string{arg}, scope...), ",")}
	}

	bp := pipeline.NewBatchProcessor(api.Orchestrator(nil),
		pipeline.WithConcurrency(batch),
		pipeline.WithBatchLogger(logger.Logger),
	)
	results, err := bp.ProcessBatch(ctx, kind, targets)
	if err != nil {
		return err
	}

	entries := make([]batchEntry, 0, len(results))
	for i, r := range results {
		e := batchEntry{Target: args[i], Findings: []model.Finding{}}
		if r != nil {
			e.Result = r.Result
			if r.Findings != nil {
				e.Findings = r.Findings
			}
			if r.Err != nil {
				e.Error = r.Err.Error()
			}
		}
		entries = append(entries, e)
	}
	return writeJSON(cmd.OutOrStdout(), entries)
}

// applyScanFlags overlays the depth and tags flags, where a subcommand
// defines them, onto the configuration.
func applyScanFlags(cmd *cobra.Command, cfg *config.Config) error {
	if f := cmd.Flags().Lookup("depth"); f != nil && f.Changed {
		depth, err := cmd.Flags().GetInt("depth")
		if err != nil {
			return err
		}
		if depth < 1 {
			return fmt.Errorf("depth must be at least 1, got %d", depth)
		}
		cfg.CrawlDepth = depth
	}
	if f := cmd.Flags().Lookup("tags"); f != nil && f.Changed {
		tags, err := cmd.Flags().GetString("tags")
		if err != nil {
			return err
		}
		if strings.TrimSpace(tags) == "" {
			return errors.New("tags must not be empty")
		}
		cfg.Templates = tags
	}
	return nil
}

// persistentInt reads an int flag defined on the command or a parent.
func persistentInt(cmd *cobra.Command, name string) (int, error) {
	if v, err := cmd.Flags().GetInt(name); err == nil {
		return v, nil
	}
	return cmd.Parent().PersistentFlags().GetInt(name)
}

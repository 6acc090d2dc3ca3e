package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/byteforge/internal/model"
	"github.com/nao1215/byteforge/internal/report"
	"github.com/nao1215/byteforge/internal/scanapi"
	"github.com/nao1215/byteforge/internal/store"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <target-id>",
		Short: "Render a report of a target's stored findings",
		Long: `Report renders every stored finding of a target with a severity summary
and risk score.

Formats: text, html, markdown (md), json, pdf. PDF output requires
--output.

Examples:
  # Print a text report
  byteforge report 1

  # Write an HTML report
  byteforge report 1 --format html --output reports/acme.html

  # Write a PDF report named after the target
  byteforge report 1 --format pdf --output reports/`,
		Args: cobra.ExactArgs(1),
		RunE: runReportCmd,
	}

	cmd.Flags().StringP("format", "f", string(report.FormatText),
		"Report format (text, html, markdown, json, pdf)")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to this file, or into this directory when it ends with a separator")

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, args []string) error {
	targetID, err := parseID("target", args[0])
	if err != nil {
		return err
	}
	formatName, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if format == report.FormatPDF && output == "" {
		return errors.New("pdf reports require --output")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	target, err := a.store.GetTarget(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("target %d not found", targetID)
		}
		return err
	}
	findings, err := a.store.ListFindings(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to list findings: %w", err)
	}

	r := scanapi.New(a.cfg, a.logger.Logger).RunReport(directJobID, findings, target.Name)

	if output == "" {
		return writeReport(cmd.OutOrStdout(), format, r)
	}

	path := reportPath(output, target, r, format)
	if err := writeReportFile(path, format, r); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s report to %s\n", format, path)
	return nil
}

// reportPath resolves output to a file path. A directory output gets a
// file named after the target and report id.
func reportPath(output string, target *model.Target, r *report.Report, format report.Format) string {
	if output[len(output)-1] != os.PathSeparator && output[len(output)-1] != '/' {
		if info, err := os.Stat(output); err != nil || !info.IsDir() {
			return output
		}
	}
	return filepath.Join(output, fmt.Sprintf("target_%d_%s%s", target.ID, r.ReportID, format.Extension()))
}

// writeReportFile writes the report to path, creating parent directories.
// Reports may contain sensitive information, so the file is owner-only.
func writeReportFile(path string, format report.Format, r *report.Report) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := writeReport(f, format, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// writeReport renders r in format to w.
func writeReport(w io.Writer, format report.Format, r *report.Report) error {
	writer, err := report.NewWriter(format, w)
	if err != nil {
		return err
	}
	if _, err := writer.Write(r); err != nil {
		return fmt.Errorf("failed to write %s report: %w", format, err)
	}
	return nil
}

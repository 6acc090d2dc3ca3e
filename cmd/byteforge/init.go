package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/byteforge/internal/config"
)

//go:embed templates/byteforge.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new byteforge configuration file",
		Long: `Initialize creates a new .byteforge configuration file in the current directory.

The generated file documents every setting with its default value and
includes commented examples of per-target scan profiles.

Examples:
  # Create .byteforge in current directory
  byteforge init

  # Create config file at a specific path
  byteforge init -o ~/.config/byteforge/config.yaml

  # Force overwrite existing file
  byteforge init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/byteforge.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// The file may later hold the encryption key.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(w, "\nSet BYTEFORGE_ENCRYPTION_KEY (or encryption_key in the file) before")
	fmt.Fprintln(w, "registering targets, then run 'byteforge target add'.")
	return nil
}

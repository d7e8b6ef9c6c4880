package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/fuelrecon/internal/domain"
	"github.com/opensource-finance/fuelrecon/internal/extract"
)

var (
	verbose bool
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fuelctl",
	Short: "Offline fuel invoice extraction and matching",
	Long: `fuelctl detects FatturaPA layouts, previews template extraction and
matches invoice lines against the fuel records of a local SQLite database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging on stderr")
}

// readTemplate loads a template config file validated against the template schema.
func readTemplate(path string) (domain.TemplateConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.TemplateConfig{}, fmt.Errorf("read template: %w", err)
	}
	cfg, err := extract.ParseTemplateConfig(data)
	if err != nil {
		return domain.TemplateConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

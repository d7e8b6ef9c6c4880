package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/fuelrecon/internal/extract"
)

var detectCmd = &cobra.Command{
	Use:   "detect <invoice.xml>",
	Short: "Detect a FatturaPA layout and print a generated template",
	Args:  cobra.ExactArgs(1),
	RunE:  runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	doc, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	detection := extract.Detect(doc)
	if detection == nil {
		return fmt.Errorf("%s: document layout not recognised", args[0])
	}
	logger.Debug("layout detected", "root", detection.Root, "line_count", detection.LineCount)

	return printJSON(cmd.OutOrStdout(), map[string]any{
		"detection": detection,
		"config":    extract.GenerateTemplateConfig(detection),
	})
}

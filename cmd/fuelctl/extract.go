package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/fuelrecon/internal/extract"
)

var extractTemplatePath string

var extractCmd = &cobra.Command{
	Use:   "extract <invoice.xml>",
	Short: "Extract invoice lines with a template and print them as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractTemplatePath, "template", "t", "", "template config JSON file (required)")
	_ = extractCmd.MarkFlagRequired("template")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := readTemplate(extractTemplatePath)
	if err != nil {
		return err
	}
	doc, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	extractor, err := extract.NewExtractor(logger)
	if err != nil {
		return fmt.Errorf("create extractor: %w", err)
	}

	result := extractor.ExtractLines(doc, cfg)
	if err := printJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("extraction failed: %v", result.Errors)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/fuelrecon/internal/domain"
	"github.com/opensource-finance/fuelrecon/internal/export"
	"github.com/opensource-finance/fuelrecon/internal/extract"
	"github.com/opensource-finance/fuelrecon/internal/matching"
	"github.com/opensource-finance/fuelrecon/internal/repository"
)

var matchOpts struct {
	template  string
	db        string
	tenant    string
	xlsx      string
	workers   int
	threshold float64
	dateDays  int
	manual    bool
	closest   bool
	timeout   time.Duration
}

var matchCmd = &cobra.Command{
	Use:   "match <invoice.xml>",
	Short: "Match invoice lines against fuel records in a SQLite database",
	Long: `match extracts the invoice with the given template and scores every line
against the tenant's fuel records. Nothing is written to the database.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	defaults := domain.DefaultTolerances()
	f := matchCmd.Flags()
	f.StringVarP(&matchOpts.template, "template", "t", "", "template config JSON file (required)")
	f.StringVar(&matchOpts.db, "db", "./fuelrecon.db", "SQLite database path")
	f.StringVar(&matchOpts.tenant, "tenant", "default", "tenant whose records are matched")
	f.StringVar(&matchOpts.xlsx, "xlsx", "", "also write a review workbook to this path")
	f.IntVar(&matchOpts.workers, "workers", 4, "concurrent line matchers")
	f.Float64Var(&matchOpts.threshold, "threshold", defaults.AutoMatchThreshold, "auto-match threshold")
	f.IntVar(&matchOpts.dateDays, "date-tolerance", defaults.DateToleranceDays, "date tolerance in days")
	f.BoolVar(&matchOpts.manual, "manual", false, "never auto-match; report suggestions only")
	f.BoolVar(&matchOpts.closest, "closest-date", false, "break score ties by closest date")
	f.DurationVar(&matchOpts.timeout, "timeout", 2*time.Minute, "overall time limit")
	_ = matchCmd.MarkFlagRequired("template")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), matchOpts.timeout)
	defer cancel()

	cfg, err := readTemplate(matchOpts.template)
	if err != nil {
		return err
	}
	doc, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	tol := domain.DefaultTolerances()
	tol.AutoMatchThreshold = matchOpts.threshold
	tol.DateToleranceDays = matchOpts.dateDays
	if err := tol.Validate(); err != nil {
		return err
	}

	if _, err := os.Stat(matchOpts.db); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: matchOpts.db})
	if err != nil {
		return err
	}
	defer repo.Close()

	extractor, err := extract.NewExtractor(logger)
	if err != nil {
		return fmt.Errorf("create extractor: %w", err)
	}
	extraction := extractor.ExtractLines(doc, cfg)
	if !extraction.Success {
		return fmt.Errorf("extraction failed: %v", extraction.Errors)
	}
	logger.Debug("document extracted",
		"total_lines", extraction.TotalLines,
		"filtered_lines", extraction.FilteredLines,
	)

	opts := []matching.Option{
		matching.WithWorkers(matchOpts.workers),
		matching.WithLogger(logger),
	}
	if matchOpts.closest {
		opts = append(opts, matching.WithTieBreaker(matching.ClosestDate))
	}
	matcher := matching.NewMatcher(repo, opts...)

	result := matcher.MatchLines(ctx, matchOpts.tenant, extraction.Lines, tol, matchOpts.manual)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("matching interrupted: %w", err)
	}

	printResults(cmd, result)

	if matchOpts.xlsx != "" {
		out, err := os.Create(matchOpts.xlsx)
		if err != nil {
			return fmt.Errorf("create workbook: %w", err)
		}
		if err := export.WriteMatches(out, result); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("close workbook: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nreview workbook written to %s\n", matchOpts.xlsx)
	}
	return nil
}

func printResults(cmd *cobra.Command, result domain.MatchingResult) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tPLATE\tDATE\tSTATUS\tSCORE\tRECORD\tDETAIL")
	for _, r := range result.Results {
		score := "-"
		if r.Score != nil {
			score = fmt.Sprintf("%.3f", *r.Score)
		}
		record := "-"
		if r.MatchedRecordID != nil {
			record = *r.MatchedRecordID
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.LineNumber, orDash(r.Line.Plate), orDash(r.Line.Date), r.Status, score, record, r.Error)
	}
	tw.Flush()

	s := result.Summary
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d lines: %d auto-matched, %d suggested, %d unmatched, %d errors\n",
		s.Total, s.AutoMatched, s.Suggested, s.Unmatched, s.Errors)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

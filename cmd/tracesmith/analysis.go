package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/ashwinyue/tracesmith/internal/service/analysis"
)

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := analysis.Open(ctx, args[0])
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("Warning: failed to close analyzer: %v", err)
		}
	}()

	res, err := a.Query(ctx, args[1])
	if err != nil {
		return err
	}
	return analysis.WriteTable(cmd.OutOrStdout(), res)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := analysis.Open(ctx, args[0])
	if err != nil {
		return err
	}
	defer a.Close()

	columns, err := a.Schema(ctx)
	if err != nil {
		return err
	}
	stats, err := a.Stats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File:   %s\n", args[0])
	fmt.Fprintf(out, "Format: %s\n", stats.Format)
	fmt.Fprintf(out, "Rows:   %d\n", stats.Rows)
	fmt.Fprintf(out, "Avg answer length: %.0f chars\n", stats.AvgAnswerChars)
	if stats.PassingRate != nil {
		fmt.Fprintf(out, "Passing rate: %.1f%%\n", *stats.PassingRate*100)
	} else {
		fmt.Fprintln(out, "Passing rate: n/a (export with --include-metadata)")
	}

	fmt.Fprintln(out, "\nColumns:")
	for _, c := range columns {
		fmt.Fprintf(out, "  %-12s %s\n", c.Name, c.Type)
	}
	return nil
}

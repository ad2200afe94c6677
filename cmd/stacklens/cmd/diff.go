package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lgili/stacklens/internal/baseline"
	"github.com/lgili/stacklens/internal/report"
)

var (
	diffThreshold   float64
	diffImprovement float64
)

var diffCmd = &cobra.Command{
	Use:   "diff CURRENT BASELINE",
	Short: "Compare a stack snapshot against a baseline",
	Long: `Compare two JSON snapshots written by 'stacklens analyze --json'
and flag regressions.

A function or path counts as a regression when it grew by more than
the threshold percentage, and as an improvement when it shrank by
more than the improvement percentage. Frames that appear only in the
current snapshot are listed as new, frames that disappeared as
removed.

Exits non-zero when regressions are found, so it can gate CI.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		threshold := diffThreshold
		if !cmd.Flags().Changed("threshold") {
			threshold = cfg.Diff.ThresholdPct
		}
		improvement := diffImprovement
		if !cmd.Flags().Changed("improvement") {
			improvement = cfg.Diff.ImprovementPct
		}

		current, err := report.ReadSnapshot(args[0])
		if err != nil {
			return fmt.Errorf("reading current snapshot: %w", err)
		}
		base, err := report.ReadSnapshot(args[1])
		if err != nil {
			return fmt.Errorf("reading baseline snapshot: %w", err)
		}

		d := baseline.Compare(current, base, threshold, improvement)
		fmt.Print(d.Render())

		if d.HasRegressions() {
			cmd.SilenceUsage = true
			return errors.New("stack regressions detected")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().Float64Var(&diffThreshold, "threshold", 10.0, "regression threshold in percent")
	diffCmd.Flags().Float64Var(&diffImprovement, "improvement", 5.0, "improvement threshold in percent")
}

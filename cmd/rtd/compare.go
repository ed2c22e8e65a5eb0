package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/results"
)

var (
	compareBuild1      uint
	compareBuild2      uint
	compareOutput      string
	compareChangesOnly bool
	compareFailOnRegr  bool
)

var errRegressions = errors.New("regressions found")

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the test results of two builds",
	RunE:  runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().UintVar(&compareBuild1, "build1", 0, "Baseline build ID")
	compareCmd.Flags().UintVar(&compareBuild2, "build2", 0, "Candidate build ID")
	compareCmd.Flags().StringVarP(&compareOutput, "output", "o", "table",
		"Output format (table or json)")
	compareCmd.Flags().BoolVar(&compareChangesOnly, "changes-only", false,
		"Only show tests whose status changed")
	compareCmd.Flags().BoolVar(&compareFailOnRegr, "fail-on-regression", false,
		"Exit non-zero when any test regressed")

	_ = compareCmd.MarkFlagRequired("build1")
	_ = compareCmd.MarkFlagRequired("build2")
}

func runCompare(cmd *cobra.Command, args []string) error {
	if compareOutput != "table" && compareOutput != "json" {
		return fmt.Errorf("unsupported output %q (use table or json)", compareOutput)
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	rows, err := s.results.CompareBuilds(cmd.Context(), compareBuild1, compareBuild2)
	if err != nil {
		return err
	}

	summary := results.Summarize(rows)

	if compareChangesOnly {
		rows = changedRows(rows)
	}

	if compareOutput == "json" {
		if err := writeComparisonJSON(os.Stdout, rows); err != nil {
			return err
		}
	} else {
		renderComparison(os.Stdout, rows, summary)
	}

	if compareFailOnRegr && summary[results.ChangeRegression] > 0 {
		return fmt.Errorf("%w: %d", errRegressions, summary[results.ChangeRegression])
	}

	return nil
}

// changedRows drops rows whose status did not change.
func changedRows(rows []results.ComparisonRow) []results.ComparisonRow {
	out := make([]results.ComparisonRow, 0, len(rows))

	for _, r := range rows {
		if r.StatusChange != results.ChangeSame {
			out = append(out, r)
		}
	}

	return out
}

func writeComparisonJSON(w io.Writer, rows []results.ComparisonRow) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encoding comparison: %w", err)
	}

	return nil
}

var changeColors = map[results.StatusChange]*color.Color{
	results.ChangeRegression: color.New(color.FgRed, color.Bold),
	results.ChangeFixed:      color.New(color.FgGreen),
	results.ChangeChanged:    color.New(color.FgYellow),
}

func colorChange(change results.StatusChange) string {
	if c, ok := changeColors[change]; ok {
		return c.Sprint(string(change))
	}

	return string(change)
}

func formatDuration(d *float64) string {
	if d == nil {
		return "-"
	}

	return strconv.FormatFloat(*d, 'f', -1, 64)
}

func formatDelta(d *float64) string {
	if d == nil {
		return "-"
	}

	return strconv.FormatFloat(*d, 'f', 3, 64)
}

func renderComparison(
	w io.Writer,
	rows []results.ComparisonRow,
	summary map[results.StatusChange]int,
) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{
		"Test", "Module", "Build 1", "Build 2", "Duration 1", "Duration 2", "Delta", "Change",
	})

	for _, r := range rows {
		tbl.AppendRow(table.Row{
			r.TestName,
			r.Module,
			r.Status1,
			r.Status2,
			formatDuration(r.Duration1),
			formatDuration(r.Duration2),
			formatDelta(r.DurationChange),
			colorChange(r.StatusChange),
		})
	}

	tbl.AppendFooter(table.Row{
		fmt.Sprintf("%d regressed, %d fixed, %d changed, %d same",
			summary[results.ChangeRegression],
			summary[results.ChangeFixed],
			summary[results.ChangeChanged],
			summary[results.ChangeSame],
		),
	})
	tbl.Render()
}

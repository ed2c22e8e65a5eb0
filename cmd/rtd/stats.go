package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/results"
)

var (
	statsBuildID uint
	statsRecord  bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the aggregate results of a build",
	Long: `Show pass, fail, blocked and pending counts of a build. With --record
the counts are also saved as a regression run snapshot.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().UintVar(&statsBuildID, "build", 0, "Build ID")
	statsCmd.Flags().BoolVar(&statsRecord, "record", false,
		"Save the counts as a regression run")

	_ = statsCmd.MarkFlagRequired("build")
}

func runStats(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	stats, err := s.results.BuildStats(cmd.Context(), statsBuildID)
	if err != nil {
		return err
	}

	renderStats(os.Stdout, stats)

	if statsRecord {
		run, err := s.results.ExecuteRegressionRun(cmd.Context(), statsBuildID)
		if err != nil {
			return err
		}

		log.WithField("run_id", run.ID).
			WithField("build_id", run.BuildID).
			Info("Regression run recorded")
	}

	return nil
}

func renderStats(w io.Writer, stats results.AggregateStats) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Total", "Passed", "Failed", "Blocked", "Pending", "Pass %"})
	tbl.AppendRow(table.Row{
		stats.Total,
		stats.Passed,
		stats.Failed,
		stats.Blocked,
		stats.Pending,
		fmt.Sprintf("%.2f", stats.PassPercentage),
	})
	tbl.Render()
}

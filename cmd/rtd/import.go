package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/archive"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/results"
)

var importBuildID uint

var importCmd = &cobra.Command{
	Use:   "import FILE...",
	Short: "Import CSV or JSON result files into a build",
	Long: `Import one or more result files into an existing build. The format is
chosen by the file suffix (.csv or .json). Files are imported in the
given order; a failing file does not stop the remaining ones.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().UintVar(&importBuildID, "build", 0, "Target build ID")

	_ = importCmd.MarkFlagRequired("build")
}

// importOutcome is the result of importing one file.
type importOutcome struct {
	File    string
	Size    int
	Records int
	Err     error
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	var archiver archive.Archiver

	if a := s.cfg.API.Archive; a != nil && a.Enabled {
		archiver, err = archive.New(log, a)
		if err != nil {
			return fmt.Errorf("creating archiver: %w", err)
		}
	}

	outcomes := make([]importOutcome, 0, len(args))

	for _, path := range args {
		out := importOutcome{File: filepath.Base(path)}

		content, err := os.ReadFile(path)
		if err != nil {
			out.Err = err
			outcomes = append(outcomes, out)

			continue
		}

		out.Size = len(content)

		if archiver != nil {
			if _, err := archiver.Archive(ctx, importBuildID, out.File, content); err != nil {
				log.WithError(err).WithField("file", path).Warn("Failed to archive file")
			}
		}

		records, err := s.results.Import(ctx, importBuildID, out.File, content)
		out.Records = len(records)
		out.Err = err

		if err != nil {
			log.WithFields(logrus.Fields{
				"file":      path,
				"kind":      results.Kind(err),
				"persisted": len(records),
			}).WithError(err).Warn("Import failed")
		}

		outcomes = append(outcomes, out)
	}

	renderImport(os.Stdout, outcomes)

	var errs []error

	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.File, o.Err))
		}
	}

	return errors.Join(errs...)
}

func renderImport(w io.Writer, outcomes []importOutcome) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"File", "Size", "Records", "Result"})

	var total int

	for _, o := range outcomes {
		result := "ok"
		if o.Err != nil {
			result = results.Kind(o.Err)
		}

		total += o.Records

		tbl.AppendRow(table.Row{o.File, humanize.Bytes(uint64(o.Size)), o.Records, result})
	}

	tbl.AppendFooter(table.Row{"Total", "", total, ""})
	tbl.Render()
}

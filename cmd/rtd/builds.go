package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/api/store"
)

var (
	buildVersion     string
	buildDescription string
)

var buildsCmd = &cobra.Command{
	Use:   "builds",
	Short: "Manage builds",
}

var buildsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all builds",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		builds, err := s.store.ListBuilds(cmd.Context())
		if err != nil {
			return err
		}

		renderBuilds(os.Stdout, builds)

		return nil
	},
}

var buildsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a build",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		build := &store.Build{
			Version:     buildVersion,
			Description: buildDescription,
		}

		if err := s.store.CreateBuild(cmd.Context(), build); err != nil {
			return err
		}

		log.WithField("build_id", build.ID).
			WithField("version", build.Version).
			Info("Build created")

		fmt.Println(build.ID)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildsCmd)
	buildsCmd.AddCommand(buildsListCmd, buildsCreateCmd)

	buildsCreateCmd.Flags().StringVar(&buildVersion, "version", "", "Build version")
	buildsCreateCmd.Flags().StringVar(&buildDescription, "description", "", "Build description")

	_ = buildsCreateCmd.MarkFlagRequired("version")
}

func renderBuilds(w io.Writer, builds []store.Build) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"ID", "Version", "Description", "Created"})

	for _, b := range builds {
		tbl.AppendRow(table.Row{b.ID, b.Version, b.Description, humanize.Time(b.CreatedAt)})
	}

	tbl.AppendFooter(table.Row{"", "", "Total", len(builds)})
	tbl.Render()
}

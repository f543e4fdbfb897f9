package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgeworks-io/crossrun/pkg/config"
	"github.com/forgeworks-io/crossrun/pkg/store"
	"github.com/forgeworks-io/crossrun/pkg/util"
)

func historyCmd(cfg *config.Config) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent builds and runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := util.ExpandPath(cfg.DB)
			if err != nil {
				return err
			}
			s, err := store.New(path)
			if err != nil {
				return fmt.Errorf("failed to open history database: %w", err)
			}
			defer s.Close()

			builds, err := s.RecentBuilds(limit)
			if err != nil {
				return err
			}
			runs, err := s.RecentRuns(limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "BUILT\tNAME\tTARGET\tDURATION\tRESULT")
			for _, b := range builds {
				result := "ok"
				if !b.Success {
					result = b.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%s\n",
					b.CreatedAt.Local().Format(time.RFC3339), b.Name, b.Target, b.DurationMS, result)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "STARTED\tCOMMAND\tARGS\tEXIT")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					r.StartedAt.Local().Format(time.RFC3339), r.Command, r.Args, r.ExitCode)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum records per section")

	return cmd
}

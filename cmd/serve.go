package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/forgeworks-io/crossrun/pkg/config"
	"github.com/forgeworks-io/crossrun/pkg/runner"
	"github.com/forgeworks-io/crossrun/pkg/server"
)

func serveCmd(logger *log.Logger, cfg *config.Config) *cobra.Command {
	var (
		listen string
		dir    string
		heap   int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the control server for supervised runs",
		Long: `Serves a REST API that starts, replaces, and stops a supervised run of a
prebuilt binary. A new run request always supersedes the in-flight one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			multiplier := heap
			if multiplier == 0 {
				multiplier = cfg.HeapMultiplier
			}

			st := openStore(logger, cfg.DB)
			if st != nil {
				defer st.Close()
			}

			sup := runner.NewSupervisor(logger, st)
			defer sup.Terminate()

			s := server.New(firstOf(listen, cfg.Listen), logger, sup, st, firstOf(dir, cfg.Dest), multiplier)
			return s.Serve()
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address for the control server")
	cmd.Flags().StringVar(&dir, "dir", "", "Root directory holding the per-target artifacts")
	cmd.Flags().IntVar(&heap, "heap-multiplier", 0, "Child memory hint, in GB")

	return cmd
}

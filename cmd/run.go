package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/forgeworks-io/crossrun/pkg/config"
	"github.com/forgeworks-io/crossrun/pkg/runner"
)

func runCmd(logger *log.Logger, cfg *config.Config) *cobra.Command {
	var (
		dir   string
		label string
		heap  int
	)

	cmd := &cobra.Command{
		Use:   "run [name] [-- child args]",
		Short: "Run the prebuilt binary for the current host and wait for it",
		Long: `Resolves ⟨dir⟩/⟨os⟩-⟨arch⟩/⟨name⟩ for the current host and executes it,
capturing and relaying its output. A missing binary is not an error; the
run simply produces no output.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := cfg.Name
			var childArgs []string
			if len(args) > 0 {
				name = args[0]
				childArgs = args[1:]
			}
			multiplier := heap
			if multiplier == 0 {
				multiplier = cfg.HeapMultiplier
			}

			st := openStore(logger, cfg.DB)
			if st != nil {
				defer st.Close()
			}

			_, err := runner.New(logger, st).Run(cmd.Context(), runner.Request{
				Cmd:            name,
				Dir:            firstOf(dir, cfg.Dest),
				Args:           childArgs,
				Label:          firstOf(label, name),
				HeapMultiplier: multiplier,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Root directory holding the per-target artifacts")
	cmd.Flags().StringVar(&label, "label", "", "Log label prefixed to relayed output")
	cmd.Flags().IntVar(&heap, "heap-multiplier", 0, "Child memory hint, in GB")

	return cmd
}

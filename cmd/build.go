package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/forgeworks-io/crossrun/pkg/build"
	"github.com/forgeworks-io/crossrun/pkg/config"
)

func buildCmd(logger *log.Logger, cfg *config.Config) *cobra.Command {
	var (
		input string
		dest  string
		name  string
		dev   bool
		heap  int
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Cross-compile the program for every supported target",
		Long: `Builds the input program once per valid OS/architecture pair of the
platform matrix, each into its own ⟨dest⟩/⟨os⟩-⟨arch⟩/ directory. With
--dev only the current host's target is built.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := build.Options{
				Input:          firstOf(input, cfg.Input),
				Dest:           firstOf(dest, cfg.Dest),
				Name:           firstOf(name, cfg.Name),
				Dev:            dev,
				HeapMultiplier: heap,
			}
			if opts.HeapMultiplier == 0 {
				opts.HeapMultiplier = cfg.HeapMultiplier
			}

			st := openStore(logger, cfg.DB)
			if st != nil {
				defer st.Close()
			}

			return build.New(logger, st).BuildAll(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Directory containing the program to compile")
	cmd.Flags().StringVar(&dest, "dest", "", "Root directory for per-target artifacts")
	cmd.Flags().StringVar(&name, "name", "", "Binary name to produce")
	cmd.Flags().BoolVar(&dev, "dev", false, "Build only the current host's target")
	cmd.Flags().IntVar(&heap, "heap-multiplier", 0, "Compiler memory hint, in GB")

	return cmd
}

// firstOf returns the flag value when set, the config default otherwise.
func firstOf(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

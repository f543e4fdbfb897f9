package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/forgeworks-io/crossrun/pkg/config"
	plog "github.com/forgeworks-io/crossrun/pkg/log"
	"github.com/forgeworks-io/crossrun/pkg/store"
	"github.com/forgeworks-io/crossrun/pkg/util"
)

func rootCmd() (*cobra.Command, error) {
	var (
		verbose int
		cfgPath string
		dbPath  string
		logger  = log.New()
		cfg     = config.Default()
	)

	cmd := &cobra.Command{
		Use:   "crossrun",
		Short: "Cross-platform build and run supervisor",
		Long: `crossrun cross-compiles a program for every supported OS/architecture
pair and supervises execution of the platform-appropriate prebuilt binary,
relaying its output and extracting embedded timing telemetry.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.SetLevel(plog.GetLevel(verbose))
			loaded, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			cfg = loaded
			if dbPath != "" {
				cfg.DB = dbPath
			}
			return nil
		},
	}

	cmd.PersistentFlags().IntVarP(&verbose, "verbose", "v", 0, "Verbosity: 0 info, 1 debug, 2 trace")
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to a TOML config file with build/run defaults")
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the build/run history database (overrides config)")

	cmd.AddCommand(
		buildCmd(logger, &cfg),
		runCmd(logger, &cfg),
		serveCmd(logger, &cfg),
		bundleCmd(logger, &cfg),
		historyCmd(&cfg),
	)

	return cmd, nil
}

// openStore opens the history database, or returns nil when history is
// disabled or unavailable. History is best-effort; commands work without it.
func openStore(logger *log.Logger, path string) *store.Store {
	if path == "" {
		return nil
	}
	expanded, err := util.ExpandPath(path)
	if err != nil {
		logger.Debugf("failed to expand db path %s: %v", path, err)
		return nil
	}
	s, err := store.New(expanded)
	if err != nil {
		logger.Warnf("history database unavailable: %v", err)
		return nil
	}
	return s
}

// Execute primary function for cobra
func Execute() {
	rootCmd, err := rootCmd()
	if err != nil {
		log.Fatal(err)
	}
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/forgeworks-io/crossrun/pkg/config"
	"github.com/forgeworks-io/crossrun/pkg/image"
	"github.com/forgeworks-io/crossrun/pkg/platform"
)

func bundleCmd(logger *log.Logger, cfg *config.Config) *cobra.Command {
	var (
		ref       string
		targetStr string
		dest      string
		name      string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Wrap a built artifact into an OCI image tarball",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveTarget(targetStr)
			if err != nil {
				return err
			}
			binName := firstOf(name, cfg.Name)
			binPath := filepath.Join(firstOf(dest, cfg.Dest), target.String(), target.BinaryName(binName))
			if _, err := os.Stat(binPath); err != nil {
				return fmt.Errorf("artifact %s not found, build it first: %w", binPath, err)
			}
			if output == "" {
				output = binName + "-" + target.String() + ".tar"
			}
			if err := image.Bundle(ref, binPath, output, binName, target); err != nil {
				return fmt.Errorf("failed to bundle %s: %w", binPath, err)
			}
			logger.Infof("bundled %s into %s", binPath, output)
			return nil
		},
	}

	cmd.Flags().StringVar(&ref, "ref", "crossrun/agent:latest", "Image reference to tag the bundle with")
	cmd.Flags().StringVar(&targetStr, "target", "", "Target to bundle as ⟨os⟩-⟨arch⟩ (default: current host)")
	cmd.Flags().StringVar(&dest, "dest", "", "Root directory holding the per-target artifacts")
	cmd.Flags().StringVar(&name, "name", "", "Binary name to bundle")
	cmd.Flags().StringVar(&output, "output", "", "Output tarball path")

	return cmd
}

// resolveTarget parses an "os-arch" pair, defaulting to the current host.
func resolveTarget(s string) (platform.Target, error) {
	if s == "" {
		return platform.Host()
	}
	for _, target := range platform.Targets() {
		if target.String() == s {
			return target, nil
		}
	}
	return platform.Target{}, fmt.Errorf("target %q is not in the build matrix", s)
}

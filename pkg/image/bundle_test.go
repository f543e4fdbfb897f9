package image

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-containerregistry/pkg/v1/tarball"

	"github.com/forgeworks-io/crossrun/pkg/platform"
)

func TestBundleStampsTargetPlatform(t *testing.T) {
	dir := t.TempDir()
	binPath := filepath.Join(dir, "agent.exe")
	if err := os.WriteFile(binPath, []byte("binary contents"), 0755); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "agent.tar")

	target := platform.Target{OS: platform.Windows, Arch: platform.AMD64}
	if err := Bundle("crossrun/agent:latest", binPath, outPath, "agent", target); err != nil {
		t.Fatal(err)
	}

	img, err := tarball.ImageFromPath(outPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := img.ConfigFile()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OS != "windows" || cfg.Architecture != "amd64" {
		t.Errorf("image platform = %s/%s, want windows/amd64", cfg.OS, cfg.Architecture)
	}
	if diff := cmp.Diff([]string{"/agent.exe"}, cfg.Config.Entrypoint); diff != "" {
		t.Errorf("entrypoint mismatch (-want +got):\n%s", diff)
	}

	layers, err := img.Layers()
	if err != nil {
		t.Fatal(err)
	}
	if len(layers) != 1 {
		t.Errorf("layer count = %d, want 1", len(layers))
	}
}

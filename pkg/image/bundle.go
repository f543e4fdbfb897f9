// Package image wraps cross-built artifacts into single-binary OCI images.
package image

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/stream"
	"github.com/google/go-containerregistry/pkg/v1/tarball"

	"github.com/forgeworks-io/crossrun/pkg/platform"
)

// Bundle writes an OCI tarball at outPath containing the artifact at binPath
// as the image entrypoint, tagged refStr. The image config carries the
// target's os/arch so runtimes report the platform the binary was actually
// compiled for, and the install path follows the target's binary naming.
func Bundle(refStr, binPath, outPath, binName string, target platform.Target) error {
	ref, err := name.ParseReference(refStr)
	if err != nil {
		return fmt.Errorf("parsing reference: %w", err)
	}

	install := path.Join("/", target.BinaryName(binName))
	layer, err := binaryLayer(binPath, install)
	if err != nil {
		return fmt.Errorf("creating layer: %w", err)
	}

	img, err := mutate.AppendLayers(empty.Image, layer)
	if err != nil {
		return fmt.Errorf("appending layer: %w", err)
	}

	cfg := &v1.ConfigFile{
		OS:           string(target.OS),
		Architecture: string(target.Arch),
		Config: v1.Config{
			Entrypoint: []string{install},
		},
	}
	img, err = mutate.ConfigFile(img, cfg)
	if err != nil {
		return fmt.Errorf("configuring image: %w", err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output tarball: %w", err)
	}
	defer f.Close()

	if err := tarball.Write(ref, img, f); err != nil {
		return fmt.Errorf("writing tarball: %w", err)
	}

	return nil
}

// binaryLayer streams the artifact at binPath into a one-entry layer rooted
// at installPath. The artifact is piped through the tar writer rather than
// buffered; some target builds run large.
func binaryLayer(binPath, installPath string) (v1.Layer, error) {
	pr, pw := io.Pipe()

	go func() {
		f, err := os.Open(binPath)
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}

		tw := tar.NewWriter(pw)
		hdr := &tar.Header{
			// Tar entries are relative; the leading slash lives only in the
			// entrypoint.
			Name:    strings.TrimPrefix(installPath, "/"),
			Mode:    0755,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(tw, f); err != nil {
			_ = pw.CloseWithError(err)
			return
		}

		_ = pw.CloseWithError(tw.Close())
	}()

	return stream.NewLayer(pr), nil
}

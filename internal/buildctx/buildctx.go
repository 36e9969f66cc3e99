// Package buildctx stages the filesystem a build runs against: the fetched
// source tree, verbatim, plus the synthesized Dockerfile.
package buildctx

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/docker/pkg/archive"

	"stowage/internal/descriptor"
	"stowage/internal/dockerfile"
	"stowage/internal/source"
)

// DockerfileName is where the synthesized definition lands inside the
// staged context.
const DockerfileName = "Dockerfile"

// Stage materializes the source tree for d into a fresh temporary directory,
// verifies the dependency manifest is present, and writes the synthesized
// Dockerfile next to it. The caller owns cleanup.
func Stage(ctx context.Context, d descriptor.Descriptor) (dir string, cleanup func(), err error) {
	tmpDir, err := os.MkdirTemp("", "stowage-build-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create staging dir: %w", err)
	}
	cleanup = func() {
		os.RemoveAll(tmpDir)
	}

	err = source.Fetch(ctx, d, tmpDir)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to fetch source: %w", err)
	}

	// Installing dependencies has to fail before any source is baked into a
	// layer, so a missing manifest is caught here, not by the daemon.
	manifestPath := filepath.Join(tmpDir, d.Build.Manifest.File)
	if _, err := os.Stat(manifestPath); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("dependency manifest `%s` not found in source tree: %w", d.Build.Manifest.File, err)
	}

	content := dockerfile.Generate(d)
	err = os.WriteFile(filepath.Join(tmpDir, DockerfileName), []byte(content), 0644)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write Dockerfile: %w", err)
	}

	return tmpDir, cleanup, nil
}

// Tar streams the staged directory as a build context for the daemon.
func Tar(dir string) (io.ReadCloser, error) {
	return archive.TarWithOptions(dir, &archive.TarOptions{})
}

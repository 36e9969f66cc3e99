// Package builder drives the Docker daemon to produce labeled, content
// addressed images from staged build contexts.
package builder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"

	"stowage/internal/buildctx"
	"stowage/internal/descriptor"
	"stowage/internal/labels"
)

// ErrBuildFailed is wrapped by every error the builder returns. A failed
// build never leaves a tagged image behind; the failing layer is discarded
// by the daemon.
var ErrBuildFailed = errors.New("build failed")

type Builder struct {
	logger         *slog.Logger
	dockerClient   *client.Client
	resourcePrefix string
	// Receives the daemon's raw build output.
	output io.Writer
}

func New(
	logger *slog.Logger,
	dockerClient *client.Client,
	resourcePrefix string,
	output io.Writer,
) Builder {
	return Builder{
		logger:         logger,
		dockerClient:   dockerClient,
		resourcePrefix: resourcePrefix,
		output:         output,
	}
}

// Build stages the context for d and builds it, returning the image
// reference. When an image for identical staged content already exists the
// daemon is not asked to build again.
func (b Builder) Build(ctx context.Context, d descriptor.Descriptor) (string, error) {
	stagingDir, cleanup, err := buildctx.Stage(ctx, d)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	defer cleanup()

	reference, err := b.imageReference(d, stagingDir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}

	if b.IsBuilt(ctx, reference) {
		b.logger.Info("Image already built, skipping", "app", d.App, "image", reference)
		return reference, nil
	}

	b.logger.Info("Starting to build image", "app", d.App, "image", reference)

	buildContext, err := buildctx.Tar(stagingDir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	defer buildContext.Close()

	res, err := b.dockerClient.ImageBuild(ctx, buildContext, types.ImageBuildOptions{
		Tags:       []string{reference},
		Dockerfile: buildctx.DockerfileName,
		Remove:     true,
		Labels: map[string]string{
			labels.Managed: "true",
			labels.AppName: d.App,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	defer res.Body.Close()

	err = jsonmessage.DisplayJSONMessagesStream(res.Body, b.output, 0, false, nil)
	if err != nil {
		var jsonErr *jsonmessage.JSONError
		if errors.As(err, &jsonErr) {
			return "", fmt.Errorf("%w: %s", ErrBuildFailed, jsonErr.Message)
		}
		return "", fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}

	b.logger.Info("Build finished", "app", d.App, "image", reference)
	return reference, nil
}

// IsBuilt reports whether an image with the given reference is already
// present and managed by stowage.
func (b Builder) IsBuilt(ctx context.Context, reference string) bool {
	listFilters := filters.NewArgs(
		filters.KeyValuePair{
			Key:   "reference",
			Value: reference,
		},
		filters.KeyValuePair{
			Key:   "label",
			Value: labels.Managed,
		},
	)

	images, err := b.dockerClient.ImageList(
		ctx,
		image.ListOptions{
			Filters: listFilters,
		},
	)
	if err != nil {
		b.logger.Error("Failed to list images", "err", err)
		return false
	}

	return len(images) > 0
}

// imageReference derives the tag from the staged context's content, the
// synthesized Dockerfile included. Any edit produces a new tag; whether the
// dependency install layer re-runs is then the daemon's layer cache's call,
// which is exactly the manifest-before-source split the Dockerfile encodes.
func (b Builder) imageReference(d descriptor.Descriptor, stagingDir string) (string, error) {
	sha, err := TreeSha(stagingDir)
	if err != nil {
		return "", err
	}

	return Reference(b.resourcePrefix, d.App, sha), nil
}

// Reference builds `<prefix><app>:<sha12>`.
func Reference(prefix string, app string, sha string) string {
	return fmt.Sprintf("%s%s:%s", prefix, app, sha[:12])
}

// TreeSha hashes a directory's contents: relative paths and file bytes, in
// sorted order. Timestamps and ownership are ignored so the same checkout
// always hashes the same.
func TreeSha(dir string) (string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(files)

	h := sha256.New()
	for _, file := range files {
		relPath, err := filepath.Rel(dir, file)
		if err != nil {
			return "", err
		}
		content, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "%s:%d:", relPath, len(content))
		h.Write(content)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

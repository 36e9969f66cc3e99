// Package fleet orchestrates `up`: every descriptor under a directory is
// built through the build queue and its container upserted as the build
// finishes.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"stowage/internal/buildqueue"
	"stowage/internal/descriptor"
	"stowage/internal/launcher"
)

type imageBuilder interface {
	Build(ctx context.Context, d descriptor.Descriptor) (string, error)
}

type containerLauncher interface {
	Upsert(ctx context.Context, app string, imageReference string, opts launcher.RunOpts) error
}

type Fleet struct {
	logger        *slog.Logger
	imageBuilder  imageBuilder
	launcher      containerLauncher
	buildPoolSize int
}

func New(
	logger *slog.Logger,
	imageBuilder imageBuilder,
	containerLauncher containerLauncher,
	buildPoolSize int,
) Fleet {
	return Fleet{
		logger:        logger,
		imageBuilder:  imageBuilder,
		launcher:      containerLauncher,
		buildPoolSize: buildPoolSize,
	}
}

// Up discovers descriptors under root and brings every app up. Apps fail
// independently; the returned error joins all per-app failures.
func (f Fleet) Up(ctx context.Context, root string) error {
	descriptors, err := descriptor.Discover(root)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := buildqueue.New(f.buildPoolSize)
	go queue.Start(ctx)

	for _, d := range descriptors {
		queue.Process(d.App, f.buildAndLaunchJob(ctx, d))
	}

	var failures []error
	for range descriptors {
		event := <-queue.JobFinishedChannel
		if event.Result != nil {
			f.logger.Error("App failed", "app", event.App, "err", event.Result)
			failures = append(failures, fmt.Errorf("app %s: %w", event.App, event.Result))
			continue
		}
		f.logger.Info("App up", "app", event.App)
	}

	return errors.Join(failures...)
}

func (f Fleet) buildAndLaunchJob(ctx context.Context, d descriptor.Descriptor) func() error {
	return func() error {
		imageReference, err := f.imageBuilder.Build(ctx, d)
		if err != nil {
			return err
		}

		return f.launcher.Upsert(ctx, d.App, imageReference, launcher.RunOpts{
			Ports:   d.Run.Ports,
			Volumes: d.Run.Volumes,
		})
	}
}

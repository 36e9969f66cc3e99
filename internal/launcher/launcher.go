// Package launcher creates and runs containers from built images: one-shot
// runs that propagate the entrypoint's exit status, and upserts that keep a
// named container in sync with its image and run options.
package launcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"stowage/internal/labels"
)

// ErrRunFailed is wrapped by errors from creating, starting or waiting on a
// container.
var ErrRunFailed = errors.New("run failed")

// ExitError carries a container's non-zero exit status. The startup
// command's exit code is the container's outcome, so callers propagate it
// as their own.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("container exited with status %d", e.Code)
}

// RunOpts are the host-side settings a container is launched with. They are
// hashed into a label so upserts can detect drift.
type RunOpts struct {
	// In standard Docker format <host>:<container>
	Ports []string
	// In standard Docker format <host>:<container>
	Volumes []string
}

type Launcher struct {
	logger         *slog.Logger
	dockerClient   *client.Client
	resourcePrefix string
}

func New(logger *slog.Logger, dockerClient *client.Client, resourcePrefix string) Launcher {
	return Launcher{
		logger:         logger,
		dockerClient:   dockerClient,
		resourcePrefix: resourcePrefix,
	}
}

// Run launches a one-shot container from image, streams its output to
// stdout/stderr, waits for it to exit and removes it. A non-zero exit
// surfaces as *ExitError.
func (l Launcher) Run(
	ctx context.Context,
	app string,
	imageReference string,
	opts RunOpts,
	stdout io.Writer,
	stderr io.Writer,
) error {
	id, err := l.createContainer(ctx, app, imageReference, opts, "")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRunFailed, err)
	}
	defer func() {
		removeErr := l.dockerClient.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
		if removeErr != nil {
			l.logger.Error("Failed to remove container", "app", app, "err", removeErr)
		}
	}()

	err = l.dockerClient.ContainerStart(ctx, id, container.StartOptions{})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRunFailed, err)
	}

	logs, err := l.dockerClient.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRunFailed, err)
	}
	defer logs.Close()

	copyDone := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(stdout, stderr, logs)
		copyDone <- copyErr
	}()

	waitCh, errCh := l.dockerClient.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case waitErr := <-errCh:
		return fmt.Errorf("%w: %w", ErrRunFailed, waitErr)
	case res := <-waitCh:
		<-copyDone
		if res.Error != nil {
			return fmt.Errorf("%w: %s", ErrRunFailed, res.Error.Message)
		}
		if res.StatusCode != 0 {
			return &ExitError{Code: int(res.StatusCode)}
		}
		return nil
	}
}

// Upsert ensures a container named after the app is running with the given
// image and options. Nothing is touched when neither changed; otherwise the
// old container is stopped, removed and recreated.
func (l Launcher) Upsert(ctx context.Context, app string, imageReference string, opts RunOpts) error {
	containerName := l.resourcePrefix + app
	optsSha := optsSha(imageReference, opts)

	existing, err := l.dockerClient.ContainerInspect(ctx, containerName)
	exists := true
	if err != nil {
		if !client.IsErrNotFound(err) {
			return fmt.Errorf("%w: %w", ErrRunFailed, err)
		}
		exists = false
	}

	if exists {
		if existing.State.Running && existing.Config.Labels[labels.RunOptsSha] == optsSha {
			l.logger.Info("Nothing changed in container configuration, keeping it running", "app", app)
			return nil
		}

		l.logger.Info("Replacing container", "app", app)
		if existing.State.Running {
			err = l.dockerClient.ContainerStop(ctx, containerName, container.StopOptions{})
			if err != nil {
				return fmt.Errorf("%w: failed to stop container: %w", ErrRunFailed, err)
			}
		}
		err = l.dockerClient.ContainerRemove(ctx, containerName, container.RemoveOptions{})
		if err != nil {
			return fmt.Errorf("%w: failed to remove container: %w", ErrRunFailed, err)
		}
	}

	id, err := l.createContainer(ctx, app, imageReference, opts, containerName)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRunFailed, err)
	}

	err = l.dockerClient.ContainerStart(ctx, id, container.StartOptions{})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRunFailed, err)
	}

	l.logger.Info("Container started", "app", app, "image", imageReference)
	return nil
}

func (l Launcher) createContainer(
	ctx context.Context,
	app string,
	imageReference string,
	opts RunOpts,
	containerName string,
) (string, error) {
	exposedPorts, portBindings, err := nat.ParsePortSpecs(opts.Ports)
	if err != nil {
		return "", fmt.Errorf("invalid port mapping: %w", err)
	}

	res, err := l.dockerClient.ContainerCreate(
		ctx,
		&container.Config{
			Image:        imageReference,
			ExposedPorts: exposedPorts,
			Labels: map[string]string{
				labels.Managed:    "true",
				labels.AppName:    app,
				labels.RunOptsSha: optsSha(imageReference, opts),
			},
		},
		&container.HostConfig{
			Binds:        opts.Volumes,
			PortBindings: portBindings,
		},
		nil,
		nil,
		containerName,
	)
	if err != nil {
		return "", err
	}

	return res.ID, nil
}

// optsSha fingerprints the image and run options of a container. The image
// reference is content addressed, so a rebuild with different dependency
// layers changes the sha too.
func optsSha(imageReference string, opts RunOpts) string {
	raw := sha256.Sum256([]byte(fmt.Sprintf("%s-%v", imageReference, opts)))
	return fmt.Sprintf("%x", raw)
}

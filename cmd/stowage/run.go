package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stowage/internal/builder"
	"stowage/internal/descriptor"
	"stowage/internal/launcher"
)

func newRunCommand(settings *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run <dir>",
		Short: "Build if needed, launch the container and propagate its exit status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(settings)
			if err != nil {
				return err
			}

			d, err := descriptor.Load(args[0])
			if err != nil {
				logger.Error("Failed to load descriptor", "err", err)
				return err
			}

			dockerClient, err := newDockerClient()
			if err != nil {
				logger.Error("Failed to initialize docker client", "err", err)
				return err
			}

			prefix := settings.GetString("resource-prefix")
			imageBuilder := builder.New(logger, dockerClient, prefix, cmd.ErrOrStderr())
			reference, err := imageBuilder.Build(cmd.Context(), d)
			if err != nil {
				logger.Error("Build failed", "app", d.App, "err", err)
				return err
			}

			containerLauncher := launcher.New(logger, dockerClient, prefix)
			err = containerLauncher.Run(
				cmd.Context(),
				d.App,
				reference,
				launcher.RunOpts{Ports: d.Run.Ports, Volumes: d.Run.Volumes},
				cmd.OutOrStdout(),
				cmd.ErrOrStderr(),
			)
			if err != nil {
				var exitErr *launcher.ExitError
				if !errors.As(err, &exitErr) {
					logger.Error("Run failed", "app", d.App, "err", err)
				}
				return err
			}

			return nil
		},
	}
}

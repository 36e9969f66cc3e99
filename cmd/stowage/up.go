package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stowage/internal/builder"
	"stowage/internal/fleet"
	"stowage/internal/launcher"
)

func newUpCommand(settings *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "up <dir>",
		Short: "Build every descriptor under a directory and keep one container per app running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(settings)
			if err != nil {
				return err
			}

			dockerClient, err := newDockerClient()
			if err != nil {
				logger.Error("Failed to initialize docker client", "err", err)
				return err
			}

			prefix := settings.GetString("resource-prefix")
			imageBuilder := builder.New(logger, dockerClient, prefix, cmd.ErrOrStderr())
			containerLauncher := launcher.New(logger, dockerClient, prefix)

			f := fleet.New(logger, imageBuilder, containerLauncher, settings.GetInt("build-concurrency"))
			return f.Up(cmd.Context(), args[0])
		},
	}
}

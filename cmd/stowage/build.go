package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stowage/internal/builder"
	"stowage/internal/descriptor"
)

func newBuildCommand(settings *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "build <dir>",
		Short: "Build the image a descriptor declares",
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

			imageBuilder := builder.New(logger, dockerClient, settings.GetString("resource-prefix"), cmd.ErrOrStderr())
			reference, err := imageBuilder.Build(cmd.Context(), d)
			if err != nil {
				logger.Error("Build failed", "app", d.App, "err", err)
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), reference)
			return nil
		},
	}
}

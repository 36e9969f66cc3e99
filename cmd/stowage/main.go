package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/docker/docker/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stowage/internal/launcher"
)

func main() {
	root := newRootCommand()

	err := root.Execute()
	if err != nil {
		var exitErr *launcher.ExitError
		if errors.As(err, &exitErr) {
			// The startup command's exit code is the container's outcome,
			// and the container's outcome is ours.
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	settings := viper.New()

	root := &cobra.Command{
		Use:           "stowage",
		Short:         "Build layered container images from declarative descriptors and launch them",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	root.PersistentFlags().String("resource-prefix", "stowage-", "Prefix for every image and container name stowage manages")
	root.PersistentFlags().Int("build-concurrency", 1, "How many app builds may run at once during `up`")

	settings.SetEnvPrefix("STOWAGE")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	err := settings.BindPFlags(root.PersistentFlags())
	if err != nil {
		panic(err)
	}

	root.AddCommand(
		newDockerfileCommand(),
		newBuildCommand(settings),
		newRunCommand(settings),
		newUpCommand(settings),
	)

	return root
}

func newLogger(settings *viper.Viper) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	err := level.UnmarshalText([]byte(settings.GetString("log-level")))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch settings.GetString("log-format") {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format `%s`", settings.GetString("log-format"))
	}
}

func newDockerClient() (*client.Client, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize docker client: %w", err)
	}
	return dockerClient, nil
}

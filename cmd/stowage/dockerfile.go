package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stowage/internal/descriptor"
	"stowage/internal/dockerfile"
)

func newDockerfileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dockerfile <dir>",
		Short: "Print the Dockerfile synthesized from a descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := descriptor.Load(args[0])
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), dockerfile.Generate(d))
			return nil
		},
	}
}

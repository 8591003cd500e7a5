package main

import (
	"github.com/spf13/cobra"

	"github.com/wangxicoding/edl/version"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "edl-topology",
		Short:         "build, inspect and serve elastic training cluster topologies",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	registerConfig(cmd.PersistentFlags())

	cmd.AddCommand(newPodCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newDiffCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newCompletionCmd())
	return cmd
}

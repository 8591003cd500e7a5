package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/wangxicoding/edl/internal/reconcile"
)

// errTopologyDiffers makes the process exit with status 1 without logging.
var errTopologyDiffers = errors.New("cluster topologies differ")

func newDiffCmd() *cobra.Command {
	var canonical bool
	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "compare two cluster snapshots, exiting with status 1 when they differ",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prev, err := readCluster(args[0])
			if err != nil {
				return err
			}
			next, err := readCluster(args[1])
			if err != nil {
				return err
			}
			if canonical {
				if next, err = reconcile.Canonicalize(prev, next); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			diffs := prev.Diff(next)
			if len(diffs) == 0 {
				fmt.Fprintln(out, "clusters are equal")
				return nil
			}
			for _, d := range diffs {
				fmt.Fprintln(out, d)
			}
			return errTopologyDiffers
		},
	}
	cmd.Flags().BoolVar(&canonical, "canonical", false,
		"order NEW's pods like OLD's before comparing, as the registry does")
	return cmd
}

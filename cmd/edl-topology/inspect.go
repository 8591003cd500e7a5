package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var output string
	var details bool
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "decode a cluster snapshot and summarize it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := readCluster(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if output != "" {
				bs, err := encode(c, output)
				if err != nil {
					return err
				}
				_, err = out.Write(bs)
				return err
			}

			master, err := c.MasterEndpoint()
			if err != nil {
				master = fmt.Sprintf("<none: %v>", err)
			}
			fmt.Fprintf(out, "world size: %d\n", c.WorldSize())
			fmt.Fprintf(out, "pods: %d\n", c.PodCount())
			fmt.Fprintf(out, "job stage: %s\n", c.JobStage())
			fmt.Fprintf(out, "master endpoint: %s\n", master)
			fmt.Fprintf(out, "trainer endpoints: %s\n", strings.Join(c.TrainerEndpoints(), ","))
			if details {
				for _, p := range c.Pods() {
					fmt.Fprintln(out, p.Details())
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "re-encode the snapshot, one of [json, yaml, proto]")
	cmd.Flags().BoolVar(&details, "details", false, "list every pod and trainer")
	return cmd
}

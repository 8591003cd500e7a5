package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/wangxicoding/edl/internal/config"
	"github.com/wangxicoding/edl/internal/hostaddr"
	"github.com/wangxicoding/edl/internal/jobenv"
	"github.com/wangxicoding/edl/pkg/cluster"
)

func newPodCmd() *cobra.Command {
	var output, out string
	cmd := &cobra.Command{
		Use:   "pod",
		Short: "build the local pod from the job environment and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := initializeConfig()
			if err != nil {
				return err
			}
			p, err := buildLocalPod(c)
			if err != nil {
				return err
			}
			bs, err := encode(p, output)
			if err != nil {
				return err
			}
			if out != "" {
				return errors.Wrap(os.WriteFile(out, bs, 0o600), "error writing pod")
			}
			_, err = cmd.OutOrStdout().Write(bs)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatJSON, "output format, one of [json, yaml, proto]")
	cmd.Flags().StringVar(&out, "out", "", "write the pod to this file instead of stdout")
	return cmd
}

func buildLocalPod(c *config.Config) (*cluster.Pod, error) {
	env, err := jobenv.FromProcess(c.Job)
	if err != nil {
		return nil, err
	}
	p, err := cluster.NewPod(env, hostaddr.New(c.Pod.Addr))
	if err != nil {
		return nil, errors.Wrap(err, "cannot build local pod")
	}
	p.SetPort(c.Pod.Port)
	p.SetStage(c.Pod.Stage)
	return p, nil
}

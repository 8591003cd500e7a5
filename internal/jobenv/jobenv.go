// Package jobenv describes the local node as the job configured it.
package jobenv

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/wangxicoding/edl/internal/config"
	"github.com/wangxicoding/edl/pkg/cluster"
	"github.com/wangxicoding/edl/pkg/device"
)

// VisibleDevicesEnv is consulted when no accelerators are configured explicitly.
const VisibleDevicesEnv = "CUDA_VISIBLE_DEVICES"

// Env is a cluster.JobEnvironment built from configuration.
type Env struct {
	accelerators []device.ID
	trainers     int
	ports        []int
}

var _ cluster.JobEnvironment = (*Env)(nil)

// New resolves the job environment. lookup reads process environment variables, e.g.
// os.LookupEnv.
func New(c config.JobConfig, lookup func(string) (string, bool)) (*Env, error) {
	list, source := c.GPUs, "job.gpus"
	if list == "" {
		list, _ = lookup(VisibleDevicesEnv)
		source = VisibleDevicesEnv
	}
	accelerators, err := device.ParseIDs(list)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", source)
	}
	if len(accelerators) == 0 {
		return nil, errors.Errorf("no accelerators configured: set job.gpus or %s",
			VisibleDevicesEnv)
	}

	trainers := c.NProcPerNode
	if trainers == 0 {
		trainers = len(accelerators)
	}

	ports, err := c.Ports()
	if err != nil {
		return nil, err
	}
	if len(ports) == 0 {
		for i := 0; i < trainers; i++ {
			ports = append(ports, config.DefaultTrainerPortBase+i)
		}
	}
	return &Env{accelerators: accelerators, trainers: trainers, ports: ports}, nil
}

// FromProcess resolves the job environment against the current process environment.
func FromProcess(c config.JobConfig) (*Env, error) {
	return New(c, os.LookupEnv)
}

// AcceleratorIDs returns the node's accelerators in configured order.
func (e *Env) AcceleratorIDs() []device.ID {
	return slices.Clone(e.accelerators)
}

// TrainerCount returns the number of trainers to run on the node.
func (e *Env) TrainerCount() int {
	return e.trainers
}

// CandidatePorts returns the ports trainers may listen on.
func (e *Env) CandidatePorts() []int {
	return slices.Clone(e.ports)
}

// Package launch derives the processes to start from a ranked cluster.
package launch

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wangxicoding/edl/pkg/cluster"
	"github.com/wangxicoding/edl/pkg/device"
)

// Environment variables given to every trainer process.
const (
	EnvTrainerID        = "EDL_TRAINER_ID"
	EnvCurrentEndpoint  = "EDL_CURRENT_ENDPOINT"
	EnvTrainerEndpoints = "EDL_TRAINER_ENDPOINTS"
	EnvTrainersNum      = "EDL_TRAINERS_NUM"
	EnvMasterEndpoint   = "EDL_MASTER_ENDPOINT"
	EnvVisibleDevices   = "CUDA_VISIBLE_DEVICES"
)

// Process is one trainer process to start.
type Process struct {
	PodID        cluster.PodID
	GlobalRank   int
	Endpoint     string
	Accelerators []device.ID
	Env          map[string]string
}

// Environ returns Env as sorted KEY=VALUE pairs, ready for exec.Cmd.
func (p Process) Environ() []string {
	res := make([]string, 0, len(p.Env))
	for k, v := range p.Env {
		res = append(res, k+"="+v)
	}
	sort.Strings(res)
	return res
}

// Plan returns a process per trainer of c, pod by pod. Every trainer must have a global rank
// and every pod a complete endpoint. An empty cluster yields an empty plan.
func Plan(c *cluster.Cluster) ([]Process, error) {
	if c.PodCount() == 0 {
		return nil, nil
	}
	master, err := c.MasterEndpoint()
	if err != nil {
		return nil, errors.Wrap(err, "no master endpoint")
	}
	endpoints := strings.Join(c.TrainerEndpoints(), ",")
	world := strconv.Itoa(c.WorldSize())

	var procs []Process
	for _, p := range c.Pods() {
		if _, err := p.Endpoint(); err != nil {
			return nil, err
		}
		for _, t := range p.Trainers() {
			rank, ok := t.GlobalRank()
			if !ok {
				return nil, errors.Errorf("trainer %d of pod %s has no global rank",
					t.RankInPod(), p.ID())
			}
			procs = append(procs, Process{
				PodID:        p.ID(),
				GlobalRank:   rank,
				Endpoint:     t.Endpoint(),
				Accelerators: t.Accelerators(),
				Env: map[string]string{
					EnvTrainerID:        strconv.Itoa(rank),
					EnvCurrentEndpoint:  t.Endpoint(),
					EnvTrainerEndpoints: endpoints,
					EnvTrainersNum:      world,
					EnvMasterEndpoint:   master,
					EnvVisibleDevices:   device.FormatIDs(t.Accelerators()),
				},
			})
		}
	}
	return procs, nil
}

// ForPod returns the processes of plan that run on the given pod.
func ForPod(plan []Process, id cluster.PodID) []Process {
	var res []Process
	for _, p := range plan {
		if p.PodID == id {
			res = append(res, p)
		}
	}
	return res
}

// LogLauncher logs the plan of every launched cluster instead of starting processes.
type LogLauncher struct {
	Log *log.Entry
}

// Launch implements reconcile.Launcher.
func (l LogLauncher) Launch(_ context.Context, c *cluster.Cluster) error {
	plan, err := Plan(c)
	if err != nil {
		return err
	}
	logger := l.Log
	if logger == nil {
		logger = log.WithField("component", "launcher")
	}
	for _, p := range plan {
		logger.WithField("pod-id", p.PodID).
			WithField("rank", p.GlobalRank).
			WithField("endpoint", p.Endpoint).
			Infof("launch trainer with %s", strings.Join(p.Environ(), " "))
	}
	return nil
}

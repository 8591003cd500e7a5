package cluster

import (
	"testing"

	"gotest.tools/assert"

	"github.com/wangxicoding/edl/pkg/device"
)

type fakeEnv struct {
	gpus     []device.ID
	trainers int
	ports    []int
}

func (e fakeEnv) AcceleratorIDs() []device.ID { return e.gpus }
func (e fakeEnv) TrainerCount() int            { return e.trainers }
func (e fakeEnv) CandidatePorts() []int        { return e.ports }

type fakeResolver struct {
	addr string
	err  error
}

func (r fakeResolver) Resolve() (string, string, error) {
	return "node", r.addr, r.err
}

func gpuRange(n int) []device.ID {
	ids := make([]device.ID, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, device.ID(i))
	}
	return ids
}

func portRange(first, n int) []int {
	ports := make([]int, 0, n)
	for i := 0; i < n; i++ {
		ports = append(ports, first+i)
	}
	return ports
}

// newTestPod builds a pod on addr with the given number of accelerators and trainers. Its pod
// port is set so it has a complete endpoint.
func newTestPod(t *testing.T, addr string, gpus, trainers int) *Pod {
	t.Helper()
	p, err := NewPod(
		fakeEnv{gpus: gpuRange(gpus), trainers: trainers, ports: portRange(6170, trainers)},
		fakeResolver{addr: addr},
	)
	assert.NilError(t, err)
	p.SetPort(6070)
	return p
}

func newTestCluster(t *testing.T, pods ...*Pod) *Cluster {
	t.Helper()
	c, err := NewCluster(pods, "")
	assert.NilError(t, err)
	return c
}

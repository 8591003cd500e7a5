package jobenv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wangxicoding/edl/internal/config"
	"github.com/wangxicoding/edl/pkg/device"
)

func lookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestExplicitConfig(t *testing.T) {
	e, err := New(config.JobConfig{GPUs: "4,5,6", NProcPerNode: 1, TrainerPorts: "9000"},
		lookup(map[string]string{VisibleDevicesEnv: "0"}))
	require.NoError(t, err)
	require.Equal(t, []device.ID{4, 5, 6}, e.AcceleratorIDs())
	require.Equal(t, 1, e.TrainerCount())
	require.Equal(t, []int{9000}, e.CandidatePorts())
}

func TestVisibleDevicesFallback(t *testing.T) {
	e, err := New(config.JobConfig{}, lookup(map[string]string{VisibleDevicesEnv: "0, 1"}))
	require.NoError(t, err)
	require.Equal(t, []device.ID{0, 1}, e.AcceleratorIDs())
	require.Equal(t, 2, e.TrainerCount())
	require.Equal(t, []int{6170, 6171}, e.CandidatePorts())
}

func TestErrors(t *testing.T) {
	_, err := New(config.JobConfig{}, lookup(nil))
	require.ErrorContains(t, err, "no accelerators configured")

	_, err = New(config.JobConfig{}, lookup(map[string]string{VisibleDevicesEnv: "0,gpu1"}))
	require.ErrorContains(t, err, "parsing CUDA_VISIBLE_DEVICES")

	_, err = New(config.JobConfig{GPUs: "0", TrainerPorts: "a"}, lookup(nil))
	require.ErrorContains(t, err, `invalid trainer port "a"`)
}

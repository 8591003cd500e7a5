package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gotest.tools/assert"

	"github.com/wangxicoding/edl/internal/config"
	"github.com/wangxicoding/edl/pkg/cluster"
	"github.com/wangxicoding/edl/pkg/tproto"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestUnmarshalConfigurationViaViper(t *testing.T) {
	raw := `
log:
  level: warn
job:
  gpus: "0,1"
  nproc_per_node: 1
pod:
  addr: 10.1.1.1
reconcile:
  interval: 1m
rank_policy: literal
`
	registerConfig(pflag.NewFlagSet("test", pflag.ContinueOnError))
	assert.NilError(t, mergeConfigBytesIntoViper([]byte(raw)))
	c, err := getConfig(v.AllSettings())
	assert.NilError(t, err)

	expected := config.DefaultConfig()
	expected.Log.Level = "warn"
	expected.Job.GPUs = "0,1"
	expected.Job.NProcPerNode = 1
	expected.Pod.Addr = "10.1.1.1"
	expected.Reconcile.Interval = config.Duration(time.Minute)
	expected.RankPolicy = "literal"
	assert.DeepEqual(t, c, expected)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("EDL_JOB_TRAINER_PORTS", "9000,9001")
	t.Setenv("EDL_POD_PORT", "7070")
	registerConfig(pflag.NewFlagSet("test", pflag.ContinueOnError))
	assert.NilError(t, mergeConfigBytesIntoViper([]byte("pod:\n  port: 6000\n")))

	c, err := getConfig(v.AllSettings())
	assert.NilError(t, err)
	assert.Equal(t, c.Job.TrainerPorts, "9000,9001")
	assert.Equal(t, c.Pod.Port, 7070)
}

func TestUnknownConfigKey(t *testing.T) {
	registerConfig(pflag.NewFlagSet("test", pflag.ContinueOnError))
	assert.NilError(t, mergeConfigBytesIntoViper([]byte("jobs:\n  gpus: 1\n")))
	_, err := getConfig(v.AllSettings())
	assert.ErrorContains(t, err, "cannot unmarshal configuration")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := readConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "error finding configuration file")
}

func writePod(t *testing.T, dir, addr, format string) string {
	t.Helper()
	path := filepath.Join(dir, addr+"."+format)
	_, err := run(t, "pod", "--job-gpus", "0,1,2,3", "--job-nproc-per-node", "2",
		"--pod-addr", addr, "-o", format, "--out", path)
	assert.NilError(t, err)
	return path
}

func TestPodCommand(t *testing.T) {
	out, err := run(t, "pod", "--job-gpus", "0,1", "--pod-addr", "10.0.0.7", "--pod-port", "7000")
	assert.NilError(t, err)
	p, err := cluster.DecodePod([]byte(out))
	assert.NilError(t, err)
	assert.Equal(t, p.Address(), "10.0.0.7")
	assert.Equal(t, p.Port(), 7000)
	assert.Equal(t, p.TrainerCount(), 2)
	assert.Equal(t, p.Trainers()[1].Endpoint(), "10.0.0.7:6171")

	dir := t.TempDir()
	bs, err := os.ReadFile(writePod(t, dir, "10.0.0.8", formatProto))
	assert.NilError(t, err)
	p, err = tproto.DecodePod(bs)
	assert.NilError(t, err)
	assert.Equal(t, p.TrainerCount(), 2)

	out, err = run(t, "pod", "--job-gpus", "0", "--pod-addr", "10.0.0.7", "-o", formatYAML)
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(out, "10.0.0.7:6170"), out)

	_, err = run(t, "pod", "--job-gpus", "0", "--job-nproc-per-node", "2", "--pod-addr", "x")
	assert.Assert(t, errors.As(err, &cluster.InvalidPartitionError{}))
}

func writeCluster(t *testing.T, path string, c *cluster.Cluster) {
	t.Helper()
	format := formatJSON
	if filepath.Ext(path) == ".pb" {
		format = formatProto
	}
	bs, err := encode(c, format)
	assert.NilError(t, err)
	assert.NilError(t, os.WriteFile(path, bs, 0o600))
}

func clusterOf(t *testing.T, dir string, addrs ...string) *cluster.Cluster {
	t.Helper()
	var pods []*cluster.Pod
	for _, addr := range addrs {
		bs, err := os.ReadFile(writePod(t, dir, addr, formatJSON))
		assert.NilError(t, err)
		p, err := cluster.DecodePod(bs)
		assert.NilError(t, err)
		pods = append(pods, p)
	}
	c, err := cluster.NewCluster(pods, "")
	assert.NilError(t, err)
	c.AssignRanks(cluster.CumulativeRanks)
	return c
}

func TestInspectCommand(t *testing.T) {
	dir := t.TempDir()
	c := clusterOf(t, dir, "10.0.0.1", "10.0.0.2")
	path := filepath.Join(dir, "cluster.pb")
	writeCluster(t, path, c)

	out, err := run(t, "inspect", path)
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(out, "world size: 4\n"), out)
	assert.Assert(t, strings.Contains(out, "master endpoint: 10.0.0.1:6070\n"), out)
	assert.Assert(t, strings.Contains(out,
		"trainer endpoints: 10.0.0.1:6170,10.0.0.1:6171,10.0.0.2:6170,10.0.0.2:6171"), out)

	out, err = run(t, "inspect", path, "-o", formatYAML)
	assert.NilError(t, err)
	yamlPath := filepath.Join(dir, "cluster.yaml")
	assert.NilError(t, os.WriteFile(yamlPath, []byte(out), 0o600))
	decoded, err := readCluster(yamlPath)
	assert.NilError(t, err)
	assert.Assert(t, c.Equal(decoded))
}

func TestDiffCommand(t *testing.T) {
	dir := t.TempDir()
	c := clusterOf(t, dir, "10.0.0.1", "10.0.0.2")
	oldPath, samePath := filepath.Join(dir, "old.json"), filepath.Join(dir, "same.pb")
	writeCluster(t, oldPath, c)
	writeCluster(t, samePath, c)

	out, err := run(t, "diff", oldPath, samePath)
	assert.NilError(t, err)
	assert.Equal(t, out, "clusters are equal\n")

	pods := c.Pods()
	swapped, err := cluster.NewCluster([]*cluster.Pod{pods[1], pods[0]}, "")
	assert.NilError(t, err)
	newPath := filepath.Join(dir, "new.json")
	writeCluster(t, newPath, swapped)

	out, err = run(t, "diff", oldPath, newPath)
	assert.Assert(t, errors.Is(err, errTopologyDiffers))
	assert.Assert(t, strings.HasPrefix(out, "pod 0: rank 0 != 1\n"), out)

	out, err = run(t, "diff", "--canonical", oldPath, newPath)
	assert.NilError(t, err)
	assert.Equal(t, out, "clusters are equal\n")
}

func TestVersionAndCompletion(t *testing.T) {
	out, err := run(t, "version")
	assert.NilError(t, err)
	assert.Assert(t, strings.HasPrefix(out, "edl-topology dev"), out)

	out, err = run(t, "completion", "bash")
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(out, "edl-topology"))

	_, err = run(t, "completion", "fish")
	assert.Assert(t, err != nil)
}

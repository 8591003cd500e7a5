package tproto

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"gotest.tools/assert"

	"github.com/wangxicoding/edl/pkg/cluster"
	"github.com/wangxicoding/edl/pkg/device"
	"github.com/wangxicoding/edl/pkg/protoutils"
)

type env struct {
	gpus     []device.ID
	trainers int
}

func (e env) AcceleratorIDs() []device.ID { return e.gpus }
func (e env) TrainerCount() int            { return e.trainers }
func (e env) CandidatePorts() []int        { return []int{6170, 6171, 6172, 6173} }

type resolver string

func (r resolver) Resolve() (string, string, error) { return "node", string(r), nil }

func testPod(t *testing.T, addr string, gpus []device.ID, trainers int) *cluster.Pod {
	t.Helper()
	p, err := cluster.NewPod(env{gpus: gpus, trainers: trainers}, resolver(addr))
	assert.NilError(t, err)
	p.SetPort(6070)
	return p
}

func testCluster(t *testing.T) *cluster.Cluster {
	t.Helper()
	c, err := cluster.NewCluster([]*cluster.Pod{
		testPod(t, "10.0.0.1", []device.ID{0, 1, 2, 3}, 2),
		testPod(t, "10.0.0.2", []device.ID{5}, 1),
	}, "stage-3")
	assert.NilError(t, err)
	return c
}

func TestFromPod(t *testing.T) {
	p := testPod(t, "10.0.0.1", []device.ID{0, 1, 2}, 2)
	p.SetStage("warm")
	m := mustFromPod(t, p)
	assert.Equal(t, m.GetId(), string(p.ID()))
	assert.Check(t, !m.HasRank())
	assert.Equal(t, m.GetStage(), "warm")
	assert.DeepEqual(t, m.GetGpus(), []int32{0, 1, 2})
	assert.Equal(t, len(m.GetTrainers()), 2)
	assert.DeepEqual(t, m.GetTrainers()[1].GetGpus(), []int32{1, 2})

	cluster.AssignPodRank(p, 4)
	m = mustFromPod(t, p)
	assert.Equal(t, m.GetRank(), int32(4))
	assert.Equal(t, m.GetTrainers()[1].GetGlobalRank(), int32(5))
}

func TestNilMessages(t *testing.T) {
	var tm *Trainer
	var pm *Pod
	var cm *Cluster
	assert.Equal(t, tm.GetEndpoint(), "")
	assert.Check(t, !tm.HasGlobalRank())
	assert.Equal(t, pm.GetRank(), int32(0))
	assert.Check(t, pm.GetTrainers() == nil)
	assert.Check(t, cm.GetPods() == nil)

	pm = &Pod{Trainers: []*Trainer{nil}}
	assert.Check(t, pm.GetTrainers()[0] == nil)
}

func TestBinaryRoundTrip(t *testing.T) {
	c := testCluster(t)
	c.AssignRanks(cluster.CumulativeRanks)

	b, err := Marshal(mustFromCluster(t, c))
	assert.NilError(t, err)
	decoded, err := DecodeCluster(b)
	assert.NilError(t, err)
	assert.Check(t, c.Equal(decoded), cmpDiff(c, decoded))
	assert.Equal(t, decoded.JobStage(), "stage-3")
	assert.Equal(t, decoded.Pods()[0].ID(), c.Pods()[0].ID())

	b, err = Marshal(mustFromPod(t, c.Pods()[1]))
	assert.NilError(t, err)
	p, err := DecodePod(b)
	assert.NilError(t, err)
	assert.Check(t, c.Pods()[1].Equal(p))
}

func TestTextRoundTrip(t *testing.T) {
	c := testCluster(t)

	b, err := MarshalText(mustFromCluster(t, c))
	assert.NilError(t, err)
	m, err := UnmarshalClusterText(b)
	assert.NilError(t, err)
	decoded, err := cluster.ClusterFromMessage(m)
	assert.NilError(t, err)
	assert.Check(t, c.Equal(decoded), cmpDiff(c, decoded))

	_, ranked := decoded.Pods()[0].Rank()
	assert.Check(t, !ranked)

	b, err = MarshalText(mustFromPod(t, c.Pods()[0]))
	assert.NilError(t, err)
	pm, err := UnmarshalPodText(b)
	assert.NilError(t, err)
	assert.Equal(t, pm.GetAddr(), "10.0.0.1")
}

func TestEmptyCluster(t *testing.T) {
	c, err := cluster.NewCluster(nil, "")
	assert.NilError(t, err)
	b, err := Marshal(mustFromCluster(t, c))
	assert.NilError(t, err)
	decoded, err := DecodeCluster(b)
	assert.NilError(t, err)
	assert.Equal(t, decoded.PodCount(), 0)
}

func TestUnmarshalErrors(t *testing.T) {
	_, err := UnmarshalPod([]byte{0xff, 0xff})
	var merr cluster.MalformedSnapshotError
	assert.Assert(t, errors.As(err, &merr))
	assert.Equal(t, merr.Entity, "pod")

	var fields map[string]interface{}
	bs, err := json.Marshal(mustFromPod(t, testPod(t, "10.0.0.1", []device.ID{0}, 1)))
	assert.NilError(t, err)
	assert.NilError(t, json.Unmarshal(bs, &fields))
	fields["color"] = "red"
	s, err := protoutils.ToStruct(fields)
	assert.NilError(t, err)
	b, err := proto.Marshal(s)
	assert.NilError(t, err)
	_, err = UnmarshalPod(b)
	assert.ErrorContains(t, err, "unknown field")

	_, err = UnmarshalClusterText([]byte(`{"pods": [{"port": "x"}]}`))
	assert.Assert(t, errors.As(err, &merr))
	assert.Equal(t, merr.Entity, "pod")
	assert.Assert(t, strings.HasPrefix(merr.Field, "pods.0."), merr.Field)

	// Structurally valid but trainers out of order.
	p := mustFromPod(t, testPod(t, "10.0.0.1", []device.ID{0, 1}, 2))
	p.Trainers[0], p.Trainers[1] = p.Trainers[1], p.Trainers[0]
	b, err = Marshal(p)
	assert.NilError(t, err)
	_, err = DecodePod(b)
	assert.Assert(t, errors.As(err, &merr))
	assert.Equal(t, merr.Field, "trainers")
}

func TestUnmarshalMissingFields(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		entity string
		field  string
	}{
		{
			"trainer without endpoint",
			`{"id": "p1", "addr": "10.0.0.1", "trainer_ports": [6170], "gpus": [0],
			  "trainers": [{"id": "t0", "rank_in_pod": 0, "gpus": [0]}]}`,
			"trainer", "trainers.0.endpoint",
		},
		{
			"pod without addr",
			`{"id": "p1", "trainer_ports": [6170], "gpus": [0],
			  "trainers": [{"id": "t0", "rank_in_pod": 0, "gpus": [0], "endpoint": "a:1"}]}`,
			"pod", "addr",
		},
		{
			"pod without id",
			`{"addr": "10.0.0.1", "trainer_ports": [6170], "gpus": [0],
			  "trainers": [{"id": "t0", "rank_in_pod": 0, "gpus": [0], "endpoint": "a:1"}]}`,
			"pod", "id",
		},
		{
			"trainer with empty id",
			`{"id": "p1", "addr": "10.0.0.1", "trainer_ports": [6170], "gpus": [0],
			  "trainers": [{"id": "", "rank_in_pod": 0, "gpus": [0], "endpoint": "a:1"}]}`,
			"trainer", "trainers.0.id",
		},
		{
			"accelerator id beyond int32",
			`{"id": "p1", "addr": "10.0.0.1", "trainer_ports": [6170], "gpus": [4294967296],
			  "trainers": [{"id": "t0", "rank_in_pod": 0, "gpus": [0], "endpoint": "a:1"}]}`,
			"pod", "gpus.0",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := UnmarshalPodText([]byte(tc.text))
			var merr cluster.MalformedSnapshotError
			assert.Assert(t, errors.As(err, &merr), err)
			assert.Equal(t, merr.Entity, tc.entity)
			assert.Equal(t, merr.Field, tc.field)
		})
	}

	_, err := UnmarshalClusterText([]byte(`{"job_stage": "s", "pods": [null]}`))
	var merr cluster.MalformedSnapshotError
	assert.Assert(t, errors.As(err, &merr), err)
	assert.Equal(t, merr.Field, "pods.0")
}

func TestFromPodOutOfRange(t *testing.T) {
	tooBig := int64(math.MaxInt32) + 1
	p := testPod(t, "10.0.0.1", []device.ID{0, device.ID(tooBig)}, 2)
	_, err := FromPod(p)
	assert.ErrorContains(t, err, "does not fit in an int32")

	c, err := cluster.NewCluster([]*cluster.Pod{p}, "")
	assert.NilError(t, err)
	_, err = FromCluster(c)
	assert.ErrorContains(t, err, "accelerator id 2147483648")
}

func mustFromPod(t *testing.T, p *cluster.Pod) *Pod {
	t.Helper()
	m, err := FromPod(p)
	assert.NilError(t, err)
	return m
}

func mustFromCluster(t *testing.T, c *cluster.Cluster) *Cluster {
	t.Helper()
	m, err := FromCluster(c)
	assert.NilError(t, err)
	return m
}

func cmpDiff(a, b *cluster.Cluster) string {
	return strings.Join(a.Diff(b), "\n")
}

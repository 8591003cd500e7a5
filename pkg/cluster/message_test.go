package cluster

import (
	"testing"

	"github.com/pkg/errors"
	"gotest.tools/assert"
)

type fakeTrainerMsg struct {
	id        string
	rankInPod int32
	rank      *int32
	endpoint  string
	gpus      []int32
}

func (m fakeTrainerMsg) GetId() string       { return m.id }
func (m fakeTrainerMsg) GetRankInPod() int32 { return m.rankInPod }
func (m fakeTrainerMsg) HasGlobalRank() bool { return m.rank != nil }
func (m fakeTrainerMsg) GetEndpoint() string { return m.endpoint }
func (m fakeTrainerMsg) GetGpus() []int32    { return m.gpus }
func (m fakeTrainerMsg) GetGlobalRank() int32 {
	if m.rank == nil {
		return 0
	}
	return *m.rank
}

type fakePodMsg struct {
	id       string
	rank     *int32
	addr     string
	port     int32
	ports    []int32
	gpus     []int32
	stage    string
	trainers []TrainerMessage
}

func (m fakePodMsg) GetId() string                 { return m.id }
func (m fakePodMsg) HasRank() bool                 { return m.rank != nil }
func (m fakePodMsg) GetAddr() string               { return m.addr }
func (m fakePodMsg) GetPort() int32                { return m.port }
func (m fakePodMsg) GetTrainerPorts() []int32      { return m.ports }
func (m fakePodMsg) GetGpus() []int32              { return m.gpus }
func (m fakePodMsg) GetStage() string              { return m.stage }
func (m fakePodMsg) GetTrainers() []TrainerMessage { return m.trainers }
func (m fakePodMsg) GetRank() int32 {
	if m.rank == nil {
		return 0
	}
	return *m.rank
}

type fakeClusterMsg struct {
	stage string
	pods  []PodMessage
}

func (m fakeClusterMsg) GetJobStage() string   { return m.stage }
func (m fakeClusterMsg) GetPods() []PodMessage { return m.pods }

func int32p(v int32) *int32 { return &v }

func twoTrainerPodMsg(id, addr string) fakePodMsg {
	return fakePodMsg{
		id:    id,
		addr:  addr,
		port:  6070,
		ports: []int32{6170, 6171},
		gpus:  []int32{0, 1},
		stage: "s",
		trainers: []TrainerMessage{
			fakeTrainerMsg{id: "t0", rankInPod: 0, endpoint: addr + ":6170", gpus: []int32{0}},
			fakeTrainerMsg{id: "t1", rankInPod: 1, endpoint: addr + ":6171", gpus: []int32{1}},
		},
	}
}

func TestPodFromMessage(t *testing.T) {
	m := twoTrainerPodMsg("p0", "10.0.0.1")
	m.rank = int32p(3)
	m.trainers[1] = fakeTrainerMsg{
		id: "t1", rankInPod: 1, rank: int32p(4), endpoint: "10.0.0.1:6171", gpus: []int32{1},
	}

	p, err := PodFromMessage(m)
	assert.NilError(t, err)
	assert.Equal(t, p.ID(), PodID("p0"))
	rank, ok := p.Rank()
	assert.Check(t, ok)
	assert.Equal(t, rank, 3)
	assert.Equal(t, p.Status(), PodInitial)
	assert.Equal(t, p.Stage(), "s")
	assert.DeepEqual(t, p.TrainerPorts(), []int{6170, 6171})

	trainers := p.Trainers()
	assert.Equal(t, trainers[1].ID(), TrainerID("t1"))
	_, ok = trainers[0].GlobalRank()
	assert.Check(t, !ok)
	g, ok := trainers[1].GlobalRank()
	assert.Check(t, ok)
	assert.Equal(t, g, 4)
}

func TestPodFromMessageInvalid(t *testing.T) {
	_, err := PodFromMessage(nil)
	assert.Assert(t, errors.As(err, &MalformedSnapshotError{}))

	m := twoTrainerPodMsg("p0", "10.0.0.1")
	m.trainers = []TrainerMessage{m.trainers[1], m.trainers[0]}
	_, err = PodFromMessage(m)
	var merr MalformedSnapshotError
	assert.Assert(t, errors.As(err, &merr))
	assert.Equal(t, merr.Field, "trainers")
	assert.ErrorContains(t, err, "has rank_in_pod 1")

	m = twoTrainerPodMsg("p0", "10.0.0.1")
	m.trainers = append(m.trainers, nil)
	_, err = PodFromMessage(m)
	assert.Assert(t, errors.As(err, &merr))
	assert.Equal(t, merr.Field, "trainers.2")
}

func TestPodFromMessageMissingFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*fakePodMsg)
		entity string
		field  string
	}{
		{"no id", func(m *fakePodMsg) { m.id = "" }, "pod", "id"},
		{"no addr", func(m *fakePodMsg) { m.addr = "" }, "pod", "addr"},
		{"trainer without endpoint", func(m *fakePodMsg) {
			m.trainers[0] = fakeTrainerMsg{id: "t0", gpus: []int32{0}}
		}, "trainer", "trainers.0.endpoint"},
		{"trainer without id", func(m *fakePodMsg) {
			m.trainers[1] = fakeTrainerMsg{rankInPod: 1, endpoint: "10.0.0.1:6171", gpus: []int32{1}}
		}, "trainer", "trainers.1.id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := twoTrainerPodMsg("p0", "10.0.0.1")
			tc.mutate(&m)
			_, err := PodFromMessage(m)
			var merr MalformedSnapshotError
			assert.Assert(t, errors.As(err, &merr), err)
			assert.Equal(t, merr.Entity, tc.entity)
			assert.Equal(t, merr.Field, tc.field)
		})
	}

	_, err := ClusterFromMessage(fakeClusterMsg{
		pods: []PodMessage{twoTrainerPodMsg("a", "10.0.0.9"), twoTrainerPodMsg("b", "")},
	})
	var merr MalformedSnapshotError
	assert.Assert(t, errors.As(err, &merr), err)
	assert.Equal(t, merr.Field, "pods.1.addr")
}

func TestClusterFromMessage(t *testing.T) {
	m := fakeClusterMsg{
		stage: "stage-1",
		pods: []PodMessage{
			twoTrainerPodMsg("b", "10.0.0.2"),
			twoTrainerPodMsg("a", "10.0.0.1"),
		},
	}
	c, err := ClusterFromMessage(m)
	assert.NilError(t, err)
	assert.Equal(t, c.JobStage(), "stage-1")
	assert.Equal(t, c.WorldSize(), 4)
	assert.Equal(t, c.Pods()[0].ID(), PodID("b"))

	ep, err := c.MasterEndpoint()
	assert.NilError(t, err)
	assert.Equal(t, ep, "10.0.0.2:6070")
}

func TestClusterFromMessageInvalid(t *testing.T) {
	_, err := ClusterFromMessage(nil)
	assert.Assert(t, errors.As(err, &MalformedSnapshotError{}))

	m := fakeClusterMsg{pods: []PodMessage{
		twoTrainerPodMsg("a", "10.0.0.1"),
		twoTrainerPodMsg("b", "10.0.0.1"),
	}}
	_, err = ClusterFromMessage(m)
	assert.Assert(t, errors.As(err, &DuplicateEndpointError{}))
	assert.ErrorContains(t, err, "cluster message is invalid")

	m = fakeClusterMsg{pods: []PodMessage{twoTrainerPodMsg("a", "10.0.0.1"), nil}}
	_, err = ClusterFromMessage(m)
	var merr MalformedSnapshotError
	assert.Assert(t, errors.As(err, &merr))
	assert.Equal(t, merr.Field, "pods.1")
}

package cluster

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/wangxicoding/edl/pkg/device"
)

// TrainerMessage is the trainer shape of a registry wire message.
type TrainerMessage interface {
	GetId() string
	GetRankInPod() int32
	// HasGlobalRank reports whether the sender had ranked the trainer.
	HasGlobalRank() bool
	GetGlobalRank() int32
	GetEndpoint() string
	GetGpus() []int32
}

// PodMessage is the pod shape of a registry wire message.
type PodMessage interface {
	GetId() string
	// HasRank reports whether the sender had ranked the pod.
	HasRank() bool
	GetRank() int32
	GetAddr() string
	GetPort() int32
	GetTrainerPorts() []int32
	GetGpus() []int32
	GetStage() string
	GetTrainers() []TrainerMessage
}

// ClusterMessage is the cluster shape of a registry wire message.
type ClusterMessage interface {
	GetJobStage() string
	GetPods() []PodMessage
}

func ids(gpus []int32) []device.ID {
	res := make([]device.ID, 0, len(gpus))
	for _, g := range gpus {
		res = append(res, device.ID(g))
	}
	return res
}

func ints(vals []int32) []int {
	res := make([]int, 0, len(vals))
	for _, v := range vals {
		res = append(res, int(v))
	}
	return res
}

// requireStrings reports the first of fields, given as name/value pairs, whose value is empty.
// Messages cannot tell a missing string from an empty one, and both are invalid.
func requireStrings(entity, path string, fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if fields[i+1] == "" {
			return malformed(entity, joinPath(path, fields[i]), "required field is empty")
		}
	}
	return nil
}

func trainerFromMessage(m TrainerMessage, path string) (*Trainer, error) {
	if m == nil {
		return nil, malformed("trainer", path, "message is nil")
	}
	if err := requireStrings("trainer", path,
		"id", m.GetId(), "endpoint", m.GetEndpoint()); err != nil {
		return nil, err
	}
	t := &Trainer{
		id:           TrainerID(m.GetId()),
		rankInPod:    int(m.GetRankInPod()),
		accelerators: ids(m.GetGpus()),
		endpoint:     m.GetEndpoint(),
	}
	if m.HasGlobalRank() {
		g := int(m.GetGlobalRank())
		t.globalRank = &g
	}
	return t, nil
}

// PodFromMessage builds a pod from a registry message and validates it. The pod has status
// PodInitial.
func PodFromMessage(m PodMessage) (*Pod, error) {
	return podFromMessage(m, "")
}

func podFromMessage(m PodMessage, path string) (*Pod, error) {
	if m == nil {
		return nil, malformed("pod", path, "message is nil")
	}
	if err := requireStrings("pod", path, "id", m.GetId(), "addr", m.GetAddr()); err != nil {
		return nil, err
	}
	p := &Pod{
		id:           PodID(m.GetId()),
		addr:         m.GetAddr(),
		port:         int(m.GetPort()),
		trainerPorts: ints(m.GetTrainerPorts()),
		accelerators: ids(m.GetGpus()),
		status:       PodInitial,
		stage:        m.GetStage(),
	}
	if m.HasRank() {
		r := int(m.GetRank())
		p.rank = &r
	}
	for i, tm := range m.GetTrainers() {
		t, err := trainerFromMessage(tm, joinPath(path, "trainers."+strconv.Itoa(i)))
		if err != nil {
			return nil, err
		}
		p.trainers = append(p.trainers, t)
	}
	if err := p.Validate(); err != nil {
		return nil, MalformedSnapshotError{Entity: "pod", Field: joinPath(path, "trainers"), Err: err}
	}
	return p, nil
}

// ClusterFromMessage builds a cluster from a registry message, keeping the message's pod order.
func ClusterFromMessage(m ClusterMessage) (*Cluster, error) {
	if m == nil {
		return nil, malformed("cluster", "", "message is nil")
	}
	c := &Cluster{jobStage: m.GetJobStage()}
	for i, pm := range m.GetPods() {
		p, err := podFromMessage(pm, "pods."+strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		c.pods = append(c.pods, p)
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "cluster message is invalid")
	}
	return c, nil
}

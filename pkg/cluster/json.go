package cluster

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"

	"github.com/wangxicoding/edl/pkg/device"
	"github.com/wangxicoding/edl/pkg/schemas"
)

type trainerJSON struct {
	ID         TrainerID   `json:"id"`
	RankInPod  int         `json:"rank_in_pod"`
	GPUs       []device.ID `json:"gpus"`
	Endpoint   string      `json:"endpoint"`
	GlobalRank *int        `json:"global_rank"`
}

type podJSON struct {
	ID           PodID               `json:"id"`
	Rank         *int                `json:"rank"`
	Port         *int                `json:"port"`
	TrainerPorts []int               `json:"trainer_ports"`
	Addr         string              `json:"addr"`
	GPUs         []device.ID         `json:"gpus"`
	Stage        string              `json:"stage"`
	Trainers     map[string]*Trainer `json:"trainers"`
}

type clusterJSON struct {
	JobStage string          `json:"job_stage"`
	Pods     map[string]*Pod `json:"pods"`
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// MarshalJSON implements json.Marshaler.
func (t *Trainer) MarshalJSON() ([]byte, error) {
	return json.Marshal(trainerJSON{
		ID:         t.id,
		RankInPod:  t.rankInPod,
		GPUs:       nonNil(t.accelerators),
		Endpoint:   t.endpoint,
		GlobalRank: t.globalRank,
	})
}

// MarshalJSON implements json.Marshaler. Trainers are keyed by their rank_in_pod and an unset
// port is written as null.
func (p *Pod) MarshalJSON() ([]byte, error) {
	out := podJSON{
		ID:           p.id,
		Rank:         p.rank,
		TrainerPorts: nonNil(p.trainerPorts),
		Addr:         p.addr,
		GPUs:         nonNil(p.accelerators),
		Stage:        p.stage,
		Trainers:     make(map[string]*Trainer, len(p.trainers)),
	}
	if p.port != 0 {
		port := p.port
		out.Port = &port
	}
	for i, t := range p.trainers {
		out.Trainers[strconv.Itoa(i)] = t
	}
	return json.Marshal(out)
}

// MarshalJSON implements json.Marshaler. The job stage is carried next to the pod mapping so it
// survives a round trip; see EncodePods for the bare mapping.
func (c *Cluster) MarshalJSON() ([]byte, error) {
	return json.Marshal(clusterJSON{JobStage: c.jobStage, Pods: c.podMap()})
}

func (c *Cluster) podMap() map[string]*Pod {
	pods := make(map[string]*Pod, len(c.pods))
	for i, p := range c.pods {
		pods[strconv.Itoa(i)] = p
	}
	return pods
}

// EncodePods encodes the cluster's pods as a mapping from position to encoded pod, the form a
// registry exchanges.
func EncodePods(c *Cluster) ([]byte, error) {
	return json.Marshal(c.podMap())
}

// DecodeTrainer decodes a trainer encoded by Trainer.MarshalJSON.
func DecodeTrainer(data []byte) (*Trainer, error) {
	o, err := parseObject("trainer", "", data)
	if err != nil {
		return nil, err
	}
	return decodeTrainer(o)
}

func decodeTrainer(o object) (*Trainer, error) {
	if err := o.conform(schemas.SnapshotTrainer); err != nil {
		return nil, err
	}
	t := &Trainer{}
	for _, err := range []error{
		o.decode("id", &t.id),
		o.decode("rank_in_pod", &t.rankInPod),
		o.decode("gpus", &t.accelerators),
		o.decode("endpoint", &t.endpoint),
		o.decode("global_rank", &t.globalRank),
	} {
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

// DecodePod decodes a pod encoded by Pod.MarshalJSON and validates its invariants. The decoded
// pod has status PodInitial, since status is not part of the encoding.
func DecodePod(data []byte) (*Pod, error) {
	o, err := parseObject("pod", "", data)
	if err != nil {
		return nil, err
	}
	return decodePod(o)
}

func decodePod(o object) (*Pod, error) {
	if err := o.conform(schemas.SnapshotPod); err != nil {
		return nil, err
	}
	p := &Pod{status: PodInitial}
	var trainers json.RawMessage
	for _, err := range []error{
		o.decode("id", &p.id),
		o.decode("rank", &p.rank),
		o.decode("addr", &p.addr),
		o.decode("port", &p.port),
		o.decode("trainer_ports", &p.trainerPorts),
		o.decode("gpus", &p.accelerators),
		o.decode("stage", &p.stage),
		o.decode("trainers", &trainers),
	} {
		if err != nil {
			return nil, err
		}
	}

	path := o.field("trainers")
	values, err := indexed("trainer", path, trainers)
	if err != nil {
		return nil, err
	}
	for i, raw := range values {
		to, err := parseObject("trainer", joinPath(path, strconv.Itoa(i)), raw)
		if err != nil {
			return nil, err
		}
		t, err := decodeTrainer(to)
		if err != nil {
			return nil, err
		}
		p.trainers = append(p.trainers, t)
	}

	if err := p.Validate(); err != nil {
		return nil, MalformedSnapshotError{Entity: "pod", Field: path, Err: err}
	}
	return p, nil
}

// DecodeCluster decodes a cluster from either the envelope written by Cluster.MarshalJSON or the
// bare mapping written by EncodePods, in which case the job stage is empty. The mapping keys must
// be "0".."N-1"; pods are placed in key order.
func DecodeCluster(data []byte) (*Cluster, error) {
	o, err := parseObject("cluster", "", data)
	if err != nil {
		return nil, err
	}

	c := &Cluster{}
	var values []json.RawMessage
	path := ""
	if _, ok := o.fields["pods"]; ok {
		if err := o.conform(schemas.SnapshotCluster); err != nil {
			return nil, err
		}
		var pods json.RawMessage
		for _, err := range []error{
			o.decode("pods", &pods),
			o.decode("job_stage", &c.jobStage),
		} {
			if err != nil {
				return nil, err
			}
		}
		path = "pods"
		values, err = indexed("pod", path, pods)
	} else {
		if err := o.conform(schemas.SnapshotPods); err != nil {
			return nil, err
		}
		values, err = sortIndexed("pod", path, o.fields)
	}
	if err != nil {
		return nil, err
	}
	for i, raw := range values {
		po, err := parseObject("pod", joinPath(path, strconv.Itoa(i)), raw)
		if err != nil {
			return nil, err
		}
		p, err := decodePod(po)
		if err != nil {
			return nil, err
		}
		c.pods = append(c.pods, p)
	}

	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "decoded cluster is invalid")
	}
	return c, nil
}

// UnmarshalJSON implements json.Unmarshaler using DecodeTrainer.
func (t *Trainer) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeTrainer(data)
	if err != nil {
		return err
	}
	*t = *decoded
	return nil
}

// UnmarshalJSON implements json.Unmarshaler using DecodePod.
func (p *Pod) UnmarshalJSON(data []byte) error {
	decoded, err := DecodePod(data)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}

// UnmarshalJSON implements json.Unmarshaler using DecodeCluster.
func (c *Cluster) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeCluster(data)
	if err != nil {
		return err
	}
	*c = *decoded
	return nil
}

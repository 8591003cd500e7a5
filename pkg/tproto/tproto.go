// Package tproto holds the messages pods and the registry exchange. On the wire a message is a
// protobuf well-known Struct, in binary or in its canonical JSON form; the Go types here give it
// a schema and satisfy the message interfaces of package cluster.
package tproto

import (
	"math"

	structpb "github.com/golang/protobuf/ptypes/struct"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/wangxicoding/edl/pkg/cluster"
	"github.com/wangxicoding/edl/pkg/protoutils"
	"github.com/wangxicoding/edl/pkg/schemas"
)

// Trainer is the wire form of a trainer.
type Trainer struct {
	ID         string  `json:"id"`
	RankInPod  int32   `json:"rank_in_pod"`
	GlobalRank *int32  `json:"global_rank"`
	Endpoint   string  `json:"endpoint"`
	Gpus       []int32 `json:"gpus"`
}

// Pod is the wire form of a pod. Unlike the snapshot codec, trainers travel as a list.
type Pod struct {
	ID           string     `json:"id"`
	Rank         *int32     `json:"rank"`
	Addr         string     `json:"addr"`
	Port         int32      `json:"port"`
	TrainerPorts []int32    `json:"trainer_ports"`
	Gpus         []int32    `json:"gpus"`
	Stage        string     `json:"stage,omitempty"`
	Trainers     []*Trainer `json:"trainers"`
}

// Cluster is the wire form of a cluster.
type Cluster struct {
	JobStage string `json:"job_stage"`
	Pods     []*Pod `json:"pods"`
}

var (
	_ cluster.TrainerMessage = (*Trainer)(nil)
	_ cluster.PodMessage     = (*Pod)(nil)
	_ cluster.ClusterMessage = (*Cluster)(nil)
)

// GetId returns the trainer id.
func (t *Trainer) GetId() string { //nolint:revive,stylecheck
	if t == nil {
		return ""
	}
	return t.ID
}

// GetRankInPod returns the trainer's position in its pod.
func (t *Trainer) GetRankInPod() int32 {
	if t == nil {
		return 0
	}
	return t.RankInPod
}

// HasGlobalRank reports whether the global rank is set.
func (t *Trainer) HasGlobalRank() bool {
	return t != nil && t.GlobalRank != nil
}

// GetGlobalRank returns the global rank, or 0 when unset.
func (t *Trainer) GetGlobalRank() int32 {
	if !t.HasGlobalRank() {
		return 0
	}
	return *t.GlobalRank
}

// GetEndpoint returns the trainer endpoint.
func (t *Trainer) GetEndpoint() string {
	if t == nil {
		return ""
	}
	return t.Endpoint
}

// GetGpus returns the trainer's accelerators.
func (t *Trainer) GetGpus() []int32 {
	if t == nil {
		return nil
	}
	return t.Gpus
}

// GetId returns the pod id.
func (p *Pod) GetId() string { //nolint:revive,stylecheck
	if p == nil {
		return ""
	}
	return p.ID
}

// HasRank reports whether the pod rank is set.
func (p *Pod) HasRank() bool {
	return p != nil && p.Rank != nil
}

// GetRank returns the pod rank, or 0 when unset.
func (p *Pod) GetRank() int32 {
	if !p.HasRank() {
		return 0
	}
	return *p.Rank
}

// GetAddr returns the pod address.
func (p *Pod) GetAddr() string {
	if p == nil {
		return ""
	}
	return p.Addr
}

// GetPort returns the pod port.
func (p *Pod) GetPort() int32 {
	if p == nil {
		return 0
	}
	return p.Port
}

// GetTrainerPorts returns the candidate trainer ports.
func (p *Pod) GetTrainerPorts() []int32 {
	if p == nil {
		return nil
	}
	return p.TrainerPorts
}

// GetGpus returns the pod's accelerators.
func (p *Pod) GetGpus() []int32 {
	if p == nil {
		return nil
	}
	return p.Gpus
}

// GetStage returns the pod stage.
func (p *Pod) GetStage() string {
	if p == nil {
		return ""
	}
	return p.Stage
}

// GetTrainers returns the trainers. A missing list entry is returned as a nil interface.
func (p *Pod) GetTrainers() []cluster.TrainerMessage {
	if p == nil {
		return nil
	}
	res := make([]cluster.TrainerMessage, 0, len(p.Trainers))
	for _, t := range p.Trainers {
		if t == nil {
			res = append(res, nil)
			continue
		}
		res = append(res, t)
	}
	return res
}

// GetJobStage returns the job stage.
func (c *Cluster) GetJobStage() string {
	if c == nil {
		return ""
	}
	return c.JobStage
}

// GetPods returns the pods. A missing list entry is returned as a nil interface.
func (c *Cluster) GetPods() []cluster.PodMessage {
	if c == nil {
		return nil
	}
	res := make([]cluster.PodMessage, 0, len(c.Pods))
	for _, p := range c.Pods {
		if p == nil {
			res = append(res, nil)
			continue
		}
		res = append(res, p)
	}
	return res
}

// toInt32 converts v, failing instead of wrapping around when v is out of range.
func toInt32(v int, what string) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, errors.Errorf("%s %d does not fit in an int32", what, v)
	}
	return int32(v), nil
}

func int32s[T ~int](vals []T, what string) ([]int32, error) {
	res := make([]int32, 0, len(vals))
	for _, v := range vals {
		r, err := toInt32(int(v), what)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, nil
}

func optional(v int, ok bool, what string) (*int32, error) {
	if !ok {
		return nil, nil
	}
	r, err := toInt32(v, what)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// FromTrainer converts a trainer to its wire form. It fails if a number does not fit the wire's
// int32 fields.
func FromTrainer(t *cluster.Trainer) (*Trainer, error) {
	m := &Trainer{ID: string(t.ID()), Endpoint: t.Endpoint()}
	var errs [3]error
	m.RankInPod, errs[0] = toInt32(t.RankInPod(), "rank_in_pod")
	g, ok := t.GlobalRank()
	m.GlobalRank, errs[1] = optional(g, ok, "global rank")
	m.Gpus, errs[2] = int32s(t.Accelerators(), "accelerator id")
	for _, err := range errs {
		if err != nil {
			return nil, errors.Wrapf(err, "converting trainer %s", t.ID())
		}
	}
	return m, nil
}

// FromPod converts a pod to its wire form. Status is not carried.
func FromPod(p *cluster.Pod) (*Pod, error) {
	m := &Pod{
		ID:       string(p.ID()),
		Addr:     p.Address(),
		Stage:    p.Stage(),
		Trainers: make([]*Trainer, 0, p.TrainerCount()),
	}
	var errs [4]error
	r, ok := p.Rank()
	m.Rank, errs[0] = optional(r, ok, "rank")
	m.Port, errs[1] = toInt32(p.Port(), "port")
	m.TrainerPorts, errs[2] = int32s(p.TrainerPorts(), "trainer port")
	m.Gpus, errs[3] = int32s(p.Accelerators(), "accelerator id")
	for _, err := range errs {
		if err != nil {
			return nil, errors.Wrapf(err, "converting pod %s", p.ID())
		}
	}
	for _, t := range p.Trainers() {
		tm, err := FromTrainer(t)
		if err != nil {
			return nil, errors.Wrapf(err, "converting pod %s", p.ID())
		}
		m.Trainers = append(m.Trainers, tm)
	}
	return m, nil
}

// FromCluster converts a cluster to its wire form, keeping pod order.
func FromCluster(c *cluster.Cluster) (*Cluster, error) {
	m := &Cluster{JobStage: c.JobStage(), Pods: []*Pod{}}
	for _, p := range c.Pods() {
		pm, err := FromPod(p)
		if err != nil {
			return nil, err
		}
		m.Pods = append(m.Pods, pm)
	}
	return m, nil
}

// Marshal encodes a Pod or Cluster message as a binary protobuf Struct.
func Marshal(m interface{}) ([]byte, error) {
	s, err := protoutils.ToStruct(m)
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(s)
}

// MarshalText encodes a Pod or Cluster message as the canonical JSON form of a protobuf Struct.
func MarshalText(m interface{}) ([]byte, error) {
	s, err := protoutils.ToStruct(m)
	if err != nil {
		return nil, err
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
}

// UnmarshalPod decodes a binary pod message.
func UnmarshalPod(b []byte) (*Pod, error) {
	m := &Pod{}
	if err := unmarshal(b, proto.Unmarshal, schemas.WirePod, "pod", m); err != nil {
		return nil, err
	}
	return m, nil
}

// UnmarshalCluster decodes a binary cluster message.
func UnmarshalCluster(b []byte) (*Cluster, error) {
	m := &Cluster{}
	if err := unmarshal(b, proto.Unmarshal, schemas.WireCluster, "cluster", m); err != nil {
		return nil, err
	}
	return m, nil
}

// UnmarshalPodText decodes a pod message in protobuf JSON form.
func UnmarshalPodText(b []byte) (*Pod, error) {
	m := &Pod{}
	if err := unmarshal(b, protojson.Unmarshal, schemas.WirePod, "pod", m); err != nil {
		return nil, err
	}
	return m, nil
}

// UnmarshalClusterText decodes a cluster message in protobuf JSON form.
func UnmarshalClusterText(b []byte) (*Cluster, error) {
	m := &Cluster{}
	if err := unmarshal(b, protojson.Unmarshal, schemas.WireCluster, "cluster", m); err != nil {
		return nil, err
	}
	return m, nil
}

// unmarshal decodes a Struct, checks its JSON form against the schema at url and only then
// copies it into dst, so a missing field is reported rather than left at its zero value.
func unmarshal(
	b []byte, decode func([]byte, proto.Message) error, url, entity string, dst interface{},
) error {
	s := &structpb.Struct{}
	if err := decode(b, s); err != nil {
		return cluster.MalformedSnapshotError{
			Entity: entity, Err: errors.Wrap(err, "decoding protobuf struct"),
		}
	}
	doc, err := protojson.Marshal(s)
	if err != nil {
		return cluster.MalformedSnapshotError{
			Entity: entity, Err: errors.Wrap(err, "rendering protobuf struct as json"),
		}
	}
	if err := schemas.Validate(url, doc); err != nil {
		var v schemas.Violation
		if errors.As(err, &v) {
			return cluster.MalformedSnapshotError{
				Entity: entityAt(entity, v.Path), Field: v.Field(), Err: errors.New(v.Message),
			}
		}
		return cluster.MalformedSnapshotError{Entity: entity, Err: err}
	}
	if err := protoutils.FromStruct(s, dst); err != nil {
		return cluster.MalformedSnapshotError{Entity: entity, Err: err}
	}
	return nil
}

// entityAt returns the entity a field path points into: a path below "trainers.<i>" is inside a
// trainer, one below "pods.<i>" inside a pod.
func entityAt(root string, path []string) string {
	entity := root
	for i := 0; i+1 < len(path); i++ {
		switch path[i] {
		case "pods":
			entity = "pod"
		case "trainers":
			entity = "trainer"
		}
	}
	return entity
}

// DecodePod decodes a binary pod message into a validated pod.
func DecodePod(b []byte) (*cluster.Pod, error) {
	m, err := UnmarshalPod(b)
	if err != nil {
		return nil, err
	}
	return cluster.PodFromMessage(m)
}

// DecodeCluster decodes a binary cluster message into a validated cluster.
func DecodeCluster(b []byte) (*cluster.Cluster, error) {
	m, err := UnmarshalCluster(b)
	if err != nil {
		return nil, err
	}
	return cluster.ClusterFromMessage(m)
}

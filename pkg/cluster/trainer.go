package cluster

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/wangxicoding/edl/pkg/device"
)

// TrainerID identifies a trainer process. It records where the trainer was constructed and is
// not part of trainer equality.
type TrainerID string

// Trainer is one worker process on a pod. It owns a contiguous slice of the pod's accelerators
// and listens on its own endpoint.
type Trainer struct {
	id           TrainerID
	rankInPod    int
	globalRank   *int
	accelerators []device.ID
	endpoint     string
}

func newTrainer(endpoint string, rankInPod int, accelerators []device.ID) *Trainer {
	return &Trainer{
		id:           TrainerID(uuid.New().String()),
		rankInPod:    rankInPod,
		accelerators: accelerators,
		endpoint:     endpoint,
	}
}

// ID returns the trainer's construction-time identifier.
func (t *Trainer) ID() TrainerID {
	return t.id
}

// RankInPod returns the trainer's zero-based position among its pod's trainers.
func (t *Trainer) RankInPod() int {
	return t.rankInPod
}

// GlobalRank returns the cluster-wide rank, which is unset until the owning pod is ranked.
func (t *Trainer) GlobalRank() (int, bool) {
	if t.globalRank == nil {
		return 0, false
	}
	return *t.globalRank, true
}

// Accelerators returns a copy of the accelerators owned by the trainer.
func (t *Trainer) Accelerators() []device.ID {
	return slices.Clone(t.accelerators)
}

// Endpoint returns the trainer's address:port.
func (t *Trainer) Endpoint() string {
	return t.endpoint
}

// Clone returns a deep copy of the trainer.
func (t *Trainer) Clone() *Trainer {
	c := *t
	c.accelerators = slices.Clone(t.accelerators)
	if t.globalRank != nil {
		r := *t.globalRank
		c.globalRank = &r
	}
	return &c
}

func (t *Trainer) String() string {
	return fmt.Sprintf("id:%s rank_in_pod:%d gpus:%v endpoint:%s global_rank:%s",
		t.id, t.rankInPod, t.accelerators, t.endpoint, optionalInt(t.globalRank))
}

func optionalInt(v *int) string {
	if v == nil {
		return "<unset>"
	}
	return fmt.Sprint(*v)
}

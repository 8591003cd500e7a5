package cluster

import (
	"github.com/pkg/errors"
)

// PodStatus is the lifecycle status of a pod. It is set by the supervisor that runs the pod's
// trainers, never by the topology model, and it takes no part in equality.
type PodStatus string

const (
	// PodInitial means the pod has been constructed but nothing runs on it yet.
	PodInitial PodStatus = "INITIAL"
	// PodRunning means the pod's trainers are running.
	PodRunning PodStatus = "RUNNING"
	// PodPending means the pod waits on the rest of the cluster, e.g. for a rank barrier.
	PodPending PodStatus = "PENDING"
	// PodComplete means every trainer on the pod exited successfully.
	PodComplete PodStatus = "COMPLETE"
	// PodError means at least one trainer on the pod failed.
	PodError PodStatus = "ERROR"
)

var podStatuses = map[PodStatus]bool{
	PodInitial:  true,
	PodRunning:  true,
	PodPending:  true,
	PodComplete: true,
	PodError:    true,
}

func (s PodStatus) String() string {
	return string(s)
}

// MarshalText implements the encoding.TextMarshaler interface.
func (s PodStatus) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (s *PodStatus) UnmarshalText(text []byte) error {
	parsed := PodStatus(text)
	if !podStatuses[parsed] {
		return errors.Errorf("invalid pod status: %s", text)
	}
	*s = parsed
	return nil
}

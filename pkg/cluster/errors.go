package cluster

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrEmptyCluster is returned by operations that need at least one pod.
var ErrEmptyCluster = errors.New("cluster has no pods")

// InvalidPartitionError is returned when accelerators cannot be split across trainers so that
// every trainer owns at least one.
type InvalidPartitionError struct {
	Accelerators int
	Trainers     int
	Reason       string
}

func (e InvalidPartitionError) Error() string {
	return fmt.Sprintf("cannot partition %d accelerators across %d trainers: %s",
		e.Accelerators, e.Trainers, e.Reason)
}

// InvalidPortsError is returned when a job environment supplies fewer candidate ports than it
// asks for trainers.
type InvalidPortsError struct {
	Ports    int
	Trainers int
}

func (e InvalidPortsError) Error() string {
	return fmt.Sprintf("%d trainer ports supplied for %d trainers", e.Ports, e.Trainers)
}

// RankMismatchError is returned when the index keys of a decoded mapping are not the contiguous
// sequence 0..N-1.
type RankMismatchError struct {
	// Entity is "pod" for the cluster-level mapping and "trainer" for a pod's trainers.
	Entity   string
	Expected int
	Actual   int
}

func (e RankMismatchError) Error() string {
	return fmt.Sprintf("%s rank mismatch: expected index %d, found %d",
		e.Entity, e.Expected, e.Actual)
}

// MalformedSnapshotError is returned when decoding finds a required field missing, a field of
// the wrong shape, or a decoded value breaking a topology invariant.
type MalformedSnapshotError struct {
	Entity string
	Field  string
	Err    error
}

func (e MalformedSnapshotError) Error() string {
	return fmt.Sprintf("malformed %s snapshot: field %q: %v", e.Entity, e.Field, e.Err)
}

// Unwrap returns the underlying decode or validation error.
func (e MalformedSnapshotError) Unwrap() error {
	return e.Err
}

// IncompletePodError is returned when an operation needs a pod's address or port and it is
// unset.
type IncompletePodError struct {
	ID      PodID
	Missing string
}

func (e IncompletePodError) Error() string {
	return fmt.Sprintf("pod %s is not a valid endpoint: %s is unset", e.ID, e.Missing)
}

// DuplicateEndpointError is returned when two trainers in a cluster share an endpoint.
type DuplicateEndpointError struct {
	Endpoint string
	Pods     [2]PodID
}

func (e DuplicateEndpointError) Error() string {
	if e.Pods[0] == e.Pods[1] {
		return fmt.Sprintf("trainer endpoint %s used twice in pod %s", e.Endpoint, e.Pods[0])
	}
	return fmt.Sprintf("trainer endpoint %s used by pods %s and %s",
		e.Endpoint, e.Pods[0], e.Pods[1])
}

func malformed(entity, field string, format string, args ...interface{}) MalformedSnapshotError {
	return MalformedSnapshotError{Entity: entity, Field: field, Err: errors.Errorf(format, args...)}
}

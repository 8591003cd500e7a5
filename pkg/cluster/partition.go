package cluster

import (
	"golang.org/x/exp/slices"

	"github.com/wangxicoding/edl/pkg/device"
)

// Partition splits accelerators into one contiguous, non-empty slice per trainer, in order.
// Every slice holds len(accelerators)/trainers ids and the last one also absorbs the remainder,
// so the concatenation of the result is exactly the input.
func Partition(accelerators []device.ID, trainers int) ([][]device.ID, error) {
	if trainers <= 0 {
		return nil, InvalidPartitionError{
			Accelerators: len(accelerators),
			Trainers:     trainers,
			Reason:       "trainer count must be positive",
		}
	}
	width := len(accelerators) / trainers
	if width == 0 {
		return nil, InvalidPartitionError{
			Accelerators: len(accelerators),
			Trainers:     trainers,
			Reason:       "every trainer needs at least one accelerator",
		}
	}

	parts := make([][]device.ID, trainers)
	for i := range parts {
		b, e := i*width, (i+1)*width
		if i == trainers-1 {
			e = len(accelerators)
		}
		parts[i] = slices.Clone(accelerators[b:e])
	}
	return parts, nil
}

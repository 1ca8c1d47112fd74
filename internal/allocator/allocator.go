// -----------------------------------------------------------------------
// Frame Allocator - Partitions a job's frames among its devices
// -----------------------------------------------------------------------

package allocator

import (
	"errors"
	"fmt"

	"github.com/ternarybob/fornax/internal/models"
)

// ErrInvalidAllocation is returned when frames or devices are empty.
// Descriptor validation rejects these before allocation, so hitting this
// from the coordinator is an invariant violation, fatal for that job only.
var ErrInvalidAllocation = errors.New("invalid allocation request")

// Assignment binds one device to its disjoint share of the job's frames.
// Devices left without frames (more devices than frames) get an empty
// frame set and must not be launched.
type Assignment struct {
	Device models.Device
	Frames models.FrameSet
}

// Allocation is the ordered device -> frame-subset mapping for one job.
// Order follows the descriptor's device list.
type Allocation []Assignment

// Allocate partitions frames among devices according to the strategy.
// Pure and deterministic: identical inputs always yield identical output.
//
// Split: contiguous blocks in device order; when the frame count does not
// divide evenly, the earliest devices receive one extra frame each.
// Replicate: every device receives the full frame set.
func Allocate(frames models.FrameSet, devices []models.Device, strategy models.AllocationStrategy) (Allocation, error) {
	if frames.IsEmpty() {
		return nil, fmt.Errorf("%w: frame set is empty", ErrInvalidAllocation)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: device list is empty", ErrInvalidAllocation)
	}

	switch strategy {
	case models.StrategySplit:
		return splitAllocate(frames, devices), nil
	case models.StrategyReplicate:
		allocation := make(Allocation, 0, len(devices))
		for _, d := range devices {
			allocation = append(allocation, Assignment{Device: d, Frames: frames})
		}
		return allocation, nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidAllocation, strategy)
	}
}

func splitAllocate(frames models.FrameSet, devices []models.Device) Allocation {
	all := frames.Frames()
	total := len(all)

	active := len(devices)
	if total < active {
		active = total
	}

	base := total / active
	remainder := total % active

	allocation := make(Allocation, 0, len(devices))
	cursor := 0
	for i, device := range devices {
		if i >= active {
			allocation = append(allocation, Assignment{Device: device})
			continue
		}

		size := base
		if i < remainder {
			size++
		}
		block := all[cursor : cursor+size]
		cursor += size

		allocation = append(allocation, Assignment{Device: device, Frames: subset(frames, block)})
	}

	return allocation
}

// subset builds a FrameSet for a block of the source set, preserving the
// source's variant: blocks of a contiguous range stay ranges, blocks of an
// explicit list stay lists. The launcher formats them differently.
func subset(source models.FrameSet, block []int) models.FrameSet {
	if source.IsList() {
		set, _ := models.NewFrameList(block)
		return set
	}
	set, _ := models.NewFrameRange(block[0], block[len(block)-1])
	return set
}

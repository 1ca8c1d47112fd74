package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/fornax/internal/models"
)

func gpus(ids ...string) []models.Device {
	devices := make([]models.Device, 0, len(ids))
	for _, id := range ids {
		devices = append(devices, models.Device{ID: id, Backend: models.BackendCUDA})
	}
	return devices
}

func mustRange(t *testing.T, start, end int) models.FrameSet {
	t.Helper()
	set, err := models.NewFrameRange(start, end)
	require.NoError(t, err)
	return set
}

func TestSplitPartitionsFramesExactly(t *testing.T) {
	tests := []struct {
		name    string
		frames  models.FrameSet
		devices []models.Device
	}{
		{"even split", mustRange(t, 1, 10), gpus("GPU0", "GPU1")},
		{"uneven split", mustRange(t, 1, 10), gpus("GPU0", "GPU1", "GPU2")},
		{"one device", mustRange(t, 1, 250), gpus("GPU0")},
		{"more devices than frames", mustRange(t, 5, 7), gpus("GPU0", "GPU1", "GPU2", "GPU3")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allocation, err := Allocate(tt.frames, tt.devices, models.StrategySplit)
			require.NoError(t, err)
			require.Len(t, allocation, len(tt.devices))

			// Union equals the source exactly once, order preserved
			var union []int
			for _, a := range allocation {
				union = append(union, a.Frames.Frames()...)
			}
			assert.Equal(t, tt.frames.Frames(), union)

			// No device gets more than ceil(|F|/|D|) frames
			ceil := (tt.frames.Count() + len(tt.devices) - 1) / len(tt.devices)
			for _, a := range allocation {
				assert.LessOrEqual(t, a.Frames.Count(), ceil)
			}
		})
	}
}

func TestSplitRemainderGoesToEarliestDevices(t *testing.T) {
	allocation, err := Allocate(mustRange(t, 1, 10), gpus("GPU0", "GPU1", "GPU2"), models.StrategySplit)
	require.NoError(t, err)

	assert.Equal(t, "1-4", allocation[0].Frames.String())
	assert.Equal(t, "5-7", allocation[1].Frames.String())
	assert.Equal(t, "8-10", allocation[2].Frames.String())
}

func TestSplitExampleTwoDevices(t *testing.T) {
	allocation, err := Allocate(mustRange(t, 1, 10), gpus("GPU0", "GPU1"), models.StrategySplit)
	require.NoError(t, err)

	assert.Equal(t, "GPU0", allocation[0].Device.ID)
	assert.Equal(t, "1-5", allocation[0].Frames.String())
	assert.Equal(t, "GPU1", allocation[1].Device.ID)
	assert.Equal(t, "6-10", allocation[1].Frames.String())
}

func TestSplitSurplusDevicesGetEmptySubset(t *testing.T) {
	frames, err := models.SingleFrame(42)
	require.NoError(t, err)

	allocation, err := Allocate(frames, gpus("GPU0", "GPU1"), models.StrategySplit)
	require.NoError(t, err)

	assert.Equal(t, 1, allocation[0].Frames.Count())
	assert.True(t, allocation[1].Frames.IsEmpty())
}

func TestSplitPreservesListVariant(t *testing.T) {
	frames, err := models.NewFrameList([]int{1, 3, 9, 12, 20})
	require.NoError(t, err)

	allocation, err := Allocate(frames, gpus("GPU0", "GPU1"), models.StrategySplit)
	require.NoError(t, err)

	assert.True(t, allocation[0].Frames.IsList())
	assert.Equal(t, []int{1, 3, 9}, allocation[0].Frames.Frames())
	assert.True(t, allocation[1].Frames.IsList())
	assert.Equal(t, []int{12, 20}, allocation[1].Frames.Frames())
}

func TestReplicateGivesEveryDeviceFullSet(t *testing.T) {
	frames := mustRange(t, 1, 100)
	devices := gpus("CUDA_0", "OPTIX_0", "CPU")

	allocation, err := Allocate(frames, devices, models.StrategyReplicate)
	require.NoError(t, err)
	require.Len(t, allocation, 3)

	for _, a := range allocation {
		assert.Equal(t, frames.Frames(), a.Frames.Frames())
	}
}

func TestAllocateIsDeterministic(t *testing.T) {
	frames, err := models.NewFrameList([]int{7, 2, 9, 14, 3, 1})
	require.NoError(t, err)
	devices := gpus("GPU0", "GPU1", "GPU2")

	first, err := Allocate(frames, devices, models.StrategySplit)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := Allocate(frames, devices, models.StrategySplit)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAllocateRejectsInvalidRequests(t *testing.T) {
	frames := mustRange(t, 1, 10)

	_, err := Allocate(models.FrameSet{}, gpus("GPU0"), models.StrategySplit)
	assert.ErrorIs(t, err, ErrInvalidAllocation)

	_, err = Allocate(frames, nil, models.StrategySplit)
	assert.ErrorIs(t, err, ErrInvalidAllocation)

	_, err = Allocate(frames, gpus("GPU0"), models.AllocationStrategy("round_robin"))
	assert.ErrorIs(t, err, ErrInvalidAllocation)
}

package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/fornax/internal/models"
)

func TestFrameArgFormats(t *testing.T) {
	tests := []struct {
		name     string
		build    func() (models.FrameSet, error)
		expected string
	}{
		{"contiguous range", func() (models.FrameSet, error) { return models.NewFrameRange(1, 250) }, "1-250"},
		{"single frame", func() (models.FrameSet, error) { return models.SingleFrame(42) }, "42"},
		{"explicit list", func() (models.FrameSet, error) { return models.NewFrameList([]int{1, 3, 7}) }, "1,3,7"},
		{"list stays enumerated even when contiguous", func() (models.FrameSet, error) { return models.NewFrameList([]int{4, 5, 6}) }, "4,5,6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames, err := tt.build()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, frameArg(frames))
		})
	}
}

func TestBuildArgsInvocationShape(t *testing.T) {
	job := &models.RenderJob{
		ID:             "job_x",
		Mode:           models.ModeAnimation,
		SceneFile:      "/scenes/shot04.blend",
		OutputTemplate: "/out/shot04_#####",
		ScriptPath:     "/tmp/overrides.py",
		ExtraArgs:      []string{"--cycles-print-stats"},
	}
	frames, err := models.NewFrameRange(1, 5)
	require.NoError(t, err)

	args := buildArgs(job, models.Device{ID: "CUDA_0", Backend: models.BackendCUDA}, frames, []string{"-noaudio"})

	assert.Equal(t, []string{
		"/scenes/shot04.blend",
		"--background",
		"--device", "CUDA_0",
		"--compute-backend", "CUDA",
		"--frames", "1-5",
		"--python", "/tmp/overrides.py",
		"--render-output", "/out/shot04_#####",
		"-noaudio",
		"--cycles-print-stats",
	}, args)
}

func TestBuildArgsPerBackendDeviceSelection(t *testing.T) {
	job := &models.RenderJob{SceneFile: "s.blend"}
	frames, err := models.SingleFrame(1)
	require.NoError(t, err)

	cpu := buildArgs(job, models.Device{ID: "CPU", Backend: models.BackendCPU}, frames, nil)
	assert.NotContains(t, cpu, "--device")
	assert.Contains(t, cpu, "CPU")

	optix := buildArgs(job, models.Device{ID: "OPTIX_1", Backend: models.BackendOptiX}, frames, nil)
	assert.Contains(t, optix, "OPTIX")
	assert.Contains(t, optix, "OPTIX_1")
}

package render

import (
	"strconv"
	"strings"

	"github.com/ternarybob/fornax/internal/models"
)

// deviceArgs builds the device-selection arguments for one backend.
// Adding a backend means adding a table entry, nothing else.
type deviceArgs func(device models.Device) []string

var backendArgTable = map[models.DeviceBackend]deviceArgs{
	models.BackendCUDA: func(d models.Device) []string {
		return []string{"--device", d.ID, "--compute-backend", "CUDA"}
	},
	models.BackendOptiX: func(d models.Device) []string {
		return []string{"--device", d.ID, "--compute-backend", "OPTIX"}
	},
	models.BackendHIP: func(d models.Device) []string {
		return []string{"--device", d.ID, "--compute-backend", "HIP"}
	},
	models.BackendMetal: func(d models.Device) []string {
		return []string{"--device", d.ID, "--compute-backend", "METAL"}
	},
	models.BackendOneAPI: func(d models.Device) []string {
		return []string{"--device", d.ID, "--compute-backend", "ONEAPI"}
	},
	models.BackendCPU: func(d models.Device) []string {
		// CPU rendering has no device index to select
		return []string{"--compute-backend", "CPU"}
	},
}

// frameArg formats a frame subset in the external tool's syntax at the
// launcher boundary: ranges as "start-end" (or a bare frame number),
// explicit lists enumerated "1,3,7". The syntax must match the subset's
// variant exactly; the allocator preserves the variant for this reason.
func frameArg(frames models.FrameSet) string {
	if frames.IsList() {
		parts := make([]string, 0, len(frames.List))
		for _, f := range frames.List {
			parts = append(parts, strconv.Itoa(f))
		}
		return strings.Join(parts, ",")
	}
	if frames.Start == frames.End {
		return strconv.Itoa(frames.Start)
	}
	return strconv.Itoa(frames.Start) + "-" + strconv.Itoa(frames.End)
}

// buildArgs assembles the full invocation for one worker:
//
//	<scene> --background <device-selection> --frames <spec> [--python <script>] [--render-output <template>] [extra...]
func buildArgs(job *models.RenderJob, device models.Device, frames models.FrameSet, extraArgs []string) []string {
	args := []string{job.SceneFile, "--background"}
	args = append(args, backendArgTable[device.Backend](device)...)
	args = append(args, "--frames", frameArg(frames))

	if job.ScriptPath != "" {
		args = append(args, "--python", job.ScriptPath)
	}
	if job.OutputTemplate != "" {
		args = append(args, "--render-output", job.OutputTemplate)
	}

	args = append(args, extraArgs...)
	args = append(args, job.ExtraArgs...)

	return args
}

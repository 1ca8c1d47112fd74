package render

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/fornax/internal/common"
	"github.com/ternarybob/fornax/internal/models"
)

// writeScript creates an executable shell script standing in for the
// render engine binary. The scripts ignore their arguments; argument
// construction is covered separately in command_test.go.
func writeScript(t *testing.T, content string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("worker process tests use shell scripts")
	}

	path := filepath.Join(t.TempDir(), "fake-engine.sh")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+content), 0755)
	require.NoError(t, err)
	return path
}

func testJob(t *testing.T, executable string) (*models.RenderJob, *Launcher, chan models.WorkerTransition) {
	t.Helper()

	job := &models.RenderJob{
		ID:        "job_test",
		Mode:      models.ModeAnimation,
		SceneFile: "scene.blend",
		Devices:   []models.Device{{ID: "GPU0", Backend: models.BackendCUDA}},
		Strategy:  models.StrategySplit,
	}

	launcher := NewLauncher(&common.RenderConfig{Executable: executable}, common.GetLogger())
	events := make(chan models.WorkerTransition, 4)
	return job, launcher, events
}

func awaitTransition(t *testing.T, events <-chan models.WorkerTransition) models.WorkerTransition {
	t.Helper()
	select {
	case tr := <-events:
		return tr
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for worker transition")
		return models.WorkerTransition{}
	}
}

func TestLaunchSuccessfulWorker(t *testing.T) {
	script := writeScript(t, `echo "Fra:1 Mem:100M rendering"
echo "Saved: /tmp/out/0001.png"
echo "Fra:2 Mem:101M rendering"
echo "Saved: /tmp/out/0002.png"
exit 0
`)
	job, launcher, events := testJob(t, script)

	frames, err := models.NewFrameRange(1, 2)
	require.NoError(t, err)

	worker, err := launcher.Launch(job.ID, job.Devices[0], frames, job, events)
	require.NoError(t, err)

	tr := awaitTransition(t, events)
	assert.Equal(t, models.WorkerSucceeded, tr.Status)
	assert.Equal(t, "GPU0", tr.DeviceID)
	assert.Equal(t, 0, tr.ExitCode)

	state := worker.Snapshot(10)
	assert.Equal(t, models.WorkerSucceeded, state.Status)
	assert.Equal(t, 2, state.FramesDone)
	assert.Contains(t, state.LogTail, "Saved: /tmp/out/0002.png")
	assert.NotNil(t, state.StartedAt)
	assert.NotNil(t, state.FinishedAt)
}

func TestLaunchFailingWorkerReportsExitCode(t *testing.T) {
	script := writeScript(t, `echo "Error: CUDA out of memory"
exit 3
`)
	job, launcher, events := testJob(t, script)

	frames, err := models.SingleFrame(1)
	require.NoError(t, err)

	worker, err := launcher.Launch(job.ID, job.Devices[0], frames, job, events)
	require.NoError(t, err)

	tr := awaitTransition(t, events)
	assert.Equal(t, models.WorkerFailed, tr.Status)
	assert.Equal(t, 3, tr.ExitCode)

	state := worker.Snapshot(5)
	assert.Equal(t, models.WorkerFailed, state.Status)
	assert.Equal(t, 3, state.ExitCode)
	assert.Contains(t, state.LogTail, "Error: CUDA out of memory")
}

func TestCancelTerminatesRunningWorker(t *testing.T) {
	script := writeScript(t, `echo "Fra:1 started"
sleep 30
`)
	job, launcher, events := testJob(t, script)

	frames, err := models.SingleFrame(1)
	require.NoError(t, err)

	worker, err := launcher.Launch(job.ID, job.Devices[0], frames, job, events)
	require.NoError(t, err)

	// Give the script a moment to start sleeping
	time.Sleep(200 * time.Millisecond)
	worker.Cancel(5 * time.Second)

	tr := awaitTransition(t, events)
	assert.Equal(t, models.WorkerCancelled, tr.Status)
	assert.Equal(t, models.WorkerCancelled, worker.Snapshot(0).Status)
}

func TestCancelIsIdempotent(t *testing.T) {
	script := writeScript(t, `sleep 30
`)
	job, launcher, events := testJob(t, script)

	frames, err := models.SingleFrame(1)
	require.NoError(t, err)

	worker, err := launcher.Launch(job.ID, job.Devices[0], frames, job, events)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	worker.Cancel(5 * time.Second)
	worker.Cancel(5 * time.Second)

	tr := awaitTransition(t, events)
	assert.Equal(t, models.WorkerCancelled, tr.Status)

	// Exactly one transition: nothing else arrives
	select {
	case extra := <-events:
		t.Fatalf("unexpected second transition: %+v", extra)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWorkerSurvivesOverlongOutputLine(t *testing.T) {
	// One line well past the scanner's buffer cap, then a normal exit.
	// The monitor must keep the pipe draining so exit detection still fires.
	script := writeScript(t, `echo "Fra:1 started"
head -c 2000000 /dev/zero | tr '\0' 'x'
echo ""
echo "Saved: /tmp/out/0001.png"
exit 0
`)
	job, launcher, events := testJob(t, script)

	frames, err := models.SingleFrame(1)
	require.NoError(t, err)

	worker, err := launcher.Launch(job.ID, job.Devices[0], frames, job, events)
	require.NoError(t, err)

	tr := awaitTransition(t, events)
	assert.Equal(t, models.WorkerSucceeded, tr.Status)
	assert.Equal(t, 0, tr.ExitCode)
	assert.Equal(t, models.WorkerSucceeded, worker.Snapshot(0).Status)
}

func TestCancelTerminatesInterruptIgnoringProcess(t *testing.T) {
	// SIGINT is ignored; only SIGTERM ends the loop. A worker detached
	// from the terminal behaves like this.
	script := writeScript(t, `trap '' INT
while :; do sleep 1; done
`)
	job, launcher, events := testJob(t, script)

	frames, err := models.SingleFrame(1)
	require.NoError(t, err)

	worker, err := launcher.Launch(job.ID, job.Devices[0], frames, job, events)
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	worker.Cancel(8 * time.Second)

	tr := awaitTransition(t, events)
	assert.Equal(t, models.WorkerCancelled, tr.Status)
}

func TestLaunchFailureForMissingExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("worker process tests use shell scripts")
	}
	job, launcher, events := testJob(t, "/nonexistent/render-engine")

	frames, err := models.SingleFrame(1)
	require.NoError(t, err)

	_, err = launcher.Launch(job.ID, job.Devices[0], frames, job, events)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "launch failure")
}

func TestLaunchRejectsEmptyFrameSet(t *testing.T) {
	job, launcher, events := testJob(t, writeScript(t, "exit 0\n"))

	_, err := launcher.Launch(job.ID, job.Devices[0], models.FrameSet{}, job, events)
	require.Error(t, err)
}

func TestWorkerLogFileWritten(t *testing.T) {
	script := writeScript(t, `echo "Saved: frame one"
exit 0
`)
	logDir := t.TempDir()

	job := &models.RenderJob{
		ID:        "job_logtest",
		Mode:      models.ModeImage,
		SceneFile: "scene.blend",
		Devices:   []models.Device{{ID: "GPU0", Backend: models.BackendCUDA}},
		Strategy:  models.StrategySplit,
	}
	launcher := NewLauncher(&common.RenderConfig{Executable: script, LogDir: logDir}, common.GetLogger())
	events := make(chan models.WorkerTransition, 1)

	frames, err := models.SingleFrame(1)
	require.NoError(t, err)

	_, err = launcher.Launch(job.ID, job.Devices[0], frames, job, events)
	require.NoError(t, err)
	awaitTransition(t, events)

	data, err := os.ReadFile(filepath.Join(logDir, "job_logtest_GPU0.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Saved: frame one")
}

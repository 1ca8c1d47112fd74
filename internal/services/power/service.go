// -----------------------------------------------------------------------
// Power Service - Keep-awake during renders, sleep/shutdown after
// -----------------------------------------------------------------------

package power

import (
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fornax/internal/common"
	"github.com/ternarybob/fornax/internal/interfaces"
	"github.com/ternarybob/fornax/internal/models"
)

// Service manages system power behaviour around render jobs: an inhibitor
// process keeps the machine awake while a job runs, and a terminal job can
// request sleep or shutdown. All of it is best-effort; failures are logged
// and never surface as job errors.
type Service struct {
	config *common.PowerConfig
	logger arbor.ILogger

	mu         sync.Mutex
	inhibitors map[string]*exec.Cmd // jobID -> running inhibitor process
}

// NewService creates a new power service
func NewService(config *common.PowerConfig, logger arbor.ILogger) interfaces.PowerManager {
	return &Service{
		config:     config,
		logger:     logger,
		inhibitors: make(map[string]*exec.Cmd),
	}
}

// Inhibit starts a sleep inhibitor for the duration of a job
func (s *Service) Inhibit(jobID string) error {
	if !s.config.PreventSleep {
		return nil
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("systemd-inhibit", "--what=sleep:idle", "--why=Fornax render in progress", "sleep", "infinity")
	case "darwin":
		cmd = exec.Command("caffeinate", "-i")
	default:
		// Windows uses SetThreadExecutionState, which has no external
		// command equivalent worth shelling to; skip quietly
		return nil
	}

	if err := cmd.Start(); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to start sleep inhibitor")
		return err
	}

	s.mu.Lock()
	s.inhibitors[jobID] = cmd
	s.mu.Unlock()

	s.logger.Debug().Str("job_id", jobID).Msg("Sleep inhibitor started")
	return nil
}

// Release stops the job's sleep inhibitor, if any. Idempotent.
func (s *Service) Release(jobID string) {
	s.mu.Lock()
	cmd, ok := s.inhibitors[jobID]
	if ok {
		delete(s.inhibitors, jobID)
	}
	s.mu.Unlock()

	if !ok || cmd.Process == nil {
		return
	}

	if err := cmd.Process.Kill(); err != nil {
		s.logger.Debug().Err(err).Str("job_id", jobID).Msg("Sleep inhibitor already gone")
	}
	go func() { _ = cmd.Wait() }()

	s.logger.Debug().Str("job_id", jobID).Msg("Sleep inhibitor released")
}

// Request performs the configured post-job power action
func (s *Service) Request(action models.PowerAction) error {
	if action == "" || action == models.PowerNone {
		return nil
	}
	if !s.config.Enabled {
		s.logger.Info().Str("action", string(action)).Msg("Power actions disabled by configuration, ignoring request")
		return nil
	}

	cmd, err := powerCommand(action)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Power action unsupported")
		return err
	}

	s.logger.Info().Str("action", string(action)).Msg("Executing power action")

	if err := cmd.Run(); err != nil {
		s.logger.Error().Err(err).Str("action", string(action)).Msg("Power action failed")
		return err
	}
	return nil
}

func powerCommand(action models.PowerAction) (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "linux":
		if action == models.PowerSleep {
			return exec.Command("systemctl", "suspend"), nil
		}
		return exec.Command("systemctl", "poweroff"), nil
	case "darwin":
		if action == models.PowerSleep {
			return exec.Command("pmset", "sleepnow"), nil
		}
		return exec.Command("shutdown", "-h", "now"), nil
	case "windows":
		if action == models.PowerSleep {
			return exec.Command("rundll32.exe", "powrprof.dll,SetSuspendState", "0,1,0"), nil
		}
		return exec.Command("shutdown", "/s", "/t", "60"), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

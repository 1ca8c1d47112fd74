// -----------------------------------------------------------------------
// Notify Service - Desktop notification on terminal job state
// -----------------------------------------------------------------------

package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fornax/internal/common"
	"github.com/ternarybob/fornax/internal/interfaces"
	"github.com/ternarybob/fornax/internal/models"
)

// Service sends desktop notifications when a job reaches a terminal
// state. Delivery is best-effort: a failure is logged and swallowed, it
// never becomes a job failure.
type Service struct {
	config *common.NotifyConfig
	logger arbor.ILogger
}

// NewService creates a new notification service
func NewService(config *common.NotifyConfig, logger arbor.ILogger) interfaces.Notifier {
	return &Service{
		config: config,
		logger: logger,
	}
}

// Notify sends one desktop notification for a terminal job state
func (s *Service) Notify(ctx context.Context, jobID string, status models.JobStatus, summary string) error {
	if !s.config.Enabled {
		return nil
	}

	title := fmt.Sprintf("Render %s", titleFor(status))
	body := summary
	if body == "" {
		body = jobID
	}

	cmd, err := s.buildCommand(ctx, title, body)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Desktop notifications unsupported on this platform")
		return err
	}

	if err := cmd.Run(); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to deliver desktop notification")
		return err
	}

	s.logger.Debug().
		Str("job_id", jobID).
		Str("status", string(status)).
		Msg("Desktop notification sent")

	return nil
}

func (s *Service) buildCommand(ctx context.Context, title, body string) (*exec.Cmd, error) {
	if s.config.Command != "" {
		return exec.CommandContext(ctx, s.config.Command, title, body), nil
	}

	switch runtime.GOOS {
	case "linux":
		return exec.CommandContext(ctx, "notify-send", title, body), nil
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		return exec.CommandContext(ctx, "osascript", "-e", script), nil
	case "windows":
		script := fmt.Sprintf(
			"[System.Reflection.Assembly]::LoadWithPartialName('System.Windows.Forms') | Out-Null;"+
				"[System.Windows.Forms.MessageBox]::Show(%s, %s) | Out-Null",
			psQuote(body), psQuote(title))
		return exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", script), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func titleFor(status models.JobStatus) string {
	switch status {
	case models.JobCompleted:
		return "Complete"
	case models.JobPartiallyFailed:
		return "Partially Failed"
	case models.JobFailed:
		return "Failed"
	case models.JobCancelled:
		return "Cancelled"
	default:
		return string(status)
	}
}

package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/nudge-engine/pkg/logging"
)

// DefaultAlertCooldown is the minimum gap between repeated alert emails.
const DefaultAlertCooldown = 15 * time.Minute

// AlertService emails operators about fatal pipeline errors. Repeated
// failures inside the cooldown window are logged but not re-mailed, so a
// flapping dependency cannot flood the inbox.
type AlertService struct {
	sender   EmailSender
	to       string
	cooldown time.Duration
	logger   *logging.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastSent time.Time
}

// NewAlertService creates an alert service. A nil sender or empty recipient
// disables email; failures are still logged.
func NewAlertService(sender EmailSender, to string, cooldown time.Duration, logger *logging.Logger) *AlertService {
	if cooldown <= 0 {
		cooldown = DefaultAlertCooldown
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AlertService{
		sender:   sender,
		to:       to,
		cooldown: cooldown,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AlertPipelineFailure reports a fatal pipeline error to operators. It never
// returns an error: alerting must not make a failing pipeline worse.
func (s *AlertService) AlertPipelineFailure(ctx context.Context, patientID string, runErr error) {
	s.logger.Error("pipeline failure reported to operators", "patient_id", patientID, "error", runErr)

	if s.sender == nil || s.to == "" {
		return
	}

	s.mu.Lock()
	now := s.now()
	if now.Sub(s.lastSent) < s.cooldown {
		s.mu.Unlock()
		return
	}
	s.lastSent = now
	s.mu.Unlock()

	msg := EmailMessage{
		To:      s.to,
		Subject: "Nudge pipeline failure",
		Body: fmt.Sprintf(
			"A nudge pipeline run failed.\n\nPatient: %s\nTime: %s\nError: %v\n\nFurther failures within %s are suppressed from email.",
			patientID, now.Format(time.RFC3339), runErr, s.cooldown,
		),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.logger.Error("failed to send pipeline alert email", "error", err)
	}
}

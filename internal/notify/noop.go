package notify

import (
	"context"
	"log/slog"
)

// NoOpNotifier implements Notifier by logging discarded alerts. It is used
// when Discord (or another notification backend) is not configured.
type NoOpNotifier struct {
	log *slog.Logger
}

// NewNoOpNotifier creates a notifier that discards alerts with a log message.
func NewNoOpNotifier(log *slog.Logger) *NoOpNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &NoOpNotifier{log: log}
}

// SendAccountAlert logs and discards an alert.
func (n *NoOpNotifier) SendAccountAlert(_ context.Context, alert AccountAlert) error {
	n.log.Warn("account alert (no notification backend configured)",
		"kind", string(alert.Kind),
		"account_id", alert.AccountID,
		"error_code", alert.ErrorCode,
		"message", alert.Message,
	)
	return nil
}

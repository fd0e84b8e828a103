package email

import (
	"context"
	"log/slog"
)

// LogSender implements EmailSender for development and tests: emails are
// written to the log instead of being delivered.
type LogSender struct {
	log *slog.Logger
}

// NewLogSender creates a log-only email sender.
func NewLogSender(log *slog.Logger) EmailSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "email suppressed (dev sender)",
		slog.String("send_to", params.SendTo),
		slog.String("subject", params.Subject),
		slog.String("tag", params.Tag),
	)
	return nil
}

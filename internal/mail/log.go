package mail

import (
	"context"
	"log/slog"
	"regexp"
)

// tokenParam matches token query values inside rendered links
var tokenParam = regexp.MustCompile(`(token=)[^&"'\s<>]+`)

// LogSender writes messages to the log instead of delivering them.
// Used when no SMTP host is configured. Token values in the body are masked.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message
func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.InfoContext(ctx, "Email not delivered, SMTP disabled",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", maskTokens(body)),
	)
	return nil
}

func maskTokens(body string) string {
	return tokenParam.ReplaceAllString(body, "${1}***")
}

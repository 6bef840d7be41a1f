package alerting

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes alerts to the application log. It stands in when
// no Telegram sink is configured so the pipeline behaves the same way.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs the log-backed notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Send logs the alert text.
func (n *LogNotifier) Send(_ context.Context, text string) error {
	n.logger.Info().Str("text", text).Msg("alert")
	return nil
}

// SendError logs the error text.
func (n *LogNotifier) SendError(_ context.Context, text string) error {
	n.logger.Warn().Str("text", text).Msg("alert error")
	return nil
}

var _ Notifier = (*LogNotifier)(nil)

// Package notify delivers participant notifications out of band.
package notify

import (
	"context"
	"log/slog"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.Notifier = (*LogNotifier)(nil)
	_ driven.Notifier = (*WebhookNotifier)(nil)
)

// LogNotifier writes notifications to the log. It is the default when no
// webhook is configured and never fails.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs n
func (l *LogNotifier) Notify(ctx context.Context, n *domain.Notification) error {
	l.logger.InfoContext(ctx, "notification",
		"id", n.ID,
		"action", n.Action,
		"document_id", n.DocumentID,
		"document_title", n.DocumentTitle,
		"email", n.Email,
		"attempt", n.Attempts+1,
	)
	return nil
}

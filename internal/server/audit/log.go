package audit

import (
	"context"

	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
)

// LogPublisher writes events to the structured log. It is used when no
// broker is configured.
type LogPublisher struct {
	log logging.Logger
}

func NewLogPublisher(log logging.Logger) *LogPublisher {
	return &LogPublisher{log: log.With("module", "audit")}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) {
	p.log.Info(ctx, string(e.Type),
		"event_id", e.ID,
		"user_id", e.UserID,
		"username", e.Username,
		"source_ip", e.SourceIP,
		"token_id", e.TokenID,
		"reason", e.Reason,
		"count", e.Count,
		"occurred_at", e.OccurredAt,
	)
}

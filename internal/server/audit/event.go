// Package audit publishes session lifecycle events to a best-effort sink.
// Events carry enough to reconstruct what happened but never a plaintext
// password or refresh token.
package audit

import (
	"context"
	"time"
)

type EventType string

const (
	LoginAttempted    EventType = "auth.login.attempted"
	LoginSucceeded    EventType = "auth.login.succeeded"
	LoginFailed       EventType = "auth.login.failed"
	LoginBlocked      EventType = "auth.login.blocked"
	RefreshAttempted  EventType = "auth.refresh.attempted"
	RefreshSucceeded  EventType = "auth.refresh.succeeded"
	RefreshFailed     EventType = "auth.refresh.failed"
	TokenRevoked      EventType = "auth.token.revoked"
	UserTokensRevoked EventType = "auth.user.tokens_revoked"
)

type Event struct {
	ID         string    `json:"event_id"`
	Type       EventType `json:"event_type"`
	UserID     string    `json:"user_id,omitempty"`
	Username   string    `json:"username,omitempty"`
	SourceIP   string    `json:"source_ip,omitempty"`
	TokenID    string    `json:"token_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Count      int64     `json:"count,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher is fire-and-forget: Publish never blocks the caller on the sink
// and never fails the operation being audited.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

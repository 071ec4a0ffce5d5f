package chat

import (
	"context"

	"go.uber.org/zap"

	"github.com/tripmate-io/tripmate/internal/websocket"
)

// Presence announces online and offline transitions to the other members of
// a conversation. Delivery failures are logged and never returned.
type Presence struct {
	fanout websocket.Fanout
	logger *zap.Logger
}

// NewPresence creates a Presence broadcaster.
func NewPresence(fanout websocket.Fanout, logger *zap.Logger) *Presence {
	return &Presence{fanout: fanout, logger: logger.Named("presence")}
}

// Online sends user_status online to group, excluding connID.
func (p *Presence) Online(ctx context.Context, group string, user websocket.UserSummary, connID string) {
	p.announce(ctx, group, user, connID, websocket.StatusOnline)
}

// Offline sends user_status offline to group, excluding connID.
func (p *Presence) Offline(ctx context.Context, group string, user websocket.UserSummary, connID string) {
	p.announce(ctx, group, user, connID, websocket.StatusOffline)
}

func (p *Presence) announce(ctx context.Context, group string, user websocket.UserSummary, connID, status string) {
	frame := websocket.NewUserStatusFrame(user, status)
	if err := p.fanout.SendExcept(ctx, group, frame, connID); err != nil {
		p.logger.Warn("presence broadcast failed",
			zap.String("group", group),
			zap.String("user_id", user.ID.String()),
			zap.String("status", status),
			zap.Error(err),
		)
	}
}

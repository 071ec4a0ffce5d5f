package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tripmate-io/tripmate/internal/chat"
	"github.com/tripmate-io/tripmate/internal/db"
	"github.com/tripmate-io/tripmate/internal/metrics"
	"github.com/tripmate-io/tripmate/internal/notification"
	"github.com/tripmate-io/tripmate/internal/websocket"
)

// WSHandler serves the two WebSocket channels.
//
// Authentication uses a JWT passed as the `token` query parameter because
// browsers cannot set custom headers on WebSocket connections. The upgrade
// always completes; a failed handshake is reported with an application close
// code so clients can tell an expired token from a missing permission.
//
//	ws://host/ws/chat/42?token=<jwt>
//	ws://host/ws/notifications?token=<jwt>
type WSHandler struct {
	handshake *chat.Handshake
	deps      chat.Deps
	pending   *notification.PendingCounter
	logger    *zap.Logger
}

// NewWSHandler creates a new WSHandler. deps is shared by every chat session.
func NewWSHandler(handshake *chat.Handshake, deps chat.Deps, pending *notification.PendingCounter, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		handshake: handshake,
		deps:      deps,
		pending:   pending,
		logger:    logger.Named("ws_handler"),
	}
}

// ServeChat handles GET /ws/chat/{conversationID}. It blocks until the
// connection closes.
func (h *WSHandler) ServeChat(w http.ResponseWriter, r *http.Request) {
	conversationID, err := strconv.ParseInt(chi.URLParam(r, "conversationID"), 10, 64)
	if err != nil || conversationID <= 0 {
		ErrNotFound(w)
		return
	}

	client, err := websocket.Upgrade(w, r, h.logger)
	if err != nil {
		// The upgrader has already written the HTTP error response.
		h.logger.Warn("ws: upgrade failed", zap.Error(err))
		return
	}

	ctx := r.Context()
	user, err := h.handshake.Authorize(ctx, r.URL.Query().Get("token"), conversationID)
	if err != nil {
		h.reject(client, err)
		return
	}

	sess := chat.NewSession(h.deps, client, conversationID)
	if err := sess.Authorize(user); err != nil {
		h.reject(client, err)
		return
	}
	if err := sess.Activate(ctx); err != nil {
		h.reject(client, err)
		return
	}
	defer sess.Close()

	h.logger.Info("ws: chat connected",
		zap.String("conn_id", client.ID()),
		zap.String("user_id", user.ID.String()),
		zap.Int64("conversation_id", conversationID),
	)

	client.Serve(ctx, sess.Handle)

	h.logger.Info("ws: chat disconnected",
		zap.String("conn_id", client.ID()),
		zap.String("user_id", user.ID.String()),
	)
}

// ServeNotifications handles GET /ws/notifications. The connection joins the
// user's personal group, receives a connection_established frame with the
// pending counters and then answers pending_count requests.
func (h *WSHandler) ServeNotifications(w http.ResponseWriter, r *http.Request) {
	client, err := websocket.Upgrade(w, r, h.logger)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", zap.Error(err))
		return
	}

	ctx := r.Context()
	user, err := h.handshake.AuthorizeUser(ctx, r.URL.Query().Get("token"))
	if err != nil {
		h.reject(client, err)
		return
	}

	group := websocket.NotificationGroup(user.ID)
	if err := h.deps.Fanout.Join(ctx, group, client); err != nil {
		h.reject(client, chat.JoinFailed(err))
		return
	}
	metrics.ActiveConnections.WithLabelValues("notifications").Inc()
	defer func() {
		h.deps.Fanout.LeaveAll(client.ID())
		metrics.ActiveConnections.WithLabelValues("notifications").Dec()
	}()

	logger := h.logger.With(zap.String("conn_id", client.ID()), zap.String("user_id", user.ID.String()))
	logger.Info("ws: notifications connected")

	count, err := h.pending.Count(ctx, user.ID)
	if err != nil {
		logger.Error("counting pending items", zap.Error(err))
	}
	if err := client.SendFrame(notification.NewConnectionEstablishedFrame(count)); err != nil {
		logger.Warn("sending connection_established", zap.Error(err))
	}

	client.Serve(ctx, func(ctx context.Context, data []byte) {
		if frame := h.handleNotificationFrame(ctx, user, data, logger); frame != nil {
			if err := client.SendFrame(frame); err != nil {
				logger.Warn("replying to client", zap.Error(err))
			}
		}
	})

	logger.Info("ws: notifications disconnected")
}

// handleNotificationFrame returns the reply to one inbound frame on the
// notification channel. Only pending_count is accepted.
func (h *WSHandler) handleNotificationFrame(ctx context.Context, user *db.User, data []byte, logger *zap.Logger) any {
	ev, err := websocket.DecodeInbound(data)
	if err != nil {
		return notificationErrorFrame(err)
	}
	metrics.FramesReceived.WithLabelValues(string(ev.Type())).Inc()

	if _, ok := ev.(websocket.PendingCountEvent); !ok {
		metrics.FrameErrors.WithLabelValues("unknown_type").Inc()
		return websocket.NewErrorFrame(strconv.Quote(string(ev.Type())) + " is not supported on this channel")
	}

	count, err := h.pending.Count(ctx, user.ID)
	if err != nil {
		logger.Error("counting pending items", zap.Error(err))
		metrics.FrameErrors.WithLabelValues("internal").Inc()
		return websocket.NewErrorFrame("failed to process event")
	}
	return notification.NewPendingCountFrame(count)
}

func notificationErrorFrame(err error) websocket.ErrorFrame {
	if errors.Is(err, websocket.ErrUnknownEventType) {
		metrics.FrameErrors.WithLabelValues("unknown_type").Inc()
		return websocket.NewErrorFrame("unknown event type: " + lastSegment(err))
	}
	metrics.FrameErrors.WithLabelValues("malformed").Inc()
	return websocket.NewErrorFrame("invalid frame: " + lastSegment(err))
}

// reject closes a freshly upgraded connection. Handshake failures carry
// their own close code; anything else is a join failure.
func (h *WSHandler) reject(client *websocket.Client, err error) {
	var rej *chat.RejectError
	if !errors.As(err, &rej) {
		rej = chat.JoinFailed(err)
	}
	h.logger.Info("ws: connection rejected",
		zap.String("conn_id", client.ID()),
		zap.Int("code", rej.Code),
		zap.String("reason", rej.Reason),
		zap.NamedError("cause", rej.Err),
	)
	client.Reject(rej.Code, rej.Reason)
}

func lastSegment(err error) string {
	msg := err.Error()
	for i := len(msg) - 2; i >= 0; i-- {
		if msg[i] == ':' && msg[i+1] == ' ' {
			return msg[i+2:]
		}
	}
	return msg
}

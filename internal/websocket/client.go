package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// writeWait is the maximum time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is how long the server waits for a pong reply after sending
	// a ping. The connection is closed if no pong arrives in time.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait so the client has time to reply.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum frame size accepted from the client. A
	// 5000-rune chat message in multi-byte script plus the envelope fits.
	maxMessageSize = 32 * 1024

	// sendBufferSize is the capacity of the per-client outbound queue.
	// When it fills up the hub treats the client as a slow consumer.
	sendBufferSize = 64
)

// Close codes used to reject a handshake after the upgrade. The 4000-4999
// range is reserved for applications by RFC 6455.
const (
	CloseNoToken        = 4001
	CloseTokenExpired   = 4002
	CloseTokenInvalid   = 4003
	CloseUserNotFound   = 4004
	CloseNotParticipant = 4005
	CloseJoinFailed     = 4006
)

// upgrader performs the HTTP -> WebSocket protocol upgrade. Origin checks
// are done by the CORS layer and the reverse proxy.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is a single connected WebSocket peer. It implements Member.
//
// The read loop runs on the goroutine that calls Serve; a second goroutine
// (writePump) owns every data write to the socket. Deliver only enqueues.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

var _ Member = (*Client)(nil)

// Upgrade completes the WebSocket handshake and returns an idle client with a
// fresh connection id. The caller authorizes the peer, then calls Serve, or
// Reject to refuse it with a close code.
func Upgrade(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
		logger: logger.With(
			zap.String("conn_id", id),
			zap.String("remote_addr", r.RemoteAddr),
		),
	}, nil
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// Deliver queues an encoded frame for the write pump.
func (c *Client) Deliver(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrBufferFull
	}
}

// SendFrame encodes frame and queues it for this connection only.
func (c *Client) SendFrame(frame any) error {
	data, err := Encode(frame)
	if err != nil {
		return err
	}
	return c.Deliver(data)
}

// Close stops the write pump, which sends a normal close frame and releases
// the socket. Safe to call concurrently and more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// Reject sends a close frame with an application close code and closes the
// socket. Used when the handshake fails after the upgrade.
func (c *Client) Reject(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		c.logger.Debug("ws: writing reject frame", zap.Error(err))
	}
	c.Close()
	_ = c.conn.Close()
}

// Serve runs the connection until the peer disconnects, the read deadline
// expires, Close is called, or ctx is cancelled. Each text frame is passed to
// handle on this goroutine, so frames are processed strictly in order.
func (c *Client) Serve(ctx context.Context, handle func(ctx context.Context, data []byte)) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	go func() {
		// Unblock ReadMessage when the connection is closed from our side.
		select {
		case <-c.done:
		case <-ctx.Done():
		}
		_ = c.conn.SetReadDeadline(time.Now())
	}()

	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("ws: failed to set read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.logger.Warn("ws: unexpected close", zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		handle(ctx, data)
	}
}

// writePump forwards queued frames to the socket and sends periodic pings.
// It is the only goroutine that writes data frames to conn.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("ws: failed to set write deadline", zap.Error(err))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("ws: write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("ws: failed to set write deadline", zap.Error(err))
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("ws: ping error", zap.Error(err))
				return
			}

		case <-c.done:
			c.drain()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return

		case <-ctx.Done():
			return
		}
	}
}

// drain flushes frames that were queued before Close so a final error or
// status frame is not lost.
func (c *Client) drain() {
	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

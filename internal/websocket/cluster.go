package websocket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/tripmate-io/tripmate/internal/metrics"
)

// SubjectPrefix prefixes the NATS subject of every relayed group frame.
const SubjectPrefix = "tripmate.fanout."

// relayFrame is the NATS message body. Payload is the already encoded frame
// so every instance delivers identical bytes.
type relayFrame struct {
	Origin  string          `json:"origin"`
	Group   string          `json:"group"`
	Except  string          `json:"except,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// ClusterConfig tunes the relay circuit breaker.
type ClusterConfig struct {
	// FailureThreshold is the number of consecutive publish failures that
	// opens the breaker. Defaults to 5.
	FailureThreshold uint32

	// OpenTimeout is how long the breaker stays open before probing again.
	// Defaults to 10s.
	OpenTimeout time.Duration
}

// ClusterHub extends a local Hub across server instances. Every Send is
// delivered locally and published on SubjectPrefix+group; frames published by
// other instances are delivered to local members. Membership stays local.
type ClusterHub struct {
	local   *Hub
	nc      *nats.Conn
	sub     *nats.Subscription
	breaker *gobreaker.CircuitBreaker[struct{}]
	origin  string
	logger  *zap.Logger
}

var _ Fanout = (*ClusterHub)(nil)

// NewClusterHub subscribes to the relay subject on nc and returns a hub that
// fans out through it. Close unsubscribes; nc stays owned by the caller.
func NewClusterHub(local *Hub, nc *nats.Conn, cfg ClusterConfig, logger *zap.Logger) (*ClusterHub, error) {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 10 * time.Second
	}

	log := logger.Named("cluster")
	h := &ClusterHub{
		local:  local,
		nc:     nc,
		origin: uuid.NewString(),
		logger: log,
	}

	h.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "nats-fanout",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("relay breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	sub, err := nc.Subscribe(SubjectPrefix+">", h.onRelay)
	if err != nil {
		return nil, fmt.Errorf("websocket: subscribing to fan-out relay: %w", err)
	}
	h.sub = sub
	return h, nil
}

// Close stops receiving relayed frames.
func (h *ClusterHub) Close() error {
	return h.sub.Unsubscribe()
}

// Local returns the process-local hub.
func (h *ClusterHub) Local() *Hub { return h.local }

// Join adds m to group locally. It fails with ErrBackendUnavailable while the
// NATS connection is not established, since frames from other instances
// would not reach the member.
func (h *ClusterHub) Join(ctx context.Context, group string, m Member) error {
	if !h.nc.IsConnected() {
		return fmt.Errorf("%w: nats status %s", ErrBackendUnavailable, h.nc.Status())
	}
	return h.local.Join(ctx, group, m)
}

// Leave removes the connection from group locally.
func (h *ClusterHub) Leave(ctx context.Context, group, connID string) error {
	return h.local.Leave(ctx, group, connID)
}

// LeaveAll removes the connection from every local group.
func (h *ClusterHub) LeaveAll(connID string) {
	h.local.LeaveAll(connID)
}

// Send delivers payload to local members and relays it to other instances.
func (h *ClusterHub) Send(ctx context.Context, group string, payload any) error {
	return h.SendExcept(ctx, group, payload, "")
}

// SendExcept is Send with one connection excluded by id. Local delivery
// happens even when the relay fails; that failure is reported as
// ErrRelayFailed, which also matches ErrBackendUnavailable.
func (h *ClusterHub) SendExcept(ctx context.Context, group string, payload any, exceptConnID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(payload)
	if err != nil {
		return err
	}
	h.local.deliver(group, data, exceptConnID)

	body, err := json.Marshal(relayFrame{
		Origin:  h.origin,
		Group:   group,
		Except:  exceptConnID,
		Payload: data,
	})
	if err != nil {
		return fmt.Errorf("websocket: encoding relay frame: %w", err)
	}

	_, err = h.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, h.nc.Publish(SubjectPrefix+group, body)
	})
	if err != nil {
		metrics.ClusterRelayFailures.Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %w: circuit open", ErrRelayFailed, ErrBackendUnavailable)
		}
		return fmt.Errorf("%w: %w: %v", ErrRelayFailed, ErrBackendUnavailable, err)
	}
	return nil
}

func (h *ClusterHub) onRelay(msg *nats.Msg) {
	var frame relayFrame
	if err := json.Unmarshal(msg.Data, &frame); err != nil {
		h.logger.Warn("discarding undecodable relay frame",
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
		return
	}
	if frame.Origin == h.origin {
		return
	}
	if frame.Group == "" {
		frame.Group = strings.TrimPrefix(msg.Subject, SubjectPrefix)
	}
	h.local.deliver(frame.Group, frame.Payload, frame.Except)
}

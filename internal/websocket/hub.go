//go:generate go run go.uber.org/mock/mockgen -source=hub.go -destination=../mocks/fanout.go -package=mocks Fanout

package websocket

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/tripmate-io/tripmate/internal/metrics"
)

// Member is one live connection as seen by the hub.
type Member interface {
	// ID is the connection identifier, unique per process.
	ID() string

	// Deliver enqueues an encoded frame without blocking. It returns
	// ErrBufferFull when the peer is not keeping up.
	Deliver(data []byte) error

	// Close terminates the connection. It must be safe to call more than once.
	Close()
}

// Fanout is the group broadcast API used by sessions, the notification
// dispatcher and REST handlers. *Hub and *ClusterHub implement it.
type Fanout interface {
	Join(ctx context.Context, group string, m Member) error
	Leave(ctx context.Context, group, connID string) error
	LeaveAll(connID string)
	Send(ctx context.Context, group string, payload any) error
	SendExcept(ctx context.Context, group string, payload any, exceptConnID string) error
}

// Hub is the process-local connection registry. It maps group names to the
// set of members currently joined to them.
//
// Join and Leave take the write lock. Send copies the member set under the
// read lock and delivers outside it, so a send in flight observes either the
// membership before or after a concurrent mutation, never a partial one.
// Members whose send buffer is full are removed from every group and closed.
type Hub struct {
	mu sync.RWMutex

	// groups maps group name -> connection id -> member.
	groups map[string]map[string]Member

	// joined maps connection id -> set of group names, so LeaveAll does not
	// scan every group.
	joined map[string]map[string]struct{}

	members map[string]Member
	closed  bool

	logger *zap.Logger
}

var _ Fanout = (*Hub)(nil)

// NewHub creates an empty Hub. Call Run to tie its lifetime to a context.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		groups:  make(map[string]map[string]Member),
		joined:  make(map[string]map[string]struct{}),
		members: make(map[string]Member),
		logger:  logger.Named("hub"),
	}
}

// Run blocks until ctx is cancelled, then closes every registered member and
// rejects further joins.
//
//	go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.Shutdown()
}

// Shutdown closes every member and empties the registry.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	members := lo.Values(h.members)
	h.groups = make(map[string]map[string]Member)
	h.joined = make(map[string]map[string]struct{})
	h.members = make(map[string]Member)
	h.closed = true
	h.mu.Unlock()

	for _, m := range members {
		m.Close()
	}
	h.logger.Info("hub stopped", zap.Int("closed_members", len(members)))
}

// Join adds m to group. Joining a group twice is a no-op.
func (h *Hub) Join(ctx context.Context, group string, m Member) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	id := m.ID()
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]Member)
	}
	h.groups[group][id] = m

	if h.joined[id] == nil {
		h.joined[id] = make(map[string]struct{})
	}
	h.joined[id][group] = struct{}{}
	h.members[id] = m
	return nil
}

// Leave removes the connection from group. Leaving a group the connection
// never joined is a no-op.
func (h *Hub) Leave(ctx context.Context, group, connID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	h.removeLocked(group, connID)
	h.mu.Unlock()
	return nil
}

// LeaveAll removes the connection from every group it joined.
func (h *Hub) LeaveAll(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for group := range h.joined[connID] {
		h.removeLocked(group, connID)
	}
}

func (h *Hub) removeLocked(group, connID string) {
	if members, ok := h.groups[group]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	if groups, ok := h.joined[connID]; ok {
		delete(groups, group)
		if len(groups) == 0 {
			delete(h.joined, connID)
			delete(h.members, connID)
		}
	}
}

// Send encodes payload once and delivers it to every member of group.
// Sending to an empty or unknown group is a no-op.
func (h *Hub) Send(ctx context.Context, group string, payload any) error {
	return h.SendExcept(ctx, group, payload, "")
}

// SendExcept is Send with one connection excluded by id.
func (h *Hub) SendExcept(ctx context.Context, group string, payload any, exceptConnID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(payload)
	if err != nil {
		return err
	}
	h.deliver(group, data, exceptConnID)
	return nil
}

// deliver fans out an already encoded frame. The ClusterHub calls it for
// frames relayed from other instances.
func (h *Hub) deliver(group string, data []byte, exceptConnID string) {
	h.mu.RLock()
	targets := make([]Member, 0, len(h.groups[group]))
	for id, m := range h.groups[group] {
		if id != exceptConnID {
			targets = append(targets, m)
		}
	}
	h.mu.RUnlock()

	var slow []Member
	for _, m := range targets {
		err := m.Deliver(data)
		switch {
		case err == nil:
		case errors.Is(err, ErrBufferFull):
			slow = append(slow, m)
		default:
			// Closed connections leave on their own during teardown.
			h.logger.Debug("deliver to closed member", zap.String("conn_id", m.ID()), zap.Error(err))
		}
	}

	for _, m := range slow {
		h.logger.Warn("dropping slow consumer",
			zap.String("conn_id", m.ID()),
			zap.String("group", group),
		)
		metrics.SlowConsumerDisconnects.Inc()
		h.LeaveAll(m.ID())
		m.Close()
	}
}

// GroupSize returns the number of members joined to group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// GroupCount returns the number of non-empty groups.
func (h *Hub) GroupCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups)
}

// ConnectedCount returns the number of distinct connections joined to at
// least one group. Intended for metrics and health endpoints.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

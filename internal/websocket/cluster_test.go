package websocket

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func runNATS(t *testing.T) string {
	t.Helper()

	ns, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)
	return ns.ClientURL()
}

func newClusterHub(t *testing.T, url string) (*ClusterHub, *nats.Conn) {
	t.Helper()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	hub, err := NewClusterHub(NewHub(zap.NewNop()), nc, ClusterConfig{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = hub.Close() })
	require.NoError(t, nc.Flush())
	return hub, nc
}

func waitFrames(m *fakeMember, n int) []map[string]any {
	var got []map[string]any
	deadline := time.After(2 * time.Second)
	for len(got) < n {
		got = append(got, m.drain()...)
		if len(got) >= n {
			break
		}
		select {
		case <-deadline:
			return got
		case <-time.After(10 * time.Millisecond):
		}
	}
	return got
}

func TestClusterHub_RelaysAcrossInstances(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	url := runNATS(t)

	east, _ := newClusterHub(t, url)
	west, _ := newClusterHub(t, url)

	local := newFakeMember("east-1", 8)
	remote := newFakeMember("west-1", 8)
	req.NoError(east.Join(ctx, "chat_9", local))
	req.NoError(west.Join(ctx, "chat_9", remote))

	req.NoError(east.Send(ctx, "chat_9", NewErrorFrame("hello")))

	req.Len(waitFrames(remote, 1), 1)
	req.Len(waitFrames(local, 1), 1)

	// the origin instance must not deliver its own relayed copy
	time.Sleep(100 * time.Millisecond)
	req.Empty(local.drain())
}

func TestClusterHub_SendExceptAcrossInstances(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	url := runNATS(t)

	east, _ := newClusterHub(t, url)
	west, _ := newClusterHub(t, url)

	sender := newFakeMember("east-1", 8)
	peer := newFakeMember("west-1", 8)
	req.NoError(east.Join(ctx, "chat_9", sender))
	req.NoError(west.Join(ctx, "chat_9", peer))

	req.NoError(east.SendExcept(ctx, "chat_9", NewTypingFrame(UserSummary{}, true), "east-1"))

	frames := waitFrames(peer, 1)
	req.Len(frames, 1)
	req.Equal("typing", frames[0]["type"])
	req.Empty(sender.drain())
}

func TestClusterHub_JoinFailsWhenDisconnected(t *testing.T) {
	req := require.New(t)
	url := runNATS(t)

	hub, nc := newClusterHub(t, url)
	nc.Close()

	err := hub.Join(context.Background(), "chat_1", newFakeMember("a", 1))
	req.ErrorIs(err, ErrBackendUnavailable)
	req.Equal(0, hub.Local().GroupSize("chat_1"))
}

func TestClusterHub_RelayFailureKeepsLocalDelivery(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	url := runNATS(t)

	hub, nc := newClusterHub(t, url)
	member := newFakeMember("a", 4)
	req.NoError(hub.Join(ctx, "chat_3", member))
	nc.Close()

	err := hub.Send(ctx, "chat_3", NewErrorFrame("still local"))
	req.ErrorIs(err, ErrRelayFailed)
	req.ErrorIs(err, ErrBackendUnavailable)

	frames := member.drain()
	req.Len(frames, 1)
	req.Equal("still local", frames[0]["message"])
}

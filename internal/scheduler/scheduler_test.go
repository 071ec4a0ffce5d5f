package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tripmate-io/tripmate/internal/metrics"
)

type stubHub struct{ members, groups int }

func (h stubHub) ConnectedCount() int { return h.members }
func (h stubHub) GroupCount() int     { return h.groups }

func TestScheduler_RunOnce(t *testing.T) {
	req := require.New(t)
	var pings atomic.Int32

	s, err := New(Config{
		Hub: stubHub{members: 3, groups: 2},
		Ping: func(context.Context) error {
			pings.Add(1)
			return errors.New("database is locked")
		},
		Logger: zap.NewNop(),
	})
	req.NoError(err)

	s.RunOnce(context.Background())

	req.Equal(float64(3), testutil.ToFloat64(metrics.HubMembers))
	req.Equal(float64(2), testutil.ToFloat64(metrics.HubGroups))
	req.EqualValues(1, pings.Load())
}

func TestScheduler_StartStop(t *testing.T) {
	req := require.New(t)
	pinged := make(chan struct{}, 1)

	s, err := New(Config{
		Hub: stubHub{members: 1, groups: 1},
		Ping: func(context.Context) error {
			select {
			case pinged <- struct{}{}:
			default:
			}
			return nil
		},
		Interval: 20 * time.Millisecond,
		Logger:   zap.NewNop(),
	})
	req.NoError(err)
	req.NoError(s.Start(context.Background()))

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		req.Fail("db-ping job did not run")
	}
	req.NoError(s.Stop())
}

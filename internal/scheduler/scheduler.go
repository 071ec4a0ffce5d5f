// Package scheduler runs periodic housekeeping for the realtime server. It
// wraps gocron and currently schedules two singleton jobs:
//
//   - hub-stats: samples the fan-out hub size into Prometheus gauges
//   - db-ping:   verifies the database is reachable and logs when it is not
//
// Jobs run in singleton mode: a tick that fires while the previous run is
// still in progress is rescheduled instead of overlapping.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/tripmate-io/tripmate/internal/metrics"
)

// DefaultInterval is used when Config.Interval is zero.
const DefaultInterval = 30 * time.Second

// pingTimeout bounds a single database ping.
const pingTimeout = 5 * time.Second

// HubStats is the subset of *websocket.Hub the stats job reads.
type HubStats interface {
	ConnectedCount() int
	GroupCount() int
}

// Config holds the dependencies of a Scheduler.
type Config struct {
	Hub      HubStats
	Ping     func(ctx context.Context) error
	Interval time.Duration
	Logger   *zap.Logger
}

// Scheduler wraps gocron and owns the housekeeping jobs.
// The zero value is not usable; create instances with New.
type Scheduler struct {
	cron     gocron.Scheduler
	hub      HubStats
	ping     func(ctx context.Context) error
	interval time.Duration
	logger   *zap.Logger
}

// New creates a Scheduler. Call Start to begin processing.
func New(cfg Config) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Scheduler{
		cron:     s,
		hub:      cfg.Hub,
		ping:     cfg.Ping,
		interval: interval,
		logger:   cfg.Logger.Named("scheduler"),
	}, nil
}

// Start registers the housekeeping jobs and starts the gocron scheduler.
// Jobs use ctx for their database calls, so cancel it only after Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.sampleHub),
		gocron.WithName("hub-stats"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	); err != nil {
		return fmt.Errorf("scheduling hub-stats: %w", err)
	}

	if s.ping != nil {
		if _, err := s.cron.NewJob(
			gocron.DurationJob(s.interval),
			gocron.NewTask(func() { s.pingDatabase(ctx) }),
			gocron.WithName("db-ping"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return fmt.Errorf("scheduling db-ping: %w", err)
		}
	}

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	s.cron.Start()
	return nil
}

// Stop gracefully shuts down the underlying gocron scheduler, waiting for any
// currently running job functions to complete before returning.
func (s *Scheduler) Stop() error {
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("scheduler shutdown error: %w", err)
	}
	s.logger.Info("scheduler stopped")
	return nil
}

// RunOnce executes every housekeeping job synchronously.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.sampleHub()
	s.pingDatabase(ctx)
}

func (s *Scheduler) sampleHub() {
	if s.hub == nil {
		return
	}
	members, groups := s.hub.ConnectedCount(), s.hub.GroupCount()
	metrics.HubMembers.Set(float64(members))
	metrics.HubGroups.Set(float64(groups))
	s.logger.Debug("hub sampled", zap.Int("members", members), zap.Int("groups", groups))
}

func (s *Scheduler) pingDatabase(ctx context.Context) {
	if s.ping == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := s.ping(ctx); err != nil {
		s.logger.Error("database ping failed", zap.Error(err))
	}
}

package judge

import (
	"context"
	"time"

	"ojcore/internal/common/mq"
	"ojcore/pkg/utils/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SweeperConfig tunes the recovery sweep that re-enqueues submissions
// stranded by worker crashes.
type SweeperConfig struct {
	// Schedule is a cron expression; default every minute.
	Schedule string `yaml:"schedule"`
	// StallThreshold is how long a submission may sit non-terminal
	// before it is considered stranded.
	StallThreshold time.Duration `yaml:"stallThreshold"`
	BatchSize      int           `yaml:"batchSize"`
	Topic          string        `yaml:"topic"`
}

func (c SweeperConfig) normalized() SweeperConfig {
	if c.Schedule == "" {
		c.Schedule = "@every 1m"
	}
	if c.StallThreshold <= 0 {
		c.StallThreshold = 5 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Topic == "" {
		c.Topic = TopicJudgeTasks
	}
	return c
}

// Sweeper periodically re-enqueues stranded submissions. Re-enqueueing an
// already-finalized submission is harmless; the engine no-ops on terminal
// verdicts.
type Sweeper struct {
	cfg   SweeperConfig
	repo  Repository
	queue mq.MessageQueue
	cron  *cron.Cron
}

// NewSweeper creates the recovery sweeper.
func NewSweeper(cfg SweeperConfig, repo Repository, queue mq.MessageQueue) *Sweeper {
	return &Sweeper{
		cfg:   cfg.normalized(),
		repo:  repo,
		queue: queue,
		cron:  cron.New(),
	}
}

// Start runs one immediate sweep (startup recovery) and schedules the
// periodic ones.
func (s *Sweeper) Start(ctx context.Context) error {
	s.Sweep(ctx)
	if _, err := s.cron.AddFunc(s.cfg.Schedule, func() { s.Sweep(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops the schedule and waits for a running sweep.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep re-enqueues every submission stalled past the threshold.
func (s *Sweeper) Sweep(ctx context.Context) {
	ids, err := s.repo.ListStalled(ctx, s.cfg.StallThreshold, s.cfg.BatchSize)
	if err != nil {
		logger.Error(ctx, "recovery sweep query failed", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}
	requeued := 0
	for _, id := range ids {
		body, err := EncodeTask(Task{SubmissionID: id})
		if err != nil {
			logger.Error(ctx, "encode recovery task failed",
				zap.Int64("submission_id", id), zap.Error(err))
			continue
		}
		if err := s.queue.Publish(ctx, s.cfg.Topic, mq.NewMessage(body)); err != nil {
			logger.Error(ctx, "re-enqueue stalled submission failed",
				zap.Int64("submission_id", id), zap.Error(err))
			continue
		}
		requeued++
	}
	logger.Info(ctx, "recovery sweep finished",
		zap.Int("stalled", len(ids)), zap.Int("requeued", requeued))
}

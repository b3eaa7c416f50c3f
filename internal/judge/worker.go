package judge

import (
	"context"

	"ojcore/internal/common/mq"
	"ojcore/pkg/utils/contextkey"
	"ojcore/pkg/utils/logger"

	"go.uber.org/zap"
)

// WorkerConfig tunes the judge task consumer.
type WorkerConfig struct {
	Topic         string `yaml:"topic"`
	ConsumerGroup string `yaml:"consumerGroup"`
	// Concurrency bounds parallel judge runs on this host. Keep it at or
	// below floor(cores / 2) to leave headroom for sandbox overhead.
	Concurrency int `yaml:"concurrency"`
}

func (c WorkerConfig) normalized() WorkerConfig {
	if c.Topic == "" {
		c.Topic = TopicJudgeTasks
	}
	if c.ConsumerGroup == "" {
		c.ConsumerGroup = "judged"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	return c
}

// Worker consumes judge tasks from the queue and hands them to the engine.
type Worker struct {
	cfg    WorkerConfig
	engine *Engine
	queue  mq.MessageQueue
}

// NewWorker creates the judge task consumer.
func NewWorker(cfg WorkerConfig, engine *Engine, queue mq.MessageQueue) *Worker {
	return &Worker{cfg: cfg.normalized(), engine: engine, queue: queue}
}

// Register subscribes the worker's handler. Consumption starts when the
// queue's Start is called.
func (w *Worker) Register(ctx context.Context) error {
	return w.queue.Subscribe(ctx, w.cfg.Topic, w.handle, &mq.SubscribeOptions{
		ConsumerGroup: w.cfg.ConsumerGroup,
		Concurrency:   w.cfg.Concurrency,
	})
}

// handle judges one queued submission. Malformed tasks are dropped;
// returned errors leave the message uncommitted for redelivery.
func (w *Worker) handle(ctx context.Context, message *mq.Message) error {
	task, err := DecodeTask(message.Body)
	if err != nil {
		logger.Error(ctx, "drop malformed judge task",
			zap.String("message_id", message.ID), zap.Error(err))
		return nil
	}

	ctx = context.WithValue(ctx, contextkey.SubmissionID, task.SubmissionID)
	if err := w.engine.Judge(ctx, task.SubmissionID); err != nil {
		logger.Error(ctx, "judge run failed, leaving task for redelivery",
			zap.Int64("submission_id", task.SubmissionID), zap.Error(err))
		return err
	}
	return nil
}

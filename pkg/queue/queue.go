package queue

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-assess/pkg/config"
)

// Queue weights. Report runs go to default; scheduler ticks to low so a
// backlog of ticks never starves user-requested reports.
var queueWeights = map[string]int{
	"critical": 6,
	"default":  3,
	"low":      1,
}

const shutdownTimeout = 30 * time.Second

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
	}
}

// slogAdapter satisfies asynq.Logger so queue internals share the process
// log format.
type slogAdapter struct {
	log *slog.Logger
}

func (a slogAdapter) Debug(args ...interface{}) { a.log.Debug(fmt.Sprint(args...)) }
func (a slogAdapter) Info(args ...interface{})  { a.log.Info(fmt.Sprint(args...)) }
func (a slogAdapter) Warn(args ...interface{})  { a.log.Warn(fmt.Sprint(args...)) }
func (a slogAdapter) Error(args ...interface{}) { a.log.Error(fmt.Sprint(args...)) }
func (a slogAdapter) Fatal(args ...interface{}) {
	a.log.Error(fmt.Sprint(args...))
	os.Exit(1)
}

func NewClient(cfg *config.RedisConfig) *asynq.Client {
	return asynq.NewClient(redisOpt(cfg))
}

func NewServer(cfg *config.RedisConfig, concurrency int, logger *slog.Logger) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 10
	}
	log := logger.With("component", "asynq")

	return asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency:     concurrency,
			Queues:          queueWeights,
			ShutdownTimeout: shutdownTimeout,
			Logger:          slogAdapter{log: log},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)
}

// NewScheduler registers periodic tasks in UTC.
func NewScheduler(cfg *config.RedisConfig, logger *slog.Logger) *asynq.Scheduler {
	log := logger.With("component", "scheduler")
	return asynq.NewScheduler(redisOpt(cfg), &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   slogAdapter{log: log},
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Warn("periodic task not enqueued", "error", err)
			}
		},
	})
}

package cron

import (
	"context"
	"fmt"
	"time"

	"fieldhand/services/booking"
	"fieldhand/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Sweeper runs one expiry/assignment pass.
type Sweeper interface {
	Sweep(ctx context.Context) (booking.SweepResult, error)
}

// RefundProcessor settles one queued refund.
type RefundProcessor interface {
	Process(ctx context.Context, bookingID string) error
}

// Worker owns the asynq server that handles booking tasks and the scheduler
// that enqueues the periodic expiry sweep.
type Worker struct {
	srv       *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	interval  time.Duration
	logger    *zap.Logger
}

func NewWorker(redisOpt asynq.RedisClientOpt, sweeper Sweeper, refunds RefundProcessor, interval time.Duration, logger *zap.Logger) *Worker {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
			Logger: logger.Sugar(),
		},
	)
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   logger.Sugar(),
	})

	return &Worker{
		srv:       srv,
		scheduler: scheduler,
		mux:       NewMux(sweeper, refunds, logger),
		interval:  interval,
		logger:    logger,
	}
}

// NewMux routes booking task types to their handlers.
func NewMux(sweeper Sweeper, refunds RefundProcessor, logger *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeExpirySweep, handleSweepTask(sweeper, logger))
	mux.HandleFunc(tasks.TypeRefund, handleRefundTask(refunds, logger))
	return mux
}

// Start registers the sweep and starts the server, retrying with backoff
// while redis is unreachable.
func (w *Worker) Start() error {
	task, opts := tasks.NewExpirySweepTask(w.interval)
	entryID, err := w.scheduler.Register(fmt.Sprintf("@every %s", w.interval), task, opts...)
	if err != nil {
		return fmt.Errorf("register expiry sweep: %w", err)
	}
	w.logger.Info("Expiry sweep scheduled", zap.String("entryID", entryID), zap.Duration("interval", w.interval))

	const maxAttempts = 5
	for attempts := 1; ; attempts++ {
		err = w.srv.Start(w.mux)
		if err == nil {
			break
		}
		w.logger.Warn("Failed to start task worker",
			zap.Int("attempt", attempts),
			zap.Int("maxAttempts", maxAttempts),
			zap.Error(err))
		if attempts == maxAttempts {
			return fmt.Errorf("start task worker: %w", err)
		}
		time.Sleep(time.Duration(attempts*2) * time.Second)
	}

	if err := w.scheduler.Start(); err != nil {
		w.srv.Shutdown()
		return fmt.Errorf("start scheduler: %w", err)
	}
	w.logger.Info("Task worker started")
	return nil
}

// Shutdown stops scheduling and waits for in-flight tasks.
func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.srv.Shutdown()
	w.logger.Info("Task worker stopped")
}

func handleSweepTask(sweeper Sweeper, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		res, err := sweeper.Sweep(ctx)
		if err != nil {
			logger.Error("Expiry sweep failed", zap.Error(err))
			return err
		}
		logger.Debug("Expiry sweep finished",
			zap.Int("scanned", res.Scanned),
			zap.Int("expired", res.Expired),
			zap.Int("conflicts", res.Conflicts),
			zap.Int("failed", res.Failed),
			zap.Int("assigned", res.Assigned),
			zap.Int("requeuedRefunds", res.Requeued))
		return nil
	}
}

func handleRefundTask(refunds RefundProcessor, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		p, err := tasks.ParseRefundPayload(task)
		if err != nil {
			logger.Error("Dropping refund task", zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		if err := refunds.Process(ctx, p.BookingID); err != nil {
			logger.Error("Refund failed", zap.String("bookingID", p.BookingID), zap.Error(err))
			return err
		}
		return nil
	}
}

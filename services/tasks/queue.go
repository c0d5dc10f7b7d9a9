package tasks

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Enqueuer is the part of *asynq.Client used to schedule work.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqRefundQueue hands refunds to the worker through redis.
type AsynqRefundQueue struct {
	client Enqueuer
	logger *zap.Logger
}

func NewAsynqRefundQueue(client Enqueuer, logger *zap.Logger) *AsynqRefundQueue {
	return &AsynqRefundQueue{client: client, logger: logger}
}

func (q *AsynqRefundQueue) EnqueueRefund(ctx context.Context, bookingID string) error {
	task, opts, err := NewRefundTask(bookingID)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("EnqueueRefund: %w", err)
	}
	q.logger.Info("Refund queued",
		zap.String("bookingID", bookingID),
		zap.String("taskID", info.ID),
		zap.String("queue", info.Queue))
	return nil
}

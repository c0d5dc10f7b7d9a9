package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RefundProcessor settles one queued refund.
type RefundProcessor interface {
	Process(ctx context.Context, bookingID string) error
}

// InlineRefundQueue processes refunds in a goroutine. Used when no redis
// queue is configured; work in flight is lost on restart.
type InlineRefundQueue struct {
	mu        sync.RWMutex
	processor RefundProcessor
	timeout   time.Duration
	logger    *zap.Logger
	wg        sync.WaitGroup
}

func NewInlineRefundQueue(timeout time.Duration, logger *zap.Logger) *InlineRefundQueue {
	return &InlineRefundQueue{timeout: timeout, logger: logger}
}

// Bind sets the processor. The processor depends on the engine that depends
// on this queue, so it is attached after construction.
func (q *InlineRefundQueue) Bind(p RefundProcessor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processor = p
}

func (q *InlineRefundQueue) EnqueueRefund(_ context.Context, bookingID string) error {
	q.mu.RLock()
	p := q.processor
	q.mu.RUnlock()
	if p == nil {
		q.logger.Warn("Refund dropped, no processor bound", zap.String("bookingID", bookingID))
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		defer cancel()
		if err := p.Process(ctx, bookingID); err != nil {
			q.logger.Error("Refund failed", zap.String("bookingID", bookingID), zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until every started refund has finished.
func (q *InlineRefundQueue) Wait() {
	q.wg.Wait()
}

package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Queue: "default"}, nil
}

func TestRefundTask(t *testing.T) {
	t.Run("Given a booking id When building the task Then the payload round-trips", func(t *testing.T) {
		// Given / When
		task, opts, err := NewRefundTask("b1")

		// Then
		if err != nil {
			t.Fatalf("NewRefundTask: %v", err)
		}
		if task.Type() != TypeRefund {
			t.Errorf("type = %s", task.Type())
		}
		if len(opts) == 0 {
			t.Error("expected task options")
		}
		p, err := ParseRefundPayload(task)
		if err != nil || p.BookingID != "b1" {
			t.Errorf("payload = %+v, err = %v", p, err)
		}
	})

	t.Run("Given an empty id When building the task Then error", func(t *testing.T) {
		if _, _, err := NewRefundTask(""); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("Given a malformed payload When parsing Then error", func(t *testing.T) {
		if _, err := ParseRefundPayload(asynq.NewTask(TypeRefund, []byte("{"))); err == nil {
			t.Error("expected error")
		}
		if _, err := ParseRefundPayload(asynq.NewTask(TypeRefund, []byte("{}"))); err == nil {
			t.Error("expected error for missing booking id")
		}
	})
}

func TestExpirySweepTask(t *testing.T) {
	task, opts := NewExpirySweepTask(time.Minute)
	if task.Type() != TypeExpirySweep {
		t.Errorf("type = %s", task.Type())
	}
	if len(opts) != 3 {
		t.Errorf("expected unique, retry and timeout options, got %d", len(opts))
	}
}

func TestAsynqRefundQueue(t *testing.T) {
	t.Run("Given a healthy client When enqueuing Then one refund task is sent", func(t *testing.T) {
		client := &recordingEnqueuer{}
		q := NewAsynqRefundQueue(client, zap.NewNop())

		if err := q.EnqueueRefund(context.Background(), "b1"); err != nil {
			t.Fatalf("EnqueueRefund: %v", err)
		}
		if len(client.tasks) != 1 || client.tasks[0].Type() != TypeRefund {
			t.Errorf("unexpected tasks %+v", client.tasks)
		}
	})

	t.Run("Given redis is down When enqueuing Then the error is wrapped", func(t *testing.T) {
		boom := errors.New("dial tcp: connection refused")
		q := NewAsynqRefundQueue(&recordingEnqueuer{err: boom}, zap.NewNop())

		if err := q.EnqueueRefund(context.Background(), "b1"); !errors.Is(err, boom) {
			t.Errorf("expected wrapped error, got %v", err)
		}
	})
}

type countingProcessor struct {
	ids chan string
}

func (p *countingProcessor) Process(_ context.Context, id string) error {
	p.ids <- id
	return nil
}

func TestInlineRefundQueue(t *testing.T) {
	t.Run("Given a bound processor When enqueuing Then the refund is processed", func(t *testing.T) {
		// Given
		p := &countingProcessor{ids: make(chan string, 1)}
		q := NewInlineRefundQueue(time.Second, zap.NewNop())
		q.Bind(p)

		// When
		if err := q.EnqueueRefund(context.Background(), "b1"); err != nil {
			t.Fatalf("EnqueueRefund: %v", err)
		}
		q.Wait()

		// Then
		if got := <-p.ids; got != "b1" {
			t.Errorf("processed %s", got)
		}
	})

	t.Run("Given no processor When enqueuing Then nothing runs", func(t *testing.T) {
		q := NewInlineRefundQueue(time.Second, zap.NewNop())

		if err := q.EnqueueRefund(context.Background(), "b1"); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
		q.Wait()
	})
}

package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/paynext/mchapply/internal/queue"
)

type pollerStub struct {
	applyID string
	round   int
	calls   int
	err     error
	swept   int
}

func (p *pollerStub) PollApplyStatus(_ context.Context, applyID string, round int) error {
	p.calls++
	p.applyID = applyID
	p.round = round
	return p.err
}

func (p *pollerStub) SweepProcessing(_ context.Context, _ int) (int, error) {
	p.swept++
	return 0, nil
}

func TestHandleApplyStatusPollDispatches(t *testing.T) {
	stub := &pollerStub{}
	consumer := &Consumer{poller: stub}
	task, err := queue.NewApplyStatusPollTask(queue.ApplyStatusPollPayload{ApplyID: " MA20260101120000123456 ", Round: 0})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if err := consumer.handleApplyStatusPoll(context.Background(), task); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if stub.calls != 1 || stub.applyID != "MA20260101120000123456" || stub.round != 1 {
		t.Fatalf("unexpected dispatch: %+v", stub)
	}
}

func TestHandleApplyStatusPollSkipsEmptyApplyID(t *testing.T) {
	stub := &pollerStub{}
	consumer := &Consumer{poller: stub}
	task, err := queue.NewApplyStatusPollTask(queue.ApplyStatusPollPayload{Round: 2})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if err := consumer.handleApplyStatusPoll(context.Background(), task); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if stub.calls != 0 {
		t.Fatalf("empty apply id should be skipped")
	}
}

func TestHandleApplyStatusPollReturnsErrorForRetry(t *testing.T) {
	stub := &pollerStub{err: errors.New("db down")}
	consumer := &Consumer{poller: stub}
	task, err := queue.NewApplyStatusPollTask(queue.ApplyStatusPollPayload{ApplyID: "MA1", Round: 3})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if err := consumer.handleApplyStatusPoll(context.Background(), task); err == nil {
		t.Fatalf("expected error so asynq retries the task")
	}
}

func TestNewConsumerWithoutService(t *testing.T) {
	consumer := NewConsumer(nil)
	task, err := queue.NewApplyStatusPollTask(queue.ApplyStatusPollPayload{ApplyID: "MA1", Round: 1})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if err := consumer.handleApplyStatusPoll(context.Background(), task); err != nil {
		t.Fatalf("missing service should be skipped, got %v", err)
	}
}

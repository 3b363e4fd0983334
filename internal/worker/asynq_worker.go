package worker

import (
	"context"
	"strings"

	"github.com/paynext/mchapply/internal/logger"
	"github.com/paynext/mchapply/internal/provider"
	"github.com/paynext/mchapply/internal/queue"

	"github.com/hibiken/asynq"
)

// applyPoller 进件状态轮询能力
type applyPoller interface {
	PollApplyStatus(ctx context.Context, applyID string, round int) error
	SweepProcessing(ctx context.Context, limit int) (int, error)
}

// Consumer 异步任务消费者
type Consumer struct {
	poller applyPoller
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	consumer := &Consumer{}
	if c != nil && c.ApplyService != nil {
		consumer.poller = c.ApplyService
	}
	return consumer
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskApplyStatusPoll, c.handleApplyStatusPoll)
}

func (c *Consumer) handleApplyStatusPoll(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_apply_status_poll_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseApplyStatusPollPayload(task.Payload())
	if err != nil {
		logger.Warnw("worker_apply_status_poll_unmarshal_failed", "error", err)
		return err
	}
	applyID := strings.TrimSpace(payload.ApplyID)
	if applyID == "" {
		logger.Debugw("worker_apply_status_poll_skip_invalid_payload", "round", payload.Round)
		return nil
	}
	if c.poller == nil {
		logger.Warnw("worker_apply_status_poll_skip_service_nil", "apply_id", applyID)
		return nil
	}
	round := payload.Round
	if round <= 0 {
		round = 1
	}
	if err := c.poller.PollApplyStatus(ctx, applyID, round); err != nil {
		logger.Warnw("worker_apply_status_poll_failed", "apply_id", applyID, "round", round, "error", err)
		return err
	}
	return nil
}

package worker

import (
	"context"
	"errors"
	"time"

	"github.com/paynext/mchapply/internal/config"
	"github.com/paynext/mchapply/internal/logger"
	"github.com/paynext/mchapply/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	processingSweepInterval = 10 * time.Minute
	processingSweepLimit    = 100
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.poller != nil {
		go s.runProcessingSweepLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runProcessingSweepLoop 兜底同步渠道处理中的申请，覆盖轮询任务丢失或轮数耗尽的情况
func (s *Service) runProcessingSweepLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.poller == nil {
		return
	}
	runOnce := func() {
		synced, err := s.consumer.poller.SweepProcessing(ctx, processingSweepLimit)
		if err != nil {
			logger.Warnw("worker_apply_sweep_failed", "error", err)
			return
		}
		if synced > 0 {
			logger.Infow("worker_apply_sweep_done", "synced", synced)
		}
	}
	runOnce()

	ticker := time.NewTicker(processingSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

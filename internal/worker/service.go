package worker

import (
	"context"
	"errors"
	"time"

	"github.com/fenxiao-mall/internal/config"
	"github.com/fenxiao-mall/internal/logger"
	"github.com/fenxiao-mall/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	defaultOutboxPollInterval = 5 * time.Second
)

// Service 异步队列服务
type Service struct {
	name         string
	server       *asynq.Server
	mux          *asynq.ServeMux
	consumer     *Consumer
	pollInterval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Queue.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	pollInterval := defaultOutboxPollInterval
	if cfg.Outbox.PollIntervalSeconds > 0 {
		pollInterval = time.Duration(cfg.Outbox.PollIntervalSeconds) * time.Second
	}
	return &Service{
		name:         "worker",
		server:       server,
		mux:          mux,
		consumer:     consumer,
		pollInterval: pollInterval,
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
	if s.consumer != nil && s.consumer.OutboxService != nil {
		go s.runOutboxDispatchLoop(ctx)
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

func (s *Service) runOutboxDispatchLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.OutboxService == nil {
		return
	}
	runOnce := func() {
		dispatched, err := s.consumer.OutboxService.DispatchPending(time.Now())
		if err != nil {
			logger.Warnw("worker_outbox_dispatch_failed", "error", err)
			return
		}
		if dispatched > 0 {
			logger.Debugw("worker_outbox_dispatched", "count", dispatched)
		}
	}
	runOnce()

	ticker := time.NewTicker(s.pollInterval)
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

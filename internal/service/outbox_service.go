package service

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/fenxiao-mall/internal/constants"
	"github.com/fenxiao-mall/internal/logger"
	"github.com/fenxiao-mall/internal/models"
	"github.com/fenxiao-mall/internal/queue"
	"github.com/fenxiao-mall/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	outboxDefaultBatchSize   = 50
	outboxDefaultMaxAttempts = 5
	outboxBaseBackoff        = 30 * time.Second
	outboxMaxBackoff         = 30 * time.Minute
)

// OutboxService 事件发件箱服务
// 事件随业务事务落库，后台轮询投递；订单事件被翻译成队列任务，
// 其余事件作为审计日志输出。
type OutboxService struct {
	repo           repository.EventOutboxRepository
	queueClient    *queue.Client
	settingService *SettingService
	batchSize      int
	maxAttempts    int
}

// NewOutboxService 创建发件箱服务
func NewOutboxService(repo repository.EventOutboxRepository, queueClient *queue.Client, settingService *SettingService) *OutboxService {
	return &OutboxService{
		repo:           repo,
		queueClient:    queueClient,
		settingService: settingService,
		batchSize:      outboxDefaultBatchSize,
		maxAttempts:    outboxDefaultMaxAttempts,
	}
}

// Configure 调整投递批量与最大重试次数
func (s *OutboxService) Configure(batchSize, maxAttempts int) {
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
}

// PublishTx 在业务事务内写入事件
func (s *OutboxService) PublishTx(tx *gorm.DB, topic string, payload map[string]interface{}) error {
	if s == nil || s.repo == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := &models.EventOutbox{
		EventID: uuid.NewString(),
		Topic:   strings.TrimSpace(topic),
		Payload: string(body),
		Status:  constants.OutboxStatusPending,
	}
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	return repo.Create(event)
}

// DispatchPending 投递一批到期事件，返回成功投递数量
func (s *OutboxService) DispatchPending(now time.Time) (int, error) {
	if s == nil || s.repo == nil {
		return 0, nil
	}
	events, err := s.repo.ListPendingForUpdate(now, s.batchSize)
	if err != nil {
		return 0, err
	}
	dispatched := 0
	for i := range events {
		event := events[i]
		if err := s.dispatch(&event); err != nil {
			event.Attempts++
			event.LastError = err.Error()
			if event.Attempts >= s.maxAttempts {
				event.Status = constants.OutboxStatusFailed
				logger.Errorw("outbox_event_failed", "event_id", event.EventID, "topic", event.Topic, "attempts", event.Attempts, "error", err)
			} else {
				next := now.Add(outboxBackoff(event.Attempts))
				event.NextAttemptAt = &next
				logger.Warnw("outbox_event_retry", "event_id", event.EventID, "topic", event.Topic, "attempts", event.Attempts, "error", err)
			}
		} else {
			dispatchedAt := time.Now()
			event.Status = constants.OutboxStatusDispatched
			event.DispatchedAt = &dispatchedAt
			event.NextAttemptAt = nil
			event.LastError = ""
			dispatched++
		}
		if err := s.repo.Update(&event); err != nil {
			return dispatched, err
		}
	}
	return dispatched, nil
}

func (s *OutboxService) dispatch(event *models.EventOutbox) error {
	switch event.Topic {
	case constants.EventTopicOrderPaid:
		var payload queue.CommissionAttributePayload
		if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
			return err
		}
		return s.queueClient.EnqueueCommissionAttribute(payload)

	case constants.EventTopicOrderCompleted:
		setting, err := s.settingService.GetDistributionSetting()
		if err != nil {
			return err
		}
		if !setting.SettleOnOrderComplete {
			logger.Debugw("outbox_skip_auto_settle", "event_id", event.EventID)
			return nil
		}
		var payload queue.CommissionSettlePayload
		if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
			return err
		}
		return s.queueClient.EnqueueCommissionSettle(payload)

	default:
		// 其余主题当前没有下游消费者，投递即记录审计日志。
		logger.Infow("outbox_event_dispatched", "event_id", event.EventID, "topic", event.Topic, "payload", event.Payload)
		return nil
	}
}

func outboxBackoff(attempts int) time.Duration {
	backoff := outboxBaseBackoff
	for i := 1; i < attempts; i++ {
		backoff *= 2
		if backoff >= outboxMaxBackoff {
			return outboxMaxBackoff
		}
	}
	return backoff
}

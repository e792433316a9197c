package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fenxiao-mall/internal/logger"
	"github.com/fenxiao-mall/internal/provider"
	"github.com/fenxiao-mall/internal/queue"
	"github.com/fenxiao-mall/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCommissionAttribute, c.handleCommissionAttribute)
	mux.HandleFunc(queue.TaskCommissionSettle, c.handleCommissionSettle)
}

func (c *Consumer) handleCommissionAttribute(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_commission_attribute_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CommissionAttributePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_commission_attribute_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_commission_attribute_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.CommissionService == nil {
		logger.Warnw("worker_commission_attribute_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	if err := c.CommissionService.AttributeOrder(payload.OrderID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			logger.Debugw("worker_commission_attribute_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		case errors.Is(err, service.ErrDistributionDisabled):
			logger.Debugw("worker_commission_attribute_skip_disabled", "order_id", payload.OrderID)
			return nil
		case errors.Is(err, service.ErrOrderStatusInvalid):
			logger.Debugw("worker_commission_attribute_skip_invalid_status", "order_id", payload.OrderID)
			return nil
		default:
			logger.Warnw("worker_commission_attribute_failed", "order_id", payload.OrderID, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleCommissionSettle(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_commission_settle_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CommissionSettlePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_commission_settle_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_commission_settle_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.CommissionService == nil {
		logger.Warnw("worker_commission_settle_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	if err := c.CommissionService.SettleOrder(payload.OrderID, payload.OperatorID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			logger.Debugw("worker_commission_settle_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		case errors.Is(err, service.ErrOrderStatusInvalid):
			logger.Debugw("worker_commission_settle_skip_invalid_status", "order_id", payload.OrderID)
			return nil
		default:
			logger.Warnw("worker_commission_settle_failed", "order_id", payload.OrderID, "error", err)
			return err
		}
	}
	return nil
}

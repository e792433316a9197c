package queue

import (
	"encoding/json"

	"github.com/fenxiao-mall/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCommissionAttribute 佣金归属任务
	TaskCommissionAttribute = constants.TaskCommissionAttribute
	// TaskCommissionSettle 佣金结算任务
	TaskCommissionSettle = constants.TaskCommissionSettle
	// TaskOutboxDispatch 发件箱投递任务
	TaskOutboxDispatch = constants.TaskOutboxDispatch
)

// CommissionAttributePayload 佣金归属任务载荷
type CommissionAttributePayload struct {
	OrderID uint `json:"order_id"`
}

// CommissionSettlePayload 佣金结算任务载荷
type CommissionSettlePayload struct {
	OrderID    uint  `json:"order_id"`
	OperatorID *uint `json:"operator_id,omitempty"`
}

// OutboxDispatchPayload 发件箱投递任务载荷
type OutboxDispatchPayload struct {
	EventID string `json:"event_id"`
}

// NewCommissionAttributeTask 创建佣金归属任务
func NewCommissionAttributeTask(payload CommissionAttributePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCommissionAttribute, body), nil
}

// NewCommissionSettleTask 创建佣金结算任务
func NewCommissionSettleTask(payload CommissionSettlePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCommissionSettle, body), nil
}

// NewOutboxDispatchTask 创建发件箱投递任务
func NewOutboxDispatchTask(payload OutboxDispatchPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOutboxDispatch, body), nil
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// Order 订单表
type Order struct {
	ID               uint           `gorm:"primarykey" json:"id"`                                          // 主键
	OrderNo          string         `gorm:"uniqueIndex;not null" json:"order_no"`                          // 订单编号
	UserID           uint           `gorm:"index;not null" json:"user_id"`                                 // 用户ID
	Status           string         `gorm:"index;not null" json:"status"`                                  // 订单状态
	Currency         string         `gorm:"not null" json:"currency"`                                      // 币种
	TotalAmount      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`     // 实付金额
	RefundedAmount   Money          `gorm:"type:decimal(20,2);not null;default:0" json:"refunded_amount"`  // 累计退款金额
	DistributionCode string         `gorm:"type:varchar(32);index" json:"distribution_code,omitempty"`     // 下单时携带的分销码快照
	ClientIP         string         `gorm:"type:varchar(64)" json:"client_ip,omitempty"`                   // 下单客户端IP
	PaidAt           *time.Time     `gorm:"index" json:"paid_at"`                                          // 支付时间
	CompletedAt      *time.Time     `gorm:"index" json:"completed_at"`                                     // 完成时间
	CanceledAt       *time.Time     `gorm:"index" json:"canceled_at"`                                      // 取消时间
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt        time.Time      `gorm:"index" json:"updated_at"`                                       // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                                                // 软删除时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
	Logs  []OrderLog  `gorm:"foreignKey:OrderID" json:"logs,omitempty"`  // 状态流转日志
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

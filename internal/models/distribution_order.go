package models

import (
	"time"

	"gorm.io/gorm"
)

// DistributionOrder 分销佣金单（台账行）
// 每个（链路层级, 来源订单）一行；行只做状态流转，从不物理删除。
type DistributionOrder struct {
	ID               uint           `gorm:"primarykey" json:"id"`                                                                 // 主键
	DistributorID    uint           `gorm:"not null;index;index:idx_distribution_order_unique,unique" json:"distributor_id"`      // 受益分销员ID
	OrderID          uint           `gorm:"not null;index;index:idx_distribution_order_unique,unique" json:"order_id"`            // 来源订单ID
	OrderNo          string         `gorm:"type:varchar(64);not null;index" json:"order_no"`                                      // 来源订单编号
	BuyerUserID      uint           `gorm:"index" json:"buyer_user_id"`                                                           // 买家用户ID
	CommissionLevel  int            `gorm:"not null;index:idx_distribution_order_unique,unique" json:"commission_level"`          // 链路层级（1-3）
	OrderAmount      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"order_amount"`                            // 订单实付金额
	ProductAmount    Money          `gorm:"type:decimal(20,2);not null;default:0" json:"product_amount"`                          // 参与分销的商品金额
	CommissionRate   Money          `gorm:"type:decimal(10,2);not null;default:0" json:"commission_rate"`                         // 本层级佣金比例（百分比）
	FirstAmount      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"first_amount"`                            // 一级佣金金额
	SecondAmount     Money          `gorm:"type:decimal(20,2);not null;default:0" json:"second_amount"`                           // 二级佣金金额
	ThirdAmount      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"third_amount"`                            // 三级佣金金额
	TotalCommission  Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_commission"`                        // 本行佣金合计
	RefundCommission Money          `gorm:"type:decimal(20,2);not null;default:0" json:"refund_commission"`                       // 已回冲佣金
	CommissionStatus string         `gorm:"type:varchar(32);not null;index" json:"commission_status"`                             // 佣金状态
	SettledBy        *uint          `gorm:"index" json:"settled_by,omitempty"`                                                    // 结算操作管理员ID
	SettledAt        *time.Time     `gorm:"index" json:"settled_at,omitempty"`                                                    // 结算时间
	RefundedAt       *time.Time     `json:"refunded_at,omitempty"`                                                                // 回冲时间
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`                                                              // 创建时间
	UpdatedAt        time.Time      `gorm:"index" json:"updated_at"`                                                              // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                                                                       // 软删除时间

	Distributor Distributor `gorm:"foreignKey:DistributorID" json:"distributor,omitempty"` // 受益分销员
	Order       Order       `gorm:"foreignKey:OrderID" json:"order,omitempty"`             // 来源订单
}

// TableName 指定表名
func (DistributionOrder) TableName() string {
	return "distribution_orders"
}

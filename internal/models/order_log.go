package models

import "time"

// OrderLog 订单状态流转日志
type OrderLog struct {
	ID         uint      `gorm:"primarykey" json:"id"`                      // 主键
	OrderID    uint      `gorm:"index;not null" json:"order_id"`            // 订单ID
	FromStatus string    `gorm:"type:varchar(32)" json:"from_status"`       // 原状态
	ToStatus   string    `gorm:"type:varchar(32);not null" json:"to_status"`// 新状态
	OperatorID *uint     `gorm:"index" json:"operator_id,omitempty"`        // 操作管理员ID（用户操作为空）
	Remark     string    `gorm:"type:varchar(255)" json:"remark,omitempty"` // 备注
	CreatedAt  time.Time `gorm:"index" json:"created_at"`                   // 创建时间
}

// TableName 指定表名
func (OrderLog) TableName() string {
	return "order_logs"
}

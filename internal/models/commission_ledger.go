package models

import (
	"time"
)

// CommissionLedger 佣金流水（追加写）
// 每条记录描述某个分销员某个余额桶的一次带符号变化，Reference 唯一保证同一业务动作不重复入账。
type CommissionLedger struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                       // 主键
	DistributorID uint      `gorm:"not null;index" json:"distributor_id"`                       // 分销员ID
	Bucket        string    `gorm:"type:varchar(20);not null" json:"bucket"`                    // 余额桶 total/available/frozen
	Delta         Money     `gorm:"type:decimal(20,2);not null;default:0" json:"delta"`         // 带符号变化量
	BalanceAfter  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"balance_after"` // 变化后余额
	Reference     string    `gorm:"type:varchar(128);not null;uniqueIndex" json:"reference"`    // 幂等引用键
	SourceKind    string    `gorm:"type:varchar(32);not null;index" json:"source_kind"`         // 来源类型
	SourceID      uint      `gorm:"not null;default:0;index" json:"source_id"`                  // 来源记录ID
	Remark        string    `gorm:"type:varchar(255)" json:"remark,omitempty"`                  // 备注
	CreatedAt     time.Time `gorm:"index" json:"created_at"`                                    // 创建时间
}

// TableName 指定表名
func (CommissionLedger) TableName() string {
	return "commission_ledgers"
}

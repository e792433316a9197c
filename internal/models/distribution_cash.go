package models

import (
	"time"

	"gorm.io/gorm"
)

// DistributionCash 分销提现申请
// ActiveFlag 在申请处于 pending/processing 时等于 DistributorID，关闭后置 NULL；
// 配合唯一索引在存储层保证同一分销员最多一笔在途提现。
type DistributionCash struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                        // 主键
	CashNo        string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"cash_no"`        // 提现单号
	DistributorID uint           `gorm:"not null;index" json:"distributor_id"`                        // 分销员ID
	Amount        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`         // 申请金额
	Fee           Money          `gorm:"type:decimal(20,2);not null;default:0" json:"fee"`            // 手续费
	ActualAmount  Money          `gorm:"type:decimal(20,2);not null;default:0" json:"actual_amount"`  // 实际到账金额
	Method        string         `gorm:"type:varchar(20);not null" json:"method"`                     // 提现方式
	Account       string         `gorm:"type:varchar(128);not null" json:"account"`                   // 收款账号
	Status        string         `gorm:"type:varchar(20);not null;index" json:"status"`               // 状态
	ActiveFlag    *uint          `gorm:"uniqueIndex" json:"-"`                                        // 在途标记（存储层唯一约束）
	AuditedBy     *uint          `gorm:"index" json:"audited_by,omitempty"`                           // 审核管理员ID
	AuditedAt     *time.Time     `json:"audited_at,omitempty"`                                        // 审核时间
	RejectReason  string         `gorm:"type:varchar(255)" json:"reject_reason,omitempty"`            // 驳回原因
	ExternalTxnNo string         `gorm:"type:varchar(128)" json:"external_txn_no,omitempty"`          // 外部打款流水号
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`                                      // 完成时间
	CanceledAt    *time.Time     `json:"canceled_at,omitempty"`                                       // 取消时间
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                                     // 创建时间
	UpdatedAt     time.Time      `gorm:"index" json:"updated_at"`                                     // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                              // 软删除时间

	Distributor Distributor `gorm:"foreignKey:DistributorID" json:"distributor,omitempty"` // 分销员
}

// TableName 指定表名
func (DistributionCash) TableName() string {
	return "distribution_cashes"
}

// IsOpen 是否仍在途（占用唯一在途名额）
func (c *DistributionCash) IsOpen() bool {
	return c != nil && c.ActiveFlag != nil
}

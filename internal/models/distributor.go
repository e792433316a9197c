package models

import (
	"time"

	"gorm.io/gorm"
)

// Distributor 分销员档案
// 通过 ParentID 构成最多三层的推荐链；余额分为累计/可提现/冻结三个桶，
// 任何时刻 available + frozen ≤ total 且均非负。
type Distributor struct {
	ID                  uint           `gorm:"primarykey" json:"id"`                                                  // 主键
	UserID              uint           `gorm:"not null;uniqueIndex" json:"user_id"`                                   // 用户ID
	ParentID            *uint          `gorm:"index" json:"parent_id,omitempty"`                                      // 上级分销员ID
	Code                string         `gorm:"type:varchar(32);not null;uniqueIndex" json:"code"`                     // 分销码
	Level               int            `gorm:"not null;default:1" json:"level"`                                       // 分销员等级
	Status              string         `gorm:"type:varchar(20);not null;index" json:"status"`                         // 状态
	TotalCommission     Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_commission"`         // 累计佣金
	AvailableCommission Money          `gorm:"type:decimal(20,2);not null;default:0" json:"available_commission"`     // 可提现佣金
	FrozenCommission    Money          `gorm:"type:decimal(20,2);not null;default:0" json:"frozen_commission"`        // 冻结佣金
	ApplyRemark         string         `gorm:"type:varchar(255)" json:"apply_remark,omitempty"`                       // 申请备注
	RejectReason        string         `gorm:"type:varchar(255)" json:"reject_reason,omitempty"`                      // 驳回原因
	AuditedBy           *uint          `gorm:"index" json:"audited_by,omitempty"`                                     // 审核管理员ID
	AuditedAt           *time.Time     `json:"audited_at,omitempty"`                                                  // 审核时间
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`                                               // 创建时间
	UpdatedAt           time.Time      `gorm:"index" json:"updated_at"`                                               // 更新时间
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`                                                        // 软删除时间

	User   User         `gorm:"foreignKey:UserID" json:"user,omitempty"`     // 用户信息
	Parent *Distributor `gorm:"foreignKey:ParentID" json:"parent,omitempty"` // 上级分销员
}

// TableName 指定表名
func (Distributor) TableName() string {
	return "distributors"
}

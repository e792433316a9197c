package models

import (
	"time"
)

// EventOutbox 事件发件箱
// 业务事务内写入，由后台任务轮询投递，避免事务提交与事件发布之间的不一致。
type EventOutbox struct {
	ID            uint       `gorm:"primarykey" json:"id"`                                 // 主键
	EventID       string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"event_id"` // 事件唯一ID
	Topic         string     `gorm:"type:varchar(64);not null;index" json:"topic"`         // 事件主题
	Payload       string     `gorm:"type:text;not null" json:"payload"`                    // JSON负载
	Status        string     `gorm:"type:varchar(20);not null;index" json:"status"`        // 状态 pending/dispatched/failed
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`                   // 已尝试次数
	NextAttemptAt *time.Time `gorm:"index" json:"next_attempt_at,omitempty"`               // 下次尝试时间
	LastError     string     `gorm:"type:varchar(500)" json:"last_error,omitempty"`        // 最近一次失败原因
	DispatchedAt  *time.Time `json:"dispatched_at,omitempty"`                              // 投递成功时间
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`                              // 创建时间
	UpdatedAt     time.Time  `json:"updated_at"`                                           // 更新时间
}

// TableName 指定表名
func (EventOutbox) TableName() string {
	return "event_outboxes"
}

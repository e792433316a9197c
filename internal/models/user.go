package models

import (
	"time"

	"gorm.io/gorm"
)

// User 买家用户
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`                                // 主键
	Email        string         `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"` // 邮箱
	PasswordHash string         `gorm:"type:varchar(255);not null" json:"-"`                 // 密码哈希
	DisplayName  string         `gorm:"type:varchar(64)" json:"display_name"`                // 昵称
	Status       string         `gorm:"type:varchar(20);not null;index" json:"status"`       // 状态
	LastLoginAt  *time.Time     `json:"last_login_at,omitempty"`                             // 最近登录时间
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                             // 创建时间
	UpdatedAt    time.Time      `json:"updated_at"`                                          // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                      // 软删除时间
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

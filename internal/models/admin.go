package models

import "time"

// Admin 管理员账号
type Admin struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                  // 主键
	Username     string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"username"` // 登录名
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`                   // 密码哈希
	IsSuper      bool      `gorm:"not null;default:false" json:"is_super"`                // 是否超级管理员
	CreatedAt    time.Time `json:"created_at"`                                            // 创建时间
	UpdatedAt    time.Time `json:"updated_at"`                                            // 更新时间
}

// TableName 指定表名
func (Admin) TableName() string {
	return "admins"
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品
// 分销比例按商品配置，未配置的层级不产生佣金。
type Product struct {
	ID                    uint           `gorm:"primarykey" json:"id"`                                        // 主键
	Title                 string         `gorm:"type:varchar(255);not null" json:"title"`                     // 标题
	Slug                  string         `gorm:"type:varchar(255);not null;uniqueIndex" json:"slug"`          // URL 标识
	Price                 Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price"`          // 单价
	Stock                 int            `gorm:"not null;default:0" json:"stock"`                             // 库存
	IsActive              bool           `gorm:"not null;default:true;index" json:"is_active"`                // 是否上架
	IsDistributionEnabled bool           `gorm:"not null;default:false;index" json:"is_distribution_enabled"` // 是否参与分销
	FirstLevelRate        Money          `gorm:"type:decimal(10,2);not null;default:0" json:"first_level_rate"`  // 一级佣金比例（百分比）
	SecondLevelRate       Money          `gorm:"type:decimal(10,2);not null;default:0" json:"second_level_rate"` // 二级佣金比例（百分比）
	ThirdLevelRate        Money          `gorm:"type:decimal(10,2);not null;default:0" json:"third_level_rate"`  // 三级佣金比例（百分比）
	CreatedAt             time.Time      `gorm:"index" json:"created_at"`                                     // 创建时间
	UpdatedAt             time.Time      `json:"updated_at"`                                                  // 更新时间
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`                                              // 软删除时间
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

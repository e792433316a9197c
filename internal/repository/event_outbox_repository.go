package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/fenxiao-mall/internal/constants"
	"github.com/fenxiao-mall/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventOutboxRepository 事件发件箱数据访问接口
type EventOutboxRepository interface {
	WithTx(tx *gorm.DB) EventOutboxRepository

	Create(event *models.EventOutbox) error
	Update(event *models.EventOutbox) error
	GetByEventID(eventID string) (*models.EventOutbox, error)
	ListPendingForUpdate(now time.Time, limit int) ([]models.EventOutbox, error)
	CountByStatus(status string) (int64, error)
}

// GormEventOutboxRepository GORM 事件发件箱仓储
type GormEventOutboxRepository struct {
	db *gorm.DB
}

// NewEventOutboxRepository 创建事件发件箱仓库
func NewEventOutboxRepository(db *gorm.DB) *GormEventOutboxRepository {
	return &GormEventOutboxRepository{db: db}
}

// WithTx 绑定事务
func (r *GormEventOutboxRepository) WithTx(tx *gorm.DB) EventOutboxRepository {
	if tx == nil {
		return r
	}
	return &GormEventOutboxRepository{db: tx}
}

// Create 写入待投递事件
func (r *GormEventOutboxRepository) Create(event *models.EventOutbox) error {
	return r.db.Create(event).Error
}

// Update 更新事件投递状态
func (r *GormEventOutboxRepository) Update(event *models.EventOutbox) error {
	return r.db.Save(event).Error
}

// GetByEventID 按事件ID查询
func (r *GormEventOutboxRepository) GetByEventID(eventID string) (*models.EventOutbox, error) {
	normalized := strings.TrimSpace(eventID)
	if normalized == "" {
		return nil, nil
	}
	var event models.EventOutbox
	if err := r.db.Where("event_id = ?", normalized).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// ListPendingForUpdate 锁定查询到期待投递事件
func (r *GormEventOutboxRepository) ListPendingForUpdate(now time.Time, limit int) ([]models.EventOutbox, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.EventOutbox
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)", constants.OutboxStatusPending, now).
		Order("id asc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByStatus 按状态统计事件数量
func (r *GormEventOutboxRepository) CountByStatus(status string) (int64, error) {
	var total int64
	if err := r.db.Model(&models.EventOutbox{}).Where("status = ?", status).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

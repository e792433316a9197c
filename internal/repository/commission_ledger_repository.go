package repository

import (
	"errors"
	"strings"

	"github.com/fenxiao-mall/internal/models"
	"github.com/shopspring/decimal"

	"gorm.io/gorm"
)

// CommissionLedgerRepository 佣金流水数据访问接口
// 流水只追加，不更新不删除。
type CommissionLedgerRepository interface {
	WithTx(tx *gorm.DB) CommissionLedgerRepository

	Append(entry *models.CommissionLedger) error
	GetByReference(reference string) (*models.CommissionLedger, error)
	List(filter CommissionLedgerListFilter) ([]models.CommissionLedger, int64, error)
	SumDeltaByBucket(distributorID uint, bucket string) (decimal.Decimal, error)
}

// GormCommissionLedgerRepository GORM 佣金流水仓储
type GormCommissionLedgerRepository struct {
	db *gorm.DB
}

// NewCommissionLedgerRepository 创建佣金流水仓库
func NewCommissionLedgerRepository(db *gorm.DB) *GormCommissionLedgerRepository {
	return &GormCommissionLedgerRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionLedgerRepository) WithTx(tx *gorm.DB) CommissionLedgerRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionLedgerRepository{db: tx}
}

// Append 追加一条流水
func (r *GormCommissionLedgerRepository) Append(entry *models.CommissionLedger) error {
	return r.db.Create(entry).Error
}

// GetByReference 按幂等引用键查询流水
func (r *GormCommissionLedgerRepository) GetByReference(reference string) (*models.CommissionLedger, error) {
	normalized := strings.TrimSpace(reference)
	if normalized == "" {
		return nil, nil
	}
	var entry models.CommissionLedger
	if err := r.db.Where("reference = ?", normalized).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// List 查询流水列表
func (r *GormCommissionLedgerRepository) List(filter CommissionLedgerListFilter) ([]models.CommissionLedger, int64, error) {
	query := r.db.Model(&models.CommissionLedger{})

	if filter.DistributorID != 0 {
		query = query.Where("distributor_id = ?", filter.DistributorID)
	}
	if bucket := strings.TrimSpace(filter.Bucket); bucket != "" {
		query = query.Where("bucket = ?", bucket)
	}
	if sourceKind := strings.TrimSpace(filter.SourceKind); sourceKind != "" {
		query = query.Where("source_kind = ?", sourceKind)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.CommissionLedger
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// SumDeltaByBucket 汇总某个余额桶的流水净额
func (r *GormCommissionLedgerRepository) SumDeltaByBucket(distributorID uint, bucket string) (decimal.Decimal, error) {
	if distributorID == 0 || strings.TrimSpace(bucket) == "" {
		return decimal.Zero, nil
	}
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	if err := r.db.Model(&models.CommissionLedger{}).
		Where("distributor_id = ? AND bucket = ?", distributorID, bucket).
		Select("COALESCE(SUM(delta), 0) AS total").
		Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}

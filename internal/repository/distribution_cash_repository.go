package repository

import (
	"errors"
	"strings"

	"github.com/fenxiao-mall/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DistributionCashRepository 提现申请数据访问接口
type DistributionCashRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) DistributionCashRepository

	Create(cash *models.DistributionCash) error
	Update(cash *models.DistributionCash) error
	GetByID(id uint) (*models.DistributionCash, error)
	GetByIDForUpdate(id uint) (*models.DistributionCash, error)
	GetByCashNo(cashNo string) (*models.DistributionCash, error)
	GetOpenByDistributor(distributorID uint) (*models.DistributionCash, error)
	List(filter DistributionCashListFilter) ([]models.DistributionCash, int64, error)
}

// GormDistributionCashRepository GORM 提现申请仓储
type GormDistributionCashRepository struct {
	db *gorm.DB
}

// NewDistributionCashRepository 创建提现申请仓库
func NewDistributionCashRepository(db *gorm.DB) *GormDistributionCashRepository {
	return &GormDistributionCashRepository{db: db}
}

// WithTx 绑定事务
func (r *GormDistributionCashRepository) WithTx(tx *gorm.DB) DistributionCashRepository {
	if tx == nil {
		return r
	}
	return &GormDistributionCashRepository{db: tx}
}

// Transaction 执行事务
func (r *GormDistributionCashRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建提现申请
func (r *GormDistributionCashRepository) Create(cash *models.DistributionCash) error {
	return r.db.Create(cash).Error
}

// Update 更新提现申请
func (r *GormDistributionCashRepository) Update(cash *models.DistributionCash) error {
	return r.db.Save(cash).Error
}

// GetByID 按ID获取提现申请
func (r *GormDistributionCashRepository) GetByID(id uint) (*models.DistributionCash, error) {
	if id == 0 {
		return nil, nil
	}
	var cash models.DistributionCash
	if err := r.db.Preload("Distributor").Preload("Distributor.User").First(&cash, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cash, nil
}

// GetByIDForUpdate 按ID锁定查询提现申请
func (r *GormDistributionCashRepository) GetByIDForUpdate(id uint) (*models.DistributionCash, error) {
	if id == 0 {
		return nil, nil
	}
	var cash models.DistributionCash
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&cash, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cash, nil
}

// GetByCashNo 按提现单号获取提现申请
func (r *GormDistributionCashRepository) GetByCashNo(cashNo string) (*models.DistributionCash, error) {
	normalized := strings.TrimSpace(cashNo)
	if normalized == "" {
		return nil, nil
	}
	var cash models.DistributionCash
	if err := r.db.Preload("Distributor").Where("cash_no = ?", normalized).First(&cash).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cash, nil
}

// GetOpenByDistributor 查询分销员在途提现申请
func (r *GormDistributionCashRepository) GetOpenByDistributor(distributorID uint) (*models.DistributionCash, error) {
	if distributorID == 0 {
		return nil, nil
	}
	var cash models.DistributionCash
	if err := r.db.Where("distributor_id = ? AND active_flag IS NOT NULL", distributorID).First(&cash).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cash, nil
}

// List 查询提现申请列表
func (r *GormDistributionCashRepository) List(filter DistributionCashListFilter) ([]models.DistributionCash, int64, error) {
	query := r.db.Model(&models.DistributionCash{}).
		Preload("Distributor").
		Preload("Distributor.User")

	if filter.DistributorID != 0 {
		query = query.Where("distribution_cashes.distributor_id = ?", filter.DistributorID)
	}
	if cashNo := strings.TrimSpace(filter.CashNo); cashNo != "" {
		query = query.Where("distribution_cashes.cash_no LIKE ?", "%"+cashNo+"%")
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("distribution_cashes.status = ?", status)
	}
	if method := strings.TrimSpace(filter.Method); method != "" {
		query = query.Where("distribution_cashes.method = ?", method)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		like := "%" + keyword + "%"
		query = query.
			Joins("LEFT JOIN distributors d ON d.id = distribution_cashes.distributor_id").
			Joins("LEFT JOIN users u ON u.id = d.user_id").
			Where("(u.email LIKE ? OR u.display_name LIKE ? OR d.code LIKE ? OR distribution_cashes.account LIKE ?)",
				like, like, like, like)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("distribution_cashes.created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("distribution_cashes.created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.DistributionCash
	if err := query.Order("distribution_cashes.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

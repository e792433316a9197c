package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/fenxiao-mall/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DistributorRepository 分销员数据访问接口
type DistributorRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) DistributorRepository

	Create(distributor *models.Distributor) error
	Update(distributor *models.Distributor) error
	GetByID(id uint) (*models.Distributor, error)
	GetByIDForUpdate(id uint) (*models.Distributor, error)
	GetByUserID(userID uint) (*models.Distributor, error)
	GetByCode(code string) (*models.Distributor, error)
	List(filter DistributorListFilter) ([]models.Distributor, int64, error)
	ListChildren(parentID uint) ([]models.Distributor, error)
	CountChildren(parentID uint) (int64, error)
	UpdateStatus(id uint, status string, updatedAt time.Time) error
}

// GormDistributorRepository GORM 分销员仓储
type GormDistributorRepository struct {
	db *gorm.DB
}

// NewDistributorRepository 创建分销员仓库
func NewDistributorRepository(db *gorm.DB) *GormDistributorRepository {
	return &GormDistributorRepository{db: db}
}

// WithTx 绑定事务
func (r *GormDistributorRepository) WithTx(tx *gorm.DB) DistributorRepository {
	if tx == nil {
		return r
	}
	return &GormDistributorRepository{db: tx}
}

// Transaction 执行事务
func (r *GormDistributorRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建分销员
func (r *GormDistributorRepository) Create(distributor *models.Distributor) error {
	return r.db.Create(distributor).Error
}

// Update 更新分销员
func (r *GormDistributorRepository) Update(distributor *models.Distributor) error {
	return r.db.Save(distributor).Error
}

// GetByID 按ID获取分销员
func (r *GormDistributorRepository) GetByID(id uint) (*models.Distributor, error) {
	if id == 0 {
		return nil, nil
	}
	var distributor models.Distributor
	if err := r.db.Preload("User").First(&distributor, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &distributor, nil
}

// GetByIDForUpdate 按ID锁定查询分销员
func (r *GormDistributorRepository) GetByIDForUpdate(id uint) (*models.Distributor, error) {
	if id == 0 {
		return nil, nil
	}
	var distributor models.Distributor
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&distributor, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &distributor, nil
}

// GetByUserID 按用户ID获取分销员
func (r *GormDistributorRepository) GetByUserID(userID uint) (*models.Distributor, error) {
	if userID == 0 {
		return nil, nil
	}
	var distributor models.Distributor
	if err := r.db.Preload("User").Where("user_id = ?", userID).First(&distributor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &distributor, nil
}

// GetByCode 按推广码获取分销员
func (r *GormDistributorRepository) GetByCode(code string) (*models.Distributor, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, nil
	}
	var distributor models.Distributor
	if err := r.db.Preload("User").Where("code = ?", normalized).First(&distributor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &distributor, nil
}

// List 查询分销员列表
func (r *GormDistributorRepository) List(filter DistributorListFilter) ([]models.Distributor, int64, error) {
	query := r.db.Model(&models.Distributor{}).Preload("User")

	if filter.UserID != 0 {
		query = query.Where("distributors.user_id = ?", filter.UserID)
	}
	if filter.ParentID != 0 {
		query = query.Where("distributors.parent_id = ?", filter.ParentID)
	}
	if code := strings.TrimSpace(filter.Code); code != "" {
		query = query.Where("distributors.code = ?", strings.ToUpper(code))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("distributors.status = ?", status)
	}
	if filter.Level != 0 {
		query = query.Where("distributors.level = ?", filter.Level)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		like := "%" + keyword + "%"
		query = query.
			Joins("LEFT JOIN users ON users.id = distributors.user_id").
			Where("(users.email LIKE ? OR users.display_name LIKE ? OR distributors.code LIKE ?)", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.Distributor
	if err := query.Order("distributors.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListChildren 查询直接下级
func (r *GormDistributorRepository) ListChildren(parentID uint) ([]models.Distributor, error) {
	if parentID == 0 {
		return []models.Distributor{}, nil
	}
	var rows []models.Distributor
	if err := r.db.Preload("User").Where("parent_id = ?", parentID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountChildren 统计直接下级数量
func (r *GormDistributorRepository) CountChildren(parentID uint) (int64, error) {
	if parentID == 0 {
		return 0, nil
	}
	var total int64
	if err := r.db.Model(&models.Distributor{}).Where("parent_id = ?", parentID).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// UpdateStatus 更新分销员状态
func (r *GormDistributorRepository) UpdateStatus(id uint, status string, updatedAt time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Distributor{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     strings.TrimSpace(status),
			"updated_at": updatedAt,
		}).Error
}

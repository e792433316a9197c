package repository

import (
	"errors"
	"strings"

	"github.com/fenxiao-mall/internal/constants"
	"github.com/fenxiao-mall/internal/models"
	"github.com/shopspring/decimal"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DistributionOrderRepository 佣金明细数据访问接口
type DistributionOrderRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) DistributionOrderRepository

	Create(row *models.DistributionOrder) error
	Update(row *models.DistributionOrder) error
	GetByID(id uint) (*models.DistributionOrder, error)
	GetByDistributorAndOrder(distributorID, orderID uint, level int) (*models.DistributionOrder, error)
	ListByOrder(orderID uint, statuses []string) ([]models.DistributionOrder, error)
	ListByOrderForUpdate(orderID uint, statuses []string) ([]models.DistributionOrder, error)
	List(filter DistributionOrderListFilter) ([]models.DistributionOrder, int64, error)
	SumByDistributor(distributorID uint, statuses []string) (decimal.Decimal, error)
	GetDistributorStatsBatch(distributorIDs []uint) (map[uint]DistributorStatsAggregate, error)
	GetOverview() (DistributionOverviewAggregate, error)
}

// GormDistributionOrderRepository GORM 佣金明细仓储
type GormDistributionOrderRepository struct {
	db *gorm.DB
}

// NewDistributionOrderRepository 创建佣金明细仓库
func NewDistributionOrderRepository(db *gorm.DB) *GormDistributionOrderRepository {
	return &GormDistributionOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormDistributionOrderRepository) WithTx(tx *gorm.DB) DistributionOrderRepository {
	if tx == nil {
		return r
	}
	return &GormDistributionOrderRepository{db: tx}
}

// Transaction 执行事务
func (r *GormDistributionOrderRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建佣金明细
func (r *GormDistributionOrderRepository) Create(row *models.DistributionOrder) error {
	return r.db.Create(row).Error
}

// Update 更新佣金明细
func (r *GormDistributionOrderRepository) Update(row *models.DistributionOrder) error {
	return r.db.Save(row).Error
}

// GetByID 按ID获取佣金明细
func (r *GormDistributionOrderRepository) GetByID(id uint) (*models.DistributionOrder, error) {
	if id == 0 {
		return nil, nil
	}
	var row models.DistributionOrder
	if err := r.db.Preload("Distributor").Preload("Order").First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetByDistributorAndOrder 按分销员、订单与层级查询佣金明细
func (r *GormDistributionOrderRepository) GetByDistributorAndOrder(distributorID, orderID uint, level int) (*models.DistributionOrder, error) {
	if distributorID == 0 || orderID == 0 {
		return nil, nil
	}
	var row models.DistributionOrder
	if err := r.db.Where("distributor_id = ? AND order_id = ? AND commission_level = ?", distributorID, orderID, level).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListByOrder 按订单查询佣金明细
func (r *GormDistributionOrderRepository) ListByOrder(orderID uint, statuses []string) ([]models.DistributionOrder, error) {
	if orderID == 0 {
		return []models.DistributionOrder{}, nil
	}
	query := r.db.Model(&models.DistributionOrder{}).Where("order_id = ?", orderID)
	if len(statuses) > 0 {
		query = query.Where("commission_status IN ?", statuses)
	}
	var rows []models.DistributionOrder
	if err := query.Order("commission_level asc, id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByOrderForUpdate 按订单查询佣金明细并加锁
func (r *GormDistributionOrderRepository) ListByOrderForUpdate(orderID uint, statuses []string) ([]models.DistributionOrder, error) {
	if orderID == 0 {
		return []models.DistributionOrder{}, nil
	}
	query := r.db.Model(&models.DistributionOrder{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID)
	if len(statuses) > 0 {
		query = query.Where("commission_status IN ?", statuses)
	}
	var rows []models.DistributionOrder
	if err := query.Order("commission_level asc, id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// List 查询佣金明细列表
func (r *GormDistributionOrderRepository) List(filter DistributionOrderListFilter) ([]models.DistributionOrder, int64, error) {
	query := r.db.Model(&models.DistributionOrder{}).
		Preload("Distributor").
		Preload("Distributor.User").
		Preload("Order")

	if filter.DistributorID != 0 {
		query = query.Where("distribution_orders.distributor_id = ?", filter.DistributorID)
	}
	if filter.OrderID != 0 {
		query = query.Where("distribution_orders.order_id = ?", filter.OrderID)
	}
	if orderNo := strings.TrimSpace(filter.OrderNo); orderNo != "" {
		query = query.Joins("LEFT JOIN orders ON orders.id = distribution_orders.order_id").
			Where("orders.order_no LIKE ?", "%"+orderNo+"%")
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("distribution_orders.commission_status = ?", status)
	}
	if filter.Level != 0 {
		query = query.Where("distribution_orders.commission_level = ?", filter.Level)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("distribution_orders.created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("distribution_orders.created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.DistributionOrder
	if err := query.Order("distribution_orders.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// SumByDistributor 汇总指定状态的佣金金额
func (r *GormDistributionOrderRepository) SumByDistributor(distributorID uint, statuses []string) (decimal.Decimal, error) {
	if distributorID == 0 || len(statuses) == 0 {
		return decimal.Zero, nil
	}
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	if err := r.db.Model(&models.DistributionOrder{}).
		Where("distributor_id = ? AND commission_status IN ?", distributorID, statuses).
		Select("COALESCE(SUM(total_commission), 0) AS total").
		Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}

// GetDistributorStatsBatch 批量汇总分销员统计信息
func (r *GormDistributionOrderRepository) GetDistributorStatsBatch(distributorIDs []uint) (map[uint]DistributorStatsAggregate, error) {
	result := make(map[uint]DistributorStatsAggregate, len(distributorIDs))
	if len(distributorIDs) == 0 {
		return result, nil
	}

	for _, id := range distributorIDs {
		if id == 0 {
			continue
		}
		result[id] = DistributorStatsAggregate{
			TotalCommission: decimal.Zero,
			PendingAmount:   decimal.Zero,
			PaidAmount:      decimal.Zero,
			RefundedAmount:  decimal.Zero,
			WithdrawnAmount: decimal.Zero,
		}
	}

	var orderRows []struct {
		DistributorID uint  `gorm:"column:distributor_id"`
		Total         int64 `gorm:"column:total"`
	}
	if err := r.db.Model(&models.DistributionOrder{}).
		Select("distributor_id, COUNT(DISTINCT order_id) AS total").
		Where("distributor_id IN ? AND commission_status <> ?", distributorIDs, constants.CommissionStatusCancelled).
		Group("distributor_id").
		Scan(&orderRows).Error; err != nil {
		return nil, err
	}
	for _, row := range orderRows {
		item := result[row.DistributorID]
		item.OrderCount = row.Total
		result[row.DistributorID] = item
	}

	var settledRows []struct {
		DistributorID uint  `gorm:"column:distributor_id"`
		Total         int64 `gorm:"column:total"`
	}
	if err := r.db.Model(&models.DistributionOrder{}).
		Select("distributor_id, COUNT(DISTINCT order_id) AS total").
		Where("distributor_id IN ? AND commission_status IN ?", distributorIDs,
			[]string{constants.CommissionStatusPaid, constants.CommissionStatusRefunded}).
		Group("distributor_id").
		Scan(&settledRows).Error; err != nil {
		return nil, err
	}
	for _, row := range settledRows {
		item := result[row.DistributorID]
		item.SettledOrders = row.Total
		result[row.DistributorID] = item
	}

	var teamRows []struct {
		ParentID uint  `gorm:"column:parent_id"`
		Total    int64 `gorm:"column:total"`
	}
	if err := r.db.Model(&models.Distributor{}).
		Select("parent_id, COUNT(*) AS total").
		Where("parent_id IN ?", distributorIDs).
		Group("parent_id").
		Scan(&teamRows).Error; err != nil {
		return nil, err
	}
	for _, row := range teamRows {
		item := result[row.ParentID]
		item.TeamSize = row.Total
		result[row.ParentID] = item
	}

	statusSums := []struct {
		statuses []string
		assign   func(item *DistributorStatsAggregate, total decimal.Decimal)
	}{
		{
			statuses: []string{constants.CommissionStatusPending},
			assign:   func(item *DistributorStatsAggregate, total decimal.Decimal) { item.PendingAmount = total },
		},
		{
			statuses: []string{constants.CommissionStatusPaid, constants.CommissionStatusRefunded},
			assign:   func(item *DistributorStatsAggregate, total decimal.Decimal) { item.PaidAmount = total },
		},
	}
	for _, group := range statusSums {
		var sumRows []struct {
			DistributorID uint            `gorm:"column:distributor_id"`
			Total         decimal.Decimal `gorm:"column:total"`
		}
		if err := r.db.Model(&models.DistributionOrder{}).
			Select("distributor_id, COALESCE(SUM(total_commission), 0) AS total").
			Where("distributor_id IN ? AND commission_status IN ?", distributorIDs, group.statuses).
			Group("distributor_id").
			Scan(&sumRows).Error; err != nil {
			return nil, err
		}
		for _, row := range sumRows {
			item := result[row.DistributorID]
			group.assign(&item, row.Total.Round(2))
			result[row.DistributorID] = item
		}
	}

	var refundRows []struct {
		DistributorID uint            `gorm:"column:distributor_id"`
		Total         decimal.Decimal `gorm:"column:total"`
	}
	if err := r.db.Model(&models.DistributionOrder{}).
		Select("distributor_id, COALESCE(SUM(refund_commission), 0) AS total").
		Where("distributor_id IN ?", distributorIDs).
		Group("distributor_id").
		Scan(&refundRows).Error; err != nil {
		return nil, err
	}
	for _, row := range refundRows {
		item := result[row.DistributorID]
		item.RefundedAmount = row.Total.Round(2)
		result[row.DistributorID] = item
	}

	var cashRows []struct {
		DistributorID uint            `gorm:"column:distributor_id"`
		Total         decimal.Decimal `gorm:"column:total"`
		Open          int64           `gorm:"column:open_count"`
	}
	if err := r.db.Model(&models.DistributionCash{}).
		Select("distributor_id, COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS total, "+
			"COALESCE(SUM(CASE WHEN active_flag IS NOT NULL THEN 1 ELSE 0 END), 0) AS open_count",
			constants.CashStatusCompleted).
		Where("distributor_id IN ?", distributorIDs).
		Group("distributor_id").
		Scan(&cashRows).Error; err != nil {
		return nil, err
	}
	for _, row := range cashRows {
		item := result[row.DistributorID]
		item.WithdrawnAmount = row.Total.Round(2)
		item.WithdrawingCount = row.Open
		result[row.DistributorID] = item
	}

	for id, item := range result {
		item.TotalCommission = item.PendingAmount.Add(item.PaidAmount).Round(2)
		result[id] = item
	}

	return result, nil
}

// GetOverview 平台分销总览汇总
func (r *GormDistributionOrderRepository) GetOverview() (DistributionOverviewAggregate, error) {
	overview := DistributionOverviewAggregate{
		TotalCommission: decimal.Zero,
		PendingAmount:   decimal.Zero,
		PaidAmount:      decimal.Zero,
		RefundedAmount:  decimal.Zero,
		CashedAmount:    decimal.Zero,
	}

	if err := r.db.Model(&models.Distributor{}).
		Where("status = ?", constants.DistributorStatusApproved).
		Count(&overview.DistributorCount).Error; err != nil {
		return overview, err
	}
	if err := r.db.Model(&models.Distributor{}).
		Where("status = ?", constants.DistributorStatusPending).
		Count(&overview.PendingApplies).Error; err != nil {
		return overview, err
	}
	if err := r.db.Model(&models.DistributionOrder{}).
		Where("commission_status <> ?", constants.CommissionStatusCancelled).
		Distinct("order_id").
		Count(&overview.OrderCount).Error; err != nil {
		return overview, err
	}

	var commissionRow struct {
		Pending  decimal.Decimal `gorm:"column:pending"`
		Paid     decimal.Decimal `gorm:"column:paid"`
		Refunded decimal.Decimal `gorm:"column:refunded"`
	}
	if err := r.db.Model(&models.DistributionOrder{}).
		Select("COALESCE(SUM(CASE WHEN commission_status = ? THEN total_commission ELSE 0 END), 0) AS pending, "+
			"COALESCE(SUM(CASE WHEN commission_status IN ? THEN total_commission ELSE 0 END), 0) AS paid, "+
			"COALESCE(SUM(refund_commission), 0) AS refunded",
			constants.CommissionStatusPending,
			[]string{constants.CommissionStatusPaid, constants.CommissionStatusRefunded}).
		Scan(&commissionRow).Error; err != nil {
		return overview, err
	}
	overview.PendingAmount = commissionRow.Pending.Round(2)
	overview.PaidAmount = commissionRow.Paid.Round(2)
	overview.RefundedAmount = commissionRow.Refunded.Round(2)
	overview.TotalCommission = overview.PendingAmount.Add(overview.PaidAmount).Round(2)

	if err := r.db.Model(&models.DistributionCash{}).
		Where("status = ?", constants.CashStatusPending).
		Count(&overview.PendingCashes).Error; err != nil {
		return overview, err
	}

	var cashRow struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	if err := r.db.Model(&models.DistributionCash{}).
		Where("status = ?", constants.CashStatusCompleted).
		Select("COALESCE(SUM(amount), 0) AS total").
		Scan(&cashRow).Error; err != nil {
		return overview, err
	}
	overview.CashedAmount = cashRow.Total.Round(2)

	return overview, nil
}

package service

import (
	"github.com/fenxiao-mall/internal/models"
	"github.com/fenxiao-mall/internal/repository"
	"github.com/shopspring/decimal"
)

// StatsService 分销统计服务
type StatsService struct {
	distributorRepo repository.DistributorRepository
	orderRepo       repository.DistributionOrderRepository
	ledgerRepo      repository.CommissionLedgerRepository
}

// NewStatsService 创建统计服务
func NewStatsService(
	distributorRepo repository.DistributorRepository,
	orderRepo repository.DistributionOrderRepository,
	ledgerRepo repository.CommissionLedgerRepository,
) *StatsService {
	return &StatsService{
		distributorRepo: distributorRepo,
		orderRepo:       orderRepo,
		ledgerRepo:      ledgerRepo,
	}
}

// DistributorDashboard 分销员个人中心数据
type DistributorDashboard struct {
	Opened              bool         `json:"opened"`
	Code                string       `json:"code"`
	Status              string       `json:"status"`
	PromotionPath       string       `json:"promotion_path"`
	TotalCommission     models.Money `json:"total_commission"`
	AvailableCommission models.Money `json:"available_commission"`
	FrozenCommission    models.Money `json:"frozen_commission"`
	OrderCount          int64        `json:"order_count"`
	SettledOrders       int64        `json:"settled_orders"`
	TeamSize            int64        `json:"team_size"`
	PendingAmount       models.Money `json:"pending_amount"`
	PaidAmount          models.Money `json:"paid_amount"`
	RefundedAmount      models.Money `json:"refunded_amount"`
	WithdrawnAmount     models.Money `json:"withdrawn_amount"`
}

// DistributionOverview 平台分销总览
type DistributionOverview struct {
	DistributorCount int64        `json:"distributor_count"`
	PendingApplies   int64        `json:"pending_applies"`
	OrderCount       int64        `json:"order_count"`
	TotalCommission  models.Money `json:"total_commission"`
	PendingAmount    models.Money `json:"pending_amount"`
	PaidAmount       models.Money `json:"paid_amount"`
	RefundedAmount   models.Money `json:"refunded_amount"`
	PendingCashes    int64        `json:"pending_cashes"`
	CashedAmount     models.Money `json:"cashed_amount"`
}

// GetDistributorDashboard 获取分销员个人中心数据
func (s *StatsService) GetDistributorDashboard(userID uint) (DistributorDashboard, error) {
	dashboard := DistributorDashboard{
		Opened:              false,
		TotalCommission:     models.ZeroMoney(),
		AvailableCommission: models.ZeroMoney(),
		FrozenCommission:    models.ZeroMoney(),
		PendingAmount:       models.ZeroMoney(),
		PaidAmount:          models.ZeroMoney(),
		RefundedAmount:      models.ZeroMoney(),
		WithdrawnAmount:     models.ZeroMoney(),
	}
	if userID == 0 || s.distributorRepo == nil {
		return dashboard, nil
	}
	distributor, err := s.distributorRepo.GetByUserID(userID)
	if err != nil {
		return dashboard, err
	}
	if distributor == nil {
		return dashboard, nil
	}

	dashboard.Opened = true
	dashboard.Code = distributor.Code
	dashboard.Status = distributor.Status
	dashboard.PromotionPath = "/?dc=" + distributor.Code
	dashboard.TotalCommission = distributor.TotalCommission
	dashboard.AvailableCommission = distributor.AvailableCommission
	dashboard.FrozenCommission = distributor.FrozenCommission

	if s.orderRepo == nil {
		return dashboard, nil
	}
	stats, err := s.orderRepo.GetDistributorStatsBatch([]uint{distributor.ID})
	if err != nil {
		return dashboard, err
	}
	item := stats[distributor.ID]
	dashboard.OrderCount = item.OrderCount
	dashboard.SettledOrders = item.SettledOrders
	dashboard.TeamSize = item.TeamSize
	dashboard.PendingAmount = models.NewMoneyFromDecimal(item.PendingAmount)
	dashboard.PaidAmount = models.NewMoneyFromDecimal(item.PaidAmount)
	dashboard.RefundedAmount = models.NewMoneyFromDecimal(item.RefundedAmount)
	dashboard.WithdrawnAmount = models.NewMoneyFromDecimal(item.WithdrawnAmount)
	return dashboard, nil
}

// GetOverview 平台分销总览
func (s *StatsService) GetOverview() (DistributionOverview, error) {
	overview := DistributionOverview{
		TotalCommission: models.ZeroMoney(),
		PendingAmount:   models.ZeroMoney(),
		PaidAmount:      models.ZeroMoney(),
		RefundedAmount:  models.ZeroMoney(),
		CashedAmount:    models.ZeroMoney(),
	}
	if s.orderRepo == nil {
		return overview, nil
	}
	aggregate, err := s.orderRepo.GetOverview()
	if err != nil {
		return overview, err
	}
	overview.DistributorCount = aggregate.DistributorCount
	overview.PendingApplies = aggregate.PendingApplies
	overview.OrderCount = aggregate.OrderCount
	overview.TotalCommission = models.NewMoneyFromDecimal(aggregate.TotalCommission)
	overview.PendingAmount = models.NewMoneyFromDecimal(aggregate.PendingAmount)
	overview.PaidAmount = models.NewMoneyFromDecimal(aggregate.PaidAmount)
	overview.RefundedAmount = models.NewMoneyFromDecimal(aggregate.RefundedAmount)
	overview.PendingCashes = aggregate.PendingCashes
	overview.CashedAmount = models.NewMoneyFromDecimal(aggregate.CashedAmount)
	return overview, nil
}

// VerifyLedgerBalance 用流水净额核对某分销员某余额桶
func (s *StatsService) VerifyLedgerBalance(distributorID uint, bucket string) (decimal.Decimal, error) {
	if s.ledgerRepo == nil {
		return decimal.Zero, nil
	}
	return s.ledgerRepo.SumDeltaByBucket(distributorID, bucket)
}

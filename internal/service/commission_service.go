package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/fenxiao-mall/internal/constants"
	"github.com/fenxiao-mall/internal/models"
	"github.com/fenxiao-mall/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionService 分销佣金业务服务
// 负责佣金归属、结算入账与退款回冲，余额变化全部走流水。
type CommissionService struct {
	repo               repository.DistributionOrderRepository
	distributorRepo    repository.DistributorRepository
	ledgerRepo         repository.CommissionLedgerRepository
	orderRepo          repository.OrderRepository
	productRepo        repository.ProductRepository
	distributorService *DistributorService
	settingService     *SettingService
}

// NewCommissionService 创建佣金服务
func NewCommissionService(
	repo repository.DistributionOrderRepository,
	distributorRepo repository.DistributorRepository,
	ledgerRepo repository.CommissionLedgerRepository,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	distributorService *DistributorService,
	settingService *SettingService,
) *CommissionService {
	return &CommissionService{
		repo:               repo,
		distributorRepo:    distributorRepo,
		ledgerRepo:         ledgerRepo,
		orderRepo:          orderRepo,
		productRepo:        productRepo,
		distributorService: distributorService,
		settingService:     settingService,
	}
}

// levelAllocation 单个层级的佣金分配结果
type levelAllocation struct {
	Level         int
	Rate          decimal.Decimal
	ProductAmount decimal.Decimal
	Amount        decimal.Decimal
}

// AttributeOrder 订单支付后生成佣金归属记录
// 同一（分销员, 订单, 层级）只生成一行，重复调用是幂等的。
func (s *CommissionService) AttributeOrder(orderID uint) error {
	if orderID == 0 || s.repo == nil || s.orderRepo == nil || s.distributorRepo == nil {
		return nil
	}
	setting, err := s.settingService.GetDistributionSetting()
	if err != nil {
		return err
	}
	if !setting.Enabled {
		return nil
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return nil
	}
	status := strings.TrimSpace(order.Status)
	if status != constants.OrderStatusPaid && status != constants.OrderStatusCompleted {
		return nil
	}
	code := strings.TrimSpace(order.DistributionCode)
	if code == "" {
		return nil
	}

	referrer, err := s.distributorRepo.GetByCode(code)
	if err != nil {
		return err
	}
	if referrer == nil || strings.TrimSpace(referrer.Status) != constants.DistributorStatusApproved {
		return nil
	}
	// 自购不产生佣金
	if order.UserID > 0 && referrer.UserID == order.UserID {
		return nil
	}

	chain, err := s.distributorService.UplineChain(referrer.ID)
	if err != nil {
		return err
	}
	if len(chain) == 0 {
		return nil
	}

	allocations, productAmount, err := s.buildAllocations(order, setting, len(chain))
	if err != nil {
		return err
	}

	levelAmounts := make([]decimal.Decimal, constants.MaxCommissionChainDepth)
	for i := range levelAmounts {
		levelAmounts[i] = decimal.Zero
	}
	for _, allocation := range allocations {
		if allocation.Level >= 1 && allocation.Level <= constants.MaxCommissionChainDepth {
			levelAmounts[allocation.Level-1] = allocation.Amount
		}
	}

	now := time.Now()
	for index, member := range chain {
		level := index + 1
		if level > constants.MaxCommissionChainDepth {
			break
		}
		// 链路中被禁用的分销员不产生佣金，但也不把层级让给更上级。
		if strings.TrimSpace(member.Status) != constants.DistributorStatusApproved {
			continue
		}
		// 买家自己处在上级链路上时该层级不产生佣金。
		if order.UserID > 0 && member.UserID == order.UserID {
			continue
		}
		allocation := allocations[index]
		if allocation.Amount.LessThanOrEqual(decimal.Zero) {
			continue
		}

		existing, err := s.repo.GetByDistributorAndOrder(member.ID, order.ID, level)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		row := &models.DistributionOrder{
			DistributorID:    member.ID,
			OrderID:          order.ID,
			OrderNo:          order.OrderNo,
			BuyerUserID:      order.UserID,
			CommissionLevel:  level,
			OrderAmount:      order.TotalAmount,
			ProductAmount:    models.NewMoneyFromDecimal(productAmount),
			CommissionRate:   models.NewMoneyFromDecimal(allocation.Rate),
			FirstAmount:      models.NewMoneyFromDecimal(levelAmounts[0]),
			SecondAmount:     models.NewMoneyFromDecimal(levelAmounts[1]),
			ThirdAmount:      models.NewMoneyFromDecimal(levelAmounts[2]),
			TotalCommission:  models.NewMoneyFromDecimal(allocation.Amount),
			RefundCommission: models.ZeroMoney(),
			CommissionStatus: constants.CommissionStatusPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.repo.Create(row); err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return err
		}
	}
	return nil
}

// SettleOrder 结算订单的待结算佣金（整单全部成功或全部失败）
func (s *CommissionService) SettleOrder(orderID uint, operatorID *uint) error {
	if orderID == 0 || s.repo == nil || s.distributorRepo == nil || s.ledgerRepo == nil {
		return nil
	}
	return s.repo.Transaction(func(tx *gorm.DB) error {
		return s.settleOrderTx(tx, orderID, operatorID)
	})
}

// SettleOrderTx 在已有事务内结算订单佣金
func (s *CommissionService) SettleOrderTx(tx *gorm.DB, orderID uint, operatorID *uint) error {
	if tx == nil {
		return s.SettleOrder(orderID, operatorID)
	}
	return s.settleOrderTx(tx, orderID, operatorID)
}

func (s *CommissionService) settleOrderTx(tx *gorm.DB, orderID uint, operatorID *uint) error {
	repoTx := s.repo.WithTx(tx)
	distributorTx := s.distributorRepo.WithTx(tx)
	ledgerTx := s.ledgerRepo.WithTx(tx)

	rows, err := repoTx.ListByOrderForUpdate(orderID, []string{constants.CommissionStatusPending})
	if err != nil {
		return err
	}
	now := time.Now()
	for i := range rows {
		row := rows[i]
		distributor, err := distributorTx.GetByIDForUpdate(row.DistributorID)
		if err != nil {
			return err
		}
		if distributor == nil {
			return ErrDistributorNotFound
		}
		// 结算时已被禁用的分销员放弃本行佣金
		if strings.TrimSpace(distributor.Status) != constants.DistributorStatusApproved {
			row.CommissionStatus = constants.CommissionStatusCancelled
			row.UpdatedAt = now
			if err := repoTx.Update(&row); err != nil {
				return err
			}
			continue
		}

		amount := row.TotalCommission.Decimal.Round(2)
		if amount.LessThanOrEqual(decimal.Zero) {
			row.CommissionStatus = constants.CommissionStatusCancelled
			row.UpdatedAt = now
			if err := repoTx.Update(&row); err != nil {
				return err
			}
			continue
		}

		distributor.TotalCommission = models.NewMoneyFromDecimal(distributor.TotalCommission.Decimal.Add(amount))
		if err := appendCommissionLedger(ledgerTx, distributor, constants.LedgerBucketTotal, amount,
			fmt.Sprintf("settle:do:%d:total", row.ID), constants.LedgerSourceSettlement, row.ID, row.OrderNo); err != nil {
			return err
		}
		distributor.AvailableCommission = models.NewMoneyFromDecimal(distributor.AvailableCommission.Decimal.Add(amount))
		if err := appendCommissionLedger(ledgerTx, distributor, constants.LedgerBucketAvailable, amount,
			fmt.Sprintf("settle:do:%d:available", row.ID), constants.LedgerSourceSettlement, row.ID, row.OrderNo); err != nil {
			return err
		}
		if err := distributorTx.Update(distributor); err != nil {
			return err
		}

		row.CommissionStatus = constants.CommissionStatusPaid
		row.SettledBy = operatorID
		row.SettledAt = &now
		row.UpdatedAt = now
		if err := repoTx.Update(&row); err != nil {
			return err
		}
	}
	return nil
}

// HandleOrderRefundedTx 在事务内按退款比例回冲订单佣金
// 未结算的行等比例扣减，已结算的行从可提现余额回收，回收额不超过剩余已结算佣金，
// 也不把可提现余额扣成负数。
func (s *CommissionService) HandleOrderRefundedTx(
	tx *gorm.DB,
	order *models.Order,
	refundDelta decimal.Decimal,
	refundedBefore decimal.Decimal,
	reason string,
) error {
	if tx == nil || order == nil || order.ID == 0 || s.repo == nil {
		return nil
	}
	delta := refundDelta.Round(2)
	if delta.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	totalAmount := order.TotalAmount.Decimal.Round(2)
	if totalAmount.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	before := refundedBefore.Round(2)
	if before.LessThan(decimal.Zero) {
		before = decimal.Zero
	}
	if before.GreaterThan(totalAmount) {
		before = totalAmount
	}
	remaining := totalAmount.Sub(before).Round(2)
	if remaining.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	if delta.GreaterThan(remaining) {
		delta = remaining
	}

	repoTx := s.repo.WithTx(tx)
	distributorTx := s.distributorRepo.WithTx(tx)
	ledgerTx := s.ledgerRepo.WithTx(tx)

	rows, err := repoTx.ListByOrderForUpdate(order.ID, []string{
		constants.CommissionStatusPending,
		constants.CommissionStatusPaid,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	now := time.Now()
	refundedAfter := before.Add(delta).Round(2)
	for i := range rows {
		row := rows[i]
		switch strings.TrimSpace(row.CommissionStatus) {
		case constants.CommissionStatusPending:
			// 未结算：直接等比例缩减待结算金额。
			current := row.TotalCommission.Decimal.Round(2)
			if current.LessThanOrEqual(decimal.Zero) {
				row.CommissionStatus = constants.CommissionStatusCancelled
				row.UpdatedAt = now
				if err := repoTx.Update(&row); err != nil {
					return err
				}
				continue
			}
			deduct := current.Mul(delta).Div(remaining).Round(2)
			next := current.Sub(deduct).Round(2)
			if next.LessThan(decimal.Zero) {
				next = decimal.Zero
			}
			row.TotalCommission = models.NewMoneyFromDecimal(next)
			if next.LessThanOrEqual(decimal.Zero) {
				row.CommissionStatus = constants.CommissionStatusCancelled
			}
			row.UpdatedAt = now
			if err := repoTx.Update(&row); err != nil {
				return err
			}

		case constants.CommissionStatusPaid:
			settled := row.TotalCommission.Decimal.Sub(row.RefundCommission.Decimal).Round(2)
			if settled.LessThanOrEqual(decimal.Zero) {
				continue
			}
			deduct := settled.Mul(delta).Div(remaining).Round(2)
			if deduct.GreaterThan(settled) {
				deduct = settled
			}
			if deduct.LessThanOrEqual(decimal.Zero) {
				continue
			}

			distributor, err := distributorTx.GetByIDForUpdate(row.DistributorID)
			if err != nil {
				return err
			}
			if distributor == nil {
				continue
			}
			available := distributor.AvailableCommission.Decimal.Round(2)
			if deduct.GreaterThan(available) {
				deduct = available
			}
			if deduct.LessThanOrEqual(decimal.Zero) {
				continue
			}

			distributor.TotalCommission = models.NewMoneyFromDecimal(distributor.TotalCommission.Decimal.Sub(deduct))
			if err := appendCommissionLedger(ledgerTx, distributor, constants.LedgerBucketTotal, deduct.Neg(),
				fmt.Sprintf("refund:do:%d:after:%s:total", row.ID, refundedAfter.StringFixed(2)),
				constants.LedgerSourceRefund, row.ID, strings.TrimSpace(reason)); err != nil {
				return err
			}
			distributor.AvailableCommission = models.NewMoneyFromDecimal(distributor.AvailableCommission.Decimal.Sub(deduct))
			if err := appendCommissionLedger(ledgerTx, distributor, constants.LedgerBucketAvailable, deduct.Neg(),
				fmt.Sprintf("refund:do:%d:after:%s:available", row.ID, refundedAfter.StringFixed(2)),
				constants.LedgerSourceRefund, row.ID, strings.TrimSpace(reason)); err != nil {
				return err
			}
			if err := distributorTx.Update(distributor); err != nil {
				return err
			}

			row.RefundCommission = models.NewMoneyFromDecimal(row.RefundCommission.Decimal.Add(deduct))
			if row.RefundCommission.Decimal.GreaterThanOrEqual(row.TotalCommission.Decimal) {
				row.CommissionStatus = constants.CommissionStatusRefunded
				row.RefundedAt = &now
			}
			row.UpdatedAt = now
			if err := repoTx.Update(&row); err != nil {
				return err
			}
		}
	}
	return nil
}

// CancelOrderCommissions 订单取消后作废未结算佣金
func (s *CommissionService) CancelOrderCommissions(orderID uint) error {
	if orderID == 0 || s.repo == nil {
		return nil
	}
	return s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		rows, err := repoTx.ListByOrderForUpdate(orderID, []string{constants.CommissionStatusPending})
		if err != nil {
			return err
		}
		now := time.Now()
		for i := range rows {
			row := rows[i]
			row.CommissionStatus = constants.CommissionStatusCancelled
			row.UpdatedAt = now
			if err := repoTx.Update(&row); err != nil {
				return err
			}
		}
		return nil
	})
}

// List 查询佣金明细
func (s *CommissionService) List(filter repository.DistributionOrderListFilter) ([]models.DistributionOrder, int64, error) {
	if s.repo == nil {
		return []models.DistributionOrder{}, 0, nil
	}
	return s.repo.List(filter)
}

// ListLedger 查询佣金流水
func (s *CommissionService) ListLedger(filter repository.CommissionLedgerListFilter) ([]models.CommissionLedger, int64, error) {
	if s.ledgerRepo == nil {
		return []models.CommissionLedger{}, 0, nil
	}
	return s.ledgerRepo.List(filter)
}

// buildAllocations 按订单行计算各层级佣金
// 商品逐行计算并保留两位小数后求和，保证同一订单重复计算结果一致。
func (s *CommissionService) buildAllocations(order *models.Order, setting DistributionSetting, chainLen int) ([]levelAllocation, decimal.Decimal, error) {
	allocations := make([]levelAllocation, 0, constants.MaxCommissionChainDepth)
	productAmount := decimal.Zero

	productIDs := make([]uint, 0, len(order.Items))
	for _, item := range order.Items {
		if item.ProductID != 0 {
			productIDs = append(productIDs, item.ProductID)
		}
	}
	products := map[uint]models.Product{}
	if s.productRepo != nil && len(productIDs) > 0 {
		rows, err := s.productRepo.ListByIDs(productIDs)
		if err != nil {
			return nil, decimal.Zero, err
		}
		for _, product := range rows {
			products[product.ID] = product
		}
	}

	levels := chainLen
	if levels > constants.MaxCommissionChainDepth {
		levels = constants.MaxCommissionChainDepth
	}
	for level := 1; level <= constants.MaxCommissionChainDepth; level++ {
		amount := decimal.Zero
		rateUsed := decimal.Zero
		for _, item := range order.Items {
			product, ok := products[item.ProductID]
			if !ok || !product.IsDistributionEnabled {
				continue
			}
			rate := productLevelRate(product, level)
			if rate.LessThanOrEqual(decimal.Zero) {
				rate = decimal.NewFromFloat(setting.RateForLevel(level)).Round(2)
			}
			if rate.LessThanOrEqual(decimal.Zero) {
				continue
			}
			rateUsed = rate
			itemAmount := item.TotalPrice.Decimal.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
			amount = amount.Add(itemAmount)
		}
		if level > levels {
			amount = decimal.Zero
		}
		allocations = append(allocations, levelAllocation{
			Level:  level,
			Rate:   rateUsed,
			Amount: amount.Round(2),
		})
	}

	for _, item := range order.Items {
		product, ok := products[item.ProductID]
		if !ok || !product.IsDistributionEnabled {
			continue
		}
		productAmount = productAmount.Add(item.TotalPrice.Decimal)
	}
	return allocations, productAmount.Round(2), nil
}

func productLevelRate(product models.Product, level int) decimal.Decimal {
	switch level {
	case 1:
		return product.FirstLevelRate.Decimal.Round(2)
	case 2:
		return product.SecondLevelRate.Decimal.Round(2)
	case 3:
		return product.ThirdLevelRate.Decimal.Round(2)
	default:
		return decimal.Zero
	}
}

// appendCommissionLedger 追加一条佣金流水，余额取分销员当前（已更新）桶值。
func appendCommissionLedger(
	repo repository.CommissionLedgerRepository,
	distributor *models.Distributor,
	bucket string,
	delta decimal.Decimal,
	reference, sourceKind string,
	sourceID uint,
	remark string,
) error {
	if repo == nil || distributor == nil {
		return nil
	}
	var balanceAfter decimal.Decimal
	switch bucket {
	case constants.LedgerBucketTotal:
		balanceAfter = distributor.TotalCommission.Decimal
	case constants.LedgerBucketAvailable:
		balanceAfter = distributor.AvailableCommission.Decimal
	case constants.LedgerBucketFrozen:
		balanceAfter = distributor.FrozenCommission.Decimal
	}
	entry := &models.CommissionLedger{
		DistributorID: distributor.ID,
		Bucket:        bucket,
		Delta:         models.NewMoneyFromDecimal(delta),
		BalanceAfter:  models.NewMoneyFromDecimal(balanceAfter),
		Reference:     reference,
		SourceKind:    sourceKind,
		SourceID:      sourceID,
		Remark:        remark,
		CreatedAt:     time.Now(),
	}
	return repo.Append(entry)
}

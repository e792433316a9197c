package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/fenxiao-mall/internal/constants"
	"github.com/fenxiao-mall/internal/models"
	"github.com/fenxiao-mall/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderService 订单业务服务
// 订单状态变化写订单日志并向发件箱投递事件，佣金动作由事件驱动。
type OrderService struct {
	repo              repository.OrderRepository
	productRepo       repository.ProductRepository
	distributorRepo   repository.DistributorRepository
	commissionService *CommissionService
	outboxService     *OutboxService
}

// NewOrderService 创建订单服务
func NewOrderService(
	repo repository.OrderRepository,
	productRepo repository.ProductRepository,
	distributorRepo repository.DistributorRepository,
	commissionService *CommissionService,
	outboxService *OutboxService,
) *OrderService {
	return &OrderService{
		repo:              repo,
		productRepo:       productRepo,
		distributorRepo:   distributorRepo,
		commissionService: commissionService,
		outboxService:     outboxService,
	}
}

// OrderItemInput 订单行输入
type OrderItemInput struct {
	ProductID uint
	Quantity  int
}

// OrderCreateInput 创建订单输入
type OrderCreateInput struct {
	Items            []OrderItemInput
	DistributionCode string
	Currency         string
}

// Create 创建订单
func (s *OrderService) Create(userID uint, input OrderCreateInput) (*models.Order, error) {
	if userID == 0 || s.repo == nil || s.productRepo == nil {
		return nil, ErrNotFound
	}
	if len(input.Items) == 0 {
		return nil, ErrOrderStatusInvalid
	}

	code, err := s.resolveDistributionCode(userID, input.DistributionCode)
	if err != nil {
		return nil, err
	}

	productIDs := make([]uint, 0, len(input.Items))
	for _, item := range input.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := s.productRepo.ListByIDs(productIDs)
	if err != nil {
		return nil, err
	}
	productMap := make(map[uint]models.Product, len(products))
	for _, product := range products {
		productMap[product.ID] = product
	}

	totalAmount := decimal.Zero
	items := make([]models.OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		product, ok := productMap[item.ProductID]
		if !ok || !product.IsActive {
			return nil, ErrNotFound
		}
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		linePrice := product.Price.Decimal.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
		items = append(items, models.OrderItem{
			ProductID:  product.ID,
			Title:      product.Title,
			UnitPrice:  product.Price,
			Quantity:   quantity,
			TotalPrice: models.NewMoneyFromDecimal(linePrice),
		})
		totalAmount = totalAmount.Add(linePrice)
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "CNY"
	}
	order := &models.Order{
		OrderNo:          generateOrderNo(),
		UserID:           userID,
		Status:           constants.OrderStatusPendingPayment,
		Currency:         currency,
		TotalAmount:      models.NewMoneyFromDecimal(totalAmount),
		RefundedAmount:   models.ZeroMoney(),
		DistributionCode: code,
		Items:            items,
	}
	if err := s.repo.Create(order); err != nil {
		return nil, err
	}
	return s.repo.GetByID(order.ID)
}

// MarkPaid 订单支付成功
func (s *OrderService) MarkPaid(orderID uint) (*models.Order, error) {
	if orderID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		order, err := repoTx.GetByIDForUpdate(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrNotFound
		}
		current := strings.TrimSpace(order.Status)
		if current != constants.OrderStatusPendingPayment {
			return NewStateConflictError("order", constants.OrderStatusPendingPayment, current)
		}

		now := time.Now()
		order.Status = constants.OrderStatusPaid
		order.PaidAt = &now
		if err := repoTx.Update(order); err != nil {
			return err
		}
		if err := repoTx.CreateLog(&models.OrderLog{
			OrderID:    order.ID,
			FromStatus: current,
			ToStatus:   order.Status,
		}); err != nil {
			return err
		}
		return s.outboxService.PublishTx(tx, constants.EventTopicOrderPaid, map[string]interface{}{
			"order_id": order.ID,
			"order_no": order.OrderNo,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(orderID)
}

// Complete 订单完成
func (s *OrderService) Complete(orderID uint, operatorID *uint) (*models.Order, error) {
	if orderID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		order, err := repoTx.GetByIDForUpdate(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrNotFound
		}
		current := strings.TrimSpace(order.Status)
		if current != constants.OrderStatusPaid {
			return NewStateConflictError("order", constants.OrderStatusPaid, current)
		}

		now := time.Now()
		order.Status = constants.OrderStatusCompleted
		order.CompletedAt = &now
		if err := repoTx.Update(order); err != nil {
			return err
		}
		if err := repoTx.CreateLog(&models.OrderLog{
			OrderID:    order.ID,
			FromStatus: current,
			ToStatus:   order.Status,
			OperatorID: operatorID,
		}); err != nil {
			return err
		}
		payload := map[string]interface{}{
			"order_id": order.ID,
			"order_no": order.OrderNo,
		}
		if operatorID != nil {
			payload["operator_id"] = *operatorID
		}
		return s.outboxService.PublishTx(tx, constants.EventTopicOrderCompleted, payload)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(orderID)
}

// Refund 订单退款（支持多次部分退款），同事务回冲佣金
func (s *OrderService) Refund(orderID uint, amount decimal.Decimal, reason string, operatorID *uint) (*models.Order, error) {
	if orderID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	delta := amount.Round(2)
	if delta.LessThanOrEqual(decimal.Zero) {
		return nil, ErrRefundExceedsPaid
	}
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		order, err := repoTx.GetByIDForUpdate(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrNotFound
		}
		current := strings.TrimSpace(order.Status)
		if current != constants.OrderStatusPaid && current != constants.OrderStatusCompleted {
			return NewStateConflictError("order", constants.OrderStatusPaid, current)
		}

		refundedBefore := order.RefundedAmount.Decimal.Round(2)
		remaining := order.TotalAmount.Decimal.Sub(refundedBefore).Round(2)
		if delta.GreaterThan(remaining) {
			return ErrRefundExceedsPaid
		}

		if err := s.commissionService.HandleOrderRefundedTx(tx, order, delta, refundedBefore, reason); err != nil {
			return err
		}

		order.RefundedAmount = models.NewMoneyFromDecimal(refundedBefore.Add(delta))
		if order.RefundedAmount.Decimal.GreaterThanOrEqual(order.TotalAmount.Decimal) {
			order.Status = constants.OrderStatusRefunded
		}
		if err := repoTx.Update(order); err != nil {
			return err
		}
		if err := repoTx.CreateLog(&models.OrderLog{
			OrderID:    order.ID,
			FromStatus: current,
			ToStatus:   order.Status,
			OperatorID: operatorID,
			Remark:     strings.TrimSpace(reason),
		}); err != nil {
			return err
		}
		return s.outboxService.PublishTx(tx, constants.EventTopicOrderRefunded, map[string]interface{}{
			"order_id":      order.ID,
			"order_no":      order.OrderNo,
			"refund_amount": delta.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(orderID)
}

// Cancel 取消未支付订单
func (s *OrderService) Cancel(orderID uint, operatorID *uint, remark string) (*models.Order, error) {
	if orderID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		order, err := repoTx.GetByIDForUpdate(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrNotFound
		}
		current := strings.TrimSpace(order.Status)
		if current != constants.OrderStatusPendingPayment {
			return NewStateConflictError("order", constants.OrderStatusPendingPayment, current)
		}

		now := time.Now()
		order.Status = constants.OrderStatusCanceled
		order.CanceledAt = &now
		if err := repoTx.Update(order); err != nil {
			return err
		}
		return repoTx.CreateLog(&models.OrderLog{
			OrderID:    order.ID,
			FromStatus: current,
			ToStatus:   order.Status,
			OperatorID: operatorID,
			Remark:     strings.TrimSpace(remark),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(orderID)
}

// GetByID 查询订单
func (s *OrderService) GetByID(orderID uint) (*models.Order, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.GetByID(orderID)
}

// List 查询订单列表
func (s *OrderService) List(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	if s.repo == nil {
		return []models.Order{}, 0, nil
	}
	return s.repo.List(filter)
}

// resolveDistributionCode 校验并归一化下单携带的分销码
// 无效或自推码直接丢弃，不阻塞下单。
func (s *OrderService) resolveDistributionCode(userID uint, rawCode string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(rawCode))
	if code == "" || s.distributorRepo == nil {
		return "", nil
	}
	distributor, err := s.distributorRepo.GetByCode(code)
	if err != nil {
		return "", err
	}
	if distributor == nil || strings.TrimSpace(distributor.Status) != constants.DistributorStatusApproved {
		return "", nil
	}
	if distributor.UserID == userID {
		return "", nil
	}
	return distributor.Code, nil
}

func generateOrderNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("FX%s%s", now, randOrderNumeric(6))
}

func randOrderNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(n.String())
	}
	return b.String()
}

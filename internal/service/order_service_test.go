package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fenxiao-mall/internal/constants"
	"github.com/fenxiao-mall/internal/models"
	"github.com/fenxiao-mall/internal/queue"
	"github.com/fenxiao-mall/internal/repository"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestOrderCreatePricesFromProducts(t *testing.T) {
	env := setupOrderServiceTest(t)

	buyer := createOrderTestUser(t, env.db, "order-create@example.com")
	serverPlan := createOrderTestProduct(t, env.db, "cloud-server", 99, true)
	monitorPlan := createOrderTestProduct(t, env.db, "monitor-basic", 49, false)

	order, err := env.orders.Create(buyer.ID, OrderCreateInput{
		Items: []OrderItemInput{
			{ProductID: serverPlan.ID, Quantity: 2},
			{ProductID: monitorPlan.ID, Quantity: 0},
		},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.Status != constants.OrderStatusPendingPayment {
		t.Fatalf("expected pending_payment, got %s", order.Status)
	}
	if order.Currency != "CNY" {
		t.Fatalf("expected default currency CNY, got %s", order.Currency)
	}
	// 99*2 + 49*1（数量非法按 1 处理）
	if !order.TotalAmount.Decimal.Equal(decimal.RequireFromString("247")) {
		t.Fatalf("expected total 247, got %s", order.TotalAmount)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	for _, item := range order.Items {
		if item.Title == "" {
			t.Fatalf("expected product title snapshot on item")
		}
	}
}

func TestOrderCreateRejectsInactiveProduct(t *testing.T) {
	env := setupOrderServiceTest(t)

	buyer := createOrderTestUser(t, env.db, "order-inactive@example.com")
	product := createOrderTestProduct(t, env.db, "retired-plan", 99, true)
	if err := env.db.Model(&models.Product{}).Where("id = ?", product.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate product failed: %v", err)
	}

	_, err := env.orders.Create(buyer.ID, OrderCreateInput{
		Items: []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for inactive product, got %v", err)
	}
}

func TestOrderCreateResolvesDistributionCode(t *testing.T) {
	env := setupOrderServiceTest(t)

	referrerUser := createOrderTestUser(t, env.db, "order-ref@example.com")
	referrer := createOrderTestDistributor(t, env.db, referrerUser.ID, "ORDREF01", constants.DistributorStatusApproved)
	buyer := createOrderTestUser(t, env.db, "order-code@example.com")
	product := createOrderTestProduct(t, env.db, "cloud-server", 99, true)

	// 小写输入归一化为大写快照
	order, err := env.orders.Create(buyer.ID, OrderCreateInput{
		Items:            []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
		DistributionCode: "ordref01",
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.DistributionCode != referrer.Code {
		t.Fatalf("expected code %s, got %q", referrer.Code, order.DistributionCode)
	}

	// 无效码与自推码丢弃但不阻塞下单
	dropped, err := env.orders.Create(buyer.ID, OrderCreateInput{
		Items:            []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
		DistributionCode: "NOSUCH99",
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if dropped.DistributionCode != "" {
		t.Fatalf("expected unknown code dropped, got %q", dropped.DistributionCode)
	}
	selfOrder, err := env.orders.Create(referrerUser.ID, OrderCreateInput{
		Items:            []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
		DistributionCode: referrer.Code,
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if selfOrder.DistributionCode != "" {
		t.Fatalf("expected own code dropped, got %q", selfOrder.DistributionCode)
	}
}

func TestOrderMarkPaidPublishesEvent(t *testing.T) {
	env := setupOrderServiceTest(t)

	buyer := createOrderTestUser(t, env.db, "order-pay@example.com")
	product := createOrderTestProduct(t, env.db, "cloud-server", 99, true)
	order, err := env.orders.Create(buyer.ID, OrderCreateInput{
		Items: []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	paid, err := env.orders.MarkPaid(order.ID)
	if err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if paid.Status != constants.OrderStatusPaid {
		t.Fatalf("expected paid status, got %s", paid.Status)
	}
	if paid.PaidAt == nil {
		t.Fatalf("expected paid_at set")
	}

	var log models.OrderLog
	if err := env.db.Where("order_id = ?", order.ID).First(&log).Error; err != nil {
		t.Fatalf("expected order log: %v", err)
	}
	if log.FromStatus != constants.OrderStatusPendingPayment || log.ToStatus != constants.OrderStatusPaid {
		t.Fatalf("unexpected log transition %s -> %s", log.FromStatus, log.ToStatus)
	}

	var event models.EventOutbox
	if err := env.db.Where("topic = ?", constants.EventTopicOrderPaid).First(&event).Error; err != nil {
		t.Fatalf("expected order.paid outbox event: %v", err)
	}
	if event.Status != constants.OutboxStatusPending {
		t.Fatalf("expected pending outbox event, got %s", event.Status)
	}

	if _, err := env.orders.MarkPaid(order.ID); !IsStateConflict(err) {
		t.Fatalf("expected state conflict on double pay, got %v", err)
	}
}

func TestOrderCompleteRequiresPaid(t *testing.T) {
	env := setupOrderServiceTest(t)

	buyer := createOrderTestUser(t, env.db, "order-complete@example.com")
	product := createOrderTestProduct(t, env.db, "cloud-server", 99, true)
	order, err := env.orders.Create(buyer.ID, OrderCreateInput{
		Items: []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	adminID := uint(3)
	if _, err := env.orders.Complete(order.ID, &adminID); !IsStateConflict(err) {
		t.Fatalf("expected state conflict completing unpaid order, got %v", err)
	}
	if _, err := env.orders.MarkPaid(order.ID); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	completed, err := env.orders.Complete(order.ID, &adminID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Status != constants.OrderStatusCompleted {
		t.Fatalf("expected completed status, got %s", completed.Status)
	}
	var event models.EventOutbox
	if err := env.db.Where("topic = ?", constants.EventTopicOrderCompleted).First(&event).Error; err != nil {
		t.Fatalf("expected order.completed outbox event: %v", err)
	}
}

func TestOrderCancelPendingOnly(t *testing.T) {
	env := setupOrderServiceTest(t)

	buyer := createOrderTestUser(t, env.db, "order-cancel@example.com")
	product := createOrderTestProduct(t, env.db, "cloud-server", 99, true)
	order, err := env.orders.Create(buyer.ID, OrderCreateInput{
		Items: []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	cancelled, err := env.orders.Cancel(order.ID, nil, "用户取消")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != constants.OrderStatusCanceled {
		t.Fatalf("expected canceled status, got %s", cancelled.Status)
	}
	if cancelled.CanceledAt == nil {
		t.Fatalf("expected canceled_at set")
	}

	paidOrder, err := env.orders.Create(buyer.ID, OrderCreateInput{
		Items: []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if _, err := env.orders.MarkPaid(paidOrder.ID); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if _, err := env.orders.Cancel(paidOrder.ID, nil, "迟到的取消"); !IsStateConflict(err) {
		t.Fatalf("expected state conflict cancelling paid order, got %v", err)
	}
}

func TestOrderRefundClawsBackCommissionInSameTransaction(t *testing.T) {
	env := setupOrderServiceTest(t)

	referrerUser := createOrderTestUser(t, env.db, "refund-ref@example.com")
	referrer := createOrderTestDistributor(t, env.db, referrerUser.ID, "REFUND01", constants.DistributorStatusApproved)
	buyer := createOrderTestUser(t, env.db, "order-refund@example.com")
	product := createOrderTestProduct(t, env.db, "cloud-server", 1000, true)

	order, err := env.orders.Create(buyer.ID, OrderCreateInput{
		Items:            []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
		DistributionCode: referrer.Code,
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if _, err := env.orders.MarkPaid(order.ID); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if err := env.commissions.AttributeOrder(order.ID); err != nil {
		t.Fatalf("attribute order failed: %v", err)
	}
	if err := env.commissions.SettleOrder(order.ID, nil); err != nil {
		t.Fatalf("settle order failed: %v", err)
	}

	refunded, err := env.orders.Refund(order.ID, decimal.NewFromInt(400), "质量问题", nil)
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if !refunded.RefundedAmount.Decimal.Equal(decimal.RequireFromString("400")) {
		t.Fatalf("expected refunded amount 400, got %s", refunded.RefundedAmount)
	}
	if refunded.Status != constants.OrderStatusPaid {
		t.Fatalf("expected partial refund to keep paid status, got %s", refunded.Status)
	}

	// 一级佣金 100 按 40% 回冲
	var distributor models.Distributor
	if err := env.db.First(&distributor, referrer.ID).Error; err != nil {
		t.Fatalf("reload distributor failed: %v", err)
	}
	if !distributor.AvailableCommission.Decimal.Equal(decimal.RequireFromString("60")) {
		t.Fatalf("expected available 60 after clawback, got %s", distributor.AvailableCommission)
	}

	var event models.EventOutbox
	if err := env.db.Where("topic = ?", constants.EventTopicOrderRefunded).First(&event).Error; err != nil {
		t.Fatalf("expected order.refunded outbox event: %v", err)
	}

	// 超过剩余可退金额直接拒绝
	if _, err := env.orders.Refund(order.ID, decimal.NewFromInt(700), "超额", nil); !errors.Is(err, ErrRefundExceedsPaid) {
		t.Fatalf("expected ErrRefundExceedsPaid, got %v", err)
	}

	full, err := env.orders.Refund(order.ID, decimal.NewFromInt(600), "余款退回", nil)
	if err != nil {
		t.Fatalf("full refund failed: %v", err)
	}
	if full.Status != constants.OrderStatusRefunded {
		t.Fatalf("expected refunded status, got %s", full.Status)
	}
}

type orderServiceTestEnv struct {
	db          *gorm.DB
	orders      *OrderService
	commissions *CommissionService
}

func setupOrderServiceTest(t *testing.T) orderServiceTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:order_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderLog{},
		&models.Distributor{},
		&models.DistributionOrder{},
		&models.CommissionLedger{},
		&models.EventOutbox{},
		&models.Setting{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	settingSvc := NewSettingService(repository.NewSettingRepository(db))
	if _, err := settingSvc.UpdateDistributionSetting(DistributionSetting{
		Enabled:               true,
		MinCashAmount:         50,
		MethodFeeRates:        map[string]float64{constants.CashMethodAlipay: 0.6},
		FirstLevelRate:        10,
		SecondLevelRate:       5,
		ThirdLevelRate:        2,
		SettleOnOrderComplete: true,
	}); err != nil {
		t.Fatalf("init distribution setting failed: %v", err)
	}

	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("create queue client failed: %v", err)
	}

	distributorRepo := repository.NewDistributorRepository(db)
	commissionRepo := repository.NewDistributionOrderRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	distributorSvc := NewDistributorService(distributorRepo, repository.NewUserRepository(db), commissionRepo, settingSvc)
	commissionSvc := NewCommissionService(
		commissionRepo,
		distributorRepo,
		repository.NewCommissionLedgerRepository(db),
		orderRepo,
		productRepo,
		distributorSvc,
		settingSvc,
	)
	outboxSvc := NewOutboxService(repository.NewEventOutboxRepository(db), queueClient, settingSvc)
	orderSvc := NewOrderService(orderRepo, productRepo, distributorRepo, commissionSvc, outboxSvc)

	return orderServiceTestEnv{db: db, orders: orderSvc, commissions: commissionSvc}
}

func createOrderTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()

	row := models.User{
		Email:        email,
		PasswordHash: "hash",
		DisplayName:  "tester",
		Status:       constants.UserStatusActive,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return row
}

func createOrderTestDistributor(t *testing.T, db *gorm.DB, userID uint, code, status string) models.Distributor {
	t.Helper()

	row := models.Distributor{
		UserID:              userID,
		Code:                code,
		Level:               constants.DistributorLevelPrimary,
		Status:              status,
		TotalCommission:     models.ZeroMoney(),
		AvailableCommission: models.ZeroMoney(),
		FrozenCommission:    models.ZeroMoney(),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create distributor failed: %v", err)
	}
	return row
}

func createOrderTestProduct(t *testing.T, db *gorm.DB, slug string, price float64, distributionEnabled bool) models.Product {
	t.Helper()

	row := models.Product{
		Title:                 slug,
		Slug:                  fmt.Sprintf("%s-%d", slug, time.Now().UnixNano()),
		Price:                 models.NewMoneyFromDecimal(decimal.NewFromFloat(price)),
		Stock:                 100,
		IsActive:              true,
		IsDistributionEnabled: distributionEnabled,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return row
}

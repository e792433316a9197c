package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/fenxiao-mall/internal/constants"
	"github.com/fenxiao-mall/internal/models"
	"github.com/fenxiao-mall/internal/repository"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestAttributeOrderCreatesRowPerChainLevel(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)

	alice, bob, carol := createCommissionTestChain(t, db)
	buyer := createCommissionTestUser(t, db, "buyer@example.com")
	product := createCommissionTestProduct(t, db, "cloud-server", 1000, true, 0, 0, 0)
	order := createCommissionTestOrder(t, db, buyer.ID, carol.Code, constants.OrderStatusPaid, product, 1)

	if err := svc.AttributeOrder(order.ID); err != nil {
		t.Fatalf("attribute order failed: %v", err)
	}

	rows := listCommissionTestRows(t, db, order.ID)
	if len(rows) != 3 {
		t.Fatalf("expected 3 commission rows, got %d", len(rows))
	}
	expected := map[uint]struct {
		level  int
		amount string
	}{
		carol.ID: {1, "100"},
		bob.ID:   {2, "50"},
		alice.ID: {3, "20"},
	}
	for _, row := range rows {
		want, ok := expected[row.DistributorID]
		if !ok {
			t.Fatalf("unexpected commission row for distributor %d", row.DistributorID)
		}
		if row.CommissionLevel != want.level {
			t.Fatalf("distributor %d expected level %d, got %d", row.DistributorID, want.level, row.CommissionLevel)
		}
		if !row.TotalCommission.Decimal.Equal(decimal.RequireFromString(want.amount)) {
			t.Fatalf("distributor %d expected commission %s, got %s", row.DistributorID, want.amount, row.TotalCommission)
		}
		if row.CommissionStatus != constants.CommissionStatusPending {
			t.Fatalf("expected pending status, got %s", row.CommissionStatus)
		}
		if !row.ProductAmount.Decimal.Equal(decimal.RequireFromString("1000")) {
			t.Fatalf("expected product amount 1000, got %s", row.ProductAmount)
		}
		if !row.FirstAmount.Decimal.Equal(decimal.RequireFromString("100")) ||
			!row.SecondAmount.Decimal.Equal(decimal.RequireFromString("50")) ||
			!row.ThirdAmount.Decimal.Equal(decimal.RequireFromString("20")) {
			t.Fatalf("unexpected level snapshot: %s/%s/%s", row.FirstAmount, row.SecondAmount, row.ThirdAmount)
		}
	}
}

func TestAttributeOrderIdempotent(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)

	_, _, carol := createCommissionTestChain(t, db)
	buyer := createCommissionTestUser(t, db, "buyer-idem@example.com")
	product := createCommissionTestProduct(t, db, "cloud-server", 1000, true, 0, 0, 0)
	order := createCommissionTestOrder(t, db, buyer.ID, carol.Code, constants.OrderStatusPaid, product, 1)

	if err := svc.AttributeOrder(order.ID); err != nil {
		t.Fatalf("first attribution failed: %v", err)
	}
	if err := svc.AttributeOrder(order.ID); err != nil {
		t.Fatalf("second attribution failed: %v", err)
	}

	rows := listCommissionTestRows(t, db, order.ID)
	if len(rows) != 3 {
		t.Fatalf("expected attribution to stay idempotent with 3 rows, got %d", len(rows))
	}
}

func TestAttributeOrderIgnoresSelfPurchase(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)

	_, _, carol := createCommissionTestChain(t, db)
	product := createCommissionTestProduct(t, db, "cloud-server", 1000, true, 0, 0, 0)
	order := createCommissionTestOrder(t, db, carol.UserID, carol.Code, constants.OrderStatusPaid, product, 1)

	if err := svc.AttributeOrder(order.ID); err != nil {
		t.Fatalf("attribute order failed: %v", err)
	}
	if rows := listCommissionTestRows(t, db, order.ID); len(rows) != 0 {
		t.Fatalf("expected no commission for self purchase, got %d rows", len(rows))
	}
}

func TestAttributeOrderSkipsDisabledUplineWithoutPromotion(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)

	alice, bob, carol := createCommissionTestChain(t, db)
	if err := db.Model(&models.Distributor{}).Where("id = ?", bob.ID).
		Update("status", constants.DistributorStatusDisabled).Error; err != nil {
		t.Fatalf("disable distributor failed: %v", err)
	}
	buyer := createCommissionTestUser(t, db, "buyer-disabled@example.com")
	product := createCommissionTestProduct(t, db, "cloud-server", 1000, true, 0, 0, 0)
	order := createCommissionTestOrder(t, db, buyer.ID, carol.Code, constants.OrderStatusPaid, product, 1)

	if err := svc.AttributeOrder(order.ID); err != nil {
		t.Fatalf("attribute order failed: %v", err)
	}

	rows := listCommissionTestRows(t, db, order.ID)
	if len(rows) != 2 {
		t.Fatalf("expected 2 commission rows, got %d", len(rows))
	}
	for _, row := range rows {
		switch row.DistributorID {
		case carol.ID:
			if row.CommissionLevel != 1 {
				t.Fatalf("expected referrer at level 1, got %d", row.CommissionLevel)
			}
		case alice.ID:
			// 被禁用的中间层不把层级让给上级
			if row.CommissionLevel != 3 {
				t.Fatalf("expected grandparent to keep level 3, got %d", row.CommissionLevel)
			}
			if !row.TotalCommission.Decimal.Equal(decimal.RequireFromString("20")) {
				t.Fatalf("expected level 3 amount 20, got %s", row.TotalCommission)
			}
		default:
			t.Fatalf("unexpected row for distributor %d", row.DistributorID)
		}
	}
}

func TestAttributeOrderUsesProductRates(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)

	_, _, carol := createCommissionTestChain(t, db)
	buyer := createCommissionTestUser(t, db, "buyer-rates@example.com")
	product := createCommissionTestProduct(t, db, "dns-pro", 1000, true, 15, 8, 3)
	order := createCommissionTestOrder(t, db, buyer.ID, carol.Code, constants.OrderStatusPaid, product, 1)

	if err := svc.AttributeOrder(order.ID); err != nil {
		t.Fatalf("attribute order failed: %v", err)
	}

	rows := listCommissionTestRows(t, db, order.ID)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	wantByLevel := map[int]string{1: "150", 2: "80", 3: "30"}
	for _, row := range rows {
		if !row.TotalCommission.Decimal.Equal(decimal.RequireFromString(wantByLevel[row.CommissionLevel])) {
			t.Fatalf("level %d expected %s, got %s", row.CommissionLevel, wantByLevel[row.CommissionLevel], row.TotalCommission)
		}
	}
}

func TestAttributeOrderSkipsNonDistributionProduct(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)

	_, _, carol := createCommissionTestChain(t, db)
	buyer := createCommissionTestUser(t, db, "buyer-plain@example.com")
	product := createCommissionTestProduct(t, db, "monitor-basic", 1000, false, 0, 0, 0)
	order := createCommissionTestOrder(t, db, buyer.ID, carol.Code, constants.OrderStatusPaid, product, 1)

	if err := svc.AttributeOrder(order.ID); err != nil {
		t.Fatalf("attribute order failed: %v", err)
	}
	if rows := listCommissionTestRows(t, db, order.ID); len(rows) != 0 {
		t.Fatalf("expected no commission for non-distribution product, got %d rows", len(rows))
	}
}

func TestAttributeOrderSurvivesParentCycle(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)

	userA := createCommissionTestUser(t, db, "cycle-a@example.com")
	userB := createCommissionTestUser(t, db, "cycle-b@example.com")
	a := createCommissionTestDistributor(t, db, userA.ID, nil, "CYCLEAAA", constants.DistributorStatusApproved)
	b := createCommissionTestDistributor(t, db, userB.ID, &a.ID, "CYCLEBBB", constants.DistributorStatusApproved)
	// 脏数据：A 的上级又指回 B，形成环
	if err := db.Model(&models.Distributor{}).Where("id = ?", a.ID).Update("parent_id", b.ID).Error; err != nil {
		t.Fatalf("build cycle failed: %v", err)
	}

	buyer := createCommissionTestUser(t, db, "buyer-cycle@example.com")
	product := createCommissionTestProduct(t, db, "cloud-server", 1000, true, 0, 0, 0)
	order := createCommissionTestOrder(t, db, buyer.ID, b.Code, constants.OrderStatusPaid, product, 1)

	if err := svc.AttributeOrder(order.ID); err != nil {
		t.Fatalf("attribute order failed: %v", err)
	}

	rows := listCommissionTestRows(t, db, order.ID)
	if len(rows) != 2 {
		t.Fatalf("expected cycle chain to stop at 2 rows, got %d", len(rows))
	}
}

func TestSettleOrderPaysPendingRows(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)

	alice, bob, carol := createCommissionTestChain(t, db)
	buyer := createCommissionTestUser(t, db, "buyer-settle@example.com")
	product := createCommissionTestProduct(t, db, "cloud-server", 1000, true, 0, 0, 0)
	order := createCommissionTestOrder(t, db, buyer.ID, carol.Code, constants.OrderStatusPaid, product, 1)

	if err := svc.AttributeOrder(order.ID); err != nil {
		t.Fatalf("attribute order failed: %v", err)
	}
	adminID := uint(9)
	if err := svc.SettleOrder(order.ID, &adminID); err != nil {
		t.Fatalf("settle order failed: %v", err)
	}

	expected := map[uint]string{carol.ID: "100", bob.ID: "50", alice.ID: "20"}
	for distributorID, want := range expected {
		row := reloadCommissionTestDistributor(t, db, distributorID)
		if !row.TotalCommission.Decimal.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("distributor %d expected total %s, got %s", distributorID, want, row.TotalCommission)
		}
		if !row.AvailableCommission.Decimal.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("distributor %d expected available %s, got %s", distributorID, want, row.AvailableCommission)
		}
	}

	rows := listCommissionTestRows(t, db, order.ID)
	for _, row := range rows {
		if row.CommissionStatus != constants.CommissionStatusPaid {
			t.Fatalf("expected paid status, got %s", row.CommissionStatus)
		}
		if row.SettledBy == nil || *row.SettledBy != adminID {
			t.Fatalf("expected settled_by %d, got %+v", adminID, row.SettledBy)
		}
		if row.SettledAt == nil {
			t.Fatalf("expected settled_at set")
		}
	}

	var ledgers []models.CommissionLedger
	if err := db.Where("distributor_id = ?", carol.ID).Order("id asc").Find(&ledgers).Error; err != nil {
		t.Fatalf("load ledgers failed: %v", err)
	}
	if len(ledgers) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(ledgers))
	}
	carolRow := findCommissionTestRow(t, rows, carol.ID)
	wantRefs := map[string]string{
		fmt.Sprintf("settle:do:%d:total", carolRow.ID):     constants.LedgerBucketTotal,
		fmt.Sprintf("settle:do:%d:available", carolRow.ID): constants.LedgerBucketAvailable,
	}
	for _, entry := range ledgers {
		bucket, ok := wantRefs[entry.Reference]
		if !ok {
			t.Fatalf("unexpected ledger reference %s", entry.Reference)
		}
		if entry.Bucket != bucket {
			t.Fatalf("reference %s expected bucket %s, got %s", entry.Reference, bucket, entry.Bucket)
		}
		if !entry.Delta.Decimal.Equal(decimal.RequireFromString("100")) {
			t.Fatalf("expected delta 100, got %s", entry.Delta)
		}
		if !entry.BalanceAfter.Decimal.Equal(decimal.RequireFromString("100")) {
			t.Fatalf("expected balance_after 100, got %s", entry.BalanceAfter)
		}
		if entry.SourceKind != constants.LedgerSourceSettlement {
			t.Fatalf("expected settlement source, got %s", entry.SourceKind)
		}
	}

	// 重复结算不再有待结算行，余额不变
	if err := svc.SettleOrder(order.ID, &adminID); err != nil {
		t.Fatalf("re-settle failed: %v", err)
	}
	carolAgain := reloadCommissionTestDistributor(t, db, carol.ID)
	if !carolAgain.TotalCommission.Decimal.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected total unchanged after re-settle, got %s", carolAgain.TotalCommission)
	}
}

func TestSettleOrderCancelsDisabledDistributorRow(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)

	_, bob, carol := createCommissionTestChain(t, db)
	buyer := createCommissionTestUser(t, db, "buyer-settle-disabled@example.com")
	product := createCommissionTestProduct(t, db, "cloud-server", 1000, true, 0, 0, 0)
	order := createCommissionTestOrder(t, db, buyer.ID, carol.Code, constants.OrderStatusPaid, product, 1)

	if err := svc.AttributeOrder(order.ID); err != nil {
		t.Fatalf("attribute order failed: %v", err)
	}
	if err := db.Model(&models.Distributor{}).Where("id = ?", bob.ID).
		Update("status", constants.DistributorStatusDisabled).Error; err != nil {
		t.Fatalf("disable distributor failed: %v", err)
	}
	if err := svc.SettleOrder(order.ID, nil); err != nil {
		t.Fatalf("settle order failed: %v", err)
	}

	rows := listCommissionTestRows(t, db, order.ID)
	bobRow := findCommissionTestRow(t, rows, bob.ID)
	if bobRow.CommissionStatus != constants.CommissionStatusCancelled {
		t.Fatalf("expected cancelled row for disabled distributor, got %s", bobRow.CommissionStatus)
	}
	bobBalance := reloadCommissionTestDistributor(t, db, bob.ID)
	if !bobBalance.TotalCommission.Decimal.IsZero() || !bobBalance.AvailableCommission.Decimal.IsZero() {
		t.Fatalf("expected zero balance for disabled distributor, got %s/%s",
			bobBalance.TotalCommission, bobBalance.AvailableCommission)
	}
	carolRow := findCommissionTestRow(t, rows, carol.ID)
	if carolRow.CommissionStatus != constants.CommissionStatusPaid {
		t.Fatalf("expected other rows settled, got %s", carolRow.CommissionStatus)
	}
}

func TestRefundClawsBackSettledCommission(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)

	alice, bob, carol := createCommissionTestChain(t, db)
	buyer := createCommissionTestUser(t, db, "buyer-refund@example.com")
	product := createCommissionTestProduct(t, db, "cloud-server", 1000, true, 0, 0, 0)
	order := createCommissionTestOrder(t, db, buyer.ID, carol.Code, constants.OrderStatusPaid, product, 1)

	if err := svc.AttributeOrder(order.ID); err != nil {
		t.Fatalf("attribute order failed: %v", err)
	}
	if err := svc.SettleOrder(order.ID, nil); err != nil {
		t.Fatalf("settle order failed: %v", err)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.HandleOrderRefundedTx(tx, &order, decimal.NewFromInt(500), decimal.Zero, "部分退款")
	}); err != nil {
		t.Fatalf("handle refund failed: %v", err)
	}

	expected := map[uint]string{carol.ID: "50", bob.ID: "25", alice.ID: "10"}
	rows := listCommissionTestRows(t, db, order.ID)
	for distributorID, want := range expected {
		row := findCommissionTestRow(t, rows, distributorID)
		if !row.RefundCommission.Decimal.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("distributor %d expected refund %s, got %s", distributorID, want, row.RefundCommission)
		}
		if row.CommissionStatus != constants.CommissionStatusPaid {
			t.Fatalf("expected partially refunded row to stay paid, got %s", row.CommissionStatus)
		}
		balance := reloadCommissionTestDistributor(t, db, distributorID)
		if !balance.AvailableCommission.Decimal.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("distributor %d expected available %s, got %s", distributorID, want, balance.AvailableCommission)
		}
	}

	carolRow := findCommissionTestRow(t, rows, carol.ID)
	var refundLedgers []models.CommissionLedger
	if err := db.Where("distributor_id = ? AND source_kind = ?", carol.ID, constants.LedgerSourceRefund).
		Find(&refundLedgers).Error; err != nil {
		t.Fatalf("load refund ledgers failed: %v", err)
	}
	if len(refundLedgers) != 2 {
		t.Fatalf("expected 2 refund ledger entries, got %d", len(refundLedgers))
	}
	wantRef := fmt.Sprintf("refund:do:%d:after:500.00:total", carolRow.ID)
	found := false
	for _, entry := range refundLedgers {
		if entry.Reference == wantRef {
			found = true
			if !entry.Delta.Decimal.Equal(decimal.RequireFromString("-50")) {
				t.Fatalf("expected refund delta -50, got %s", entry.Delta)
			}
		}
	}
	if !found {
		t.Fatalf("expected ledger reference %s", wantRef)
	}

	// 第二次退清剩余金额，行转为已退款
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.HandleOrderRefundedTx(tx, &order, decimal.NewFromInt(500), decimal.NewFromInt(500), "剩余退款")
	}); err != nil {
		t.Fatalf("handle second refund failed: %v", err)
	}
	rows = listCommissionTestRows(t, db, order.ID)
	carolRow = findCommissionTestRow(t, rows, carol.ID)
	if carolRow.CommissionStatus != constants.CommissionStatusRefunded {
		t.Fatalf("expected refunded status, got %s", carolRow.CommissionStatus)
	}
	carolBalance := reloadCommissionTestDistributor(t, db, carol.ID)
	if !carolBalance.AvailableCommission.Decimal.IsZero() {
		t.Fatalf("expected available back to 0, got %s", carolBalance.AvailableCommission)
	}
}

func TestRefundScalesPendingRows(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)

	_, _, carol := createCommissionTestChain(t, db)
	buyer := createCommissionTestUser(t, db, "buyer-refund-pending@example.com")
	product := createCommissionTestProduct(t, db, "cloud-server", 1000, true, 0, 0, 0)
	order := createCommissionTestOrder(t, db, buyer.ID, carol.Code, constants.OrderStatusPaid, product, 1)

	if err := svc.AttributeOrder(order.ID); err != nil {
		t.Fatalf("attribute order failed: %v", err)
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.HandleOrderRefundedTx(tx, &order, decimal.NewFromInt(500), decimal.Zero, "部分退款")
	}); err != nil {
		t.Fatalf("handle refund failed: %v", err)
	}

	rows := listCommissionTestRows(t, db, order.ID)
	carolRow := findCommissionTestRow(t, rows, carol.ID)
	if !carolRow.TotalCommission.Decimal.Equal(decimal.RequireFromString("50")) {
		t.Fatalf("expected pending amount halved to 50, got %s", carolRow.TotalCommission)
	}
	if carolRow.CommissionStatus != constants.CommissionStatusPending {
		t.Fatalf("expected row to stay pending, got %s", carolRow.CommissionStatus)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.HandleOrderRefundedTx(tx, &order, decimal.NewFromInt(500), decimal.NewFromInt(500), "剩余退款")
	}); err != nil {
		t.Fatalf("handle second refund failed: %v", err)
	}
	rows = listCommissionTestRows(t, db, order.ID)
	carolRow = findCommissionTestRow(t, rows, carol.ID)
	if carolRow.CommissionStatus != constants.CommissionStatusCancelled {
		t.Fatalf("expected fully refunded pending row cancelled, got %s", carolRow.CommissionStatus)
	}
	if !carolRow.TotalCommission.Decimal.IsZero() {
		t.Fatalf("expected commission reduced to 0, got %s", carolRow.TotalCommission)
	}
}

func TestRefundDeductClampedToAvailable(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)

	userA := createCommissionTestUser(t, db, "clamp-ref@example.com")
	referrer := createCommissionTestDistributor(t, db, userA.ID, nil, "CLAMP001", constants.DistributorStatusApproved)
	buyer := createCommissionTestUser(t, db, "buyer-clamp@example.com")
	product := createCommissionTestProduct(t, db, "cloud-server", 1000, true, 0, 0, 0)
	order := createCommissionTestOrder(t, db, buyer.ID, referrer.Code, constants.OrderStatusPaid, product, 1)

	if err := svc.AttributeOrder(order.ID); err != nil {
		t.Fatalf("attribute order failed: %v", err)
	}
	if err := svc.SettleOrder(order.ID, nil); err != nil {
		t.Fatalf("settle order failed: %v", err)
	}
	// 模拟部分余额已被提现冻结，可回收余额只剩 30
	if err := db.Model(&models.Distributor{}).Where("id = ?", referrer.ID).
		Update("available_commission", "30").Error; err != nil {
		t.Fatalf("shrink available failed: %v", err)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.HandleOrderRefundedTx(tx, &order, decimal.NewFromInt(1000), decimal.Zero, "全额退款")
	}); err != nil {
		t.Fatalf("handle refund failed: %v", err)
	}

	balance := reloadCommissionTestDistributor(t, db, referrer.ID)
	if !balance.AvailableCommission.Decimal.IsZero() {
		t.Fatalf("expected available drained to 0, got %s", balance.AvailableCommission)
	}
	if !balance.TotalCommission.Decimal.Equal(decimal.RequireFromString("70")) {
		t.Fatalf("expected total 70 after clamped clawback, got %s", balance.TotalCommission)
	}
	rows := listCommissionTestRows(t, db, order.ID)
	row := findCommissionTestRow(t, rows, referrer.ID)
	if !row.RefundCommission.Decimal.Equal(decimal.RequireFromString("30")) {
		t.Fatalf("expected clawback clamped to 30, got %s", row.RefundCommission)
	}
	if row.CommissionStatus != constants.CommissionStatusPaid {
		t.Fatalf("expected row to stay paid, got %s", row.CommissionStatus)
	}
}

func TestCancelOrderCommissionsVoidsPending(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)

	_, _, carol := createCommissionTestChain(t, db)
	buyer := createCommissionTestUser(t, db, "buyer-cancel@example.com")
	product := createCommissionTestProduct(t, db, "cloud-server", 1000, true, 0, 0, 0)
	order := createCommissionTestOrder(t, db, buyer.ID, carol.Code, constants.OrderStatusPaid, product, 1)

	if err := svc.AttributeOrder(order.ID); err != nil {
		t.Fatalf("attribute order failed: %v", err)
	}
	if err := svc.CancelOrderCommissions(order.ID); err != nil {
		t.Fatalf("cancel commissions failed: %v", err)
	}
	rows := listCommissionTestRows(t, db, order.ID)
	for _, row := range rows {
		if row.CommissionStatus != constants.CommissionStatusCancelled {
			t.Fatalf("expected cancelled status, got %s", row.CommissionStatus)
		}
	}
}

func setupCommissionServiceTest(t *testing.T) (*CommissionService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:commission_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.Distributor{},
		&models.DistributionOrder{},
		&models.CommissionLedger{},
		&models.Setting{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	settingSvc := NewSettingService(repository.NewSettingRepository(db))
	if _, err := settingSvc.UpdateDistributionSetting(DistributionSetting{
		Enabled:       true,
		MinCashAmount: 50,
		MethodFeeRates: map[string]float64{
			constants.CashMethodAlipay: 0.6,
		},
		FirstLevelRate:        10,
		SecondLevelRate:       5,
		ThirdLevelRate:        2,
		SettleOnOrderComplete: true,
	}); err != nil {
		t.Fatalf("init distribution setting failed: %v", err)
	}

	distributorRepo := repository.NewDistributorRepository(db)
	commissionRepo := repository.NewDistributionOrderRepository(db)
	distributorSvc := NewDistributorService(distributorRepo, repository.NewUserRepository(db), commissionRepo, settingSvc)
	svc := NewCommissionService(
		commissionRepo,
		distributorRepo,
		repository.NewCommissionLedgerRepository(db),
		repository.NewOrderRepository(db),
		repository.NewProductRepository(db),
		distributorSvc,
		settingSvc,
	)
	return svc, db
}

// createCommissionTestChain 创建 alice → bob → carol 三级已通过审核的推荐链
func createCommissionTestChain(t *testing.T, db *gorm.DB) (models.Distributor, models.Distributor, models.Distributor) {
	t.Helper()

	userA := createCommissionTestUser(t, db, "alice@example.com")
	userB := createCommissionTestUser(t, db, "bob@example.com")
	userC := createCommissionTestUser(t, db, "carol@example.com")
	alice := createCommissionTestDistributor(t, db, userA.ID, nil, "ALICE888", constants.DistributorStatusApproved)
	bob := createCommissionTestDistributor(t, db, userB.ID, &alice.ID, "BOBPROMO", constants.DistributorStatusApproved)
	carol := createCommissionTestDistributor(t, db, userC.ID, &bob.ID, "CAROLFX1", constants.DistributorStatusApproved)
	return alice, bob, carol
}

func createCommissionTestUser(t *testing.T, db *gorm.DB, email string) models.User {
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

func createCommissionTestDistributor(t *testing.T, db *gorm.DB, userID uint, parentID *uint, code, status string) models.Distributor {
	t.Helper()

	row := models.Distributor{
		UserID:              userID,
		ParentID:            parentID,
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

func createCommissionTestProduct(t *testing.T, db *gorm.DB, slug string, price float64, distributionEnabled bool, first, second, third float64) models.Product {
	t.Helper()

	row := models.Product{
		Title:                 slug,
		Slug:                  fmt.Sprintf("%s-%d", slug, time.Now().UnixNano()),
		Price:                 models.NewMoneyFromDecimal(decimal.NewFromFloat(price)),
		Stock:                 100,
		IsActive:              true,
		IsDistributionEnabled: distributionEnabled,
		FirstLevelRate:        models.NewMoneyFromDecimal(decimal.NewFromFloat(first)),
		SecondLevelRate:       models.NewMoneyFromDecimal(decimal.NewFromFloat(second)),
		ThirdLevelRate:        models.NewMoneyFromDecimal(decimal.NewFromFloat(third)),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return row
}

func createCommissionTestOrder(t *testing.T, db *gorm.DB, userID uint, code, status string, product models.Product, quantity int) models.Order {
	t.Helper()

	total := product.Price.Decimal.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	row := models.Order{
		OrderNo:          fmt.Sprintf("FXTEST%d", time.Now().UnixNano()),
		UserID:           userID,
		Status:           status,
		Currency:         "CNY",
		TotalAmount:      models.NewMoneyFromDecimal(total),
		RefundedAmount:   models.ZeroMoney(),
		DistributionCode: code,
		Items: []models.OrderItem{
			{
				ProductID:  product.ID,
				Title:      product.Title,
				UnitPrice:  product.Price,
				Quantity:   quantity,
				TotalPrice: models.NewMoneyFromDecimal(total),
			},
		},
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return row
}

func reloadCommissionTestDistributor(t *testing.T, db *gorm.DB, id uint) models.Distributor {
	t.Helper()

	var row models.Distributor
	if err := db.First(&row, id).Error; err != nil {
		t.Fatalf("reload distributor failed: %v", err)
	}
	return row
}

func listCommissionTestRows(t *testing.T, db *gorm.DB, orderID uint) []models.DistributionOrder {
	t.Helper()

	var rows []models.DistributionOrder
	if err := db.Where("order_id = ?", orderID).Order("commission_level asc").Find(&rows).Error; err != nil {
		t.Fatalf("load commission rows failed: %v", err)
	}
	return rows
}

func findCommissionTestRow(t *testing.T, rows []models.DistributionOrder, distributorID uint) models.DistributionOrder {
	t.Helper()

	for _, row := range rows {
		if row.DistributorID == distributorID {
			return row
		}
	}
	t.Fatalf("no commission row for distributor %d", distributorID)
	return models.DistributionOrder{}
}

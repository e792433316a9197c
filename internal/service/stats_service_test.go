package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/fenxiao-mall/internal/constants"
	"github.com/fenxiao-mall/internal/models"
	"github.com/fenxiao-mall/internal/repository"
	"github.com/shopspring/decimal"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupStatsServiceTest(t *testing.T) (*gorm.DB, *StatsService) {
	t.Helper()

	dsn := fmt.Sprintf("file:stats_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Distributor{},
		&models.DistributionOrder{},
		&models.DistributionCash{},
		&models.CommissionLedger{},
	); err != nil {
		t.Fatalf("迁移测试表失败: %v", err)
	}

	svc := NewStatsService(
		repository.NewDistributorRepository(db),
		repository.NewDistributionOrderRepository(db),
		repository.NewCommissionLedgerRepository(db),
	)
	return db, svc
}

func statsMoney(t *testing.T, value string) models.Money {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("解析金额失败: %v", err)
	}
	return models.NewMoneyFromDecimal(d)
}

func createStatsTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{
		Email:        email,
		PasswordHash: "hashed",
		Status:       constants.UserStatusActive,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("创建测试用户失败: %v", err)
	}
	return user
}

func createStatsTestDistributor(t *testing.T, db *gorm.DB, userID uint, code, status string, parentID *uint) *models.Distributor {
	t.Helper()
	distributor := &models.Distributor{
		UserID:              userID,
		ParentID:            parentID,
		Code:                code,
		Level:               constants.DistributorLevelPrimary,
		Status:              status,
		TotalCommission:     statsMoney(t, "160"),
		AvailableCommission: statsMoney(t, "100"),
		FrozenCommission:    statsMoney(t, "20"),
	}
	if err := db.Create(distributor).Error; err != nil {
		t.Fatalf("创建测试分销员失败: %v", err)
	}
	return distributor
}

func createStatsTestCommissionRow(t *testing.T, db *gorm.DB, distributorID, orderID uint, level int, status, total, refunded string) {
	t.Helper()
	row := &models.DistributionOrder{
		DistributorID:    distributorID,
		OrderID:          orderID,
		OrderNo:          fmt.Sprintf("ORD-STAT-%d", orderID),
		CommissionLevel:  level,
		TotalCommission:  statsMoney(t, total),
		RefundCommission: statsMoney(t, refunded),
		CommissionStatus: status,
	}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("创建测试佣金单失败: %v", err)
	}
}

// 固定一组混合状态的佣金/提现数据，后续各测试共用同一套期望值。
func seedStatsTestData(t *testing.T, db *gorm.DB) *models.Distributor {
	t.Helper()

	alice := createStatsTestUser(t, db, "stats-alice@example.com")
	bob := createStatsTestUser(t, db, "stats-bob@example.com")
	carol := createStatsTestUser(t, db, "stats-carol@example.com")

	aliceDist := createStatsTestDistributor(t, db, alice.ID, "STATALC1", constants.DistributorStatusApproved, nil)
	createStatsTestDistributor(t, db, bob.ID, "STATBOB1", constants.DistributorStatusApproved, &aliceDist.ID)
	createStatsTestDistributor(t, db, carol.ID, "STATCRL1", constants.DistributorStatusPending, nil)

	createStatsTestCommissionRow(t, db, aliceDist.ID, 101, 1, constants.CommissionStatusPending, "30", "0")
	createStatsTestCommissionRow(t, db, aliceDist.ID, 102, 1, constants.CommissionStatusPaid, "50", "10")
	createStatsTestCommissionRow(t, db, aliceDist.ID, 103, 2, constants.CommissionStatusRefunded, "40", "40")
	// 已取消的行不参与订单数与金额口径
	createStatsTestCommissionRow(t, db, aliceDist.ID, 104, 1, constants.CommissionStatusCancelled, "25", "0")

	completed := &models.DistributionCash{
		CashNo:        "CASH-STAT-001",
		DistributorID: aliceDist.ID,
		Amount:        statsMoney(t, "80"),
		Fee:           statsMoney(t, "0.48"),
		ActualAmount:  statsMoney(t, "79.52"),
		Method:        constants.CashMethodAlipay,
		Account:       "alice@alipay.com",
		Status:        constants.CashStatusCompleted,
	}
	if err := db.Create(completed).Error; err != nil {
		t.Fatalf("创建已完成提现失败: %v", err)
	}
	open := &models.DistributionCash{
		CashNo:        "CASH-STAT-002",
		DistributorID: aliceDist.ID,
		Amount:        statsMoney(t, "20"),
		Fee:           statsMoney(t, "0.12"),
		ActualAmount:  statsMoney(t, "19.88"),
		Method:        constants.CashMethodAlipay,
		Account:       "alice@alipay.com",
		Status:        constants.CashStatusPending,
		ActiveFlag:    &aliceDist.ID,
	}
	if err := db.Create(open).Error; err != nil {
		t.Fatalf("创建在途提现失败: %v", err)
	}

	return aliceDist
}

func TestDistributorDashboardAggregates(t *testing.T) {
	db, svc := setupStatsServiceTest(t)
	aliceDist := seedStatsTestData(t, db)

	dashboard, err := svc.GetDistributorDashboard(aliceDist.UserID)
	if err != nil {
		t.Fatalf("获取分销员面板失败: %v", err)
	}
	if !dashboard.Opened {
		t.Fatalf("已开通分销员 Opened 应为 true")
	}
	if dashboard.Code != "STATALC1" || dashboard.Status != constants.DistributorStatusApproved {
		t.Fatalf("分销员基础信息不符: %s %s", dashboard.Code, dashboard.Status)
	}
	if dashboard.PromotionPath != "/?dc=STATALC1" {
		t.Fatalf("推广路径不符: %s", dashboard.PromotionPath)
	}
	// 余额三桶直接取档案字段
	if !dashboard.TotalCommission.Equal(decimal.NewFromInt(160)) ||
		!dashboard.AvailableCommission.Equal(decimal.NewFromInt(100)) ||
		!dashboard.FrozenCommission.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("余额桶不符: %s/%s/%s",
			dashboard.TotalCommission, dashboard.AvailableCommission, dashboard.FrozenCommission)
	}
	// 已取消的 104 不计入；已结算口径为 paid + refunded
	if dashboard.OrderCount != 3 {
		t.Fatalf("关联订单数应为 3, got %d", dashboard.OrderCount)
	}
	if dashboard.SettledOrders != 2 {
		t.Fatalf("已结算订单数应为 2, got %d", dashboard.SettledOrders)
	}
	if dashboard.TeamSize != 1 {
		t.Fatalf("直属团队人数应为 1, got %d", dashboard.TeamSize)
	}
	if !dashboard.PendingAmount.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("待结算金额应为 30, got %s", dashboard.PendingAmount)
	}
	if !dashboard.PaidAmount.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("已结算金额应为 90, got %s", dashboard.PaidAmount)
	}
	if !dashboard.RefundedAmount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("已回冲金额应为 50, got %s", dashboard.RefundedAmount)
	}
	if !dashboard.WithdrawnAmount.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("已提现金额应为 80, got %s", dashboard.WithdrawnAmount)
	}
}

func TestDistributorDashboardWithoutProfile(t *testing.T) {
	db, svc := setupStatsServiceTest(t)
	user := createStatsTestUser(t, db, "plain@example.com")

	dashboard, err := svc.GetDistributorDashboard(user.ID)
	if err != nil {
		t.Fatalf("获取分销员面板失败: %v", err)
	}
	if dashboard.Opened {
		t.Fatalf("未开通分销的用户 Opened 应为 false")
	}
	if !dashboard.TotalCommission.Equal(decimal.Zero) {
		t.Fatalf("未开通用户佣金应为零, got %s", dashboard.TotalCommission)
	}
}

func TestOverviewAggregates(t *testing.T) {
	db, svc := setupStatsServiceTest(t)
	seedStatsTestData(t, db)

	overview, err := svc.GetOverview()
	if err != nil {
		t.Fatalf("获取总览失败: %v", err)
	}
	if overview.DistributorCount != 2 {
		t.Fatalf("生效分销员数应为 2, got %d", overview.DistributorCount)
	}
	if overview.PendingApplies != 1 {
		t.Fatalf("待审核申请数应为 1, got %d", overview.PendingApplies)
	}
	if overview.OrderCount != 3 {
		t.Fatalf("分销订单数应为 3, got %d", overview.OrderCount)
	}
	if !overview.PendingAmount.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("平台待结算金额应为 30, got %s", overview.PendingAmount)
	}
	if !overview.PaidAmount.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("平台已结算金额应为 90, got %s", overview.PaidAmount)
	}
	if !overview.RefundedAmount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("平台已回冲金额应为 50, got %s", overview.RefundedAmount)
	}
	if !overview.TotalCommission.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("平台累计佣金应为 120, got %s", overview.TotalCommission)
	}
	if overview.PendingCashes != 1 {
		t.Fatalf("待处理提现数应为 1, got %d", overview.PendingCashes)
	}
	if !overview.CashedAmount.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("已提现总额应为 80, got %s", overview.CashedAmount)
	}
}

func TestVerifyLedgerBalanceSumsDeltas(t *testing.T) {
	db, svc := setupStatsServiceTest(t)
	aliceDist := seedStatsTestData(t, db)

	entries := []models.CommissionLedger{
		{DistributorID: aliceDist.ID, Bucket: constants.LedgerBucketTotal, Delta: statsMoney(t, "100"), BalanceAfter: statsMoney(t, "100"), Reference: "stats:total:1", SourceKind: constants.LedgerSourceSettlement, SourceID: 1},
		{DistributorID: aliceDist.ID, Bucket: constants.LedgerBucketTotal, Delta: statsMoney(t, "60"), BalanceAfter: statsMoney(t, "160"), Reference: "stats:total:2", SourceKind: constants.LedgerSourceSettlement, SourceID: 2},
		{DistributorID: aliceDist.ID, Bucket: constants.LedgerBucketAvailable, Delta: statsMoney(t, "90"), BalanceAfter: statsMoney(t, "90"), Reference: "stats:avail:1", SourceKind: constants.LedgerSourceSettlement, SourceID: 1},
		{DistributorID: aliceDist.ID, Bucket: constants.LedgerBucketAvailable, Delta: statsMoney(t, "-20"), BalanceAfter: statsMoney(t, "70"), Reference: "stats:avail:2", SourceKind: constants.LedgerSourceCashFreeze, SourceID: 9},
	}
	for i := range entries {
		if err := db.Create(&entries[i]).Error; err != nil {
			t.Fatalf("创建流水失败: %v", err)
		}
	}

	total, err := svc.VerifyLedgerBalance(aliceDist.ID, constants.LedgerBucketTotal)
	if err != nil {
		t.Fatalf("核对 total 桶失败: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(160)) {
		t.Fatalf("total 桶净额应为 160, got %s", total)
	}

	available, err := svc.VerifyLedgerBalance(aliceDist.ID, constants.LedgerBucketAvailable)
	if err != nil {
		t.Fatalf("核对 available 桶失败: %v", err)
	}
	if !available.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("available 桶净额应为 70, got %s", available)
	}

	// 无流水的分销员净额为零
	none, err := svc.VerifyLedgerBalance(aliceDist.ID+100, constants.LedgerBucketTotal)
	if err != nil {
		t.Fatalf("核对空桶失败: %v", err)
	}
	if !none.Equal(decimal.Zero) {
		t.Fatalf("空桶净额应为 0, got %s", none)
	}
}

package service

import (
	"errors"
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

func TestCashRequestFreezesBalance(t *testing.T) {
	svc, db := setupCashServiceTest(t)
	distributor := createCashTestDistributor(t, db, "cash-req@example.com", "CASHREQ1", 500)

	cash, err := svc.Request(distributor.UserID, CashRequestInput{
		Amount:  decimal.NewFromInt(200),
		Method:  constants.CashMethodAlipay,
		Account: "alipay-account",
	})
	if err != nil {
		t.Fatalf("cash request failed: %v", err)
	}
	if cash.Status != constants.CashStatusPending {
		t.Fatalf("expected pending status, got %s", cash.Status)
	}
	if !cash.Fee.Decimal.Equal(decimal.RequireFromString("1.20")) {
		t.Fatalf("expected fee 1.20, got %s", cash.Fee)
	}
	if !cash.ActualAmount.Decimal.Equal(decimal.RequireFromString("198.80")) {
		t.Fatalf("expected actual amount 198.80, got %s", cash.ActualAmount)
	}
	if !cash.IsOpen() {
		t.Fatalf("expected open cash request to carry active flag")
	}

	balance := reloadCashTestDistributor(t, db, distributor.ID)
	if !balance.AvailableCommission.Decimal.Equal(decimal.RequireFromString("300")) {
		t.Fatalf("expected available 300, got %s", balance.AvailableCommission)
	}
	if !balance.FrozenCommission.Decimal.Equal(decimal.RequireFromString("200")) {
		t.Fatalf("expected frozen 200, got %s", balance.FrozenCommission)
	}

	var ledgers []models.CommissionLedger
	if err := db.Where("distributor_id = ? AND source_kind = ?", distributor.ID, constants.LedgerSourceCashFreeze).
		Order("id asc").Find(&ledgers).Error; err != nil {
		t.Fatalf("load ledgers failed: %v", err)
	}
	if len(ledgers) != 2 {
		t.Fatalf("expected 2 freeze ledger entries, got %d", len(ledgers))
	}
	wantRefs := map[string]string{
		fmt.Sprintf("cash:%d:freeze:available", cash.ID): "-200",
		fmt.Sprintf("cash:%d:freeze:frozen", cash.ID):    "200",
	}
	for _, entry := range ledgers {
		want, ok := wantRefs[entry.Reference]
		if !ok {
			t.Fatalf("unexpected ledger reference %s", entry.Reference)
		}
		if !entry.Delta.Decimal.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("reference %s expected delta %s, got %s", entry.Reference, want, entry.Delta)
		}
	}
}

func TestCashRequestRejectsDuplicateOpen(t *testing.T) {
	svc, db := setupCashServiceTest(t)
	distributor := createCashTestDistributor(t, db, "cash-dup@example.com", "CASHDUP1", 500)

	if _, err := svc.Request(distributor.UserID, CashRequestInput{
		Amount:  decimal.NewFromInt(100),
		Method:  constants.CashMethodAlipay,
		Account: "alipay-account",
	}); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	_, err := svc.Request(distributor.UserID, CashRequestInput{
		Amount:  decimal.NewFromInt(100),
		Method:  constants.CashMethodAlipay,
		Account: "alipay-account",
	})
	if !errors.Is(err, ErrDuplicateCashRequest) {
		t.Fatalf("expected ErrDuplicateCashRequest, got %v", err)
	}
}

func TestCashRequestValidation(t *testing.T) {
	svc, db := setupCashServiceTest(t)
	distributor := createCashTestDistributor(t, db, "cash-valid@example.com", "CASHVAL1", 500)

	if _, err := svc.Request(distributor.UserID, CashRequestInput{
		Amount:  decimal.NewFromInt(10),
		Method:  constants.CashMethodAlipay,
		Account: "alipay-account",
	}); !errors.Is(err, ErrCashAmountBelowMinimum) {
		t.Fatalf("expected ErrCashAmountBelowMinimum, got %v", err)
	}
	if _, err := svc.Request(distributor.UserID, CashRequestInput{
		Amount:  decimal.NewFromInt(600),
		Method:  constants.CashMethodAlipay,
		Account: "alipay-account",
	}); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := svc.Request(distributor.UserID, CashRequestInput{
		Amount:  decimal.NewFromInt(100),
		Method:  "cheque",
		Account: "alipay-account",
	}); !errors.Is(err, ErrCashMethodInvalid) {
		t.Fatalf("expected ErrCashMethodInvalid, got %v", err)
	}
	if _, err := svc.Request(distributor.UserID, CashRequestInput{
		Amount:  decimal.NewFromInt(100),
		Method:  constants.CashMethodAlipay,
		Account: "   ",
	}); !errors.Is(err, ErrCashAccountInvalid) {
		t.Fatalf("expected ErrCashAccountInvalid, got %v", err)
	}
}

func TestCashRequestRequiresApprovedDistributor(t *testing.T) {
	svc, db := setupCashServiceTest(t)

	user := createCashTestUser(t, db, "cash-pending@example.com")
	pending := models.Distributor{
		UserID:              user.ID,
		Code:                "CASHPEND",
		Level:               constants.DistributorLevelPrimary,
		Status:              constants.DistributorStatusPending,
		TotalCommission:     models.ZeroMoney(),
		AvailableCommission: models.NewMoneyFromDecimal(decimal.NewFromInt(500)),
		FrozenCommission:    models.ZeroMoney(),
	}
	if err := db.Create(&pending).Error; err != nil {
		t.Fatalf("create distributor failed: %v", err)
	}

	_, err := svc.Request(user.ID, CashRequestInput{
		Amount:  decimal.NewFromInt(100),
		Method:  constants.CashMethodAlipay,
		Account: "alipay-account",
	})
	if !errors.Is(err, ErrDistributorNotApproved) {
		t.Fatalf("expected ErrDistributorNotApproved, got %v", err)
	}
}

func TestCashAuditProcessThenComplete(t *testing.T) {
	svc, db := setupCashServiceTest(t)
	distributor := createCashTestDistributor(t, db, "cash-complete@example.com", "CASHDONE", 500)

	cash, err := svc.Request(distributor.UserID, CashRequestInput{
		Amount:  decimal.NewFromInt(200),
		Method:  constants.CashMethodAlipay,
		Account: "alipay-account",
	})
	if err != nil {
		t.Fatalf("cash request failed: %v", err)
	}

	adminID := uint(7)
	processing, err := svc.Audit(adminID, cash.ID, CashAuditInput{Action: constants.CashAuditActionProcess})
	if err != nil {
		t.Fatalf("audit process failed: %v", err)
	}
	if processing.Status != constants.CashStatusProcessing {
		t.Fatalf("expected processing status, got %s", processing.Status)
	}
	if processing.AuditedBy == nil || *processing.AuditedBy != adminID {
		t.Fatalf("expected audited_by %d, got %+v", adminID, processing.AuditedBy)
	}

	completed, err := svc.Complete(adminID, cash.ID, "TXN-20260831-001")
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Status != constants.CashStatusCompleted {
		t.Fatalf("expected completed status, got %s", completed.Status)
	}
	if completed.ExternalTxnNo != "TXN-20260831-001" {
		t.Fatalf("expected external txn recorded, got %q", completed.ExternalTxnNo)
	}
	if completed.IsOpen() {
		t.Fatalf("expected active flag cleared after completion")
	}

	balance := reloadCashTestDistributor(t, db, distributor.ID)
	if !balance.FrozenCommission.Decimal.IsZero() {
		t.Fatalf("expected frozen drained, got %s", balance.FrozenCommission)
	}
	if !balance.AvailableCommission.Decimal.Equal(decimal.RequireFromString("300")) {
		t.Fatalf("expected available untouched at 300, got %s", balance.AvailableCommission)
	}
	if !balance.TotalCommission.Decimal.Equal(decimal.RequireFromString("500")) {
		t.Fatalf("expected total unchanged at 500, got %s", balance.TotalCommission)
	}

	var payout models.CommissionLedger
	if err := db.Where("reference = ?", fmt.Sprintf("cash:%d:payout:frozen", cash.ID)).
		First(&payout).Error; err != nil {
		t.Fatalf("expected payout ledger entry: %v", err)
	}
	if !payout.Delta.Decimal.Equal(decimal.RequireFromString("-200")) {
		t.Fatalf("expected payout delta -200, got %s", payout.Delta)
	}
}

func TestCashAuditRejectRevertsFrozen(t *testing.T) {
	svc, db := setupCashServiceTest(t)
	distributor := createCashTestDistributor(t, db, "cash-reject@example.com", "CASHREJ1", 500)

	cash, err := svc.Request(distributor.UserID, CashRequestInput{
		Amount:  decimal.NewFromInt(200),
		Method:  constants.CashMethodAlipay,
		Account: "alipay-account",
	})
	if err != nil {
		t.Fatalf("cash request failed: %v", err)
	}

	rejected, err := svc.Audit(7, cash.ID, CashAuditInput{
		Action:       constants.CashAuditActionReject,
		RejectReason: "账号信息有误",
	})
	if err != nil {
		t.Fatalf("audit reject failed: %v", err)
	}
	if rejected.Status != constants.CashStatusRejected {
		t.Fatalf("expected rejected status, got %s", rejected.Status)
	}
	if rejected.RejectReason != "账号信息有误" {
		t.Fatalf("expected reject reason recorded, got %q", rejected.RejectReason)
	}
	if rejected.IsOpen() {
		t.Fatalf("expected active flag cleared after rejection")
	}

	balance := reloadCashTestDistributor(t, db, distributor.ID)
	if !balance.AvailableCommission.Decimal.Equal(decimal.RequireFromString("500")) {
		t.Fatalf("expected available restored to 500, got %s", balance.AvailableCommission)
	}
	if !balance.FrozenCommission.Decimal.IsZero() {
		t.Fatalf("expected frozen back to 0, got %s", balance.FrozenCommission)
	}

	// 驳回后在途名额释放，可再次申请
	if _, err := svc.Request(distributor.UserID, CashRequestInput{
		Amount:  decimal.NewFromInt(100),
		Method:  constants.CashMethodAlipay,
		Account: "alipay-account",
	}); err != nil {
		t.Fatalf("expected new request allowed after rejection, got %v", err)
	}
}

func TestCashCancelPendingOnly(t *testing.T) {
	svc, db := setupCashServiceTest(t)
	distributor := createCashTestDistributor(t, db, "cash-cancel@example.com", "CASHCAN1", 500)

	cash, err := svc.Request(distributor.UserID, CashRequestInput{
		Amount:  decimal.NewFromInt(200),
		Method:  constants.CashMethodAlipay,
		Account: "alipay-account",
	})
	if err != nil {
		t.Fatalf("cash request failed: %v", err)
	}

	cancelled, err := svc.Cancel(distributor.UserID, cash.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != constants.CashStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", cancelled.Status)
	}
	if cancelled.CanceledAt == nil {
		t.Fatalf("expected canceled_at set")
	}
	balance := reloadCashTestDistributor(t, db, distributor.ID)
	if !balance.AvailableCommission.Decimal.Equal(decimal.RequireFromString("500")) {
		t.Fatalf("expected available restored to 500, got %s", balance.AvailableCommission)
	}

	// 已受理进入打款的申请不允许用户取消
	second, err := svc.Request(distributor.UserID, CashRequestInput{
		Amount:  decimal.NewFromInt(100),
		Method:  constants.CashMethodAlipay,
		Account: "alipay-account",
	})
	if err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	if _, err := svc.Audit(7, second.ID, CashAuditInput{Action: constants.CashAuditActionProcess}); err != nil {
		t.Fatalf("audit process failed: %v", err)
	}
	if _, err := svc.Cancel(distributor.UserID, second.ID); !IsStateConflict(err) {
		t.Fatalf("expected state conflict cancelling processing cash, got %v", err)
	}
}

func TestCashCompleteRequiresProcessing(t *testing.T) {
	svc, db := setupCashServiceTest(t)
	distributor := createCashTestDistributor(t, db, "cash-state@example.com", "CASHSTA1", 500)

	cash, err := svc.Request(distributor.UserID, CashRequestInput{
		Amount:  decimal.NewFromInt(200),
		Method:  constants.CashMethodAlipay,
		Account: "alipay-account",
	})
	if err != nil {
		t.Fatalf("cash request failed: %v", err)
	}
	if _, err := svc.Complete(7, cash.ID, "TXN-early"); !IsStateConflict(err) {
		t.Fatalf("expected state conflict completing pending cash, got %v", err)
	}
}

func setupCashServiceTest(t *testing.T) (*CashService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:cash_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Distributor{},
		&models.DistributionCash{},
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
			constants.CashMethodBank:   1.0,
		},
		FirstLevelRate:  10,
		SecondLevelRate: 5,
		ThirdLevelRate:  2,
	}); err != nil {
		t.Fatalf("init distribution setting failed: %v", err)
	}

	svc := NewCashService(
		repository.NewDistributionCashRepository(db),
		repository.NewDistributorRepository(db),
		repository.NewCommissionLedgerRepository(db),
		settingSvc,
	)
	return svc, db
}

func createCashTestUser(t *testing.T, db *gorm.DB, email string) models.User {
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

func createCashTestDistributor(t *testing.T, db *gorm.DB, email, code string, available float64) models.Distributor {
	t.Helper()

	user := createCashTestUser(t, db, email)
	amount := models.NewMoneyFromDecimal(decimal.NewFromFloat(available))
	row := models.Distributor{
		UserID:              user.ID,
		Code:                code,
		Level:               constants.DistributorLevelPrimary,
		Status:              constants.DistributorStatusApproved,
		TotalCommission:     amount,
		AvailableCommission: amount,
		FrozenCommission:    models.ZeroMoney(),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create distributor failed: %v", err)
	}
	return row
}

func reloadCashTestDistributor(t *testing.T, db *gorm.DB, id uint) models.Distributor {
	t.Helper()

	var row models.Distributor
	if err := db.First(&row, id).Error; err != nil {
		t.Fatalf("reload distributor failed: %v", err)
	}
	return row
}

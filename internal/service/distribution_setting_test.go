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
	"gorm.io/gorm"
)

func TestNormalizeDistributionSettingClampsValues(t *testing.T) {
	normalized := NormalizeDistributionSetting(DistributionSetting{
		Enabled:       true,
		MinCashAmount: -3,
		MethodFeeRates: map[string]float64{
			" Alipay ": 150,
			"":         1,
			"bank":     -2,
		},
		FirstLevelRate:  150,
		SecondLevelRate: -5,
		ThirdLevelRate:  2.456,
	})

	if normalized.MinCashAmount != 0 {
		t.Fatalf("expected min cash amount clamped to 0, got %v", normalized.MinCashAmount)
	}
	if normalized.FirstLevelRate != 100 {
		t.Fatalf("expected first rate clamped to 100, got %v", normalized.FirstLevelRate)
	}
	if normalized.SecondLevelRate != 0 {
		t.Fatalf("expected second rate clamped to 0, got %v", normalized.SecondLevelRate)
	}
	if normalized.ThirdLevelRate != 2.46 {
		t.Fatalf("expected third rate rounded to 2.46, got %v", normalized.ThirdLevelRate)
	}
	if len(normalized.MethodFeeRates) != 2 {
		t.Fatalf("expected empty method keys dropped, got %v", normalized.MethodFeeRates)
	}
	if normalized.MethodFeeRates["alipay"] != 100 {
		t.Fatalf("expected method key normalized and rate clamped, got %v", normalized.MethodFeeRates)
	}
	if normalized.MethodFeeRates["bank"] != 0 {
		t.Fatalf("expected negative fee rate clamped to 0, got %v", normalized.MethodFeeRates)
	}
}

func TestValidateDistributionSettingRejectsOutOfRange(t *testing.T) {
	err := ValidateDistributionSetting(DistributionSetting{FirstLevelRate: 120})
	if !errors.Is(err, ErrDistributionConfigInvalid) {
		t.Fatalf("expected ErrDistributionConfigInvalid, got %v", err)
	}
	err = ValidateDistributionSetting(DistributionSetting{
		MethodFeeRates: map[string]float64{"alipay": -1},
	})
	if !errors.Is(err, ErrDistributionConfigInvalid) {
		t.Fatalf("expected ErrDistributionConfigInvalid for fee rate, got %v", err)
	}
	if err := ValidateDistributionSetting(DistributionDefaultSetting()); err != nil {
		t.Fatalf("expected default setting valid, got %v", err)
	}
}

func TestDistributionSettingStoredOverridesDefaults(t *testing.T) {
	svc, _ := setupDistributionSettingTest(t)

	initial, err := svc.GetDistributionSetting()
	if err != nil {
		t.Fatalf("get default setting failed: %v", err)
	}
	if !initial.Enabled || initial.FirstLevelRate != 10 {
		t.Fatalf("expected built-in defaults, got %+v", initial)
	}

	if _, err := svc.UpdateDistributionSetting(DistributionSetting{
		Enabled:       false,
		MinCashAmount: 100,
		MethodFeeRates: map[string]float64{
			constants.CashMethodBank: 2,
		},
		FirstLevelRate:        12,
		SecondLevelRate:       6,
		ThirdLevelRate:        3,
		SettleOnOrderComplete: false,
	}); err != nil {
		t.Fatalf("update setting failed: %v", err)
	}

	stored, err := svc.GetDistributionSetting()
	if err != nil {
		t.Fatalf("get stored setting failed: %v", err)
	}
	if stored.Enabled {
		t.Fatalf("expected distribution disabled after update")
	}
	if stored.MinCashAmount != 100 || stored.FirstLevelRate != 12 || stored.SecondLevelRate != 6 || stored.ThirdLevelRate != 3 {
		t.Fatalf("expected stored values to win, got %+v", stored)
	}
	if rate, ok := stored.FeeRateForMethod(constants.CashMethodBank); !ok || rate != 2 {
		t.Fatalf("expected bank fee rate 2, got %v %v", rate, ok)
	}
	if stored.SettleOnOrderComplete {
		t.Fatalf("expected auto-settle off")
	}
}

func TestDistributionSettingInjectedDefaults(t *testing.T) {
	svc, _ := setupDistributionSettingTest(t)

	svc.SetDistributionDefaults(DistributionSetting{
		Enabled:         true,
		MinCashAmount:   20,
		MethodFeeRates:  map[string]float64{constants.CashMethodWechat: 0.8},
		FirstLevelRate:  8,
		SecondLevelRate: 4,
		ThirdLevelRate:  1,
	})

	setting, err := svc.GetDistributionSetting()
	if err != nil {
		t.Fatalf("get setting failed: %v", err)
	}
	if setting.MinCashAmount != 20 || setting.FirstLevelRate != 8 {
		t.Fatalf("expected injected defaults used when nothing stored, got %+v", setting)
	}
}

func TestDistributionSettingRateLookups(t *testing.T) {
	setting := DistributionSetting{
		MethodFeeRates:  map[string]float64{"alipay": 0.6},
		FirstLevelRate:  10,
		SecondLevelRate: 5,
		ThirdLevelRate:  2,
	}
	if rate, ok := setting.FeeRateForMethod("  ALIPAY "); !ok || rate != 0.6 {
		t.Fatalf("expected alipay rate 0.6, got %v %v", rate, ok)
	}
	if _, ok := setting.FeeRateForMethod("bank"); ok {
		t.Fatalf("expected unknown method rejected")
	}
	for level, want := range map[int]float64{1: 10, 2: 5, 3: 2, 4: 0, 0: 0} {
		if got := setting.RateForLevel(level); got != want {
			t.Fatalf("level %d expected rate %v, got %v", level, want, got)
		}
	}
}

func setupDistributionSettingTest(t *testing.T) (*SettingService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:distribution_setting_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Setting{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewSettingService(repository.NewSettingRepository(db)), db
}

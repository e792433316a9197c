package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fenxiao-mall/internal/constants"
	"github.com/fenxiao-mall/internal/models"
)

const (
	distributionRateMin          = 0
	distributionRateMax          = 100
	distributionMinCashAmountMin = 0
)

// DistributionSetting 分销配置
type DistributionSetting struct {
	Enabled               bool               `json:"enabled"`
	MinCashAmount         float64            `json:"min_cash_amount"`
	MethodFeeRates        map[string]float64 `json:"method_fee_rates"`
	FirstLevelRate        float64            `json:"first_level_rate"`
	SecondLevelRate       float64            `json:"second_level_rate"`
	ThirdLevelRate        float64            `json:"third_level_rate"`
	SettleOnOrderComplete bool               `json:"settle_on_order_complete"`
}

// DistributionDefaultSetting 默认分销配置
func DistributionDefaultSetting() DistributionSetting {
	return NormalizeDistributionSetting(DistributionSetting{
		Enabled:       true,
		MinCashAmount: 50,
		MethodFeeRates: map[string]float64{
			constants.CashMethodAlipay: 0.6,
			constants.CashMethodWechat: 0.6,
			constants.CashMethodBank:   1.0,
		},
		FirstLevelRate:        10,
		SecondLevelRate:       5,
		ThirdLevelRate:        2,
		SettleOnOrderComplete: true,
	})
}

// NormalizeDistributionSetting 归一化分销配置
func NormalizeDistributionSetting(setting DistributionSetting) DistributionSetting {
	setting.MinCashAmount = roundDistributionDecimal(setting.MinCashAmount)
	if setting.MinCashAmount < distributionMinCashAmountMin {
		setting.MinCashAmount = distributionMinCashAmountMin
	}

	setting.FirstLevelRate = clampDistributionRate(setting.FirstLevelRate)
	setting.SecondLevelRate = clampDistributionRate(setting.SecondLevelRate)
	setting.ThirdLevelRate = clampDistributionRate(setting.ThirdLevelRate)

	normalizedRates := make(map[string]float64, len(setting.MethodFeeRates))
	for method, rate := range setting.MethodFeeRates {
		key := strings.ToLower(strings.TrimSpace(method))
		if key == "" {
			continue
		}
		normalizedRates[key] = clampDistributionRate(rate)
	}
	setting.MethodFeeRates = normalizedRates
	return setting
}

// ValidateDistributionSetting 校验分销配置
func ValidateDistributionSetting(setting DistributionSetting) error {
	if setting.MinCashAmount < distributionMinCashAmountMin {
		return fmt.Errorf("%w: 最低提现金额不能小于 0", ErrDistributionConfigInvalid)
	}
	for _, rate := range []float64{setting.FirstLevelRate, setting.SecondLevelRate, setting.ThirdLevelRate} {
		if rate < distributionRateMin || rate > distributionRateMax {
			return fmt.Errorf("%w: 佣金比例必须在 0-100 之间", ErrDistributionConfigInvalid)
		}
	}
	for method, rate := range setting.MethodFeeRates {
		if rate < distributionRateMin || rate > distributionRateMax {
			return fmt.Errorf("%w: 提现方式 %s 手续费比例必须在 0-100 之间", ErrDistributionConfigInvalid, method)
		}
	}
	return nil
}

// DistributionSettingToMap 将分销配置转换为 settings 存储结构
func DistributionSettingToMap(setting DistributionSetting) map[string]interface{} {
	normalized := NormalizeDistributionSetting(setting)
	rates := make(map[string]interface{}, len(normalized.MethodFeeRates))
	for method, rate := range normalized.MethodFeeRates {
		rates[method] = rate
	}
	return map[string]interface{}{
		"enabled":                  normalized.Enabled,
		"min_cash_amount":          normalized.MinCashAmount,
		"method_fee_rates":         rates,
		"first_level_rate":         normalized.FirstLevelRate,
		"second_level_rate":        normalized.SecondLevelRate,
		"third_level_rate":         normalized.ThirdLevelRate,
		"settle_on_order_complete": normalized.SettleOnOrderComplete,
	}
}

// GetDistributionSetting 获取分销配置（存储值覆盖默认值）
func (s *SettingService) GetDistributionSetting() (DistributionSetting, error) {
	fallback := DistributionDefaultSetting()
	if s.distributionDefaults != nil {
		fallback = *s.distributionDefaults
	}
	if s.repo == nil {
		return fallback, nil
	}
	setting, err := s.repo.GetByKey(constants.SettingKeyDistribution)
	if err != nil {
		return fallback, err
	}
	if setting == nil {
		return fallback, nil
	}
	return NormalizeDistributionSetting(distributionSettingFromJSON(setting.ValueJSON, fallback)), nil
}

// UpdateDistributionSetting 更新分销配置
func (s *SettingService) UpdateDistributionSetting(setting DistributionSetting) (DistributionSetting, error) {
	normalized := NormalizeDistributionSetting(setting)
	if err := ValidateDistributionSetting(normalized); err != nil {
		return normalized, err
	}
	if _, err := s.repo.Upsert(constants.SettingKeyDistribution, models.JSON(DistributionSettingToMap(normalized))); err != nil {
		return normalized, err
	}
	return normalized, nil
}

// FeeRateForMethod 查询提现方式手续费比例（百分比）
func (setting DistributionSetting) FeeRateForMethod(method string) (float64, bool) {
	rate, ok := setting.MethodFeeRates[strings.ToLower(strings.TrimSpace(method))]
	return rate, ok
}

// RateForLevel 查询层级佣金比例（百分比）
func (setting DistributionSetting) RateForLevel(level int) float64 {
	switch level {
	case 1:
		return setting.FirstLevelRate
	case 2:
		return setting.SecondLevelRate
	case 3:
		return setting.ThirdLevelRate
	default:
		return 0
	}
}

func distributionSettingFromJSON(raw models.JSON, fallback DistributionSetting) DistributionSetting {
	result := fallback

	if enabledRaw, ok := raw["enabled"]; ok {
		result.Enabled = parseSettingBool(enabledRaw)
	}
	if minRaw, ok := raw["min_cash_amount"]; ok {
		if parsed, err := parseSettingFloat(minRaw); err == nil {
			result.MinCashAmount = parsed
		}
	}
	if ratesRaw, ok := raw["method_fee_rates"]; ok {
		if parsed := parseSettingFloatMap(ratesRaw); len(parsed) > 0 {
			result.MethodFeeRates = parsed
		}
	}
	if rateRaw, ok := raw["first_level_rate"]; ok {
		if parsed, err := parseSettingFloat(rateRaw); err == nil {
			result.FirstLevelRate = parsed
		}
	}
	if rateRaw, ok := raw["second_level_rate"]; ok {
		if parsed, err := parseSettingFloat(rateRaw); err == nil {
			result.SecondLevelRate = parsed
		}
	}
	if rateRaw, ok := raw["third_level_rate"]; ok {
		if parsed, err := parseSettingFloat(rateRaw); err == nil {
			result.ThirdLevelRate = parsed
		}
	}
	if settleRaw, ok := raw["settle_on_order_complete"]; ok {
		result.SettleOnOrderComplete = parseSettingBool(settleRaw)
	}
	return result
}

func parseSettingBool(raw interface{}) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false
		}
		return parsed
	case float64:
		return v != 0
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return false
		}
		return parsed != 0
	default:
		return false
	}
}

func parseSettingFloat(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("unsupported setting number type %T", raw)
	}
}

func parseSettingFloatMap(raw interface{}) map[string]float64 {
	source, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	result := make(map[string]float64, len(source))
	for key, value := range source {
		normalized := strings.ToLower(strings.TrimSpace(key))
		if normalized == "" {
			continue
		}
		parsed, err := parseSettingFloat(value)
		if err != nil {
			continue
		}
		result[normalized] = parsed
	}
	return result
}

func clampDistributionRate(rate float64) float64 {
	rate = roundDistributionDecimal(rate)
	if rate < distributionRateMin {
		return distributionRateMin
	}
	if rate > distributionRateMax {
		return distributionRateMax
	}
	return rate
}

func roundDistributionDecimal(value float64) float64 {
	return math.Round(value*100) / 100
}

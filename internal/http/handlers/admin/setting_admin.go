package admin

import (
	"errors"

	"github.com/fenxiao-mall/internal/http/response"
	"github.com/fenxiao-mall/internal/service"

	"github.com/gin-gonic/gin"
)

// GetDistributionSetting 获取分销配置
func (h *Handler) GetDistributionSetting(c *gin.Context) {
	if h.SettingService == nil {
		respondError(c, response.CodeInternal, "获取分销配置失败", nil)
		return
	}
	setting, err := h.SettingService.GetDistributionSetting()
	if err != nil {
		respondError(c, response.CodeInternal, "获取分销配置失败", err)
		return
	}
	response.Success(c, setting)
}

// DistributionSettingRequest 分销配置更新请求
type DistributionSettingRequest struct {
	Enabled               bool               `json:"enabled"`
	MinCashAmount         float64            `json:"min_cash_amount"`
	MethodFeeRates        map[string]float64 `json:"method_fee_rates"`
	FirstLevelRate        float64            `json:"first_level_rate"`
	SecondLevelRate       float64            `json:"second_level_rate"`
	ThirdLevelRate        float64            `json:"third_level_rate"`
	SettleOnOrderComplete bool               `json:"settle_on_order_complete"`
}

// UpdateDistributionSetting 更新分销配置
func (h *Handler) UpdateDistributionSetting(c *gin.Context) {
	if h.SettingService == nil {
		respondError(c, response.CodeInternal, "更新分销配置失败", nil)
		return
	}

	var req DistributionSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	setting, err := h.SettingService.UpdateDistributionSetting(service.DistributionSetting{
		Enabled:               req.Enabled,
		MinCashAmount:         req.MinCashAmount,
		MethodFeeRates:        req.MethodFeeRates,
		FirstLevelRate:        req.FirstLevelRate,
		SecondLevelRate:       req.SecondLevelRate,
		ThirdLevelRate:        req.ThirdLevelRate,
		SettleOnOrderComplete: req.SettleOnOrderComplete,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDistributionConfigInvalid):
			respondError(c, response.CodeBadRequest, "分销配置不合法", nil)
		default:
			respondError(c, response.CodeInternal, "更新分销配置失败", err)
		}
		return
	}
	response.Success(c, setting)
}

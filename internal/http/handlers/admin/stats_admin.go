package admin

import (
	"github.com/fenxiao-mall/internal/constants"
	"github.com/fenxiao-mall/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetDistributionOverview 平台分销总览
func (h *Handler) GetDistributionOverview(c *gin.Context) {
	if h.StatsService == nil {
		respondError(c, response.CodeInternal, "获取分销总览失败", nil)
		return
	}
	overview, err := h.StatsService.GetOverview()
	if err != nil {
		respondError(c, response.CodeInternal, "获取分销总览失败", err)
		return
	}
	response.Success(c, overview)
}

// GetOutboxStats 事件发件箱积压统计
func (h *Handler) GetOutboxStats(c *gin.Context) {
	if h.EventOutboxRepo == nil {
		respondError(c, response.CodeInternal, "获取事件统计失败", nil)
		return
	}
	stats := gin.H{}
	for _, status := range []string{
		constants.OutboxStatusPending,
		constants.OutboxStatusDispatched,
		constants.OutboxStatusFailed,
	} {
		total, err := h.EventOutboxRepo.CountByStatus(status)
		if err != nil {
			respondError(c, response.CodeInternal, "获取事件统计失败", err)
			return
		}
		stats[status] = total
	}
	response.Success(c, stats)
}

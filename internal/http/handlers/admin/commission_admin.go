package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/fenxiao-mall/internal/http/response"
	"github.com/fenxiao-mall/internal/repository"
	"github.com/fenxiao-mall/internal/service"

	"github.com/gin-gonic/gin"
)

// ListCommissions 佣金明细列表
func (h *Handler) ListCommissions(c *gin.Context) {
	if h.CommissionService == nil {
		respondError(c, response.CodeInternal, "获取佣金明细失败", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	level, _ := strconv.Atoi(c.Query("level"))

	rows, total, err := h.CommissionService.List(repository.DistributionOrderListFilter{
		Page:          page,
		PageSize:      pageSize,
		DistributorID: parseUintQuery(c, "distributor_id"),
		OrderID:       parseUintQuery(c, "order_id"),
		OrderNo:       strings.TrimSpace(c.Query("order_no")),
		Status:        strings.TrimSpace(c.Query("status")),
		Level:         level,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "获取佣金明细失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// ListCommissionLedger 佣金流水列表
func (h *Handler) ListCommissionLedger(c *gin.Context) {
	if h.CommissionService == nil {
		respondError(c, response.CodeInternal, "获取佣金流水失败", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	rows, total, err := h.CommissionService.ListLedger(repository.CommissionLedgerListFilter{
		Page:          page,
		PageSize:      pageSize,
		DistributorID: parseUintQuery(c, "distributor_id"),
		Bucket:        strings.TrimSpace(c.Query("bucket")),
		SourceKind:    strings.TrimSpace(c.Query("source_kind")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "获取佣金流水失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// SettleOrderCommissions 手动结算订单佣金
func (h *Handler) SettleOrderCommissions(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	if h.CommissionService == nil {
		respondError(c, response.CodeInternal, "结算失败", nil)
		return
	}
	orderID := parseUintParam(c, "id")
	if orderID == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	if err := h.CommissionService.SettleOrder(orderID, &adminID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "订单不存在", nil)
		case errors.Is(err, service.ErrOrderStatusInvalid):
			respondError(c, response.CodeBadRequest, "订单状态不允许结算", nil)
		default:
			respondError(c, response.CodeInternal, "结算失败", err)
		}
		return
	}
	response.Success(c, gin.H{"ok": true})
}

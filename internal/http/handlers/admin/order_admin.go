package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/fenxiao-mall/internal/http/response"
	"github.com/fenxiao-mall/internal/repository"
	"github.com/fenxiao-mall/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AdminListOrders 订单列表
func (h *Handler) AdminListOrders(c *gin.Context) {
	if h.OrderService == nil {
		respondError(c, response.CodeInternal, "获取订单列表失败", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	rows, total, err := h.OrderService.List(repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   parseUintQuery(c, "user_id"),
		Status:   strings.TrimSpace(c.Query("status")),
		OrderNo:  strings.TrimSpace(c.Query("order_no")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "获取订单列表失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// AdminGetOrder 订单详情
func (h *Handler) AdminGetOrder(c *gin.Context) {
	if h.OrderService == nil {
		respondError(c, response.CodeInternal, "获取订单失败", nil)
		return
	}
	orderID := parseUintParam(c, "id")
	if orderID == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}
	order, err := h.OrderService.GetByID(orderID)
	if err != nil {
		respondError(c, response.CodeInternal, "获取订单失败", err)
		return
	}
	if order == nil {
		respondError(c, response.CodeNotFound, "订单不存在", nil)
		return
	}
	response.Success(c, order)
}

// AdminCompleteOrder 标记订单完成
func (h *Handler) AdminCompleteOrder(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	if h.OrderService == nil {
		respondError(c, response.CodeInternal, "订单完成失败", nil)
		return
	}
	orderID := parseUintParam(c, "id")
	if orderID == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	order, err := h.OrderService.Complete(orderID, &adminID)
	if err != nil {
		respondAdminOrderTransitionError(c, err, "订单完成失败")
		return
	}
	response.Success(c, order)
}

// AdminRefundOrderRequest 订单退款请求
type AdminRefundOrderRequest struct {
	Amount string `json:"amount" binding:"required"`
	Reason string `json:"reason"`
}

// AdminRefundOrder 订单退款（支持部分退款）
func (h *Handler) AdminRefundOrder(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	if h.OrderService == nil {
		respondError(c, response.CodeInternal, "退款失败", nil)
		return
	}
	orderID := parseUintParam(c, "id")
	if orderID == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	var req AdminRefundOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		respondError(c, response.CodeBadRequest, "退款金额格式错误", nil)
		return
	}

	order, err := h.OrderService.Refund(orderID, amount, req.Reason, &adminID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRefundExceedsPaid):
			respondError(c, response.CodeBadRequest, "退款金额超过可退金额", nil)
		default:
			respondAdminOrderTransitionError(c, err, "退款失败")
		}
		return
	}
	response.Success(c, order)
}

// AdminCancelOrderRequest 订单取消请求
type AdminCancelOrderRequest struct {
	Remark string `json:"remark"`
}

// AdminCancelOrder 取消待支付订单
func (h *Handler) AdminCancelOrder(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	if h.OrderService == nil {
		respondError(c, response.CodeInternal, "取消订单失败", nil)
		return
	}
	orderID := parseUintParam(c, "id")
	if orderID == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	// 请求体可省略
	var req AdminCancelOrderRequest
	_ = c.ShouldBindJSON(&req)

	order, err := h.OrderService.Cancel(orderID, &adminID, req.Remark)
	if err != nil {
		respondAdminOrderTransitionError(c, err, "取消订单失败")
		return
	}
	response.Success(c, order)
}

func respondAdminOrderTransitionError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondError(c, response.CodeNotFound, "订单不存在", nil)
	case service.IsStateConflict(err):
		respondError(c, response.CodeConflict, "订单状态不允许该操作", nil)
	default:
		respondError(c, response.CodeInternal, fallback, err)
	}
}

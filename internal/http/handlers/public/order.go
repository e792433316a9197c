package public

import (
	"errors"
	"strconv"
	"strings"

	"github.com/fenxiao-mall/internal/http/response"
	"github.com/fenxiao-mall/internal/repository"
	"github.com/fenxiao-mall/internal/service"

	"github.com/gin-gonic/gin"
)

// OrderItemRequest 订单行请求
type OrderItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

// OrderCreateRequest 创建订单请求
type OrderCreateRequest struct {
	Items            []OrderItemRequest `json:"items" binding:"required"`
	DistributionCode string             `json:"distribution_code"`
	Currency         string             `json:"currency"`
}

// CreateOrder 创建订单
func (h *Handler) CreateOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if h.OrderService == nil {
		respondError(c, response.CodeInternal, "下单失败", nil)
		return
	}

	var req OrderCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	items := make([]service.OrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.OrderItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.OrderService.Create(uid, service.OrderCreateInput{
		Items:            items,
		DistributionCode: req.DistributionCode,
		Currency:         req.Currency,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeBadRequest, "订单包含无效商品", nil)
		default:
			respondError(c, response.CodeInternal, "下单失败", err)
		}
		return
	}
	response.Success(c, order)
}

// PayOrder 订单支付（模拟支付成功）
func (h *Handler) PayOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, owned := h.resolveOwnedOrder(c, uid)
	if !owned {
		return
	}

	order, err := h.OrderService.MarkPaid(orderID)
	if err != nil {
		respondOrderTransitionError(c, err)
		return
	}
	response.Success(c, order)
}

// CancelOrder 取消待支付订单
func (h *Handler) CancelOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, owned := h.resolveOwnedOrder(c, uid)
	if !owned {
		return
	}

	order, err := h.OrderService.Cancel(orderID, nil, "用户取消")
	if err != nil {
		respondOrderTransitionError(c, err)
		return
	}
	response.Success(c, order)
}

// ListOrders 我的订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
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
		UserID:   uid,
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "获取订单列表失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetOrder 我的订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
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
	if order == nil || order.UserID != uid {
		respondError(c, response.CodeNotFound, "订单不存在", nil)
		return
	}
	response.Success(c, order)
}

// resolveOwnedOrder 解析路径里的订单 ID 并校验归属，失败时已写出响应。
func (h *Handler) resolveOwnedOrder(c *gin.Context, uid uint) (uint, bool) {
	if h.OrderService == nil {
		respondError(c, response.CodeInternal, "订单操作失败", nil)
		return 0, false
	}
	orderID := parseUintParam(c, "id")
	if orderID == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return 0, false
	}
	order, err := h.OrderService.GetByID(orderID)
	if err != nil {
		respondError(c, response.CodeInternal, "订单操作失败", err)
		return 0, false
	}
	if order == nil || order.UserID != uid {
		respondError(c, response.CodeNotFound, "订单不存在", nil)
		return 0, false
	}
	return orderID, true
}

func respondOrderTransitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondError(c, response.CodeNotFound, "订单不存在", nil)
	case service.IsStateConflict(err):
		respondError(c, response.CodeConflict, "订单状态不允许该操作", nil)
	default:
		respondError(c, response.CodeInternal, "订单操作失败", err)
	}
}

func parseUintParam(c *gin.Context, name string) uint {
	value, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil {
		return 0
	}
	return uint(value)
}

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

// ListCashes 提现申请列表
func (h *Handler) ListCashes(c *gin.Context) {
	if h.CashService == nil {
		respondError(c, response.CodeInternal, "获取提现列表失败", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	rows, total, err := h.CashService.List(repository.DistributionCashListFilter{
		Page:          page,
		PageSize:      pageSize,
		DistributorID: parseUintQuery(c, "distributor_id"),
		CashNo:        strings.TrimSpace(c.Query("cash_no")),
		Status:        strings.TrimSpace(c.Query("status")),
		Method:        strings.TrimSpace(c.Query("method")),
		Keyword:       strings.TrimSpace(c.Query("keyword")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "获取提现列表失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetCash 提现申请详情
func (h *Handler) GetCash(c *gin.Context) {
	if h.CashService == nil {
		respondError(c, response.CodeInternal, "获取提现申请失败", nil)
		return
	}
	id := parseUintParam(c, "id")
	if id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}
	cash, err := h.CashService.GetByID(id)
	if err != nil {
		respondError(c, response.CodeInternal, "获取提现申请失败", err)
		return
	}
	if cash == nil {
		respondError(c, response.CodeNotFound, "提现申请不存在", nil)
		return
	}
	response.Success(c, cash)
}

// CashAuditRequest 提现审核请求
type CashAuditRequest struct {
	Action       string `json:"action" binding:"required"` // process / reject
	RejectReason string `json:"reject_reason"`
}

// AuditCash 审核提现申请
func (h *Handler) AuditCash(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	if h.CashService == nil {
		respondError(c, response.CodeInternal, "审核失败", nil)
		return
	}
	id := parseUintParam(c, "id")
	if id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	var req CashAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	cash, err := h.CashService.Audit(adminID, id, service.CashAuditInput{
		Action:       req.Action,
		RejectReason: req.RejectReason,
	})
	if err != nil {
		respondCashTransitionError(c, err, "审核失败")
		return
	}
	response.Success(c, cash)
}

// CashCompleteRequest 提现打款完成请求
type CashCompleteRequest struct {
	ExternalTxnNo string `json:"external_txn_no"`
}

// CompleteCash 标记提现打款完成
func (h *Handler) CompleteCash(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	if h.CashService == nil {
		respondError(c, response.CodeInternal, "打款确认失败", nil)
		return
	}
	id := parseUintParam(c, "id")
	if id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	var req CashCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	cash, err := h.CashService.Complete(adminID, id, req.ExternalTxnNo)
	if err != nil {
		respondCashTransitionError(c, err, "打款确认失败")
		return
	}
	response.Success(c, cash)
}

func respondCashTransitionError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondError(c, response.CodeNotFound, "提现申请不存在", nil)
	case service.IsStateConflict(err):
		respondError(c, response.CodeConflict, "提现申请状态不允许该操作", nil)
	default:
		respondError(c, response.CodeInternal, fallback, err)
	}
}

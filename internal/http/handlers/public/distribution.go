package public

import (
	"errors"
	"strconv"
	"strings"

	"github.com/fenxiao-mall/internal/http/response"
	"github.com/fenxiao-mall/internal/models"
	"github.com/fenxiao-mall/internal/repository"
	"github.com/fenxiao-mall/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// DistributorApplyRequest 分销员申请请求
type DistributorApplyRequest struct {
	ParentCode string `json:"parent_code"`
	Remark     string `json:"remark"`
}

// ApplyDistributor 申请成为分销员
func (h *Handler) ApplyDistributor(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if h.DistributorService == nil {
		respondError(c, response.CodeInternal, "申请失败", nil)
		return
	}

	var req DistributorApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	distributor, err := h.DistributorService.Apply(uid, service.DistributorApplyInput{
		ParentCode: req.ParentCode,
		Remark:     req.Remark,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDistributionDisabled):
			respondError(c, response.CodeBadRequest, "分销功能未开启", nil)
		case errors.Is(err, service.ErrDistributorExists):
			respondError(c, response.CodeConflict, "已提交过分销员申请", nil)
		case errors.Is(err, service.ErrDistributorCodeInvalid):
			respondError(c, response.CodeBadRequest, "推荐码无效", nil)
		case errors.Is(err, service.ErrDistributorParentInvalid):
			respondError(c, response.CodeBadRequest, "推荐人无效", nil)
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "用户不存在", nil)
		default:
			respondError(c, response.CodeInternal, "申请失败", err)
		}
		return
	}
	response.Success(c, distributor)
}

// GetDistributionDashboard 分销员个人中心
func (h *Handler) GetDistributionDashboard(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if h.StatsService == nil {
		respondError(c, response.CodeInternal, "获取分销数据失败", nil)
		return
	}
	data, err := h.StatsService.GetDistributorDashboard(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "获取分销数据失败", err)
		return
	}
	response.Success(c, data)
}

// ListMyCommissions 我的佣金明细
func (h *Handler) ListMyCommissions(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	distributor, done := h.requireDistributor(c, uid)
	if done {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	rows, total, err := h.CommissionService.List(repository.DistributionOrderListFilter{
		Page:          page,
		PageSize:      pageSize,
		DistributorID: distributor.ID,
		Status:        strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "获取佣金明细失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// ListMyLedger 我的佣金流水
func (h *Handler) ListMyLedger(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	distributor, done := h.requireDistributor(c, uid)
	if done {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	rows, total, err := h.CommissionService.ListLedger(repository.CommissionLedgerListFilter{
		Page:          page,
		PageSize:      pageSize,
		DistributorID: distributor.ID,
		Bucket:        strings.TrimSpace(c.Query("bucket")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "获取佣金流水失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// ListMyTeam 我的直属下级
func (h *Handler) ListMyTeam(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	distributor, done := h.requireDistributor(c, uid)
	if done {
		return
	}
	rows, err := h.DistributorService.Team(distributor.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "获取团队信息失败", err)
		return
	}
	response.Success(c, rows)
}

// CashRequestRequest 提现申请请求
type CashRequestRequest struct {
	Amount  string `json:"amount" binding:"required"`
	Method  string `json:"method" binding:"required"`
	Account string `json:"account" binding:"required"`
}

// RequestCash 提交提现申请
func (h *Handler) RequestCash(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if h.CashService == nil {
		respondError(c, response.CodeInternal, "提现申请失败", nil)
		return
	}

	var req CashRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		respondError(c, response.CodeBadRequest, "提现金额格式错误", nil)
		return
	}

	cash, err := h.CashService.Request(uid, service.CashRequestInput{
		Amount:  amount,
		Method:  req.Method,
		Account: req.Account,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDistributionDisabled):
			respondError(c, response.CodeBadRequest, "分销功能未开启", nil)
		case errors.Is(err, service.ErrDistributorNotFound):
			respondError(c, response.CodeBadRequest, "尚未开通分销", nil)
		case errors.Is(err, service.ErrDistributorNotApproved):
			respondError(c, response.CodeBadRequest, "分销员未通过审核", nil)
		case errors.Is(err, service.ErrCashAmountInvalid):
			respondError(c, response.CodeBadRequest, "提现金额无效", nil)
		case errors.Is(err, service.ErrCashAmountBelowMinimum):
			respondError(c, response.CodeBadRequest, "提现金额低于最低限额", nil)
		case errors.Is(err, service.ErrCashMethodInvalid):
			respondError(c, response.CodeBadRequest, "提现方式不支持", nil)
		case errors.Is(err, service.ErrCashAccountInvalid):
			respondError(c, response.CodeBadRequest, "收款账号无效", nil)
		case errors.Is(err, service.ErrDuplicateCashRequest):
			respondError(c, response.CodeConflict, "存在未完成的提现申请", nil)
		case errors.Is(err, service.ErrInsufficientBalance):
			respondError(c, response.CodeBadRequest, "可提现余额不足", nil)
		default:
			respondError(c, response.CodeInternal, "提现申请失败", err)
		}
		return
	}
	response.Success(c, cash)
}

// CancelCash 取消待审核的提现申请
func (h *Handler) CancelCash(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if h.CashService == nil {
		respondError(c, response.CodeInternal, "取消提现失败", nil)
		return
	}
	cashID := parseUintParam(c, "id")
	if cashID == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	cash, err := h.CashService.Cancel(uid, cashID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "提现申请不存在", nil)
		case service.IsStateConflict(err):
			respondError(c, response.CodeConflict, "提现申请状态不允许取消", nil)
		default:
			respondError(c, response.CodeInternal, "取消提现失败", err)
		}
		return
	}
	response.Success(c, cash)
}

// ListMyCashes 我的提现申请记录
func (h *Handler) ListMyCashes(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	distributor, done := h.requireDistributor(c, uid)
	if done {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	rows, total, err := h.CashService.List(repository.DistributionCashListFilter{
		Page:          page,
		PageSize:      pageSize,
		DistributorID: distributor.ID,
		Status:        strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "获取提现记录失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// requireDistributor 获取当前用户的分销员身份，缺失时已写出响应。
func (h *Handler) requireDistributor(c *gin.Context, uid uint) (*models.Distributor, bool) {
	if h.DistributorService == nil || h.CommissionService == nil || h.CashService == nil {
		respondError(c, response.CodeInternal, "获取分销信息失败", nil)
		return nil, true
	}
	row, err := h.DistributorService.GetByUserID(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "获取分销信息失败", err)
		return nil, true
	}
	if row == nil {
		respondError(c, response.CodeBadRequest, "尚未开通分销", nil)
		return nil, true
	}
	return row, false
}

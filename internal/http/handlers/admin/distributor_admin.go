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

// ListDistributors 分销员列表（含统计）
func (h *Handler) ListDistributors(c *gin.Context) {
	if h.DistributorService == nil {
		respondError(c, response.CodeInternal, "获取分销员列表失败", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	level, _ := strconv.Atoi(c.Query("level"))

	rows, total, err := h.DistributorService.AdminList(repository.DistributorListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		Code:     strings.TrimSpace(c.Query("code")),
		ParentID: parseUintQuery(c, "parent_id"),
		Level:    level,
		Keyword:  strings.TrimSpace(c.Query("keyword")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "获取分销员列表失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetDistributor 分销员详情
func (h *Handler) GetDistributor(c *gin.Context) {
	if h.DistributorService == nil {
		respondError(c, response.CodeInternal, "获取分销员失败", nil)
		return
	}
	id := parseUintParam(c, "id")
	if id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}
	distributor, err := h.DistributorService.GetByID(id)
	if err != nil {
		respondError(c, response.CodeInternal, "获取分销员失败", err)
		return
	}
	if distributor == nil {
		respondError(c, response.CodeNotFound, "分销员不存在", nil)
		return
	}
	response.Success(c, distributor)
}

// DistributorAuditRequest 分销员审核请求
type DistributorAuditRequest struct {
	Action       string `json:"action" binding:"required"` // approve / reject
	RejectReason string `json:"reject_reason"`
}

// AuditDistributor 审核分销员申请
func (h *Handler) AuditDistributor(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	if h.DistributorService == nil {
		respondError(c, response.CodeInternal, "审核失败", nil)
		return
	}
	id := parseUintParam(c, "id")
	if id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	var req DistributorAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	distributor, err := h.DistributorService.Audit(adminID, id, service.DistributorAuditInput{
		Action:       req.Action,
		RejectReason: req.RejectReason,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "分销员不存在", nil)
		case errors.Is(err, service.ErrDistributorAlreadyAudited):
			respondError(c, response.CodeConflict, "该申请已审核", nil)
		default:
			respondError(c, response.CodeInternal, "审核失败", err)
		}
		return
	}
	response.Success(c, distributor)
}

// DistributorStatusRequest 分销员状态变更请求
type DistributorStatusRequest struct {
	Status string `json:"status" binding:"required"` // approved / disabled
}

// UpdateDistributorStatus 启用/禁用分销员
func (h *Handler) UpdateDistributorStatus(c *gin.Context) {
	if h.DistributorService == nil {
		respondError(c, response.CodeInternal, "状态变更失败", nil)
		return
	}
	id := parseUintParam(c, "id")
	if id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	var req DistributorStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	distributor, err := h.DistributorService.UpdateStatus(id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "分销员不存在", nil)
		case service.IsStateConflict(err):
			respondError(c, response.CodeConflict, "分销员状态不允许该变更", nil)
		default:
			respondError(c, response.CodeInternal, "状态变更失败", err)
		}
		return
	}
	response.Success(c, distributor)
}

// GetDistributorUpline 分销员上级链
func (h *Handler) GetDistributorUpline(c *gin.Context) {
	if h.DistributorService == nil {
		respondError(c, response.CodeInternal, "获取上级链失败", nil)
		return
	}
	id := parseUintParam(c, "id")
	if id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}
	chain, err := h.DistributorService.UplineChain(id)
	if err != nil {
		respondError(c, response.CodeInternal, "获取上级链失败", err)
		return
	}
	response.Success(c, chain)
}

package public

import (
	"strconv"
	"strings"

	"github.com/fenxiao-mall/internal/http/response"
	"github.com/fenxiao-mall/internal/repository"

	"github.com/gin-gonic/gin"
)

// GetProducts 商品列表（仅上架商品）
func (h *Handler) GetProducts(c *gin.Context) {
	if h.ProductRepo == nil {
		respondError(c, response.CodeInternal, "获取商品列表失败", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	rows, total, err := h.ProductRepo.List(repository.ProductListFilter{
		Page:             page,
		PageSize:         pageSize,
		Search:           strings.TrimSpace(c.Query("search")),
		OnlyActive:       true,
		DistributionOnly: c.Query("distribution_only") == "true",
	})
	if err != nil {
		respondError(c, response.CodeInternal, "获取商品列表失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetProductBySlug 商品详情
func (h *Handler) GetProductBySlug(c *gin.Context) {
	if h.ProductRepo == nil {
		respondError(c, response.CodeInternal, "获取商品失败", nil)
		return
	}
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}
	product, err := h.ProductRepo.GetBySlug(slug)
	if err != nil {
		respondError(c, response.CodeInternal, "获取商品失败", err)
		return
	}
	if product == nil || !product.IsActive {
		respondError(c, response.CodeNotFound, "商品不存在", nil)
		return
	}
	response.Success(c, product)
}

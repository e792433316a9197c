package admin

import (
	"github.com/fenxiao-mall/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetAuthzMe 当前管理员的授权信息
func (h *Handler) GetAuthzMe(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	isSuper := c.GetBool("admin_is_super")

	roles := []string{}
	if h.AuthzService != nil {
		list, err := h.AuthzService.GetAdminRoles(adminID)
		if err != nil {
			respondError(c, response.CodeInternal, "获取授权信息失败", err)
			return
		}
		roles = list
	}
	response.Success(c, gin.H{
		"admin_id": adminID,
		"is_super": isSuper,
		"roles":    roles,
	})
}

// ListAuthzRoles 角色列表
func (h *Handler) ListAuthzRoles(c *gin.Context) {
	if h.AuthzService == nil {
		respondError(c, response.CodeInternal, "授权服务不可用", nil)
		return
	}
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondError(c, response.CodeInternal, "获取角色列表失败", err)
		return
	}
	response.Success(c, roles)
}

// GetAuthzRolePolicies 角色策略列表
func (h *Handler) GetAuthzRolePolicies(c *gin.Context) {
	if h.AuthzService == nil {
		respondError(c, response.CodeInternal, "授权服务不可用", nil)
		return
	}
	policies, err := h.AuthzService.GetRolePolicies(c.Param("role"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "获取角色策略失败", err)
		return
	}
	response.Success(c, policies)
}

// AuthzPolicyRequest 策略授予/撤销请求
type AuthzPolicyRequest struct {
	Role   string `json:"role" binding:"required"`
	Object string `json:"object" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// GrantAuthzPolicy 为角色授予策略
func (h *Handler) GrantAuthzPolicy(c *gin.Context) {
	if h.AuthzService == nil {
		respondError(c, response.CodeInternal, "授权服务不可用", nil)
		return
	}
	var req AuthzPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	if err := h.AuthzService.GrantRolePolicy(req.Role, req.Object, req.Action); err != nil {
		respondError(c, response.CodeBadRequest, "授予策略失败", err)
		return
	}
	response.Success(c, nil)
}

// RevokeAuthzPolicy 撤销角色策略
func (h *Handler) RevokeAuthzPolicy(c *gin.Context) {
	if h.AuthzService == nil {
		respondError(c, response.CodeInternal, "授权服务不可用", nil)
		return
	}
	var req AuthzPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	if err := h.AuthzService.RevokeRolePolicy(req.Role, req.Object, req.Action); err != nil {
		respondError(c, response.CodeBadRequest, "撤销策略失败", err)
		return
	}
	response.Success(c, nil)
}

// GetAuthzAdminRoles 查询管理员角色
func (h *Handler) GetAuthzAdminRoles(c *gin.Context) {
	if h.AuthzService == nil {
		respondError(c, response.CodeInternal, "授权服务不可用", nil)
		return
	}
	id := parseUintParam(c, "id")
	if id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}
	roles, err := h.AuthzService.GetAdminRoles(id)
	if err != nil {
		respondError(c, response.CodeInternal, "获取管理员角色失败", err)
		return
	}
	response.Success(c, roles)
}

// AuthzAdminRolesRequest 管理员角色设置请求
type AuthzAdminRolesRequest struct {
	Roles []string `json:"roles"`
}

// SetAuthzAdminRoles 覆盖设置管理员角色
func (h *Handler) SetAuthzAdminRoles(c *gin.Context) {
	if h.AuthzService == nil {
		respondError(c, response.CodeInternal, "授权服务不可用", nil)
		return
	}
	id := parseUintParam(c, "id")
	if id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}
	var req AuthzAdminRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	if err := h.AuthzService.SetAdminRoles(id, req.Roles); err != nil {
		respondError(c, response.CodeBadRequest, "设置管理员角色失败", err)
		return
	}
	roles, err := h.AuthzService.GetAdminRoles(id)
	if err != nil {
		respondError(c, response.CodeInternal, "获取管理员角色失败", err)
		return
	}
	response.Success(c, roles)
}

package admin

import (
	"errors"
	"time"

	"github.com/fenxiao-mall/internal/http/response"
	"github.com/fenxiao-mall/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminLoginRequest 管理员登录请求
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminLoginResponse 管理员登录响应
type AdminLoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Admin     interface{} `json:"admin"`
}

// AdminLogin 管理员登录
func (h *Handler) AdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	if h.AuthService == nil {
		respondError(c, response.CodeInternal, "登录失败", nil)
		return
	}

	admin, token, expiresAt, err := h.AuthService.Login(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			respondError(c, response.CodeUnauthorized, "用户名或密码错误", nil)
		default:
			respondError(c, response.CodeInternal, "登录失败", err)
		}
		return
	}
	response.Success(c, AdminLoginResponse{Token: token, ExpiresAt: expiresAt, Admin: admin})
}

// GetAdminProfile 获取当前管理员信息
func (h *Handler) GetAdminProfile(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	if h.AuthService == nil {
		respondError(c, response.CodeInternal, "获取管理员信息失败", nil)
		return
	}
	admin, err := h.AuthService.GetAdminByID(adminID)
	if err != nil {
		respondError(c, response.CodeInternal, "获取管理员信息失败", err)
		return
	}
	if admin == nil {
		respondError(c, response.CodeNotFound, "管理员不存在", nil)
		return
	}
	response.Success(c, admin)
}

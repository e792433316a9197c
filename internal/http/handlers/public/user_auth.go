package public

import (
	"errors"
	"time"

	"github.com/fenxiao-mall/internal/http/response"
	"github.com/fenxiao-mall/internal/service"

	"github.com/gin-gonic/gin"
)

// UserRegisterRequest 用户注册请求
type UserRegisterRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

// UserLoginRequest 用户登录请求
type UserLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserAuthResponse 用户认证响应
type UserAuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      interface{} `json:"user"`
}

// UserRegister 用户注册
func (h *Handler) UserRegister(c *gin.Context) {
	var req UserRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	if h.UserAuthService == nil {
		respondError(c, response.CodeInternal, "注册失败", nil)
		return
	}

	user, token, expiresAt, err := h.UserAuthService.Register(req.Email, req.Password, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			respondError(c, response.CodeBadRequest, "邮箱或密码格式错误", nil)
		default:
			respondError(c, response.CodeInternal, "注册失败", err)
		}
		return
	}
	response.Success(c, UserAuthResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

// UserLogin 用户登录
func (h *Handler) UserLogin(c *gin.Context) {
	var req UserLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	if h.UserAuthService == nil {
		respondError(c, response.CodeInternal, "登录失败", nil)
		return
	}

	user, token, expiresAt, err := h.UserAuthService.Login(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			respondError(c, response.CodeUnauthorized, "邮箱或密码错误", nil)
		case errors.Is(err, service.ErrUserDisabled):
			respondError(c, response.CodeUnauthorized, "账户已被禁用", nil)
		default:
			respondError(c, response.CodeInternal, "登录失败", err)
		}
		return
	}
	response.Success(c, UserAuthResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

// GetCurrentUser 获取当前用户信息
func (h *Handler) GetCurrentUser(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if h.UserAuthService == nil {
		respondError(c, response.CodeInternal, "获取用户信息失败", nil)
		return
	}
	user, err := h.UserAuthService.GetUserByID(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "获取用户信息失败", err)
		return
	}
	if user == nil {
		respondError(c, response.CodeNotFound, "用户不存在", nil)
		return
	}
	response.Success(c, user)
}

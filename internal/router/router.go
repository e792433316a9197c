package router

import (
	"fmt"
	"strings"

	"github.com/fenxiao-mall/internal/cache"
	"github.com/fenxiao-mall/internal/config"
	adminhandlers "github.com/fenxiao-mall/internal/http/handlers/admin"
	publichandlers "github.com/fenxiao-mall/internal/http/handlers/public"
	"github.com/fenxiao-mall/internal/logger"
	"github.com/fenxiao-mall/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "fx"
	}
	redisClient := cache.Client()
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
	}
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		public := apiV1.Group("/public")
		{
			public.GET("/products", publicHandler.GetProducts)
			public.GET("/products/:slug", publicHandler.GetProductBySlug)
		}

		// 用户认证接口
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", publicHandler.UserRegister)
			auth.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("email")), publicHandler.UserLogin)
		}

		// 用户接口（需鉴权）
		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.UserJWT.SecretKey, c.UserRepo))
		{
			user.GET("/me", publicHandler.GetCurrentUser)
			user.POST("/orders", publicHandler.CreateOrder)
			user.GET("/orders", publicHandler.ListOrders)
			user.GET("/orders/:id", publicHandler.GetOrder)
			user.POST("/orders/:id/pay", publicHandler.PayOrder)
			user.POST("/orders/:id/cancel", publicHandler.CancelOrder)

			user.POST("/distribution/apply", publicHandler.ApplyDistributor)
			user.GET("/distribution/dashboard", publicHandler.GetDistributionDashboard)
			user.GET("/distribution/commissions", publicHandler.ListMyCommissions)
			user.GET("/distribution/ledger", publicHandler.ListMyLedger)
			user.GET("/distribution/team", publicHandler.ListMyTeam)
			user.POST("/distribution/cashes", publicHandler.RequestCash)
			user.GET("/distribution/cashes", publicHandler.ListMyCashes)
			user.POST("/distribution/cashes/:id/cancel", publicHandler.CancelCash)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIP), adminHandler.AdminLogin)

			// 需要鉴权的接口（JWT 之后按角色策略鉴权）
			authorized := admin.Use(
				JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo),
				AdminRBACMiddleware(c.AuthzService),
			)
			{
				authorized.GET("/me", adminHandler.GetAdminProfile)

				// 角色与策略管理
				authorized.GET("/authz/me", adminHandler.GetAuthzMe)
				authorized.GET("/authz/roles", adminHandler.ListAuthzRoles)
				authorized.GET("/authz/roles/:role/policies", adminHandler.GetAuthzRolePolicies)
				authorized.POST("/authz/policies", adminHandler.GrantAuthzPolicy)
				authorized.DELETE("/authz/policies", adminHandler.RevokeAuthzPolicy)
				authorized.GET("/authz/admins/:id/roles", adminHandler.GetAuthzAdminRoles)
				authorized.PUT("/authz/admins/:id/roles", adminHandler.SetAuthzAdminRoles)

				// 分销员管理
				authorized.GET("/distributors", adminHandler.ListDistributors)
				authorized.GET("/distributors/:id", adminHandler.GetDistributor)
				authorized.GET("/distributors/:id/upline", adminHandler.GetDistributorUpline)
				authorized.POST("/distributors/:id/audit", adminHandler.AuditDistributor)
				authorized.PATCH("/distributors/:id/status", adminHandler.UpdateDistributorStatus)

				// 佣金管理
				authorized.GET("/commissions", adminHandler.ListCommissions)
				authorized.GET("/commissions/ledger", adminHandler.ListCommissionLedger)

				// 提现管理
				authorized.GET("/cashes", adminHandler.ListCashes)
				authorized.GET("/cashes/:id", adminHandler.GetCash)
				authorized.POST("/cashes/:id/audit", adminHandler.AuditCash)
				authorized.POST("/cashes/:id/complete", adminHandler.CompleteCash)

				// 订单管理
				authorized.GET("/orders", adminHandler.AdminListOrders)
				authorized.GET("/orders/:id", adminHandler.AdminGetOrder)
				authorized.POST("/orders/:id/complete", adminHandler.AdminCompleteOrder)
				authorized.POST("/orders/:id/refund", adminHandler.AdminRefundOrder)
				authorized.POST("/orders/:id/cancel", adminHandler.AdminCancelOrder)
				authorized.POST("/orders/:id/settle-commissions", adminHandler.SettleOrderCommissions)

				// 分销配置与统计
				authorized.GET("/settings/distribution", adminHandler.GetDistributionSetting)
				authorized.PUT("/settings/distribution", adminHandler.UpdateDistributionSetting)
				authorized.GET("/stats/distribution", adminHandler.GetDistributionOverview)
				authorized.GET("/stats/outbox", adminHandler.GetOutboxStats)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

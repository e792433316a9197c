package provider

import (
	"github.com/fenxiao-mall/internal/authz"
	"github.com/fenxiao-mall/internal/cache"
	"github.com/fenxiao-mall/internal/config"
	"github.com/fenxiao-mall/internal/logger"
	"github.com/fenxiao-mall/internal/models"
	"github.com/fenxiao-mall/internal/queue"
	"github.com/fenxiao-mall/internal/repository"
	"github.com/fenxiao-mall/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config       *config.Config
	QueueClient  *queue.Client
	AuthzService *authz.Service

	// Repositories
	AdminRepo             repository.AdminRepository
	UserRepo              repository.UserRepository
	ProductRepo           repository.ProductRepository
	OrderRepo             repository.OrderRepository
	DistributorRepo       repository.DistributorRepository
	DistributionOrderRepo repository.DistributionOrderRepository
	DistributionCashRepo  repository.DistributionCashRepository
	CommissionLedgerRepo  repository.CommissionLedgerRepository
	EventOutboxRepo       repository.EventOutboxRepository
	SettingRepo           repository.SettingRepository

	// Services
	AuthService        *service.AuthService
	UserAuthService    *service.UserAuthService
	SettingService     *service.SettingService
	DistributorService *service.DistributorService
	CommissionService  *service.CommissionService
	CashService        *service.CashService
	StatsService       *service.StatsService
	OrderService       *service.OrderService
	OutboxService      *service.OutboxService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	c.initRepositories()
	c.initAuthz()
	c.initServices()

	return c
}

func (c *Container) initAuthz() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		return
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_authz_roles_failed", "error", err)
	}
	c.AuthzService = authzService
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.DistributorRepo = repository.NewDistributorRepository(db)
	c.DistributionOrderRepo = repository.NewDistributionOrderRepository(db)
	c.DistributionCashRepo = repository.NewDistributionCashRepository(db)
	c.CommissionLedgerRepo = repository.NewCommissionLedgerRepository(db)
	c.EventOutboxRepo = repository.NewEventOutboxRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
}

func (c *Container) initServices() {
	c.SettingService = service.NewSettingService(c.SettingRepo)
	c.SettingService.SetDistributionDefaults(service.DistributionSetting{
		Enabled:               c.Config.Distribution.Enabled,
		MinCashAmount:         c.Config.Distribution.MinCashAmount,
		MethodFeeRates:        c.Config.Distribution.MethodFeeRates,
		FirstLevelRate:        c.Config.Distribution.FirstLevelRate,
		SecondLevelRate:       c.Config.Distribution.SecondLevelRate,
		ThirdLevelRate:        c.Config.Distribution.ThirdLevelRate,
		SettleOnOrderComplete: c.Config.Distribution.SettleOnOrderComplete,
	})

	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.UserAuthService = service.NewUserAuthService(c.Config, c.UserRepo)

	c.DistributorService = service.NewDistributorService(c.DistributorRepo, c.UserRepo, c.DistributionOrderRepo, c.SettingService)
	c.CommissionService = service.NewCommissionService(
		c.DistributionOrderRepo,
		c.DistributorRepo,
		c.CommissionLedgerRepo,
		c.OrderRepo,
		c.ProductRepo,
		c.DistributorService,
		c.SettingService,
	)
	c.CashService = service.NewCashService(c.DistributionCashRepo, c.DistributorRepo, c.CommissionLedgerRepo, c.SettingService)
	c.StatsService = service.NewStatsService(c.DistributorRepo, c.DistributionOrderRepo, c.CommissionLedgerRepo)

	c.OutboxService = service.NewOutboxService(c.EventOutboxRepo, c.QueueClient, c.SettingService)
	c.OutboxService.Configure(c.Config.Outbox.BatchSize, c.Config.Outbox.MaxAttempts)

	c.OrderService = service.NewOrderService(c.OrderRepo, c.ProductRepo, c.DistributorRepo, c.CommissionService, c.OutboxService)
}

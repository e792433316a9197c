package main

import (
	"fmt"
	"time"

	"github.com/fenxiao-mall/internal/config"
	"github.com/fenxiao-mall/internal/constants"
	"github.com/fenxiao-mall/internal/logger"
	"github.com/fenxiao-mall/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 添加示例商品
	products := []models.Product{
		{
			Title:                 "云服务器月付套餐",
			Slug:                  "cloud-server-monthly",
			Price:                 models.NewMoneyFromDecimal(decimal.NewFromInt(99)),
			Stock:                 1000,
			IsActive:              true,
			IsDistributionEnabled: true,
		},
		{
			Title:                 "域名解析专业版",
			Slug:                  "dns-pro",
			Price:                 models.NewMoneyFromDecimal(decimal.NewFromInt(199)),
			Stock:                 500,
			IsActive:              true,
			IsDistributionEnabled: true,
			FirstLevelRate:        models.NewMoneyFromDecimal(decimal.NewFromInt(15)),
			SecondLevelRate:       models.NewMoneyFromDecimal(decimal.NewFromInt(8)),
			ThirdLevelRate:        models.NewMoneyFromDecimal(decimal.NewFromInt(3)),
		},
		{
			Title:    "站点监控基础版",
			Slug:     "monitor-basic",
			Price:    models.NewMoneyFromDecimal(decimal.NewFromInt(49)),
			Stock:    2000,
			IsActive: true,
		},
	}
	for _, product := range products {
		var existing models.Product
		if err := models.DB.Where("slug = ?", product.Slug).First(&existing).Error; err != nil {
			if err := models.DB.Create(&product).Error; err != nil {
				stdLog.Printf("Failed to create product %s: %v", product.Slug, err)
			} else {
				stdLog.Printf("Created product: %s", product.Slug)
			}
		} else {
			stdLog.Printf("Product already exists: %s", product.Slug)
		}
	}

	// 添加示例用户与三级分销链
	seedUsers := []struct {
		Email string
		Name  string
		Code  string
	}{
		{Email: "alice@example.com", Name: "Alice", Code: "ALICE888"},
		{Email: "bob@example.com", Name: "Bob", Code: "BOBPROMO"},
		{Email: "carol@example.com", Name: "Carol", Code: "CAROLFX1"},
	}

	var parentID *uint
	now := time.Now()
	for i, item := range seedUsers {
		user, err := ensureUser(item.Email, item.Name)
		if err != nil {
			stdLog.Printf("Failed to ensure user %s: %v", item.Email, err)
			continue
		}

		var distributor models.Distributor
		if err := models.DB.Where("user_id = ?", user.ID).First(&distributor).Error; err != nil {
			distributor = models.Distributor{
				UserID:    user.ID,
				ParentID:  parentID,
				Code:      item.Code,
				Level:     constants.DistributorLevelPrimary,
				Status:    constants.DistributorStatusApproved,
				AuditedAt: &now,
			}
			if err := models.DB.Create(&distributor).Error; err != nil {
				stdLog.Printf("Failed to create distributor for %s: %v", item.Email, err)
				continue
			}
			stdLog.Printf("Created distributor: %s (level %d in chain)", item.Code, i+1)
		} else {
			stdLog.Printf("Distributor already exists for: %s", item.Email)
		}
		id := distributor.ID
		parentID = &id
	}

	fmt.Println("Seed completed.")
}

func ensureUser(email, displayName string) (*models.User, error) {
	var user models.User
	if err := models.DB.Where("email = ?", email).First(&user).Error; err == nil {
		return &user, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user = models.User{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		Status:       constants.UserStatusActive,
	}
	if err := models.DB.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

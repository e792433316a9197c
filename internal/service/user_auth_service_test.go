package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fenxiao-mall/internal/config"
	"github.com/fenxiao-mall/internal/constants"
	"github.com/fenxiao-mall/internal/models"
	"github.com/fenxiao-mall/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupUserAuthServiceTest(t *testing.T) (*gorm.DB, *UserAuthService) {
	t.Helper()

	dsn := fmt.Sprintf("file:user_auth_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("迁移测试表失败: %v", err)
	}

	cfg := &config.Config{
		UserJWT: config.JWTConfig{
			SecretKey:   "user-auth-test-secret",
			ExpireHours: 1,
		},
	}
	svc := NewUserAuthService(cfg, repository.NewUserRepository(db))
	return db, svc
}

func TestRegisterCreatesActiveUserWithToken(t *testing.T) {
	db, svc := setupUserAuthServiceTest(t)

	user, token, expiresAt, err := svc.Register(" New.User@Example.COM ", "s3cret-pass", " 小王 ")
	if err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	// 邮箱归一化为小写并去空格
	if user.Email != "new.user@example.com" {
		t.Fatalf("邮箱未归一化: %s", user.Email)
	}
	if user.DisplayName != "小王" {
		t.Fatalf("昵称未去空格: %q", user.DisplayName)
	}
	if user.Status != constants.UserStatusActive {
		t.Fatalf("新用户状态应为 active, got %s", user.Status)
	}
	// 明文口令不得入库
	if user.PasswordHash == "s3cret-pass" || user.PasswordHash == "" {
		t.Fatalf("口令必须以哈希存储")
	}
	if token == "" {
		t.Fatalf("注册应返回 token")
	}
	if remaining := time.Until(expiresAt); remaining < 50*time.Minute || remaining > 70*time.Minute {
		t.Fatalf("token 有效期异常: %v", remaining)
	}

	var stored models.User
	if err := db.First(&stored, user.ID).Error; err != nil {
		t.Fatalf("读取用户失败: %v", err)
	}
	if stored.Email != "new.user@example.com" {
		t.Fatalf("入库邮箱不一致: %s", stored.Email)
	}

	claims, err := svc.ParseUserJWT(token)
	if err != nil {
		t.Fatalf("解析 token 失败: %v", err)
	}
	if claims.UserID != user.ID || claims.Email != user.Email {
		t.Fatalf("token 声明不匹配: %+v", claims)
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	_, svc := setupUserAuthServiceTest(t)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"短口令", "short@example.com", "1234567"},
		{"空邮箱", "   ", "long-enough-pass"},
		{"非法邮箱", "not-an-email", "long-enough-pass"},
	}
	for _, tc := range cases {
		if _, _, _, err := svc.Register(tc.email, tc.password, ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s 应返回 ErrInvalidCredentials, got %v", tc.name, err)
		}
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	_, svc := setupUserAuthServiceTest(t)

	if _, _, _, err := svc.Register("dup@example.com", "long-enough-pass", ""); err != nil {
		t.Fatalf("首次注册失败: %v", err)
	}
	// 重复邮箱不应泄露账号存在性，统一返回凭证错误
	if _, _, _, err := svc.Register("DUP@example.com", "another-password", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("重复注册应返回 ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginSuccessUpdatesLastLogin(t *testing.T) {
	db, svc := setupUserAuthServiceTest(t)

	registered, _, _, err := svc.Register("login@example.com", "long-enough-pass", "")
	if err != nil {
		t.Fatalf("注册失败: %v", err)
	}

	user, token, _, err := svc.Login("Login@Example.com", "long-enough-pass")
	if err != nil {
		t.Fatalf("登录失败: %v", err)
	}
	if user.ID != registered.ID {
		t.Fatalf("登录用户不匹配: %d != %d", user.ID, registered.ID)
	}
	if token == "" {
		t.Fatalf("登录应返回 token")
	}

	var stored models.User
	if err := db.First(&stored, registered.ID).Error; err != nil {
		t.Fatalf("读取用户失败: %v", err)
	}
	if stored.LastLoginAt == nil {
		t.Fatalf("登录应记录最后登录时间")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	_, svc := setupUserAuthServiceTest(t)

	if _, _, _, err := svc.Register("alice@example.com", "correct-password", ""); err != nil {
		t.Fatalf("注册失败: %v", err)
	}

	if _, _, _, err := svc.Login("alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("口令错误应返回 ErrInvalidCredentials, got %v", err)
	}
	// 未注册邮箱与口令错误不可区分
	if _, _, _, err := svc.Login("nobody@example.com", "correct-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("未知用户应返回 ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginRejectsDisabledUser(t *testing.T) {
	db, svc := setupUserAuthServiceTest(t)

	user, _, _, err := svc.Register("banned@example.com", "long-enough-pass", "")
	if err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("status", constants.UserStatusDisabled).Error; err != nil {
		t.Fatalf("禁用用户失败: %v", err)
	}

	if _, _, _, err := svc.Login("banned@example.com", "long-enough-pass"); !errors.Is(err, ErrUserDisabled) {
		t.Fatalf("禁用用户登录应返回 ErrUserDisabled, got %v", err)
	}
}

func TestParseUserJWTRejectsForgedToken(t *testing.T) {
	_, svc := setupUserAuthServiceTest(t)

	_, token, _, err := svc.Register("forge@example.com", "long-enough-pass", "")
	if err != nil {
		t.Fatalf("注册失败: %v", err)
	}

	// 换密钥后旧 token 不再可用
	other := NewUserAuthService(&config.Config{
		UserJWT: config.JWTConfig{SecretKey: "a-different-secret", ExpireHours: 1},
	}, nil)
	if _, err := other.ParseUserJWT(token); err == nil {
		t.Fatalf("错误密钥签发的 token 不应通过校验")
	}
	if _, err := svc.ParseUserJWT("not.a.jwt"); err == nil {
		t.Fatalf("畸形 token 不应通过校验")
	}
}

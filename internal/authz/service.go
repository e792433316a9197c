package authz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/util"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	apiPrefix       = "/api/v1"
	policyTableName = "casbin_rule"
	rolePrefix      = "role:"
	// roleAnchor 作为所有角色的公共父节点，使空角色也能被枚举到
	roleAnchor = "role:__anchor__"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// Policy 一条授权策略：主体可以对资源执行动作
type Policy struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
	Action  string `json:"action"`
}

// Service 管理端 RBAC 授权服务
// 策略持久化在数据库的 casbin_rule 表，角色通过 g 规则组织，
// 资源按去掉 /api/v1 前缀后的路由模板匹配。
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService 创建授权服务
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("authz 数据库未初始化")
	}

	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", policyTableName)
	if err != nil {
		return nil, fmt.Errorf("创建策略存储失败: %w", err)
	}
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("加载授权模型失败: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("初始化授权引擎失败: %w", err)
	}
	enforcer.AddFunction("keyMatch2", util.KeyMatch2Func)
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("加载授权策略失败: %w", err)
	}

	return &Service{enforcer: enforcer}, nil
}

// EnforceAdmin 判定管理员对某资源路径与方法是否有权限
func (s *Service) EnforceAdmin(adminID uint, object, action string) (bool, error) {
	if s == nil || s.enforcer == nil {
		return false, fmt.Errorf("授权服务不可用")
	}
	return s.enforcer.Enforce(SubjectForAdmin(adminID), NormalizeObject(object), NormalizeAction(action))
}

// ListRoles 枚举所有角色
func (s *Service) ListRoles() ([]string, error) {
	if s == nil || s.enforcer == nil {
		return nil, fmt.Errorf("授权服务不可用")
	}
	rules, err := s.enforcer.GetFilteredNamedGroupingPolicy("g", 0)
	if err != nil {
		return nil, fmt.Errorf("查询角色失败: %w", err)
	}
	roleSet := make(map[string]struct{})
	for _, rule := range rules {
		for _, field := range rule {
			if strings.HasPrefix(field, rolePrefix) && field != roleAnchor {
				roleSet[field] = struct{}{}
			}
		}
	}
	roles := make([]string, 0, len(roleSet))
	for role := range roleSet {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles, nil
}

// GetRolePolicies 查询角色的直连策略
func (s *Service) GetRolePolicies(role string) ([]Policy, error) {
	normalized, err := NormalizeRole(role)
	if err != nil {
		return nil, err
	}
	if s == nil || s.enforcer == nil {
		return nil, fmt.Errorf("授权服务不可用")
	}
	rules, err := s.enforcer.GetFilteredPolicy(0, normalized)
	if err != nil {
		return nil, fmt.Errorf("查询角色策略失败: %w", err)
	}
	policies := make([]Policy, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		policies = append(policies, Policy{
			Subject: strings.TrimSpace(rule[0]),
			Object:  NormalizeObject(rule[1]),
			Action:  NormalizeAction(rule[2]),
		})
	}
	return policies, nil
}

// GrantRolePolicy 为角色授予策略，角色不存在时自动创建
func (s *Service) GrantRolePolicy(role, object, action string) error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("授权服务不可用")
	}
	normalizedRole, err := s.ensureRole(role)
	if err != nil {
		return err
	}
	normalizedAction := NormalizeAction(action)
	if normalizedAction == "" {
		return fmt.Errorf("动作不能为空")
	}
	if _, err := s.enforcer.AddPolicy(normalizedRole, NormalizeObject(object), normalizedAction); err != nil {
		return fmt.Errorf("授予策略失败: %w", err)
	}
	return nil
}

// RevokeRolePolicy 撤销角色策略
func (s *Service) RevokeRolePolicy(role, object, action string) error {
	normalizedRole, err := NormalizeRole(role)
	if err != nil {
		return err
	}
	normalizedAction := NormalizeAction(action)
	if normalizedAction == "" {
		return fmt.Errorf("动作不能为空")
	}
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("授权服务不可用")
	}
	if _, err := s.enforcer.RemovePolicy(normalizedRole, NormalizeObject(object), normalizedAction); err != nil {
		return fmt.Errorf("撤销策略失败: %w", err)
	}
	return nil
}

// SetAdminRoles 覆盖设置管理员的角色列表
func (s *Service) SetAdminRoles(adminID uint, roles []string) error {
	if adminID == 0 {
		return fmt.Errorf("管理员ID不能为空")
	}
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("授权服务不可用")
	}
	subject := SubjectForAdmin(adminID)

	if _, err := s.enforcer.RemoveFilteredNamedGroupingPolicy("g", 0, subject); err != nil {
		return fmt.Errorf("清除原有角色失败: %w", err)
	}
	for _, role := range roles {
		normalized, err := s.ensureRole(role)
		if err != nil {
			return err
		}
		if _, err := s.enforcer.AddNamedGroupingPolicy("g", subject, normalized); err != nil {
			return fmt.Errorf("绑定角色失败: %w", err)
		}
	}
	return nil
}

// GetAdminRoles 查询管理员当前绑定的角色
func (s *Service) GetAdminRoles(adminID uint) ([]string, error) {
	if adminID == 0 {
		return nil, fmt.Errorf("管理员ID不能为空")
	}
	if s == nil || s.enforcer == nil {
		return nil, fmt.Errorf("授权服务不可用")
	}
	all, err := s.enforcer.GetRolesForUser(SubjectForAdmin(adminID))
	if err != nil {
		return nil, fmt.Errorf("查询管理员角色失败: %w", err)
	}
	roles := make([]string, 0, len(all))
	for _, role := range all {
		if !strings.HasPrefix(role, rolePrefix) || role == roleAnchor {
			continue
		}
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles, nil
}

func (s *Service) ensureRole(role string) (string, error) {
	normalized, err := NormalizeRole(role)
	if err != nil {
		return "", err
	}
	if normalized == roleAnchor {
		return "", fmt.Errorf("保留角色不可使用")
	}
	exists, err := s.enforcer.HasNamedGroupingPolicy("g", normalized, roleAnchor)
	if err != nil {
		return "", fmt.Errorf("检查角色失败: %w", err)
	}
	if !exists {
		if _, err := s.enforcer.AddNamedGroupingPolicy("g", normalized, roleAnchor); err != nil {
			return "", fmt.Errorf("创建角色失败: %w", err)
		}
	}
	return normalized, nil
}

// SubjectForAdmin 生成管理员主体标识
func SubjectForAdmin(adminID uint) string {
	return fmt.Sprintf("admin:%d", adminID)
}

// NormalizeRole 统一角色名称为 role: 前缀形式
func NormalizeRole(role string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(role), " ", "_")
	if normalized == "" {
		return "", fmt.Errorf("角色名不能为空")
	}
	if !strings.HasPrefix(normalized, rolePrefix) {
		normalized = rolePrefix + normalized
	}
	if len(normalized) <= len(rolePrefix) {
		return "", fmt.Errorf("角色名不能为空")
	}
	return normalized, nil
}

// NormalizeObject 统一资源路径：保证前导斜杠并去掉 API 版本前缀
func NormalizeObject(object string) string {
	normalized := strings.TrimSpace(object)
	if normalized == "" {
		return "/"
	}
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if normalized == apiPrefix {
		return "/"
	}
	if strings.HasPrefix(normalized, apiPrefix+"/") {
		return strings.TrimPrefix(normalized, apiPrefix)
	}
	return normalized
}

// NormalizeAction 统一授权动作为大写 HTTP 方法
func NormalizeAction(action string) string {
	return strings.ToUpper(strings.TrimSpace(action))
}

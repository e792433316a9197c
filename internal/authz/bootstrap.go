package authz

import "fmt"

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 系统预置角色矩阵
// auditor 只读全部后台资源；operator 负责分销员与订单流转；
// finance 负责结算、回冲与提现打款。
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: "auditor",
			Policies: []Policy{
				{Object: "/admin/*", Action: "GET"},
			},
		},
		{
			Role:     "operator",
			Inherits: []string{"auditor"},
			Policies: []Policy{
				{Object: "/admin/distributors/:id/audit", Action: "POST"},
				{Object: "/admin/distributors/:id/status", Action: "PATCH"},
				{Object: "/admin/orders/:id/complete", Action: "POST"},
				{Object: "/admin/orders/:id/cancel", Action: "POST"},
			},
		},
		{
			Role:     "finance",
			Inherits: []string{"auditor"},
			Policies: []Policy{
				{Object: "/admin/orders/:id/refund", Action: "POST"},
				{Object: "/admin/orders/:id/settle-commissions", Action: "POST"},
				{Object: "/admin/cashes/:id/audit", Action: "POST"},
				{Object: "/admin/cashes/:id/complete", Action: "POST"},
				{Object: "/admin/settings/distribution", Action: "PUT"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略，可重复执行
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("授权服务不可用")
	}

	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.ensureRole(seed.Role)
		if err != nil {
			return err
		}
		for _, parent := range seed.Inherits {
			parentRole, err := s.ensureRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("绑定角色继承失败: %w", err)
			}
		}
		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("预置策略缺少动作: %s", seed.Role)
			}
			if _, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action); err != nil {
				return fmt.Errorf("写入预置策略失败: %w", err)
			}
		}
	}
	return nil
}

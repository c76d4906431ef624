package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/example/canteen/internal/datamodels/user"
)

// 资源与动作
const (
	ObjOrder   = "order"
	ObjAccount = "account"
	ObjSupply  = "supply"
	ObjProduct = "product"
	ObjGate    = "gate"
	ObjNotice  = "notice"
	ObjStats   = "stats"
	ObjUser    = "user"

	ActPlace      = "place"
	ActConfirm    = "confirm"
	ActListActive = "list_active"
	ActAdvance    = "advance"
	ActTopUp      = "topup"
	ActSubscribe  = "subscribe"
	ActRequest    = "request"
	ActDecide     = "decide"
	ActList       = "list"
	ActSetStock   = "set_stock"
	ActCreate     = "create"
	ActSet        = "set"
	ActPost       = "post"
	ActRead       = "read"
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
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// COOK 继承 STUDENT，ADMIN 继承 COOK
var (
	rolePolicies = [][]string{
		{string(user.RoleStudent), ObjOrder, ActPlace},
		{string(user.RoleStudent), ObjOrder, ActConfirm},
		{string(user.RoleStudent), ObjAccount, ActTopUp},
		{string(user.RoleStudent), ObjAccount, ActSubscribe},

		{string(user.RoleCook), ObjOrder, ActListActive},
		{string(user.RoleCook), ObjOrder, ActAdvance},
		{string(user.RoleCook), ObjSupply, ActRequest},
		{string(user.RoleCook), ObjSupply, ActList},
		{string(user.RoleCook), ObjProduct, ActSetStock},

		{string(user.RoleAdmin), ObjSupply, ActDecide},
		{string(user.RoleAdmin), ObjProduct, ActCreate},
		{string(user.RoleAdmin), ObjGate, ActSet},
		{string(user.RoleAdmin), ObjNotice, ActPost},
		{string(user.RoleAdmin), ObjStats, ActRead},
		{string(user.RoleAdmin), ObjUser, ActCreate},
		{string(user.RoleAdmin), ObjUser, ActList},
		{string(user.RoleAdmin), ObjOrder, ActList},
	}
	roleInheritance = [][]string{
		{string(user.RoleCook), string(user.RoleStudent)},
		{string(user.RoleAdmin), string(user.RoleCook)},
	}
)

// Policy 基于 casbin 的角色权限表
type Policy struct {
	enforcer *casbin.Enforcer
}

// NewPolicy 构建内置策略
func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("init enforcer: %w", err)
	}
	if _, err := e.AddPolicies(rolePolicies); err != nil {
		return nil, err
	}
	if _, err := e.AddGroupingPolicies(roleInheritance); err != nil {
		return nil, err
	}
	return &Policy{enforcer: e}, nil
}

// MustPolicy 同 NewPolicy，失败直接 panic（策略是编译期常量）
func MustPolicy() *Policy {
	p, err := NewPolicy()
	if err != nil {
		panic(err)
	}
	return p
}

// Allow 判断角色能否对资源执行动作
func (p *Policy) Allow(role user.Role, obj, act string) bool {
	ok, err := p.enforcer.Enforce(string(role), obj, act)
	return err == nil && ok
}

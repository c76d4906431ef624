package user

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Role 用户角色
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleCook    Role = "COOK"
	RoleAdmin   Role = "ADMIN"
)

// Valid 是否为已定义的角色
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleCook, RoleAdmin:
		return true
	}
	return false
}

// IsStaff 厨房人员或管理员
func (r Role) IsStaff() bool {
	return r == RoleCook || r == RoleAdmin
}

// User 用户模型，Balance 只能被下单、充值、购买包月修改
type User struct {
	ID                int64           `gorm:"primaryKey"`
	Login             string          `gorm:"uniqueIndex;size:64;not null"`
	Name              string          `gorm:"size:128;not null"`
	PasswordHash      string          `gorm:"size:255;not null"`
	Role              Role            `gorm:"size:16;index;not null"`
	Balance           decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	SubscriptionUntil *time.Time      `gorm:"type:date"`
	Diet              string          `gorm:"size:255"` // 饮食备注，如过敏、素食
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Profile 返回给调用方的用户信息，不含密码哈希
type Profile struct {
	ID                int64           `json:"id"`
	Login             string          `json:"login"`
	Name              string          `json:"name"`
	Role              Role            `json:"role"`
	Balance           decimal.Decimal `json:"balance"`
	SubscriptionUntil *time.Time      `json:"subscription_until,omitempty"`
	Diet              string          `json:"diet,omitempty"`
}

// Profile 生成对外展示的资料
func (u *User) Profile() *Profile {
	return &Profile{
		ID:                u.ID,
		Login:             u.Login,
		Name:              u.Name,
		Role:              u.Role,
		Balance:           u.Balance,
		SubscriptionUntil: u.SubscriptionUntil,
		Diet:              u.Diet,
	}
}

// Actor 当前操作者（由上层鉴权后传入）
type Actor struct {
	UserID int64
	Role   Role
}

// Repository 用户仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByLogin(ctx context.Context, login string) (*User, error)
	Create(ctx context.Context, u *User) error
	ListAll(ctx context.Context) ([]*User, error)
	CountByRole(ctx context.Context) (map[Role]int64, error)
}

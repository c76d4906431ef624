package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status 订单状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
)

// Valid 是否为已定义的状态
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusCompleted:
		return true
	}
	return false
}

// OrderItem 下单时刻的菜品快照，之后菜品改价或下架都不影响
type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
}

// Subtotal 单项小计
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Quantity))
}

// Order 订单模型。Items/Total/UserID 创建后不再变化，只有状态和评价可改
type Order struct {
	ID                 int64           `gorm:"primaryKey" json:"id"`
	UserID             int64           `gorm:"index;not null" json:"user_id"`
	UserName           string          `gorm:"size:128" json:"user_name"`
	UserDiet           string          `gorm:"size:255" json:"user_diet,omitempty"`
	Items              []OrderItem     `gorm:"serializer:json;type:text;not null" json:"items"`
	Total              decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	PaidBySubscription bool            `gorm:"not null" json:"paid_by_subscription"`
	Status             Status          `gorm:"size:16;index;not null" json:"status"`
	Rating             *int            `json:"rating,omitempty"`
	Comment            *string         `gorm:"size:512" json:"comment,omitempty"`
	CreatedAt          time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// ItemsTotal 按快照重新求和，用于校验 Total
func (o *Order) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

// Repository 订单仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]*Order, error)
	ListActive(ctx context.Context) ([]*Order, error)
	ListRecent(ctx context.Context, limit int) ([]*Order, error)
	CountByStatus(ctx context.Context) (map[Status]int64, error)
	Revenue(ctx context.Context) (decimal.Decimal, error)
}

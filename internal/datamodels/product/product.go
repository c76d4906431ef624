package product

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Product 菜品
type Product struct {
	ID          int64           `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"size:128;not null" json:"name"`
	Description string          `gorm:"size:512" json:"description"`
	Category    string          `gorm:"size:32;index" json:"category"` // 主食、汤、饮品……
	Menu        string          `gorm:"size:32;index" json:"menu"`     // breakfast / lunch / dinner
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Calories    int             `json:"calories"`
	Stock       int64           `gorm:"not null" json:"stock"`
	ImageURL    string          `gorm:"size:255" json:"image_url"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Repository 菜品仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	ListAll(ctx context.Context) ([]*Product, error)
	ListByMenu(ctx context.Context, menu string) ([]*Product, error)
	ListLowStock(ctx context.Context, threshold int64) ([]*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
}

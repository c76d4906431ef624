package review

import (
	"context"
	"time"
)

// Review 订单完成后的评价，每个订单最多一条，重复提交覆盖
type Review struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	OrderID   int64     `gorm:"uniqueIndex;not null" json:"order_id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Rating    int       `gorm:"not null" json:"rating"`
	Comment   string    `gorm:"size:512" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository 评价仓储接口
type Repository interface {
	GetByOrderID(ctx context.Context, orderID int64) (*Review, error)
	ListRecent(ctx context.Context, limit int) ([]*Review, error)
	AverageRating(ctx context.Context) (float64, error)
}

package supply

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status 补货单状态，只能从 pending 变更一次
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Supply 厨房发起的补货申请
type Supply struct {
	ID             int64           `gorm:"primaryKey" json:"id"`
	ProductID      int64           `gorm:"index;not null" json:"product_id"`
	Amount         int64           `gorm:"not null" json:"amount"`
	Cost           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"cost"` // 估算成本
	Status         Status          `gorm:"size:16;index;not null" json:"status"`
	ApprovedAmount int64           `json:"approved_amount"`
	RequestedBy    int64           `gorm:"index" json:"requested_by"`
	DecidedBy      int64           `json:"decided_by,omitempty"`
	DecidedAt      *time.Time      `json:"decided_at,omitempty"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Repository 补货单仓储接口
type Repository interface {
	Create(ctx context.Context, s *Supply) error
	GetByID(ctx context.Context, id int64) (*Supply, error)
	List(ctx context.Context, status Status) ([]*Supply, error)
	CountPending(ctx context.Context) (int64, error)
}

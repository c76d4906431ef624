package mysql

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/canteen/internal/datamodels/order"
)

type orderRepo struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) order.Repository {
	return &orderRepo{db: db}
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// ListActive 厨房看板：未完成的订单，先来先做
func (r *orderRepo) ListActive(ctx context.Context) ([]*order.Order, error) {
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Where("status <> ?", order.StatusCompleted).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *orderRepo) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *orderRepo) CountByStatus(ctx context.Context) (map[order.Status]int64, error) {
	var rows []struct {
		Status order.Status
		N      int64
	}
	if err := r.db.WithContext(ctx).
		Model(&order.Order{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[order.Status]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

func (r *orderRepo) Revenue(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&order.Order{}).
		Select("COALESCE(SUM(total), 0)").
		Row().
		Scan(&total)
	return total, err
}

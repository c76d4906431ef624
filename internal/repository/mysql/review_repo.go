package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/example/canteen/internal/datamodels/review"
)

type reviewRepo struct {
	db *gorm.DB
}

// NewReviewRepository 创建评价仓储
func NewReviewRepository(db *gorm.DB) review.Repository {
	return &reviewRepo{db: db}
}

func (r *reviewRepo) GetByOrderID(ctx context.Context, orderID int64) (*review.Review, error) {
	var rv review.Review
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&rv).Error; err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *reviewRepo) ListRecent(ctx context.Context, limit int) ([]*review.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var list []*review.Review
	if err := r.db.WithContext(ctx).
		Order("updated_at DESC, id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *reviewRepo) AverageRating(ctx context.Context) (float64, error) {
	var avg float64
	err := r.db.WithContext(ctx).
		Model(&review.Review{}).
		Select("COALESCE(AVG(rating), 0)").
		Row().
		Scan(&avg)
	return avg, err
}

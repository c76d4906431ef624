package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/example/canteen/internal/datamodels/supply"
)

type supplyRepo struct {
	db *gorm.DB
}

// NewSupplyRepository 创建补货单仓储
func NewSupplyRepository(db *gorm.DB) supply.Repository {
	return &supplyRepo{db: db}
}

func (r *supplyRepo) Create(ctx context.Context, s *supply.Supply) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *supplyRepo) GetByID(ctx context.Context, id int64) (*supply.Supply, error) {
	var s supply.Supply
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// List status 为空时返回全部
func (r *supplyRepo) List(ctx context.Context, status supply.Status) ([]*supply.Supply, error) {
	var list []*supply.Supply
	q := r.db.WithContext(ctx).Order("id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *supplyRepo) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&supply.Supply{}).
		Where("status = ?", supply.StatusPending).
		Count(&n).Error
	return n, err
}

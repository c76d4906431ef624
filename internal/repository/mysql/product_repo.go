package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/example/canteen/internal/datamodels/product"
)

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建菜品仓储
func NewProductRepository(db *gorm.DB) product.Repository {
	return &productRepo{db: db}
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	var p product.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) ListAll(ctx context.Context) ([]*product.Product, error) {
	var list []*product.Product
	if err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *productRepo) ListByMenu(ctx context.Context, menu string) ([]*product.Product, error) {
	var list []*product.Product
	query := r.db.WithContext(ctx)
	if menu != "" && menu != "all" {
		query = query.Where("menu = ?", menu)
	}
	if err := query.Order("category ASC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *productRepo) ListLowStock(ctx context.Context, threshold int64) ([]*product.Product, error) {
	var list []*product.Product
	if err := r.db.WithContext(ctx).
		Where("stock <= ?", threshold).
		Order("stock ASC, id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *productRepo) Create(ctx context.Context, p *product.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Update 只用于菜品资料维护；库存变更必须经过 service 层的互斥事务
func (r *productRepo) Update(ctx context.Context, p *product.Product) error {
	return r.db.WithContext(ctx).Omit("stock").Save(p).Error
}

package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/canteen/internal/auth"
	"github.com/example/canteen/internal/datamodels/product"
	"github.com/example/canteen/internal/datamodels/user"
)

// CreateProductRequest 新增菜品
type CreateProductRequest struct {
	Name        string          `json:"name" validate:"required,max=128"`
	Description string          `json:"description" validate:"max=512"`
	Category    string          `json:"category" validate:"max=32"`
	Menu        string          `json:"menu" validate:"omitempty,oneof=breakfast lunch dinner"`
	Price       decimal.Decimal `json:"price"`
	Calories    int             `json:"calories" validate:"gte=0"`
	Stock       int64           `json:"stock" validate:"gte=0"`
	ImageURL    string          `json:"image_url" validate:"omitempty,url,max=255"`
}

// CatalogService 菜单与库存
type CatalogService struct {
	repo   product.Repository
	guard  *Guard
	policy Authorizer
}

func NewCatalogService(repo product.Repository, guard *Guard, policy Authorizer) *CatalogService {
	return &CatalogService{repo: repo, guard: guard, policy: policy}
}

// List 菜单，menu 为空返回全部
func (s *CatalogService) List(ctx context.Context, menu string) ([]*product.Product, error) {
	list, err := s.repo.ListByMenu(ctx, menu)
	if err != nil {
		return nil, storeErr(err, "菜品")
	}
	return list, nil
}

func (s *CatalogService) Get(ctx context.Context, id int64) (*product.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "菜品")
	}
	return p, nil
}

// Create 管理员上架菜品
func (s *CatalogService) Create(ctx context.Context, actor user.Actor, req CreateProductRequest) (*product.Product, error) {
	if err := authorize(s.policy, actor, auth.ObjProduct, auth.ActCreate); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if !req.Price.IsPositive() {
		return nil, invalidInput("价格需大于 0")
	}
	p := &product.Product{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Menu:        req.Menu,
		Price:       req.Price.Round(2),
		Calories:    req.Calories,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, storeErr(err, "菜品")
	}
	return p, nil
}

// SetStock 盘点纠正库存，与下单共用菜品锁
func (s *CatalogService) SetStock(ctx context.Context, actor user.Actor, productID, stock int64) (*product.Product, error) {
	if err := authorize(s.policy, actor, auth.ObjProduct, auth.ActSetStock); err != nil {
		return nil, err
	}
	if stock < 0 {
		return nil, invalidInput("库存不能为负数")
	}

	var p product.Product
	err := s.guard.Within(ctx, nil, []int64{productID}, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, productID).Error; err != nil {
			return storeErr(err, "菜品")
		}
		p.Stock = stock
		return tx.Model(&product.Product{}).Where("id = ?", p.ID).Update("stock", stock).Error
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("stock corrected",
		zap.Int64("product_id", p.ID),
		zap.Int64("stock", stock),
		zap.Int64("by", actor.UserID))
	return &p, nil
}

// Update 修改菜品资料，库存不在此处修改
func (s *CatalogService) Update(ctx context.Context, actor user.Actor, productID int64, req CreateProductRequest) (*product.Product, error) {
	if err := authorize(s.policy, actor, auth.ObjProduct, auth.ActCreate); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if !req.Price.IsPositive() {
		return nil, invalidInput("价格需大于 0")
	}
	p, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, storeErr(err, "菜品")
	}
	p.Name = req.Name
	p.Description = req.Description
	p.Category = req.Category
	p.Menu = req.Menu
	p.Price = req.Price.Round(2)
	p.Calories = req.Calories
	p.ImageURL = req.ImageURL
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, storeErr(err, "菜品")
	}
	return p, nil
}

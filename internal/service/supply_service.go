package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/canteen/internal/auth"
	"github.com/example/canteen/internal/datamodels/product"
	"github.com/example/canteen/internal/datamodels/supply"
	"github.com/example/canteen/internal/datamodels/user"
	"github.com/example/canteen/internal/notify"
)

// SupplyRequest 厨房补货申请
type SupplyRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Amount    int64 `json:"amount" validate:"required,gt=0,lte=100000"`
}

// SupplyDecision 管理员审批；Amount 为空时按申请数量入库
type SupplyDecision struct {
	SupplyID int64  `json:"supply_id" validate:"required,gt=0"`
	Approve  bool   `json:"approve"`
	Amount   *int64 `json:"amount" validate:"omitempty,gt=0,lte=100000"`
}

// SupplyService 补货：厨房申请，管理员审批，批准后入库
type SupplyService struct {
	repo      supply.Repository
	products  product.Repository
	guard     *Guard
	policy    Authorizer
	emitter   notify.Emitter
	costRatio decimal.Decimal
}

// NewSupplyService 创建补货服务，costRatio 为估价比例
func NewSupplyService(repo supply.Repository, products product.Repository, guard *Guard, policy Authorizer, emitter notify.Emitter, costRatio float64) *SupplyService {
	return &SupplyService{
		repo:      repo,
		products:  products,
		guard:     guard,
		policy:    policy,
		emitter:   emitter,
		costRatio: decimal.NewFromFloat(costRatio),
	}
}

// supplyCost 估价 = 单价 * 比例 * 数量，取整到元
func (s *SupplyService) supplyCost(price decimal.Decimal, amount int64) decimal.Decimal {
	return price.Mul(s.costRatio).Mul(decimal.NewFromInt(amount)).Round(0)
}

// RequestSupply 创建待审批的补货单，不改动库存
func (s *SupplyService) RequestSupply(ctx context.Context, actor user.Actor, req SupplyRequest) (*supply.Supply, error) {
	if err := authorize(s.policy, actor, auth.ObjSupply, auth.ActRequest); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, storeErr(err, "菜品")
	}

	sp := &supply.Supply{
		ProductID:   p.ID,
		Amount:      req.Amount,
		Cost:        s.supplyCost(p.Price, req.Amount),
		Status:      supply.StatusPending,
		RequestedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, sp); err != nil {
		return nil, storeErr(err, "补货单")
	}

	s.emitter.Emit(notify.Event{
		Name:      notify.SupplyRequested,
		Audiences: []notify.Audience{notify.Admin},
		SupplyID:  sp.ID,
		UserID:    actor.UserID,
		Status:    string(sp.Status),
		Message:   fmt.Sprintf("%s 申请补货 %d 份", p.Name, sp.Amount),
	})
	return sp, nil
}

// DecideSupply 审批补货单。补货单只能处理一次，状态变更与入库在同一事务提交
func (s *SupplyService) DecideSupply(ctx context.Context, actor user.Actor, req SupplyDecision) (*supply.Supply, error) {
	if err := authorize(s.policy, actor, auth.ObjSupply, auth.ActDecide); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	// 先查出菜品 id 以便按菜品加锁，状态在事务内重新确认
	current, err := s.repo.GetByID(ctx, req.SupplyID)
	if err != nil {
		return nil, storeErr(err, "补货单")
	}
	if current.Status != supply.StatusPending {
		return nil, ErrAlreadyDecided
	}

	var sp supply.Supply
	err = s.guard.Within(ctx, nil, []int64{current.ProductID}, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sp, req.SupplyID).Error; err != nil {
			return storeErr(err, "补货单")
		}
		if sp.Status != supply.StatusPending {
			return ErrAlreadyDecided
		}

		now := time.Now()
		sp.DecidedBy = actor.UserID
		sp.DecidedAt = &now
		if !req.Approve {
			sp.Status = supply.StatusRejected
			return tx.Save(&sp).Error
		}

		amount := sp.Amount
		if req.Amount != nil {
			amount = *req.Amount
		}
		var p product.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, sp.ProductID).Error; err != nil {
			return storeErr(err, "菜品")
		}
		if amount > math.MaxInt64-p.Stock {
			return invalidInput("补货数量 %d 超出菜品 %d 的库存上限", amount, p.ID)
		}
		if err := tx.Model(&product.Product{}).
			Where("id = ?", p.ID).
			Update("stock", p.Stock+amount).Error; err != nil {
			return err
		}
		sp.Status = supply.StatusApproved
		sp.ApprovedAmount = amount
		return tx.Save(&sp).Error
	})
	if err != nil {
		return nil, err
	}

	GetMonitor().RecordSupplyDecided()
	zap.L().Info("supply decided",
		zap.Int64("supply_id", sp.ID),
		zap.String("status", string(sp.Status)),
		zap.Int64("approved_amount", sp.ApprovedAmount),
		zap.Int64("by", actor.UserID))
	s.emitter.Emit(notify.Event{
		Name:      notify.NoticeBanner,
		Audiences: []notify.Audience{notify.Cook},
		SupplyID:  sp.ID,
		Status:    string(sp.Status),
		Message:   fmt.Sprintf("补货单 #%d 已处理: %s", sp.ID, sp.Status),
	})
	return &sp, nil
}

// ListSupplies 按状态筛选，空状态返回全部
func (s *SupplyService) ListSupplies(ctx context.Context, actor user.Actor, status supply.Status) ([]*supply.Supply, error) {
	if err := authorize(s.policy, actor, auth.ObjSupply, auth.ActList); err != nil {
		return nil, err
	}
	list, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, storeErr(err, "补货单")
	}
	return list, nil
}

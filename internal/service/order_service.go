package service

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/canteen/internal/auth"
	"github.com/example/canteen/internal/datamodels/order"
	"github.com/example/canteen/internal/datamodels/review"
	"github.com/example/canteen/internal/datamodels/user"
	"github.com/example/canteen/internal/notify"
)

// PlaceOrderRequest 下单请求
type PlaceOrderRequest struct {
	Items               []ItemRequest `json:"items"`
	PayWithSubscription bool          `json:"pay_with_subscription"`
}

// PlaceResult 下单结果，附带扣款后的用户资料
type PlaceResult struct {
	Order   *order.Order  `json:"order"`
	Profile *user.Profile `json:"profile"`
}

// FeedbackRequest 确认取餐并评价
type FeedbackRequest struct {
	OrderID int64   `json:"order_id" validate:"required,gt=0"`
	Rating  int     `json:"rating" validate:"min=1,max=5"`
	Comment *string `json:"comment" validate:"omitempty,max=512"`
}

// OrderService 订单生命周期：下单、出餐状态流转、确认取餐
type OrderService struct {
	db      *gorm.DB
	repo    order.Repository
	guard   *Guard
	gate    *GateService
	policy  Authorizer
	emitter notify.Emitter
}

// NewOrderService 创建订单服务
func NewOrderService(db *gorm.DB, repo order.Repository, guard *Guard, gate *GateService, policy Authorizer, emitter notify.Emitter) *OrderService {
	return &OrderService{
		db:      db,
		repo:    repo,
		guard:   guard,
		gate:    gate,
		policy:  policy,
		emitter: emitter,
	}
}

// PlaceOrder 下单：卫生日检查、扣库存扣款、写订单在同一个事务里完成，
// 提交后通知厨房与管理员
func (s *OrderService) PlaceOrder(ctx context.Context, actor user.Actor, req PlaceOrderRequest) (*PlaceResult, error) {
	mon := GetMonitor()
	mon.RecordOrderRequest()

	res, err := s.placeOrder(ctx, actor, req)
	if err != nil {
		mon.RecordOrderRejected(KindOf(err))
		zap.L().Info("order rejected",
			zap.Int64("user_id", actor.UserID),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err))
		return nil, err
	}
	mon.RecordOrderPlaced()

	s.emitter.Emit(notify.Event{
		Name:      notify.OrderCreated,
		Audiences: []notify.Audience{notify.Cook, notify.Admin},
		OrderID:   res.Order.ID,
		UserID:    res.Order.UserID,
		Status:    string(res.Order.Status),
	})
	zap.L().Info("order placed",
		zap.Int64("order_id", res.Order.ID),
		zap.Int64("user_id", res.Order.UserID),
		zap.String("total", res.Order.Total.StringFixed(2)),
		zap.Bool("subscription", res.Order.PaidBySubscription))
	return res, nil
}

func (s *OrderService) placeOrder(ctx context.Context, actor user.Actor, req PlaceOrderRequest) (*PlaceResult, error) {
	// 卫生日优先于其它任何检查
	closed, err := s.gate.IsClosed(ctx)
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, ErrServiceUnavailable
	}
	if err := authorize(s.policy, actor, auth.ObjOrder, auth.ActPlace); err != nil {
		return nil, err
	}
	items, err := normalizeItems(req.Items)
	if err != nil {
		return nil, err
	}

	var result PlaceResult
	err = s.guard.Within(ctx, []int64{actor.UserID}, productIDsOf(items), func(tx *gorm.DB) error {
		// 1) 事务内再读一次开关，和 SetClosed 互斥
		if err := s.gate.checkOpen(tx); err != nil {
			return err
		}

		// 2) 扣库存、扣款
		r, err := s.guard.reserveTx(tx, actor.UserID, items, req.PayWithSubscription)
		if err != nil {
			return err
		}

		// 3) 写订单，Total 为实际扣款
		o := &order.Order{
			UserID:             r.User.ID,
			UserName:           r.User.Name,
			UserDiet:           r.User.Diet,
			Items:              r.Items,
			Total:              r.Debited,
			PaidBySubscription: r.PaidBySubscription,
			Status:             order.StatusPending,
		}
		if err := tx.Create(o).Error; err != nil {
			return storeErr(err, "订单")
		}
		result.Order = o
		result.Profile = r.User.Profile()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// AdvanceStatus 厨房更新出餐状态，允许任意状态之间切换
func (s *OrderService) AdvanceStatus(ctx context.Context, actor user.Actor, orderID int64, status order.Status) (*order.Order, error) {
	if err := authorize(s.policy, actor, auth.ObjOrder, auth.ActAdvance); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalidInput("未知的订单状态: %q", status)
	}

	var o order.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, orderID).Error; err != nil {
			return storeErr(err, "订单")
		}
		o.Status = status
		return tx.Model(&o).Update("status", status).Error
	})
	if err != nil {
		return nil, storeErr(err, "订单")
	}

	GetMonitor().RecordStatusChange()
	s.emitUpdated(&o)
	return &o, nil
}

// ConfirmCompletion 顾客确认取餐并评分，重复调用覆盖上一次评价
func (s *OrderService) ConfirmCompletion(ctx context.Context, actor user.Actor, req FeedbackRequest) (*order.Order, error) {
	if err := authorize(s.policy, actor, auth.ObjOrder, auth.ActConfirm); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var o order.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, req.OrderID).Error; err != nil {
			return storeErr(err, "订单")
		}
		if o.UserID != actor.UserID {
			return ErrForbidden
		}

		rating := req.Rating
		o.Status = order.StatusCompleted
		o.Rating = &rating
		o.Comment = req.Comment
		if err := tx.Model(&o).Updates(map[string]interface{}{
			"status":  o.Status,
			"rating":  rating,
			"comment": req.Comment,
		}).Error; err != nil {
			return err
		}

		rv := review.Review{
			OrderID: o.ID,
			UserID:  o.UserID,
			Rating:  rating,
		}
		if req.Comment != nil {
			rv.Comment = *req.Comment
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"rating", "comment", "updated_at"}),
		}).Create(&rv).Error
	})
	if err != nil {
		return nil, storeErr(err, "订单")
	}

	GetMonitor().RecordStatusChange()
	s.emitUpdated(&o)
	return &o, nil
}

func (s *OrderService) emitUpdated(o *order.Order) {
	s.emitter.Emit(notify.Event{
		Name:      notify.OrderUpdated,
		Audiences: []notify.Audience{notify.Customer(o.UserID), notify.Cook, notify.Admin},
		OrderID:   o.ID,
		UserID:    o.UserID,
		Status:    string(o.Status),
	})
}

// ListOrdersForUser 用户自己的订单，最新在前
func (s *OrderService) ListOrdersForUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "订单")
	}
	return list, nil
}

// ListActiveOrders 厨房看板：未完成的订单，先下单的在前
func (s *OrderService) ListActiveOrders(ctx context.Context, actor user.Actor) ([]*order.Order, error) {
	if err := authorize(s.policy, actor, auth.ObjOrder, auth.ActListActive); err != nil {
		return nil, err
	}
	list, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, storeErr(err, "订单")
	}
	return list, nil
}

// GetOrder 本人或厨房/管理员可查看
func (s *OrderService) GetOrder(ctx context.Context, actor user.Actor, orderID int64) (*order.Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "订单")
	}
	if o.UserID != actor.UserID && !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListRecent 后台最近订单
func (s *OrderService) ListRecent(ctx context.Context, actor user.Actor, limit int) ([]*order.Order, error) {
	if err := authorize(s.policy, actor, auth.ObjOrder, auth.ActList); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	list, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, storeErr(err, "订单")
	}
	return list, nil
}

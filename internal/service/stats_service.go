package service

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/example/canteen/internal/auth"
	"github.com/example/canteen/internal/datamodels/order"
	"github.com/example/canteen/internal/datamodels/product"
	"github.com/example/canteen/internal/datamodels/review"
	"github.com/example/canteen/internal/datamodels/supply"
	"github.com/example/canteen/internal/datamodels/user"
	"github.com/example/canteen/internal/notify"
)

// FanoutStats 提供事件扇出统计，由 notify.Hub 实现
type FanoutStats interface {
	Stats() notify.Stats
}

// Dashboard 管理后台看板
type Dashboard struct {
	OrdersByStatus  map[order.Status]int64 `json:"orders_by_status"`
	ActiveOrders    int64                  `json:"active_orders"`
	Revenue         decimal.Decimal        `json:"revenue"`
	PendingSupplies int64                  `json:"pending_supplies"`
	LowStock        []*product.Product     `json:"low_stock"`
	UsersByRole     map[user.Role]int64    `json:"users_by_role"`
	AverageRating   float64                `json:"average_rating"`
	SanitaryDay     bool                   `json:"sanitary_day"`
	Monitor         MonitorStats           `json:"monitor"`
	Fanout          *notify.Stats          `json:"fanout,omitempty"`
}

type StatsService struct {
	orders            order.Repository
	products          product.Repository
	supplies          supply.Repository
	users             user.Repository
	reviews           review.Repository
	gate              *GateService
	fanout            FanoutStats
	policy            Authorizer
	lowStockThreshold int64
}

func NewStatsService(
	orders order.Repository,
	products product.Repository,
	supplies supply.Repository,
	users user.Repository,
	reviews review.Repository,
	gate *GateService,
	fanout FanoutStats,
	policy Authorizer,
	lowStockThreshold int64,
) *StatsService {
	return &StatsService{
		orders:            orders,
		products:          products,
		supplies:          supplies,
		users:             users,
		reviews:           reviews,
		gate:              gate,
		fanout:            fanout,
		policy:            policy,
		lowStockThreshold: lowStockThreshold,
	}
}

// Dashboard 各项统计互不依赖，并发查询
func (s *StatsService) Dashboard(ctx context.Context, actor user.Actor) (*Dashboard, error) {
	if err := authorize(s.policy, actor, auth.ObjStats, auth.ActRead); err != nil {
		return nil, err
	}

	d := &Dashboard{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		byStatus, err := s.orders.CountByStatus(gctx)
		if err != nil {
			return storeErr(err, "订单")
		}
		d.OrdersByStatus = byStatus
		for st, n := range byStatus {
			if st != order.StatusCompleted {
				d.ActiveOrders += n
			}
		}
		return nil
	})
	g.Go(func() error {
		revenue, err := s.orders.Revenue(gctx)
		d.Revenue = revenue
		return storeErr(err, "订单")
	})
	g.Go(func() error {
		n, err := s.supplies.CountPending(gctx)
		d.PendingSupplies = n
		return storeErr(err, "补货单")
	})
	g.Go(func() error {
		low, err := s.products.ListLowStock(gctx, s.lowStockThreshold)
		d.LowStock = low
		return storeErr(err, "菜品")
	})
	g.Go(func() error {
		byRole, err := s.users.CountByRole(gctx)
		d.UsersByRole = byRole
		return storeErr(err, "用户")
	})
	g.Go(func() error {
		avg, err := s.reviews.AverageRating(gctx)
		d.AverageRating = avg
		return storeErr(err, "评价")
	})
	g.Go(func() error {
		closed, err := s.gate.IsClosed(gctx)
		d.SanitaryDay = closed
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.Monitor = GetMonitor().Snapshot()
	if s.fanout != nil {
		st := s.fanout.Stats()
		d.Fanout = &st
	}
	return d, nil
}

// RecentReviews 最近的评价
func (s *StatsService) RecentReviews(ctx context.Context, actor user.Actor, limit int) ([]*review.Review, error) {
	if err := authorize(s.policy, actor, auth.ObjStats, auth.ActRead); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	list, err := s.reviews.ListRecent(ctx, limit)
	if err != nil {
		return nil, storeErr(err, "评价")
	}
	return list, nil
}

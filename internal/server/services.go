package server

import (
	"gorm.io/gorm"

	"github.com/example/canteen/internal/auth"
	"github.com/example/canteen/internal/config"
	"github.com/example/canteen/internal/notify"
	"github.com/example/canteen/internal/repository/mysql"
	"github.com/example/canteen/internal/service"
)

// Services 两个 HTTP 入口共用的业务服务
type Services struct {
	Users    *service.UserService
	Catalog  *service.CatalogService
	Orders   *service.OrderService
	Accounts *service.AccountService
	Supplies *service.SupplyService
	Gate     *service.GateService
	Stats    *service.StatsService
	Notices  *service.NoticeService
}

// NewServices 组装仓储与服务；fanout 可为空
func NewServices(db *gorm.DB, cfg *config.Config, emitter notify.Emitter, fanout service.FanoutStats) (*Services, error) {
	policy, err := auth.NewPolicy()
	if err != nil {
		return nil, err
	}

	userRepo := mysql.NewUserRepository(db)
	productRepo := mysql.NewProductRepository(db)
	orderRepo := mysql.NewOrderRepository(db)
	supplyRepo := mysql.NewSupplyRepository(db)
	reviewRepo := mysql.NewReviewRepository(db)
	settingRepo := mysql.NewSettingRepository(db)

	guard := service.NewGuard(db, cfg.Canteen.LockTimeout)
	gate := service.NewGateService(db, settingRepo, policy, emitter)

	return &Services{
		Users:    service.NewUserService(userRepo, &cfg.JWT, policy),
		Catalog:  service.NewCatalogService(productRepo, guard, policy),
		Orders:   service.NewOrderService(db, orderRepo, guard, gate, policy, emitter),
		Accounts: service.NewAccountService(guard, policy, &cfg.Canteen),
		Supplies: service.NewSupplyService(supplyRepo, productRepo, guard, policy, emitter, cfg.Canteen.SupplyCostRatio),
		Gate:     gate,
		Stats: service.NewStatsService(orderRepo, productRepo, supplyRepo, userRepo, reviewRepo,
			gate, fanout, policy, cfg.Canteen.LowStockThreshold),
		Notices: service.NewNoticeService(policy, emitter),
	}, nil
}

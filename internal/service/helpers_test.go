package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/example/canteen/internal/auth"
	"github.com/example/canteen/internal/config"
	"github.com/example/canteen/internal/datamodels/product"
	"github.com/example/canteen/internal/datamodels/user"
	"github.com/example/canteen/internal/notify"
	"github.com/example/canteen/internal/repository/mysql"
)

// 固定的“今天”，包月相关断言按天比较
var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Emit(ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

func (r *recorder) named(name string) []notify.Event {
	var out []notify.Event
	for _, ev := range r.all() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	cfg      *config.Config
	events   *recorder
	guard    *Guard
	gate     *GateService
	orders   *OrderService
	supplies *SupplyService
	accounts *AccountService
	catalog  *CatalogService
	users    *UserService
	stats    *StatsService
	notices  *NoticeService

	admin user.Actor
	cook  user.Actor
}

// newTestDB 每个测试一个独立的内存库；单连接保证 sqlite 上的事务串行
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := mysql.Open(sqlite.Open(dsn))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	cfg := config.DefaultConfig()
	policy := auth.MustPolicy()
	events := &recorder{}

	users := mysql.NewUserRepository(db)
	products := mysql.NewProductRepository(db)
	orders := mysql.NewOrderRepository(db)
	supplies := mysql.NewSupplyRepository(db)
	reviews := mysql.NewReviewRepository(db)
	settings := mysql.NewSettingRepository(db)

	guard := NewGuard(db, cfg.Canteen.LockTimeout)
	guard.now = func() time.Time { return testNow }
	gate := NewGateService(db, settings, policy, events)
	accounts := NewAccountService(guard, policy, &cfg.Canteen)
	accounts.now = func() time.Time { return testNow }

	f := &fixture{
		db:       db,
		cfg:      cfg,
		events:   events,
		guard:    guard,
		gate:     gate,
		orders:   NewOrderService(db, orders, guard, gate, policy, events),
		supplies: NewSupplyService(supplies, products, guard, policy, events, cfg.Canteen.SupplyCostRatio),
		accounts: accounts,
		catalog:  NewCatalogService(products, guard, policy),
		users:    NewUserService(users, &cfg.JWT, policy),
		stats:    NewStatsService(orders, products, supplies, users, reviews, gate, nil, policy, cfg.Canteen.LowStockThreshold),
		notices:  NewNoticeService(policy, events),
	}
	f.admin = f.actor(f.seedUser(t, "admin", user.RoleAdmin, "0", nil))
	f.cook = f.actor(f.seedUser(t, "cook", user.RoleCook, "0", nil))
	GetMonitor().Reset()
	return f
}

func (f *fixture) seedUser(t *testing.T, login string, role user.Role, balance string, until *time.Time) *user.User {
	t.Helper()
	u := &user.User{
		Login:             login,
		Name:              login,
		PasswordHash:      "x",
		Role:              role,
		Balance:           decimal.RequireFromString(balance),
		SubscriptionUntil: until,
	}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func (f *fixture) seedStudent(t *testing.T, login, balance string) user.Actor {
	return f.actor(f.seedUser(t, login, user.RoleStudent, balance, nil))
}

func (f *fixture) seedProduct(t *testing.T, name, price string, stock int64) *product.Product {
	t.Helper()
	p := &product.Product{
		Name:  name,
		Menu:  "lunch",
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func (f *fixture) actor(u *user.User) user.Actor {
	return user.Actor{UserID: u.ID, Role: u.Role}
}

func (f *fixture) stockOf(t *testing.T, id int64) int64 {
	t.Helper()
	var p product.Product
	require.NoError(t, f.db.First(&p, id).Error)
	return p.Stock
}

func (f *fixture) balanceOf(t *testing.T, id int64) string {
	t.Helper()
	var u user.User
	require.NoError(t, f.db.First(&u, id).Error)
	return u.Balance.StringFixed(2)
}

func (f *fixture) countRows(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func dateUTC(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func items(pairs ...int64) []ItemRequest {
	out := make([]ItemRequest, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, ItemRequest{ProductID: pairs[i], Quantity: pairs[i+1]})
	}
	return out
}

package mysql

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/example/canteen/internal/datamodels/order"
	"github.com/example/canteen/internal/datamodels/product"
	"github.com/example/canteen/internal/datamodels/review"
	"github.com/example/canteen/internal/datamodels/setting"
	"github.com/example/canteen/internal/datamodels/supply"
	"github.com/example/canteen/internal/datamodels/user"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	d, err := Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())))
	require.NoError(t, err)
	sqlDB, err := d.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return d
}

func TestMigrateSeedsSanitaryDayOnce(t *testing.T) {
	d := openSQLite(t)
	require.NoError(t, Migrate(d))

	list, err := NewSettingRepository(d).ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, setting.KeySanitaryDay, list[0].Key)
	assert.False(t, list[0].Bool())
	assert.Equal(t, int64(1), list[0].Version)
}

func TestOrderRepositoryAggregates(t *testing.T) {
	d := openSQLite(t)
	ctx := context.Background()
	repo := NewOrderRepository(d)

	orders := []*order.Order{
		{UserID: 1, Status: order.StatusPending, Total: decimal.RequireFromString("12.50"),
			Items: []order.OrderItem{{ProductID: 1, Name: "soup", Price: decimal.RequireFromString("12.50"), Quantity: 1}}},
		{UserID: 1, Status: order.StatusCompleted, Total: decimal.NewFromInt(20),
			Items: []order.OrderItem{{ProductID: 2, Name: "plov", Price: decimal.NewFromInt(10), Quantity: 2}}},
		{UserID: 2, Status: order.StatusReady, PaidBySubscription: true, Total: decimal.Zero,
			Items: []order.OrderItem{{ProductID: 2, Name: "plov", Price: decimal.NewFromInt(10), Quantity: 1}}},
	}
	for _, o := range orders {
		require.NoError(t, d.Create(o).Error)
	}

	got, err := repo.GetByID(ctx, orders[1].ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "plov", got.Items[0].Name)
	assert.Equal(t, "20.00", got.ItemsTotal().StringFixed(2))

	byStatus, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[order.Status]int64{
		order.StatusPending:   1,
		order.StatusCompleted: 1,
		order.StatusReady:     1,
	}, byStatus)

	revenue, err := repo.Revenue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "32.50", revenue.StringFixed(2))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, orders[0].ID, active[0].ID)

	mine, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, orders[1].ID, mine[0].ID)

	_, err = repo.GetByID(ctx, 999)
	assert.True(t, IsNotFound(err))
}

func TestProductRepositoryUpdateKeepsStock(t *testing.T) {
	d := openSQLite(t)
	ctx := context.Background()
	repo := NewProductRepository(d)

	p := &product.Product{Name: "tea", Menu: "breakfast", Price: decimal.NewFromInt(2), Stock: 3}
	require.NoError(t, repo.Create(ctx, p))
	require.NoError(t, repo.Create(ctx, &product.Product{Name: "pie", Menu: "lunch", Price: decimal.NewFromInt(5), Stock: 30}))

	// 库存只能通过加锁的路径修改
	p.Name = "green tea"
	p.Stock = 1000
	require.NoError(t, repo.Update(ctx, p))
	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "green tea", got.Name)
	assert.Equal(t, int64(3), got.Stock)

	low, err := repo.ListLowStock(ctx, 5)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, p.ID, low[0].ID)

	breakfast, err := repo.ListByMenu(ctx, "breakfast")
	require.NoError(t, err)
	assert.Len(t, breakfast, 1)
	all, err := repo.ListByMenu(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUserSupplyReviewRepositories(t *testing.T) {
	d := openSQLite(t)
	ctx := context.Background()

	users := NewUserRepository(d)
	require.NoError(t, users.Create(ctx, &user.User{Login: "a", Name: "A", PasswordHash: "x", Role: user.RoleStudent}))
	require.NoError(t, users.Create(ctx, &user.User{Login: "b", Name: "B", PasswordHash: "x", Role: user.RoleStudent}))
	require.NoError(t, users.Create(ctx, &user.User{Login: "c", Name: "C", PasswordHash: "x", Role: user.RoleCook}))
	byRole, err := users.CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), byRole[user.RoleStudent])
	assert.Equal(t, int64(1), byRole[user.RoleCook])
	u, err := users.GetByLogin(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "C", u.Name)

	supplies := NewSupplyRepository(d)
	require.NoError(t, supplies.Create(ctx, &supply.Supply{ProductID: 1, Amount: 5, Cost: decimal.NewFromInt(3), Status: supply.StatusPending}))
	require.NoError(t, supplies.Create(ctx, &supply.Supply{ProductID: 1, Amount: 5, Cost: decimal.NewFromInt(3), Status: supply.StatusRejected}))
	n, err := supplies.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	all, err := supplies.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	reviews := NewReviewRepository(d)
	avg, err := reviews.AverageRating(ctx)
	require.NoError(t, err)
	assert.Zero(t, avg)
	require.NoError(t, d.Create(&review.Review{OrderID: 1, UserID: 1, Rating: 5}).Error)
	require.NoError(t, d.Create(&review.Review{OrderID: 2, UserID: 1, Rating: 2}).Error)
	avg, err = reviews.AverageRating(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, avg, 0.001)
	rv, err := reviews.GetByOrderID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, rv.Rating)
}

func TestRepositoryPropagatesDriverErrors(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	d, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)

	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT (.+) FROM `orders`").WillReturnError(boom)
	_, err = NewOrderRepository(d).ListActive(context.Background())
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery("SELECT (.+) FROM `products`").WillReturnError(boom)
	_, err = NewProductRepository(d).GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsNotFound(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

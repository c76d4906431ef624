package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/canteen/internal/datamodels/order"
	"github.com/example/canteen/internal/datamodels/product"
	"github.com/example/canteen/internal/datamodels/user"
)

// ItemRequest 下单明细
type ItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0,lte=1000"`
}

type reserveRequest struct {
	Items []ItemRequest `validate:"required,min=1,dive"`
}

// Reservation 一次成功扣减的结果
type Reservation struct {
	// User 扣款后的用户
	User  *user.User
	Items []order.OrderItem
	// Total 按目录价算出的总价
	Total decimal.Decimal
	// Debited 实际扣款，包月支付为 0
	Debited            decimal.Decimal
	PaidBySubscription bool
}

// Guard 库存与余额守卫：库存、余额永不为负，多菜品订单要么全部成功要么毫无影响。
//
// 并发控制分两层：进程内按 user/product 发放互斥令牌（有等待上限），
// 数据库事务内再对用户行和菜品行 SELECT ... FOR UPDATE，覆盖多进程部署。
type Guard struct {
	db          *gorm.DB
	locks       *KeyedLocker
	lockTimeout time.Duration
	now         func() time.Time
}

// NewGuard 创建守卫，lockTimeout <= 0 表示只受调用方 ctx 约束
func NewGuard(db *gorm.DB, lockTimeout time.Duration) *Guard {
	return &Guard{
		db:          db,
		locks:       NewKeyedLocker(),
		lockTimeout: lockTimeout,
		now:         time.Now,
	}
}

// Within 持有相关用户、菜品的互斥令牌后在一个事务里执行 fn。
// 事务一旦开始，调用方取消不会中断它：要么整体提交，要么整体回滚。
func (g *Guard) Within(ctx context.Context, userIDs, productIDs []int64, fn func(tx *gorm.DB) error) error {
	keys := make([]string, 0, len(userIDs)+len(productIDs))
	for _, id := range userIDs {
		keys = append(keys, userKey(id))
	}
	for _, id := range productIDs {
		keys = append(keys, productKey(id))
	}

	lockCtx := ctx
	if g.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, g.lockTimeout)
		defer cancel()
	}
	unlock, err := g.locks.Lock(lockCtx, keys...)
	if err != nil {
		return newError(KindBusy, "等待资源超时", err)
	}
	defer unlock()

	return storeErr(g.db.WithContext(context.WithoutCancel(ctx)).Transaction(fn), "记录")
}

// Reserve 校验并扣减库存与余额，单独使用时自成一个事务
func (g *Guard) Reserve(ctx context.Context, userID int64, items []ItemRequest, payWithSubscription bool) (*Reservation, error) {
	items, err := normalizeItems(items)
	if err != nil {
		return nil, err
	}
	var res *Reservation
	err = g.Within(ctx, []int64{userID}, productIDsOf(items), func(tx *gorm.DB) error {
		var err error
		res, err = g.reserveTx(tx, userID, items, payWithSubscription)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// reserveTx 在调用方事务中完成扣减，调用方必须已经通过 Within 持有令牌。
// 所有检查都在任何写入之前完成。
func (g *Guard) reserveTx(tx *gorm.DB, userID int64, items []ItemRequest, payWithSubscription bool) (*Reservation, error) {
	// 1) 锁定用户
	var u user.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, userID).Error; err != nil {
		return nil, storeErr(err, "用户")
	}

	// 2) 按 id 升序锁定菜品
	var products []*product.Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", productIDsOf(items)).
		Order("id ASC").
		Find(&products).Error; err != nil {
		return nil, storeErr(err, "菜品")
	}
	byID := make(map[int64]*product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	// 3) 用目录价计算总价并生成快照，不信任调用方传来的价格
	total := decimal.Zero
	snapshot := make([]order.OrderItem, 0, len(items))
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, notFound("菜品 #%d 不存在", it.ProductID)
		}
		line := order.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  it.Quantity,
		}
		total = total.Add(line.Subtotal())
		snapshot = append(snapshot, line)
	}

	// 4) 校验支付方式
	debit := total
	if payWithSubscription {
		if err := checkSubscription(u.SubscriptionUntil, g.now()); err != nil {
			return nil, err
		}
		debit = decimal.Zero
	} else if u.Balance.LessThan(total) {
		return nil, newError(KindInsufficientFunds,
			fmt.Sprintf("余额不足，需 %s，当前 %s", total.StringFixed(2), u.Balance.StringFixed(2)), nil)
	}

	// 5) 全部菜品库存校验通过才开始写
	for _, it := range items {
		p := byID[it.ProductID]
		if p.Stock < it.Quantity {
			return nil, insufficientStock(p.ID, p.Name, it.Quantity, p.Stock)
		}
	}

	// 6) 扣减库存与余额
	for _, it := range items {
		p := byID[it.ProductID]
		p.Stock -= it.Quantity
		if err := tx.Model(&product.Product{}).
			Where("id = ?", p.ID).
			Update("stock", p.Stock).Error; err != nil {
			return nil, storeErr(err, "菜品")
		}
	}
	if debit.IsPositive() {
		u.Balance = u.Balance.Sub(debit)
		if err := tx.Model(&user.User{}).
			Where("id = ?", u.ID).
			Update("balance", u.Balance).Error; err != nil {
			return nil, storeErr(err, "用户")
		}
	}

	return &Reservation{
		User:               &u,
		Items:              snapshot,
		Total:              total,
		Debited:            debit,
		PaidBySubscription: payWithSubscription,
	}, nil
}

// checkSubscription 按天比较：到期日当天仍可使用
func checkSubscription(until *time.Time, now time.Time) error {
	if until == nil {
		return ErrNoSubscription
	}
	if dayOf(*until, now.Location()).Before(dayOf(now, now.Location())) {
		return newError(KindSubscriptionExpired,
			fmt.Sprintf("包月已于 %s 到期", until.In(now.Location()).Format("2006-01-02")), nil)
	}
	return nil
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// normalizeItems 校验明细并合并重复菜品，保留首次出现的顺序
// maxItemQuantity 单个菜品一次最多下单数量，与 ItemRequest 的 lte 保持一致
const maxItemQuantity = 1000

func normalizeItems(items []ItemRequest) ([]ItemRequest, error) {
	if err := validateStruct(reserveRequest{Items: items}); err != nil {
		return nil, err
	}
	merged := make([]ItemRequest, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, it := range items {
		if i, ok := index[it.ProductID]; ok {
			// 单项已限制在 maxItemQuantity 内，相加不会溢出
			if merged[i].Quantity+it.Quantity > maxItemQuantity {
				return nil, invalidInput("菜品 %d 数量超过上限 %d", it.ProductID, maxItemQuantity)
			}
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, it)
	}
	return merged, nil
}

// productIDsOf 升序去重
func productIDsOf(items []ItemRequest) []int64 {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

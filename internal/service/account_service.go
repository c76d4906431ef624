package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/canteen/internal/auth"
	"github.com/example/canteen/internal/config"
	"github.com/example/canteen/internal/datamodels/user"
)

// maxTopUp 单次充值上限
var maxTopUp = decimal.NewFromInt(100000)

// AccountService 余额充值与包月购买。与下单共用 Guard 的用户锁
type AccountService struct {
	guard  *Guard
	policy Authorizer
	cfg    *config.CanteenConfig
	now    func() time.Time
}

// NewAccountService 创建账户服务
func NewAccountService(guard *Guard, policy Authorizer, cfg *config.CanteenConfig) *AccountService {
	return &AccountService{
		guard:  guard,
		policy: policy,
		cfg:    cfg,
		now:    time.Now,
	}
}

// TopUp 充值，金额必须为正且最多两位小数
func (s *AccountService) TopUp(ctx context.Context, actor user.Actor, amount decimal.Decimal) (*user.Profile, error) {
	if err := authorize(s.policy, actor, auth.ObjAccount, auth.ActTopUp); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, invalidInput("充值金额需大于 0")
	}
	if amount.GreaterThan(maxTopUp) || !amount.Equal(amount.Truncate(2)) {
		return nil, invalidInput("充值金额不合法: %s", amount.String())
	}

	u, err := s.updateUser(ctx, actor.UserID, func(u *user.User) (map[string]interface{}, error) {
		u.Balance = u.Balance.Add(amount)
		return map[string]interface{}{"balance": u.Balance}, nil
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("balance topped up",
		zap.Int64("user_id", u.ID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance", u.Balance.StringFixed(2)))
	return u.Profile(), nil
}

// PurchaseSubscription 用余额购买包月，未到期时在原到期日上顺延
func (s *AccountService) PurchaseSubscription(ctx context.Context, actor user.Actor) (*user.Profile, error) {
	if err := authorize(s.policy, actor, auth.ObjAccount, auth.ActSubscribe); err != nil {
		return nil, err
	}
	price := decimal.NewFromInt(s.cfg.SubscriptionPrice)
	now := s.now()

	u, err := s.updateUser(ctx, actor.UserID, func(u *user.User) (map[string]interface{}, error) {
		if u.Balance.LessThan(price) {
			return nil, newError(KindInsufficientFunds,
				fmt.Sprintf("余额不足，包月需 %s，当前 %s", price.StringFixed(2), u.Balance.StringFixed(2)), nil)
		}
		until := nextSubscriptionEnd(u.SubscriptionUntil, now, s.cfg.SubscriptionDays)
		u.Balance = u.Balance.Sub(price)
		u.SubscriptionUntil = &until
		return map[string]interface{}{
			"balance":            u.Balance,
			"subscription_until": until,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("subscription purchased",
		zap.Int64("user_id", u.ID),
		zap.Time("until", *u.SubscriptionUntil))
	return u.Profile(), nil
}

// nextSubscriptionEnd 新到期日 = max(今天, 原到期日) + days
func nextSubscriptionEnd(current *time.Time, now time.Time, days int) time.Time {
	base := dayOf(now, now.Location())
	if current != nil {
		if d := dayOf(*current, now.Location()); d.After(base) {
			base = d
		}
	}
	return base.AddDate(0, 0, days)
}

// updateUser 在用户锁内读取、修改并写回
func (s *AccountService) updateUser(ctx context.Context, userID int64, mutate func(u *user.User) (map[string]interface{}, error)) (*user.User, error) {
	var u user.User
	err := s.guard.Within(ctx, []int64{userID}, nil, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, userID).Error; err != nil {
			return storeErr(err, "用户")
		}
		fields, err := mutate(&u)
		if err != nil {
			return err
		}
		return tx.Model(&user.User{}).Where("id = ?", userID).Updates(fields).Error
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

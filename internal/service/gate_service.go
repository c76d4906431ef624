package service

import (
	"context"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/canteen/internal/auth"
	"github.com/example/canteen/internal/datamodels/setting"
	"github.com/example/canteen/internal/datamodels/user"
	"github.com/example/canteen/internal/notify"
)

// GateService 卫生日开关。开关保存在 settings 表，与其它数据走同一套事务与行锁
type GateService struct {
	db       *gorm.DB
	settings setting.Repository
	policy   Authorizer
	emitter  notify.Emitter
}

// NewGateService 创建卫生日开关服务
func NewGateService(db *gorm.DB, settings setting.Repository, policy Authorizer, emitter notify.Emitter) *GateService {
	return &GateService{
		db:       db,
		settings: settings,
		policy:   policy,
		emitter:  emitter,
	}
}

// IsClosed 当前是否暂停点餐；配置行缺失视为营业
func (g *GateService) IsClosed(ctx context.Context) (bool, error) {
	s, err := g.settings.Get(ctx, setting.KeySanitaryDay)
	if err != nil {
		if KindOf(storeErr(err, "配置")) == KindNotFound {
			return false, nil
		}
		return false, storeErr(err, "配置")
	}
	return s.Bool(), nil
}

// checkOpen 在下单事务内共享锁读取开关，保证与 SetClosed 串行
func (g *GateService) checkOpen(tx *gorm.DB) error {
	var s setting.Setting
	if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
		Where(&setting.Setting{Key: setting.KeySanitaryDay}).
		Limit(1).
		Find(&s).Error; err != nil {
		return storeErr(err, "配置")
	}
	if s.Bool() {
		return ErrServiceUnavailable
	}
	return nil
}

// SetClosed 管理员切换卫生日，版本号递增
func (g *GateService) SetClosed(ctx context.Context, actor user.Actor, closed bool) (*setting.Setting, error) {
	if err := authorize(g.policy, actor, auth.ObjGate, auth.ActSet); err != nil {
		return nil, err
	}

	var s setting.Setting
	changed := false
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(&setting.Setting{Key: setting.KeySanitaryDay}).
			Limit(1).
			Find(&s)
		if res.Error != nil {
			return res.Error
		}
		value := strconv.FormatBool(closed)
		if res.RowsAffected == 0 {
			s = setting.Setting{Key: setting.KeySanitaryDay, Value: value, Version: 1}
			changed = closed
			return tx.Create(&s).Error
		}
		changed = s.Value != value
		s.Value = value
		s.Version++
		return tx.Model(&setting.Setting{}).
			Where(&setting.Setting{Key: setting.KeySanitaryDay}).
			Updates(map[string]interface{}{"value": s.Value, "version": s.Version}).Error
	})
	if err != nil {
		return nil, storeErr(err, "配置")
	}

	zap.L().Info("sanitary day switched",
		zap.Bool("closed", closed),
		zap.Int64("version", s.Version),
		zap.Int64("by", actor.UserID))
	if changed {
		msg := "食堂恢复营业"
		if closed {
			msg = "今日为卫生日，暂停点餐"
		}
		g.emitter.Emit(notify.Event{
			Name:      notify.NoticeBanner,
			Audiences: []notify.Audience{notify.All},
			Status:    map[bool]string{true: "closed", false: "open"}[closed],
			Message:   msg,
		})
	}
	return &s, nil
}

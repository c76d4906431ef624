package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/canteen/internal/datamodels/setting"
)

type settingRepo struct {
	db *gorm.DB
}

// NewSettingRepository 创建配置仓储
func NewSettingRepository(db *gorm.DB) setting.Repository {
	return &settingRepo{db: db}
}

func (r *settingRepo) Get(ctx context.Context, key string) (*setting.Setting, error) {
	var s setting.Setting
	if err := r.db.WithContext(ctx).Where(&setting.Setting{Key: key}).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingRepo) ListAll(ctx context.Context) ([]*setting.Setting, error) {
	var list []*setting.Setting
	if err := r.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

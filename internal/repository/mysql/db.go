package mysql

import (
	"errors"
	"sync"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/example/canteen/internal/config"
	"github.com/example/canteen/internal/datamodels/order"
	"github.com/example/canteen/internal/datamodels/product"
	"github.com/example/canteen/internal/datamodels/review"
	"github.com/example/canteen/internal/datamodels/setting"
	"github.com/example/canteen/internal/datamodels/supply"
	"github.com/example/canteen/internal/datamodels/user"
)

var (
	db   *gorm.DB
	once sync.Once
)

// Init 初始化全局 GORM 实例并自动迁移表结构
func Init(cfg *config.MySQLConfig) *gorm.DB {
	once.Do(func() {
		var err error
		db, err = Open(mysql.Open(cfg.DSN))
		if err != nil {
			zap.L().Fatal("failed to open mysql", zap.Error(err))
		}
	})
	return db
}

// DB 获取全局 DB
func DB() *gorm.DB {
	return db
}

// Open 用给定方言打开数据库、迁移表结构并写入缺省配置项。
// 生产用 mysql，测试用 sqlite。
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	d, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := Migrate(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Migrate 自动迁移并保证卫生日开关存在
func Migrate(d *gorm.DB) error {
	if err := d.AutoMigrate(
		&user.User{},
		&product.Product{},
		&order.Order{},
		&supply.Supply{},
		&review.Review{},
		&setting.Setting{},
	); err != nil {
		return err
	}
	return d.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&setting.Setting{
		Key:     setting.KeySanitaryDay,
		Value:   "false",
		Version: 1,
	}).Error
}

// IsNotFound 判断是否为记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

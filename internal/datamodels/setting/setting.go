package setting

import (
	"context"
	"time"
)

// KeySanitaryDay 卫生日开关，"true" 时暂停所有下单
const KeySanitaryDay = "sanitary_day"

// Setting 全局配置项，单行一个 key；Version 每次写入递增
type Setting struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"size:255;not null"`
	Version   int64  `gorm:"not null"`
	UpdatedAt time.Time
}

// Bool 按布尔解析取值
func (s *Setting) Bool() bool {
	return s != nil && s.Value == "true"
}

// Repository 配置仓储接口
type Repository interface {
	Get(ctx context.Context, key string) (*Setting, error)
	ListAll(ctx context.Context) ([]*Setting, error)
}

package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/example/canteen/internal/datamodels/user"
)

type userRepo struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) user.Repository {
	return &userRepo{db: db}
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var u user.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetByLogin(ctx context.Context, login string) (*user.User, error) {
	var u user.User
	if err := r.db.WithContext(ctx).Where("login = ?", login).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) Create(ctx context.Context, u *user.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *userRepo) ListAll(ctx context.Context) ([]*user.User, error) {
	var list []*user.User
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *userRepo) CountByRole(ctx context.Context) (map[user.Role]int64, error) {
	var rows []struct {
		Role user.Role
		N    int64
	}
	if err := r.db.WithContext(ctx).
		Model(&user.User{}).
		Select("role, COUNT(*) AS n").
		Group("role").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[user.Role]int64, len(rows))
	for _, row := range rows {
		out[row.Role] = row.N
	}
	return out, nil
}

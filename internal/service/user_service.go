package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/canteen/internal/auth"
	"github.com/example/canteen/internal/config"
	"github.com/example/canteen/internal/datamodels/user"
)

// RegisterRequest 注册信息
type RegisterRequest struct {
	Login    string `json:"login" validate:"required,alphanum,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name" validate:"required,max=128"`
	Diet     string `json:"diet" validate:"max=255"`
}

// LoginResult 登录结果
type LoginResult struct {
	Token   string        `json:"token"`
	Profile *user.Profile `json:"profile"`
}

type UserService struct {
	repo   user.Repository
	jwt    *config.JWTConfig
	policy Authorizer
}

func NewUserService(repo user.Repository, jwt *config.JWTConfig, policy Authorizer) *UserService {
	return &UserService{repo: repo, jwt: jwt, policy: policy}
}

// Register 自助注册，角色固定为学生，初始余额为 0
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*user.Profile, error) {
	return s.create(ctx, req, user.RoleStudent)
}

// CreateUser 管理员创建账号，可指定角色
func (s *UserService) CreateUser(ctx context.Context, actor user.Actor, req RegisterRequest, role user.Role) (*user.Profile, error) {
	if err := authorize(s.policy, actor, auth.ObjUser, auth.ActCreate); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, invalidInput("未知角色: %q", role)
	}
	return s.create(ctx, req, role)
}

func (s *UserService) create(ctx context.Context, req RegisterRequest, role user.Role) (*user.Profile, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByLogin(ctx, req.Login); err == nil {
		return nil, newError(KindConflict, "登录名已存在", nil)
	} else if KindOf(storeErr(err, "用户")) != KindNotFound {
		return nil, storeErr(err, "用户")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, newError(KindStorage, "密码处理失败", err)
	}
	u := &user.User{
		Login:        req.Login,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         role,
		Balance:      decimal.Zero,
		Diet:         req.Diet,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, storeErr(err, "用户")
	}
	zap.L().Info("user registered", zap.Int64("user_id", u.ID), zap.String("role", string(role)))
	return u.Profile(), nil
}

// Authenticate 校验密码并签发 JWT
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*LoginResult, error) {
	u, err := s.repo.GetByLogin(ctx, login)
	if err != nil {
		if KindOf(storeErr(err, "用户")) == KindNotFound {
			return nil, ErrUnauthorized
		}
		return nil, storeErr(err, "用户")
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrUnauthorized
	}
	token, err := auth.GenerateToken(s.jwt, u)
	if err != nil {
		return nil, newError(KindStorage, "签发令牌失败", err)
	}
	return &LoginResult{Token: token, Profile: u.Profile()}, nil
}

// Profile 当前用户资料
func (s *UserService) Profile(ctx context.Context, userID int64) (*user.Profile, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "用户")
	}
	return u.Profile(), nil
}

// List 管理员查看全部账号
func (s *UserService) List(ctx context.Context, actor user.Actor) ([]*user.Profile, error) {
	if err := authorize(s.policy, actor, auth.ObjUser, auth.ActList); err != nil {
		return nil, err
	}
	list, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, storeErr(err, "用户")
	}
	out := make([]*user.Profile, 0, len(list))
	for _, u := range list {
		out = append(out, u.Profile())
	}
	return out, nil
}

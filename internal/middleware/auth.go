package middleware

import (
	"context"
	"strings"

	"github.com/kataras/iris/v12"

	"github.com/example/canteen/internal/auth"
	"github.com/example/canteen/internal/datamodels/user"
)

// ctx.Values() 中的键
const (
	UserIDKey    = "user_id"
	RoleKey      = "role"
	RequestIDKey = "request_id"
)

// TokenVerifier 由 auth.TokenCache 实现
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// Auth 校验 Authorization 头里的 JWT，支持带 Bearer 前缀
func Auth(verifier TokenVerifier) iris.Handler {
	return func(ctx iris.Context) {
		token := strings.TrimSpace(ctx.GetHeader("Authorization"))
		token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
		if token == "" {
			ctx.StopWithJSON(iris.StatusUnauthorized, iris.Map{"code": iris.StatusUnauthorized, "msg": "missing token"})
			return
		}
		claims, err := verifier.Verify(ctx.Request().Context(), token)
		if err != nil {
			ctx.StopWithJSON(iris.StatusUnauthorized, iris.Map{"code": iris.StatusUnauthorized, "msg": "invalid token"})
			return
		}
		ctx.Values().Set(UserIDKey, claims.UserID)
		ctx.Values().Set(RoleKey, string(claims.Role))
		ctx.Next()
	}
}

// Actor 取出当前登录用户
func Actor(ctx iris.Context) user.Actor {
	return user.Actor{
		UserID: ctx.Values().GetInt64Default(UserIDKey, 0),
		Role:   user.Role(ctx.Values().GetString(RoleKey)),
	}
}

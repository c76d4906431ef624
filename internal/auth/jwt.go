package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/canteen/internal/config"
	"github.com/example/canteen/internal/datamodels/user"
)

type Claims struct {
	UserID int64     `json:"user_id"`
	Login  string    `json:"login"`
	Role   user.Role `json:"role"`
	jwt.RegisteredClaims
}

// Actor 转换为 service 层使用的操作者
func (c *Claims) Actor() user.Actor {
	return user.Actor{UserID: c.UserID, Role: c.Role}
}

// GenerateToken 生成 JWT
func GenerateToken(cfg *config.JWTConfig, u *user.User) (string, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	now := time.Now()
	claims := Claims{
		UserID: u.ID,
		Login:  u.Login,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ParseToken 解析 JWT
func ParseToken(cfg *config.JWTConfig, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}

package auth

import (
	"context"
	"testing"
	"time"

	radix "github.com/mediocregopher/radix/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/canteen/internal/config"
	"github.com/example/canteen/internal/datamodels/user"
)

func TestTokenRoundTrip(t *testing.T) {
	cfg := &config.JWTConfig{Secret: "s3cret", TTL: time.Hour}
	u := &user.User{ID: 42, Login: "ivan", Role: user.RoleCook}

	token, err := GenerateToken(cfg, u)
	require.NoError(t, err)

	claims, err := ParseToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "ivan", claims.Login)
	assert.Equal(t, user.Actor{UserID: 42, Role: user.RoleCook}, claims.Actor())
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken(&config.JWTConfig{Secret: "a"}, &user.User{ID: 1, Role: user.RoleStudent})
	require.NoError(t, err)

	_, err = ParseToken(&config.JWTConfig{Secret: "b"}, token)
	assert.Error(t, err)
}

func TestTokenCacheWithoutRedisParses(t *testing.T) {
	cfg := &config.JWTConfig{Secret: "s3cret"}
	token, err := GenerateToken(cfg, &user.User{ID: 7, Login: "olga", Role: user.RoleStudent})
	require.NoError(t, err)

	cache := NewTokenCache(nil, cfg, time.Minute)
	claims, err := cache.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)

	_, err = cache.Verify(context.Background(), token+"x")
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("pa55")
	require.NoError(t, err)
	assert.NotEqual(t, "pa55", hash)
	assert.True(t, CheckPassword(hash, "pa55"))
	assert.False(t, CheckPassword(hash, "pa56"))
}

func TestPolicyRoles(t *testing.T) {
	p := MustPolicy()

	cases := []struct {
		role user.Role
		obj  string
		act  string
		want bool
	}{
		{user.RoleStudent, ObjOrder, ActPlace, true},
		{user.RoleStudent, ObjOrder, ActAdvance, false},
		{user.RoleStudent, ObjGate, ActSet, false},
		{user.RoleCook, ObjOrder, ActPlace, true},
		{user.RoleCook, ObjOrder, ActAdvance, true},
		{user.RoleCook, ObjSupply, ActRequest, true},
		{user.RoleCook, ObjSupply, ActDecide, false},
		{user.RoleAdmin, ObjSupply, ActDecide, true},
		{user.RoleAdmin, ObjOrder, ActAdvance, true},
		{user.RoleAdmin, ObjGate, ActSet, true},
		{user.RoleCook, ObjUser, ActCreate, false},
		{user.RoleAdmin, ObjUser, ActCreate, true},
		{user.RoleAdmin, ObjOrder, ActList, true},
		{user.Role("GUEST"), ObjOrder, ActPlace, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, p.Allow(c.role, c.obj, c.act), "%s %s %s", c.role, c.obj, c.act)
	}
}

func TestTokenCacheStoresClaimsInRedis(t *testing.T) {
	store := map[string]string{}
	var sets int
	stub := radix.Stub("tcp", "127.0.0.1:6379", func(args []string) interface{} {
		switch args[0] {
		case "GET":
			if v, ok := store[args[1]]; ok {
				return v
			}
			return nil
		case "SETEX":
			sets++
			store[args[1]] = args[3]
			return "OK"
		case "DEL":
			delete(store, args[1])
			return 1
		}
		return nil
	})

	cfg := &config.JWTConfig{Secret: "s3cret", TTL: time.Hour}
	token, err := GenerateToken(cfg, &user.User{ID: 9, Login: "petr", Role: user.RoleAdmin})
	require.NoError(t, err)

	cache := NewTokenCache(stub, cfg, time.Minute)
	claims, err := cache.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(9), claims.UserID)
	assert.Contains(t, store, cacheKey(token))

	// 第二次命中缓存，不再回写
	claims, err = cache.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, claims.Role)
	assert.Equal(t, 1, sets)

	// 损坏的缓存被清理后重新解析
	store[cacheKey(token)] = "{bad"
	claims, err = cache.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(9), claims.UserID)
	assert.Equal(t, 2, sets)
}

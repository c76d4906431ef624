package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

// RequestLogger 为每个请求生成 request id 并记录访问日志
func RequestLogger() iris.Handler {
	return func(ctx iris.Context) {
		start := time.Now()
		id := ctx.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Values().Set(RequestIDKey, id)
		ctx.Header("X-Request-ID", id)

		ctx.Next()

		status := ctx.GetStatusCode()
		fields := []zap.Field{
			zap.String("request_id", id),
			zap.String("method", ctx.Method()),
			zap.String("path", ctx.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Int64("user_id", ctx.Values().GetInt64Default(UserIDKey, 0)),
		}
		switch {
		case status >= 500:
			zap.L().Error("request", fields...)
		case status >= 400:
			zap.L().Warn("request", fields...)
		default:
			zap.L().Info("request", fields...)
		}
	}
}

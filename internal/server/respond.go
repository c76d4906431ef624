package server

import (
	"errors"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/example/canteen/internal/middleware"
	"github.com/example/canteen/internal/service"
)

func ok(ctx iris.Context, data interface{}) {
	ctx.JSON(iris.Map{"code": 0, "msg": "ok", "data": data})
}

// fail 按错误类别返回状态码，非业务错误不把细节暴露给调用方
func fail(ctx iris.Context, err error) {
	var e *service.Error
	if !errors.As(err, &e) {
		e = service.ErrStorage
	}
	status := e.Kind.HTTPStatus()
	if status >= 500 && e.Kind != service.KindServiceUnavailable && e.Kind != service.KindBusy {
		zap.L().Error("request failed",
			zap.String("request_id", ctx.Values().GetString(middleware.RequestIDKey)),
			zap.String("path", ctx.Path()),
			zap.Error(err))
	}
	ctx.StopWithJSON(status, iris.Map{
		"code": status,
		"kind": e.Kind,
		"msg":  e.Message,
	})
}

func badRequest(ctx iris.Context, err error) {
	ctx.StopWithJSON(iris.StatusBadRequest, iris.Map{
		"code": iris.StatusBadRequest,
		"kind": service.KindInvalidInput,
		"msg":  err.Error(),
	})
}

func idParam(ctx iris.Context) int64 {
	id, _ := ctx.Params().GetInt64("id")
	return id
}

package server

import (
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/websocket"
	"github.com/kataras/neffos"
	"github.com/shopspring/decimal"

	"github.com/example/canteen/internal/datamodels/order"
	"github.com/example/canteen/internal/datamodels/supply"
	"github.com/example/canteen/internal/middleware"
	"github.com/example/canteen/internal/service"
)

// RegisterRoutes 注册前台（学生与厨房）HTTP 路由
func RegisterRoutes(app *iris.Application, svc *Services, verifier middleware.TokenVerifier, limiter *middleware.UserRateLimiter, ws *neffos.Server) {
	if ws != nil {
		app.Get("/ws", websocket.Handler(ws))
	}

	api := app.Party("/api")

	api.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	api.Post("/register", func(ctx iris.Context) {
		var req service.RegisterRequest
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
		prof, err := svc.Users.Register(ctx.Request().Context(), req)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, prof)
	})

	api.Post("/login", func(ctx iris.Context) {
		var req struct {
			Login    string `json:"login"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
		res, err := svc.Users.Authenticate(ctx.Request().Context(), req.Login, req.Password)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, res)
	})

	// 菜单，可按 breakfast / lunch / dinner 筛选
	api.Get("/products", func(ctx iris.Context) {
		list, err := svc.Catalog.List(ctx.Request().Context(), ctx.URLParam("menu"))
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, list)
	})

	api.Get("/gate", func(ctx iris.Context) {
		closed, err := svc.Gate.IsClosed(ctx.Request().Context())
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, iris.Map{"sanitary_day": closed})
	})

	// 需要登录的接口
	authAPI := api.Party("/", middleware.Auth(verifier))

	authAPI.Get("/profile", func(ctx iris.Context) {
		prof, err := svc.Users.Profile(ctx.Request().Context(), middleware.Actor(ctx).UserID)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, prof)
	})

	placeHandlers := []iris.Handler{}
	if limiter != nil {
		placeHandlers = append(placeHandlers, limiter.Handler())
	}
	placeHandlers = append(placeHandlers, func(ctx iris.Context) {
		var req service.PlaceOrderRequest
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
		res, err := svc.Orders.PlaceOrder(ctx.Request().Context(), middleware.Actor(ctx), req)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, res)
	})
	authAPI.Post("/orders", placeHandlers...)

	authAPI.Get("/orders", func(ctx iris.Context) {
		list, err := svc.Orders.ListOrdersForUser(ctx.Request().Context(), middleware.Actor(ctx).UserID)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, list)
	})

	authAPI.Get("/orders/{id:int64}", func(ctx iris.Context) {
		o, err := svc.Orders.GetOrder(ctx.Request().Context(), middleware.Actor(ctx), idParam(ctx))
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, o)
	})

	// 确认取餐并评价
	authAPI.Post("/orders/{id:int64}/confirm", func(ctx iris.Context) {
		var req service.FeedbackRequest
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
		req.OrderID = idParam(ctx)
		o, err := svc.Orders.ConfirmCompletion(ctx.Request().Context(), middleware.Actor(ctx), req)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, o)
	})

	authAPI.Post("/account/topup", func(ctx iris.Context) {
		var req struct {
			Amount decimal.Decimal `json:"amount"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
		prof, err := svc.Accounts.TopUp(ctx.Request().Context(), middleware.Actor(ctx), req.Amount)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, prof)
	})

	authAPI.Post("/account/subscription", func(ctx iris.Context) {
		prof, err := svc.Accounts.PurchaseSubscription(ctx.Request().Context(), middleware.Actor(ctx))
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, prof)
	})

	// ---------------- 厨房 ----------------
	kitchen := authAPI.Party("/kitchen")

	kitchen.Get("/orders", func(ctx iris.Context) {
		list, err := svc.Orders.ListActiveOrders(ctx.Request().Context(), middleware.Actor(ctx))
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, list)
	})

	kitchen.Put("/orders/{id:int64}/status", func(ctx iris.Context) {
		var req struct {
			Status order.Status `json:"status"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
		o, err := svc.Orders.AdvanceStatus(ctx.Request().Context(), middleware.Actor(ctx), idParam(ctx), req.Status)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, o)
	})

	kitchen.Post("/supplies", func(ctx iris.Context) {
		var req service.SupplyRequest
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
		sp, err := svc.Supplies.RequestSupply(ctx.Request().Context(), middleware.Actor(ctx), req)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, sp)
	})

	kitchen.Get("/supplies", func(ctx iris.Context) {
		list, err := svc.Supplies.ListSupplies(ctx.Request().Context(), middleware.Actor(ctx), supply.Status(ctx.URLParam("status")))
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, list)
	})

	// 盘点纠正库存
	kitchen.Put("/products/{id:int64}/stock", func(ctx iris.Context) {
		var req struct {
			Stock int64 `json:"stock"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
		p, err := svc.Catalog.SetStock(ctx.Request().Context(), middleware.Actor(ctx), idParam(ctx), req.Stock)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, p)
	})
}

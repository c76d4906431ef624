package server

import (
	"github.com/kataras/iris/v12"

	"github.com/example/canteen/internal/datamodels/supply"
	"github.com/example/canteen/internal/datamodels/user"
	"github.com/example/canteen/internal/middleware"
	"github.com/example/canteen/internal/service"
)

// RegisterAdminRoutes 注册后台管理端的 HTTP 路由
// 端口通常是 8081，与前台 Web 服务分离。所有接口都需要登录，权限由服务层判断。
func RegisterAdminRoutes(app *iris.Application, svc *Services, verifier middleware.TokenVerifier) {
	api := app.Party("/api")

	api.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
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

	admin := api.Party("/", middleware.Auth(verifier))

	// ---------- 看板 ----------
	admin.Get("/stats", func(ctx iris.Context) {
		d, err := svc.Stats.Dashboard(ctx.Request().Context(), middleware.Actor(ctx))
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, d)
	})

	admin.Get("/reviews", func(ctx iris.Context) {
		list, err := svc.Stats.RecentReviews(ctx.Request().Context(), middleware.Actor(ctx), ctx.URLParamIntDefault("limit", 20))
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, list)
	})

	admin.Get("/orders", func(ctx iris.Context) {
		limit := ctx.URLParamIntDefault("limit", 50)
		list, err := svc.Orders.ListRecent(ctx.Request().Context(), middleware.Actor(ctx), limit)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, list)
	})

	// ---------- 补货审批 ----------
	admin.Get("/supplies", func(ctx iris.Context) {
		list, err := svc.Supplies.ListSupplies(ctx.Request().Context(), middleware.Actor(ctx), supply.Status(ctx.URLParam("status")))
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, list)
	})

	admin.Post("/supplies/{id:int64}/decision", func(ctx iris.Context) {
		var req service.SupplyDecision
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
		req.SupplyID = idParam(ctx)
		sp, err := svc.Supplies.DecideSupply(ctx.Request().Context(), middleware.Actor(ctx), req)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, sp)
	})

	// ---------- 卫生日与公告 ----------
	admin.Put("/gate", func(ctx iris.Context) {
		var req struct {
			Closed bool `json:"closed"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
		s, err := svc.Gate.SetClosed(ctx.Request().Context(), middleware.Actor(ctx), req.Closed)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, iris.Map{"sanitary_day": s.Bool(), "version": s.Version})
	})

	admin.Post("/notices", func(ctx iris.Context) {
		var req service.NoticeRequest
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
		if err := svc.Notices.Post(ctx.Request().Context(), middleware.Actor(ctx), req); err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, nil)
	})

	// ---------- 菜品与账号 ----------
	admin.Get("/products", func(ctx iris.Context) {
		list, err := svc.Catalog.List(ctx.Request().Context(), "")
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, list)
	})

	admin.Post("/products", func(ctx iris.Context) {
		var req service.CreateProductRequest
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
		p, err := svc.Catalog.Create(ctx.Request().Context(), middleware.Actor(ctx), req)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, p)
	})

	admin.Put("/products/{id:int64}", func(ctx iris.Context) {
		var req service.CreateProductRequest
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
		p, err := svc.Catalog.Update(ctx.Request().Context(), middleware.Actor(ctx), idParam(ctx), req)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, p)
	})

	admin.Get("/users", func(ctx iris.Context) {
		list, err := svc.Users.List(ctx.Request().Context(), middleware.Actor(ctx))
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, list)
	})

	admin.Post("/users", func(ctx iris.Context) {
		var req struct {
			service.RegisterRequest
			Role user.Role `json:"role"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
		prof, err := svc.Users.CreateUser(ctx.Request().Context(), middleware.Actor(ctx), req.RegisterRequest, req.Role)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, prof)
	})
}

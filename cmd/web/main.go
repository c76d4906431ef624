package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/canteen/internal/auth"
	"github.com/example/canteen/internal/config"
	"github.com/example/canteen/internal/infra/mq"
	"github.com/example/canteen/internal/infra/redis"
	"github.com/example/canteen/internal/logger"
	"github.com/example/canteen/internal/middleware"
	"github.com/example/canteen/internal/notify"
	"github.com/example/canteen/internal/repository/mysql"
	"github.com/example/canteen/internal/server"
)

func main() {
	configDir := flag.String("config", ".", "config.yaml 所在目录")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	l, err := logger.Init(&cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer l.Sync()

	db := mysql.Init(&cfg.MySQL)
	verifier := auth.NewTokenCache(redis.Init(&cfg.Redis), &cfg.JWT, cfg.Auth.TokenCacheTTL)

	ws := notify.NewWSServer(verifier)
	wsPub := notify.NewWSPublisher(ws)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	// 有 MQ 时事件统一走交换机，由每个节点的 Relay 推给本机连接（包括本节点）；
	// 没有 MQ 时单机直接推送
	var hub *notify.Hub
	if cfg.RabbitMQ.URL != "" {
		conn := mq.Init(&cfg.RabbitMQ, "web")
		defer mq.Close()
		mqPub, err := notify.NewMQPublisher(conn, cfg.RabbitMQ.Exchange)
		if err != nil {
			zap.L().Fatal("init mq publisher", zap.Error(err))
		}
		hub = notify.NewHub(cfg.Canteen.FanoutBuffer, mqPub)
		relay := notify.NewRelay(conn, cfg.RabbitMQ.Exchange, wsPub)
		g.Go(func() error { return relay.Run(gctx) })
	} else {
		hub = notify.NewHub(cfg.Canteen.FanoutBuffer, wsPub)
	}
	g.Go(func() error { return hub.Run(gctx) })

	svc, err := server.NewServices(db, cfg, hub, hub)
	if err != nil {
		zap.L().Fatal("init services", zap.Error(err))
	}
	limiter := middleware.NewUserRateLimiter(cfg.Canteen.OrderRatePerSecond, cfg.Canteen.OrderBurst, 10*time.Minute)
	g.Go(func() error { return limiter.Run(gctx) })

	app := iris.New()
	app.Logger().SetLevel("warn")
	app.UseRouter(middleware.RequestLogger())
	server.RegisterRoutes(app, svc, verifier, limiter, ws)

	addr := cfg.Server.Addr()
	g.Go(func() error {
		zap.L().Info("web server listening", zap.String("addr", addr))
		return app.Listen(addr, iris.WithoutServerError(iris.ErrServerClosed), iris.WithoutStartupLog)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return app.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("web server stopped", zap.Error(err))
	}
}

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

	// 后台没有 websocket 连接，事件只写入交换机，由 web 节点转发
	var publishers []notify.Publisher
	if cfg.RabbitMQ.URL != "" {
		conn := mq.Init(&cfg.RabbitMQ, "admin")
		defer mq.Close()
		mqPub, err := notify.NewMQPublisher(conn, cfg.RabbitMQ.Exchange)
		if err != nil {
			zap.L().Fatal("init mq publisher", zap.Error(err))
		}
		publishers = append(publishers, mqPub)
	} else {
		zap.L().Warn("rabbitmq not configured, admin events will not reach web clients")
	}
	hub := notify.NewHub(cfg.Canteen.FanoutBuffer, publishers...)

	svc, err := server.NewServices(db, cfg, hub, hub)
	if err != nil {
		zap.L().Fatal("init services", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })

	app := iris.New()
	app.Logger().SetLevel("warn")
	app.UseRouter(middleware.RequestLogger())
	server.RegisterAdminRoutes(app, svc, verifier)

	addr := cfg.AdminServer.Addr()
	g.Go(func() error {
		zap.L().Info("admin server listening", zap.String("addr", addr))
		return app.Listen(addr, iris.WithoutServerError(iris.ErrServerClosed), iris.WithoutStartupLog)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return app.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("admin server stopped", zap.Error(err))
	}
}

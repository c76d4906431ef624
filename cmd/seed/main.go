package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/example/canteen/internal/auth"
	"github.com/example/canteen/internal/config"
	"github.com/example/canteen/internal/datamodels/product"
	"github.com/example/canteen/internal/datamodels/user"
	"github.com/example/canteen/internal/repository/mysql"
)

// 初始化账号与演示菜单，已存在的记录跳过
func main() {
	configDir := flag.String("config", ".", "config.yaml 所在目录")
	password := flag.String("password", "canteen123", "初始账号密码")
	withMenu := flag.Bool("menu", true, "是否写入演示菜单")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	db := mysql.Init(&cfg.MySQL)
	userRepo := mysql.NewUserRepository(db)
	productRepo := mysql.NewProductRepository(db)
	ctx := context.Background()

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("密码处理失败: %v", err)
	}
	accounts := []struct {
		login string
		name  string
		role  user.Role
	}{
		{"admin", "管理员", user.RoleAdmin},
		{"cook", "厨师", user.RoleCook},
	}
	for _, a := range accounts {
		if _, err := userRepo.GetByLogin(ctx, a.login); err == nil {
			fmt.Printf("ℹ️  账号 %s 已存在\n", a.login)
			continue
		} else if !mysql.IsNotFound(err) {
			log.Fatalf("查询账号失败: %v", err)
		}
		u := &user.User{Login: a.login, Name: a.name, PasswordHash: hash, Role: a.role, Balance: decimal.Zero}
		if err := userRepo.Create(ctx, u); err != nil {
			log.Fatalf("创建账号 %s 失败: %v", a.login, err)
		}
		fmt.Printf("✅ 账号 %s (%s) 创建成功\n", a.login, a.role)
	}

	if !*withMenu {
		return
	}
	existing, err := productRepo.ListAll(ctx)
	if err != nil {
		log.Fatalf("获取菜品列表失败: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("ℹ️  已有 %d 个菜品，跳过演示菜单\n", len(existing))
		return
	}
	menu := []product.Product{
		{Name: "小米粥", Category: "粥", Menu: "breakfast", Price: decimal.NewFromInt(3), Calories: 120, Stock: 50},
		{Name: "肉包", Category: "面点", Menu: "breakfast", Price: decimal.RequireFromString("2.5"), Calories: 250, Stock: 80},
		{Name: "番茄炒蛋", Category: "热菜", Menu: "lunch", Price: decimal.NewFromInt(12), Calories: 320, Stock: 40},
		{Name: "红烧肉", Category: "热菜", Menu: "lunch", Price: decimal.NewFromInt(110), Calories: 650, Stock: 20},
		{Name: "紫菜蛋花汤", Category: "汤", Menu: "dinner", Price: decimal.NewFromInt(4), Calories: 60, Stock: 60},
	}
	for i := range menu {
		if err := productRepo.Create(ctx, &menu[i]); err != nil {
			log.Fatalf("创建菜品 %s 失败: %v", menu[i].Name, err)
		}
		fmt.Printf("✅ 菜品 %d %s 创建成功\n", menu[i].ID, menu[i].Name)
	}
}

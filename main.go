package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"CLIS-backend/internal/dashboard"
	"CLIS-backend/internal/inventory/borrows"
	"CLIS-backend/internal/inventory/categories"
	"CLIS-backend/internal/inventory/items"
	"CLIS-backend/internal/platform/auth"
	"CLIS-backend/internal/platform/db"
	"CLIS-backend/internal/users"
)

func main() {
	// 設定読み込み
	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	mode := cfg.Mode
	log.Printf("[INFO] mode:%s\n", mode)
	if mode != "dev" && mode != "release" {
		log.Fatal("config: mode must be dev or release")
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		panic(err)
	}
	defer conn.Close()
	log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

	// redis はダッシュボードのキャッシュ専用。未設定なら使わない。
	var cache *redis.Client
	if cfg.Redis.Addr != "" {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer cache.Close()
		log.Printf("[INFO] dashboard cache: redis at %s", cfg.Redis.Addr)
	}

	if err := os.MkdirAll(cfg.Server.UploadsDir, 0o755); err != nil {
		log.Fatalf("uploads dir: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	// アップロード画像の配信
	r.Static("/uploads", cfg.Server.UploadsDir)

	authSvc := auth.NewService(conn, cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryMinutes)*time.Minute)
	borrowSvc := borrows.NewService(conn)
	itemSvc := items.NewService(conn)
	categorySvc := categories.NewService(conn)
	userSvc := users.NewService(conn, borrowSvc)
	dashboardSvc := dashboard.NewService(conn, cache, time.Duration(cfg.Redis.TTLSeconds)*time.Second)

	// 初期アカウント（users テーブルが空のときだけ）
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := userSvc.EnsureDefaults(ctx); err != nil {
			cancel()
			log.Fatalf("seed users: %v", err)
		}
		cancel()
	}

	// /api
	api := r.Group("/api")
	auth.RegisterRoutes(api.Group("/auth"), authSvc)

	authed := api.Group("")
	authed.Use(auth.RequireAuth(authSvc.Secret()))
	auth.RegisterProtectedRoutes(authed.Group("/auth"), authSvc)

	admin := api.Group("")
	admin.Use(auth.RequireAuth(authSvc.Secret()), auth.RequireRole(auth.RoleAdmin))

	borrows.RegisterRoutes(authed, admin, borrowSvc)
	items.RegisterRoutes(authed, admin, itemSvc, cfg.Server.UploadsDir)
	categories.RegisterRoutes(authed, admin, categorySvc)
	users.RegisterRoutes(authed, admin, userSvc, cfg.Server.UploadsDir)
	dashboard.RegisterRoutes(authed, dashboardSvc)

	// 延滞判定の定期実行
	sweeper := borrows.NewSweeper(borrowSvc, time.Duration(cfg.Sweeper.IntervalMinutes)*time.Minute)
	sweeper.Start()

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	go func() {
		log.Printf("[INFO] listening on http://0.0.0.0%s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("[INFO] shutting down...")

	sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}

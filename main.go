package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"paper-trader/config"
	"paper-trader/database"
	"paper-trader/handlers"
	"paper-trader/middleware"
	"paper-trader/portfolio"
	"paper-trader/pricing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Warnf("no .env file loaded: %v", err)
	}

	logrus.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		logrus.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logrus.Fatalf("failed to get database instance: %v", err)
	}
	defer sqlDB.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logrus.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	quotes := pricing.NewAlphaVantage(cfg.Pricing.APIKey, rdb, cfg.Pricing.CacheTTL)
	svc := portfolio.NewService(db, quotes)
	h := handlers.New(db, rdb, svc, quotes, []byte(cfg.JWTSecret))

	router := gin.Default()

	// Public routes
	router.POST("/register", h.Register)
	router.POST("/login", h.Login)
	router.POST("/logout", h.Logout)

	// Protected routes
	auth := router.Group("/")
	auth.Use(middleware.JWTAuth([]byte(cfg.JWTSecret)))
	{
		auth.GET("/portfolio", h.GetPortfolio)
		auth.POST("/buy", h.Buy)
		auth.POST("/sell", h.Sell)
		auth.GET("/history", h.History)
		auth.GET("/quote/:symbol", h.Quote)
	}

	logrus.Infof("listening on %s", cfg.HTTPAddr)
	if err := router.Run(cfg.HTTPAddr); err != nil {
		logrus.Fatalf("http server error: %v", err)
	}
}

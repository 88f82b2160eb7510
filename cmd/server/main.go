package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/coursepulse/internal/config"
	"github.com/coursepulse/internal/db"
	"github.com/coursepulse/internal/handler"
	"github.com/coursepulse/internal/logger"
	"github.com/coursepulse/internal/router"
	"github.com/coursepulse/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	for _, warning := range cfg.Warnings {
		log.Warn("config fallback", "detail", warning)
	}

	// 初始化数据库
	if err := db.Init(cfg.DatabaseDriver, cfg.DatabaseTarget()); err != nil {
		log.Fatal("failed to initialize database", "driver", cfg.DatabaseDriver, "error", err)
	}

	if user, err := db.EnsureUser(db.DB, cfg.SuperRootUserName, cfg.SuperRootPassword); err != nil {
		log.Fatal("failed to ensure bootstrap user", "error", err)
	} else if user != nil {
		log.Info("bootstrap user ready", "username", user.Username)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var streakCache service.StreakCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis unavailable, streak cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			streakCache = service.NewRedisStreakCache(client, cfg.StreakCacheTTL)
			log.Info("streak cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.StreakCacheTTL.String())
		}
		cancel()
	}

	gin.SetMode(cfg.GinMode)

	api := handler.NewAPI(db.DB, handler.Options{
		Location:      cfg.Timezone,
		CaloriesPerKg: cfg.CaloriesPerKg,
		StreakCache:   streakCache,
		Logger:        log,
		InternalToken: cfg.InternalAPIToken,
	})
	r := router.SetupRouter(api, router.Options{
		SessionSecret: cfg.SessionSecret,
		AllowOrigins:  cfg.AllowOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", cfg.ListenAddr, "timezone", cfg.Timezone.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to run server", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

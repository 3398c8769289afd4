package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guess_game/internal/bot"
	"guess_game/internal/cache"
	"guess_game/internal/config"
	"guess_game/internal/db"
	"guess_game/internal/http/handlers"
	"guess_game/internal/http/middleware"
	"guess_game/internal/logger"
	"guess_game/internal/migrate"
	"guess_game/internal/repository"
	"guess_game/internal/service"
	"guess_game/internal/ws"

	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Version is set at build time.
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid config", "error", err)
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrations {
		if err := migrate.Up(cfg.DatabaseURL, log); err != nil {
			logger.Fatal("migrations failed", "error", err)
		}
	}

	dbPool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database unavailable", "error", err)
	}
	defer dbPool.Close()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal("redis unavailable", "addr", cfg.Redis.Addr, "error", err)
		}
	} else {
		log.Warn("REDIS_ADDR not set - snapshot cache disabled, rate limits are per process")
	}

	clock := quartz.NewReal()
	games := repository.NewGameRepository(dbPool)
	balances := service.NewBalanceService(dbPool)
	audit := service.NewAuditService(dbPool)
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.JWTTTL, cfg.AdminAddresses, clock)
	hub := ws.NewHub()

	gameSvc := service.NewGameService(games, clock)
	gameSvc.SetEvents(hub)
	gameSvc.SetAuditor(audit)

	var limiter middleware.Limiter = middleware.NewMemoryLimiter(cfg.RateLimitPerMinute)
	if rdb != nil {
		gameSvc.SetCache(cache.NewSnapshotStore(rdb, cfg.SnapshotTTL))
		limiter = middleware.NewRedisLimiter(rdb, cfg.RateLimitPerMinute)
	}
	if cfg.RateLimitPerMinute == 0 {
		limiter = nil
	}

	if _, err := gameSvc.Restore(ctx); err != nil {
		logger.Fatal("failed to restore open games", "error", err)
	}
	if v, err := gameSvc.Bootstrap(ctx, cfg.Bootstrap); err != nil {
		logger.Fatal("bootstrap game failed", "error", err)
	} else if v != nil {
		log.Info("bootstrap game ready", "game_id", v.ID, "host", v.Host.Hex())
	}

	// start the bot before serving so the settlement callback is in place
	var adminBot *bot.AdminBot
	if cfg.AdminBotEnabled {
		adminBot, err = bot.NewAdminBot(cfg.BotToken, games, gameSvc, balances, cfg.AdminTelegramIDs)
		if err != nil {
			log.Error("failed to start admin bot", "error", err)
		} else {
			adminBot.SetAuditor(audit)
			gameSvc.SetSettlementNotifyCallback(adminBot.NotifySettlement)
			go adminBot.Start()
			log.Info("admin bot started", "admin_ids", cfg.AdminTelegramIDs)
		}
	}

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	h := &handlers.Handler{
		Games:         gameSvc,
		Balances:      balances,
		Auth:          authSvc,
		Audit:         audit,
		Hub:           hub,
		Limiter:       limiter,
		AllowedOrigin: cfg.AllowedOrigin,
		Version:       Version,
	}
	handlers.RegisterRoutes(r, h)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server started", "port", cfg.AppPort, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")

		if adminBot != nil {
			adminBot.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server stopped with error", "error", err)
	}
	log.Info("server exited")
}

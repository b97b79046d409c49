package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cashback_platform/internal/bot"
	"cashback_platform/internal/config"
	"cashback_platform/internal/db"
	"cashback_platform/internal/events"
	httpServer "cashback_platform/internal/http"
	"cashback_platform/internal/http/handlers"
	"cashback_platform/internal/http/middleware"
	"cashback_platform/internal/logger"
	"cashback_platform/internal/repository"
	"cashback_platform/internal/service"
	"cashback_platform/internal/store"
	"cashback_platform/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.SetJWTSecret(cfg.JWTSecret)

	dbPool := db.Connect(cfg.DatabaseURL)
	defer dbPool.Close()
	st := repository.NewStore(dbPool)

	var (
		redisClient *redis.Client
		rateCache   store.RateCache
		redisPinger handlers.Pinger
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		middleware.InitRedisRateLimiter(redisClient)
		rateCache = repository.NewRedisRateCache(redisClient, cfg.RateCacheTTL)
		redisPinger = handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	} else {
		logger.Warn("REDIS_ADDR not set, using in-memory rate limiting and no rate cache")
	}

	hub := ws.NewHub()
	notifier := service.NewMultiNotifier(hub, service.LogNotifier{})

	audit := service.NewAuditService(st)
	rates := service.NewRateService(st, st, rateCache, cfg.DefaultRates, audit)
	ledger := service.NewLedgerService(st, st, audit)
	settlement := service.NewSettlementService(st, st, st, st, rates, ledger, notifier, audit)
	transfers := service.NewTransferService(st, st, st, ledger, notifier, audit)
	withdrawals := service.NewWithdrawalService(st, st, st, rates, ledger, notifier, audit)
	referrals := service.NewReferralService(st, st, st, audit)

	var adminBot *bot.AdminBot
	if cfg.AdminBotEnabled && cfg.BotToken != "" {
		b, err := bot.NewAdminBot(cfg.BotToken, bot.NewCommands(withdrawals, transfers, rates), cfg.AdminTelegramIDs)
		if err != nil {
			logger.Error("failed to start admin bot", "error", err)
		} else {
			adminBot = b
			notifier.Add(adminBot)
			go adminBot.Start()
		}
	}

	publisher, closePublisher := buildPublisher(cfg, redisClient)
	defer closePublisher()
	relay := events.NewRelay(st, publisher, cfg.OutboxPoll)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox relay stopped", "error", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.CORS(cfg.CORSOrigins))

	h := &handlers.Handler{
		Auth:        service.NewAuthService(st, cfg.BotToken),
		Ledger:      ledger,
		Settlement:  settlement,
		Transfers:   transfers,
		Withdrawals: withdrawals,
		Referrals:   referrals,
		Rates:       rates,
		Audit:       audit,
		Users:       st,
		Merchants:   st,
	}
	health := handlers.NewHealthHandler(st, redisPinger, version)
	httpServer.RegisterRoutes(r, h, health, httpServer.RouteConfig{
		Hub:            hub,
		AllowedOrigins: cfg.CORSOrigins,
		RateLimit:      cfg.APIRateLimit,
		RateWindow:     cfg.APIRateWindow,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if adminBot != nil {
		adminBot.Stop()
	}
	stop()
	<-relayDone

	logger.Info("server exited")
}

// buildPublisher prefers Kafka, then Redis pub/sub, then the log. The
// returned func closes whatever needs closing.
func buildPublisher(cfg *config.Config, redisClient *redis.Client) (events.Publisher, func()) {
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err == nil {
			logger.Info("publishing outbox events to kafka", "topic", cfg.KafkaTopic)
			var pub events.Publisher = kp
			if redisClient != nil {
				pub = events.Fanout{kp, events.NewRedisPublisher(redisClient, cfg.EventChannel)}
			}
			return pub, func() {
				if err := kp.Close(); err != nil {
					logger.Warn("kafka writer close failed", "error", err)
				}
			}
		}
		logger.Error("kafka publisher unavailable", "error", err)
	}
	if redisClient != nil {
		logger.Info("publishing outbox events to redis", "channel", cfg.EventChannel)
		return events.NewRedisPublisher(redisClient, cfg.EventChannel), func() {}
	}
	return events.LogPublisher{}, func() {}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fasol-market/api/internal/bot"
	"github.com/fasol-market/api/internal/config"
	"github.com/fasol-market/api/internal/database"
	"github.com/fasol-market/api/internal/enum"
	"github.com/fasol-market/api/internal/events"
	"github.com/fasol-market/api/internal/gateway"
	"github.com/fasol-market/api/internal/inventory"
	"github.com/fasol-market/api/internal/lock"
	"github.com/fasol-market/api/internal/notify"
	"github.com/fasol-market/api/internal/router"
	"github.com/fasol-market/api/internal/service"
	"github.com/fasol-market/api/internal/ws"
	"github.com/go-redis/redis/v8"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to create connection pool")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("unable to ping database")
	}
	log.Info().Msg("connected to database")

	queries := database.New(pool)
	loc := cfg.Location()

	// Capture lock
	var locker service.Locker
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("unable to ping redis")
		}
		locker = lock.NewRedis(rdb)
		log.Info().Str("addr", cfg.RedisAddr).Msg("capture lock backed by redis")
	} else {
		locker = lock.NewLocal()
		log.Warn().Msg("REDIS_ADDR not set, capture lock is in-process only")
	}

	// Fan-out: websocket hub, then optional Kafka and Telegram sinks
	hub := ws.NewHub()
	go hub.Run(ctx)

	notifiers := notify.Multi{notify.NewHub(hub)}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewPublisher(events.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Error().Err(err).Msg("close kafka publisher")
			}
		}()
		notifiers = append(notifiers, publisher)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing order events")
	}

	var botAPI *tgbotapi.BotAPI
	if cfg.TelegramBotToken != "" {
		botAPI, err = tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to start telegram bot")
		}
		notifiers = append(notifiers, notify.NewTelegram(botAPI, queries))
		log.Info().Str("bot", botAPI.Self.UserName).Msg("telegram bot enabled")
	}

	// Payment flow
	gw := gateway.NewClient(cfg.YooKassaBaseURL, cfg.YooKassaShopID, cfg.YooKassaSecretKey, cfg.GatewayTimeout)

	holds := service.NewHoldService(queries, gw, notifiers, service.HoldConfig{
		Policy: service.DeliveryPolicy{
			LowThreshold:  cfg.DeliveryLowThreshold,
			HighThreshold: cfg.DeliveryHighThreshold,
			FlatFee:       cfg.DeliveryFee,
		},
		ReturnURL: cfg.ReturnURL,
		Location:  loc,
	})

	settlement := service.NewCaptureService(queries, pool,
		func(db database.DBTX) service.SettlementStore { return database.New(db) },
		gw, notifiers, locker)
	settlement.SetLocation(loc)

	// Catalog
	syncer := inventory.NewSyncer(
		inventory.NewClient(cfg.KonturBaseURL, cfg.KonturAPIKey, cfg.GatewayTimeout),
		queries, pool,
		func(db database.DBTX) inventory.CatalogStore { return database.New(db) },
		cfg.KonturShopID,
	)
	syncer.OnSynced(func(res inventory.Result) {
		payload, err := json.Marshal(res)
		if err != nil {
			log.Error().Err(err).Msg("marshal sync result")
			return
		}
		hub.BroadcastToTopic(ws.TopicCatalog, ws.Event{Type: enum.EventCatalogSynced, Payload: payload})
	})
	if cfg.KonturAPIKey != "" {
		go syncer.Run(ctx, cfg.CatalogSyncInterval)
	} else {
		log.Warn().Msg("KONTUR_API_KEY not set, catalog sync disabled")
	}

	var botHandler *bot.Handler
	if botAPI != nil {
		botHandler = bot.NewHandler(botAPI, queries, settlement, syncer, cfg.TelegramWebhookSecret)
	}

	r := router.New(router.Deps{
		Config:     cfg,
		Queries:    queries,
		Hub:        hub,
		Holds:      holds,
		Settlement: settlement,
		Catalog:    syncer,
		Bot:        botHandler,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

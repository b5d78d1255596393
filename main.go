package main

import (
	"HealthBot/assistant"
	"HealthBot/config"
	"HealthBot/handler"
	"HealthBot/logging"
	"HealthBot/metrics"
	"HealthBot/repo"
	"HealthBot/signup"
	"HealthBot/validation"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	logger := logging.New(cfg.Logging)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := initProfileStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("Error initializing profile store")
	}
	defer closeStore()

	sessions, closeSessions, err := initSessionStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing session store")
	}
	defer closeSessions()

	schemas, err := validation.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Error building validation schemas")
	}
	gateway, err := signup.NewGateway(schemas, store, logger.With().Str("component", "gateway").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating submission gateway")
	}
	collector := metrics.New(cfg.Flow.Variant)

	deps := handler.Deps{
		Variant:       cfg.Flow.Variant,
		Schemas:       schemas,
		Gateway:       gateway,
		Sessions:      sessions,
		Hooks:         collector,
		Logger:        logger.With().Str("component", "bot").Logger(),
		ControllerTTL: cfg.Flow.ControllerTTL,
		SubmitTimeout: cfg.Flow.SubmitTimeout,
		TipsTimeout:   cfg.Assistant.Timeout,
	}
	if finder, ok := store.(handler.ProfileFinder); ok {
		deps.Profiles = finder
	}
	if cfg.Assistant.APIKey != "" {
		deps.Advisor = assistant.New(cfg.Assistant.APIKey, cfg.Assistant.Model, cfg.Assistant.MaxTokens)
	}

	h, err := handler.NewSignupBotHandler(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating signup handler")
	}
	defer h.Close()

	opts := []bot.Option{
		bot.WithDefaultHandler(h.Handler),
	}
	if cfg.Telegram.Debug {
		opts = append(opts, bot.WithDebug())
	}

	b, err := bot.New(cfg.Telegram.Token, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating bot")
	}
	h.Attach(b)
	setCommands(ctx, b)

	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           collector.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("variant", string(cfg.Flow.Variant)).Msg("Bot started")
		b.Start(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Metrics server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Stopped with error")
	}
	log.Info().Msg("Bot stopped")
}

func setCommands(ctx context.Context, b *bot.Bot) {
	_, err := b.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: []models.BotCommand{
			{Command: "start", Description: "Start or resume your signup"},
			{Command: "signup", Description: "Start the signup again"},
			{Command: "cancel", Description: "Stop the current signup"},
			{Command: "help", Description: "Show help"},
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Error setting bot commands")
	}
}

// initProfileStore connects the configured backend.
func initProfileStore(ctx context.Context, cfg config.StoreConfig) (signup.ProfileStore, func(), error) {
	switch cfg.Backend {
	case config.StoreFirebase:
		fc, err := repo.NewFirebaseConnector(ctx, cfg.FirebaseCredentials, cfg.FirebaseDatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating Firebase connector: %w", err)
		}
		return fc, func() {}, nil

	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		store := repo.NewPostgresProfileStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	case config.StoreSheets:
		sc, err := repo.NewSheetsConnector(ctx, cfg.SheetsCredentials, cfg.SpreadsheetID)
		if err != nil {
			return nil, nil, err
		}
		if cfg.SheetsSetupHeaders {
			if err := sc.SetupHeaders(ctx); err != nil {
				return nil, nil, err
			}
		}
		return sc, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// initSessionStore uses Redis when an address is configured.
func initSessionStore(ctx context.Context, cfg config.Config) (handler.SessionStore, func(), error) {
	if cfg.Session.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR not set, unfinished signups are kept in memory")
		store := repo.NewMemorySessionStore(cfg.Flow.SessionTTL)
		return store, store.Close, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Session.RedisAddr,
		Password: cfg.Session.RedisPassword,
		DB:       cfg.Session.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return repo.NewRedisSessionStore(client, cfg.Flow.SessionTTL), func() { _ = client.Close() }, nil
}

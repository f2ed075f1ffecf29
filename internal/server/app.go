// Package server initializes and runs the onboarding application server:
// it selects a record store backend, wires the rate limiter, magic-link,
// and chat services, and serves the HTTP API with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkorchagin/onboardchat/internal/logging"
	"github.com/mkorchagin/onboardchat/internal/server/chat"
	"github.com/mkorchagin/onboardchat/internal/server/config"
	"github.com/mkorchagin/onboardchat/internal/server/httpapi"
	"github.com/mkorchagin/onboardchat/internal/server/kvstore"
	"github.com/mkorchagin/onboardchat/internal/server/magiclink"
	"github.com/mkorchagin/onboardchat/internal/server/mail"
	"github.com/mkorchagin/onboardchat/internal/server/ratelimit"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	httpServer *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	store, err := newStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	limiter := ratelimit.NewService(store, logger, limiterConfigs(cfg))
	links := magiclink.NewService(store, logger, cfg.MagicLinkTTL)
	chatService := chat.NewService(limiter, chat.NewScriptedAssistant(), logger)
	mailer := mail.NewLogMailer(logger)

	httpServer := httpapi.NewServer(
		cfg.EndpointAddrHTTP,
		logger,
		limiter,
		links,
		chatService,
		mailer,
		cfg.SecretKey,
		cfg.AccessTokenValidityDuration,
		cfg.BaseURL,
		cfg.AdminToken,
	)

	return &App{config: cfg, logger: logger, httpServer: httpServer}, nil
}

// newStore picks the record store backend: Redis when configured, then
// Postgres, falling back to the in-memory store for development.
func newStore(cfg *config.Config, logger logging.Logger) (kvstore.Store, error) {
	ctx := context.Background()

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping error: %w", err)
		}
		return kvstore.NewRedisStore(client), nil
	}

	if cfg.DatabaseDSN != "" {
		db, err := kvstore.OpenPostgres(cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		if err := kvstore.RunMigrations(ctx, db); err != nil {
			return nil, err
		}
		return kvstore.NewPostgresStore(db), nil
	}

	logger.Warn(ctx, "no DSN or redis address configured, using in-memory store; limits and tokens will not survive a restart")
	return kvstore.NewMemoryStore(), nil
}

func limiterConfigs(cfg *config.Config) map[ratelimit.Class]ratelimit.Config {
	return map[ratelimit.Class]ratelimit.Config{
		ratelimit.ClassMagicLink: {
			Window:        cfg.MagicLinkRateLimit.Window,
			MaxAttempts:   cfg.MagicLinkRateLimit.MaxAttempts,
			BlockDuration: cfg.MagicLinkRateLimit.BlockDuration,
			Message: func(minutes int) string {
				return fmt.Sprintf("Too many magic link requests. Please try again in %s.",
					ratelimit.FormatMinutes(minutes))
			},
		},
		ratelimit.ClassChat: {
			Window:        cfg.ChatRateLimit.Window,
			MaxAttempts:   cfg.ChatRateLimit.MaxAttempts,
			BlockDuration: cfg.ChatRateLimit.BlockDuration,
			Message: func(minutes int) string {
				return fmt.Sprintf("You're sending messages too quickly. Please wait %s.",
					ratelimit.FormatMinutes(minutes))
			},
		},
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
}

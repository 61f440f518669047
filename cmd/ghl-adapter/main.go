package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/leadbridge/ghl-adapter/internal/api"
	"github.com/leadbridge/ghl-adapter/internal/audit"
	"github.com/leadbridge/ghl-adapter/internal/auth"
	"github.com/leadbridge/ghl-adapter/internal/ghl"
	"github.com/leadbridge/ghl-adapter/internal/publisher"
	"github.com/leadbridge/ghl-adapter/internal/rate"
	internalsecrets "github.com/leadbridge/ghl-adapter/internal/secrets"
	"github.com/leadbridge/ghl-adapter/internal/store"
	"github.com/leadbridge/ghl-adapter/pkg/config"
	"github.com/leadbridge/ghl-adapter/pkg/logger"
	"github.com/leadbridge/ghl-adapter/pkg/secrets"
	"github.com/leadbridge/ghl-adapter/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	logg := logger.S()
	logg.Info("starting [ghl-adapter]...")

	// --- App credentials from AWS Secrets Manager (optional overlay) ---
	if cfg.SecretName != "" {
		awsProvider, err := secrets.NewAWSProvider(cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		credCache := secrets.NewCache[internalsecrets.AppCredentials](1 * time.Hour)
		resolver := internalsecrets.NewResolver(logger.L(), awsProvider, credCache, cfg.SecretName)

		creds, err := resolver.Resolve(ctx)
		if err != nil {
			logg.Fatalw("failed to resolve app credentials", "error", err, "secret", cfg.SecretName)
		}
		cfg.ClientID = creds.ClientID
		cfg.ClientSecret = creds.ClientSecret
		if creds.RedirectURI != "" {
			cfg.RedirectURI = creds.RedirectURI
		}
	}

	if err := cfg.Validate(); err != nil {
		logg.Fatalw("invalid configuration", "error", err)
	}
	logg.Info("client_id: ", utils.MaskToken(cfg.ClientID))

	// --- Session store ---
	stopCleaner := make(chan struct{})
	var st auth.SessionStore
	switch cfg.SessionStore {
	case "redis":
		rs, err := store.NewRedis(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPass, cfg.SessionTTL, logger.L())
		if err != nil {
			logg.Fatalw("failed to init redis session store", "error", err, "addr", cfg.RedisAddr)
		}
		defer func() {
			if err := rs.Close(); err != nil {
				logg.Warnw("redis.close_failed", "error", err)
			}
		}()
		st = rs
	default:
		mem := store.NewMemory(cfg.SessionTTL)
		go mem.StartCleaner(cfg.CleanupFreq, stopCleaner)
		st = mem
	}

	// --- Token manager ---
	mgr := auth.NewManager(logger.L(), auth.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		AuthBaseURL:  cfg.AuthBaseURL,
		TokenURL:     cfg.TokenURL,
	}, st)

	// --- Grant audit log (optional, Postgres) ---
	if cfg.DatabaseURL != "" {
		logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logg.Fatalw("failed to init postgres pool", "error", err)
		}
		defer pool.Close()
		mgr.SetGrantRecorder(audit.NewGrantWriter(pool, logger.L(), cfg.ServiceName))
	}

	// --- Auth lifecycle events (optional, NATS JetStream) ---
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		pub, err := publisher.New(nc, cfg.EventPrefix, cfg.ServiceName)
		if err != nil {
			logg.Fatalw("failed to init publisher", "error", err)
		}
		defer pub.Close()
		mgr.SetEventSink(pub)
	}

	// --- Upstream rate limiter ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.RateRPS,
		Burst:             cfg.RateBurst,
	})

	// --- Upstream client and composite service ---
	client := ghl.NewClient(logger.L(), cfg.APIBaseURL, rateMgr, cfg.UpstreamTimeout)
	svc := ghl.NewService(logger.L(), client)

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	handler := api.NewHandler(logger.L(), mgr, st, client, svc)
	api.RegisterRoutes(app, handler, st)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[ghl-adapter] running",
		"env", cfg.Env,
		"session_store", cfg.SessionStore,
		"upstream", cfg.APIBaseURL)

	<-ctx.Done()
	logg.Info("shutting down [ghl-adapter]...")

	close(stopCleaner)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	logger.Sync()
}

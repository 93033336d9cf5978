package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/concerttix/console/internal/api/http"
	"github.com/concerttix/console/internal/api/http/handlers"
	"github.com/concerttix/console/internal/apiclient"
	"github.com/concerttix/console/internal/config"
	"github.com/concerttix/console/internal/events"
	"github.com/concerttix/console/internal/observability"
	"github.com/concerttix/console/internal/service"
	"github.com/concerttix/console/internal/session"
	"github.com/concerttix/console/internal/tokenstore"
	"github.com/concerttix/console/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("console stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	backend, closeBackend, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	dispatcher := events.NewInMemoryDispatcher()
	feed := service.NewNotificationService(dispatcher, logger, cfg.Notify)
	worker.StartNotificationWorker(feed)

	opts := apiclient.OptionsFromConfig(cfg.API)
	opts.Logger = logger
	opts.Metrics = metrics
	client := apiclient.New(opts)

	sessions := session.NewManager(client, tokenstore.New(backend, logger), session.Options{
		Logger:     logger,
		Metrics:    metrics,
		Dispatcher: dispatcher,
	})
	client.SetTokenSource(sessions)
	client.OnUnauthorized(sessions.Invalidate)

	orders := service.NewOrderService(client, dispatcher, logger)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:        handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, sessions, client),
		Auth:          handlers.NewAuthHandler(sessions),
		Concerts:      handlers.NewConcertsHandler(client),
		Orders:        handlers.NewOrdersHandler(client, orders),
		Admin:         handlers.NewAdminHandler(client, orders),
		Notifications: handlers.NewNotificationsHandler(feed),
		Sessions:      sessions,
		Gatherer:      registry,
	})

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		snap := sessions.Initialize(gCtx)
		logger.Info("session ready",
			zap.String("state", snap.State.String()), zap.Bool("authenticated", snap.IsAuthenticated()))
		return nil
	})

	g.Go(func() error {
		logger.Info("console listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down console")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	return g.Wait()
}

func openBackend(cfg *config.Config, logger *zap.Logger) (tokenstore.Backend, func(), error) {
	switch cfg.TokenStore.Backend {
	case config.StoreRedis:
		b := tokenstore.NewRedisBackend(cfg.Redis, logger)
		return b, b.Close, nil
	case config.StoreMemory:
		logger.Warn("credential record kept in memory; it will not survive a restart")
		return tokenstore.NewMemoryBackend(), func() {}, nil
	default:
		b, err := tokenstore.NewFileBackend(cfg.TokenStore.Path)
		if err != nil {
			return nil, nil, err
		}
		return b, func() {}, nil
	}
}

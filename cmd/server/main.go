package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grocerlane/backend/internal/agent"
	"github.com/grocerlane/backend/internal/cart"
	"github.com/grocerlane/backend/internal/catalog"
	"github.com/grocerlane/backend/internal/config"
	"github.com/grocerlane/backend/internal/db"
	"github.com/grocerlane/backend/internal/events"
	"github.com/grocerlane/backend/internal/httpapi"
	"github.com/grocerlane/backend/internal/mirror"
	"github.com/grocerlane/backend/internal/notification"
	"github.com/grocerlane/backend/internal/order"
	"github.com/grocerlane/backend/internal/outbox"
	"github.com/grocerlane/backend/internal/sequence"
	"github.com/grocerlane/backend/internal/user"
)

func main() {
	cfg := config.Load()

	logger := log.New(os.Stdout, "[grocerlane] ", log.LstdFlags|log.Lmicroseconds)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- DB ---
	database := db.MustOpen(cfg.DatabaseDSN)
	defer database.Close()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			logger.Fatalf("db migrate: %v", err)
		}
	}

	// --- repositories ---
	userRepo := user.NewRepository(database)
	catalogRepo := catalog.NewRepository(database)
	cartRepo := cart.NewRepository(database)
	orderRepo := order.NewRepository(database)
	agentRepo := agent.NewRepository(database)
	notifRepo := notification.NewRepository(database)
	outboxRepo := outbox.NewRepository(database)
	seqRepo := sequence.NewRepository(database)
	marks := mirror.NewCheckpoints(database)

	// --- services ---
	userSvc := user.NewService(userRepo, logger)
	catalogSvc := catalog.NewService(database, catalogRepo, outboxRepo, logger)
	cartSvc := cart.NewService(cartRepo)
	orderSvc := order.NewService(database, orderRepo, cartRepo, notifRepo, outboxRepo, logger)
	agentSvc := agent.NewService(database, agentRepo, outboxRepo)

	if err := userSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Fatalf("ensure admin: %v", err)
	}

	// --- RabbitMQ ---
	// The publisher dials lazily and the mirror re-dials in its own loop, so
	// an unreachable broker never blocks HTTP startup; outbox rows queue up
	// until it comes back.
	publisher := events.NewPublisher(cfg.RabbitURL)
	defer publisher.Close()

	relay := outbox.NewRelay(outboxRepo, seqRepo, publisher, logger, cfg.OutboxInterval, cfg.OutboxBatchSize, cfg.OutboxMaxAttempts)
	go relay.Run(ctx)

	locMirror := mirror.NewAgentLocationMirror(cfg.RabbitURL, database, agentRepo, marks, logger)
	go locMirror.Run(ctx)

	// --- HTTP ---
	router := httpapi.NewRouter(httpapi.Deps{
		Auth:          httpapi.NewAuthHandler(userSvc, cartSvc, []byte(cfg.JWTSecret), cfg.SessionTTL),
		Catalog:       httpapi.NewCatalogHandler(catalogSvc),
		Cart:          httpapi.NewCartHandler(cartSvc, catalogSvc),
		Order:         httpapi.NewOrderHandler(orderSvc),
		Agent:         httpapi.NewAgentHandler(agentSvc),
		Notifications: httpapi.NewNotificationHandler(notifRepo),
		JWTSecret:     []byte(cfg.JWTSecret),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("shutdown signal: %s", sig)
	case err := <-errCh:
		logger.Printf("fatal error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	cancel()

	logger.Printf("shutdown complete")
}

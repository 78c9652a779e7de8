package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"webshop/internal/authz"
	"webshop/internal/cart"
	"webshop/internal/catalog"
	"webshop/internal/config"
	"webshop/internal/db"
	"webshop/internal/events"
	"webshop/internal/httpapi"
	"webshop/internal/inventory"
	"webshop/internal/order"
)

func main() {
	logger := log.New(os.Stdout, "[webshop] ", log.LstdFlags|log.Lshortfile)

	cfg := config.Load()

	if err := db.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Fatalf("migrations: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgxPool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pgxPool.Close()
	pool := db.Wrap(pgxPool)

	publisher, closeBroker := newPublisher(cfg.RabbitURL, pool, logger)
	defer closeBroker()

	ledger := inventory.NewLedger(pool)

	catalogRepo := catalog.NewPostgresRepository(pool)
	catalogSvc := catalog.NewService(catalogRepo, ledger)

	cartRepo := cart.NewPostgresRepository()
	cartSvc := cart.NewService(pool, cartRepo, catalogSvc)

	orderRepo := order.NewPostgresRepository()
	orderSvc := order.NewService(pool, orderRepo, ledger, cartRepo, catalogSvc, publisher, logger)

	authorizer := authz.GatewayRoles{}
	router := httpapi.NewRouter(
		httpapi.NewCartHandler(cartSvc),
		httpapi.NewOrderHandler(orderSvc, authorizer),
		httpapi.NewCatalogHandler(catalogSvc, authorizer),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
}

// newPublisher connects to RabbitMQ when a broker URL is configured and falls
// back to a no-op publisher otherwise, so the engine runs without a broker.
func newPublisher(url string, pool db.Pool, logger *log.Logger) (order.Publisher, func()) {
	if url == "" {
		logger.Println("no broker configured, order events disabled")
		return events.NopPublisher{}, func() {}
	}

	conn, err := events.Dial(url)
	if err != nil {
		logger.Printf("broker unreachable, order events disabled: %v", err)
		return events.NopPublisher{}, func() {}
	}

	pub, err := events.NewRabbitPublisher(conn, events.NewSequenceRepository(pool))
	if err != nil {
		logger.Printf("broker setup failed, order events disabled: %v", err)
		conn.Close()
		return events.NopPublisher{}, func() {}
	}
	logger.Println("publishing order events to broker")
	return pub, func() { conn.Close() }
}

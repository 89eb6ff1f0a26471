package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"shop-api/handlers"
	"shop-api/internal/auth"
	"shop-api/internal/carts"
	"shop-api/internal/checkout"
	"shop-api/internal/config"
	"shop-api/internal/consul"
	"shop-api/internal/gateway"
	"shop-api/internal/orders"
	"shop-api/internal/products"
	"shop-api/internal/reconcile"
	"shop-api/internal/stores/kafka"
	"shop-api/internal/stores/postgres"
	"shop-api/internal/users"
	"shop-api/pkg/logkey"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("service shutting down", slog.String(logkey.ERROR, err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	userConf, err := users.NewConf(db)
	if err != nil {
		return err
	}
	productConf, err := products.NewConf(db)
	if err != nil {
		return err
	}
	cartConf, err := carts.NewConf(db)
	if err != nil {
		return err
	}
	orderConf, err := orders.NewConf(db)
	if err != nil {
		return err
	}

	keys, err := auth.NewKeys(cfg.JWTSecret)
	if err != nil {
		return err
	}

	snap := gateway.NewSnap(cfg.MidtransServerKey, cfg.MidtransProduction)
	txm := postgres.NewTxManager(db)

	checkoutSvc := checkout.NewService(userConf, cartConf, productConf, orderConf, snap, txm)
	reconcileSvc := reconcile.NewService(orderConf, productConf, txm)

	var events handlers.EventProducer
	if len(cfg.KafkaBrokers) > 0 {
		kc, err := kafka.NewConf(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		defer kc.Close()
		events = kc
	} else {
		slog.Warn("kafka brokers not configured, order events disabled")
	}

	if cfg.ConsulAddr != "" {
		client, err := consul.NewClient()
		if err != nil {
			return err
		}
		if err := consul.RegisterService(client, cfg.ServiceName, cfg.ServicePort); err != nil {
			return err
		}
	}

	h := handlers.NewHandler(userConf, productConf, cartConf, orderConf,
		checkoutSvc, reconcileSvc, events, keys)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handlers.API(cfg.GinMode, h),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
			return err
		}
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ferry-reservation/internal/clock"
	"github.com/iliyamo/ferry-reservation/internal/config"
	"github.com/iliyamo/ferry-reservation/internal/credential"
	"github.com/iliyamo/ferry-reservation/internal/database"
	"github.com/iliyamo/ferry-reservation/internal/handler"
	"github.com/iliyamo/ferry-reservation/internal/middleware"
	"github.com/iliyamo/ferry-reservation/internal/queue"
	"github.com/iliyamo/ferry-reservation/internal/repository"
	"github.com/iliyamo/ferry-reservation/internal/router"
	"github.com/iliyamo/ferry-reservation/internal/service"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to read .env", "err", err)
	}
	if err := run(log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log = log.With("env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	priv, pub, err := credential.LoadKeys(cfg.TicketPrivateKeyPath, cfg.TicketPublicKeyPath)
	if err != nil {
		return err
	}
	clk := clock.NewSystem()
	creds, err := credential.NewService(priv, pub, clk)
	if err != nil {
		return err
	}
	if priv == nil {
		log.Warn("no ticket private key configured; bookings cannot issue tickets")
	}

	if cfg.TracingEnabled {
		if err := xray.Configure(xray.Config{ServiceVersion: "1.0.0"}); err != nil {
			log.Warn("failed to configure X-Ray", "err", err)
		}
	}

	holds := repository.NewHoldRepo(db)
	sailings := repository.NewSailingRepo(db)
	tickets := repository.NewTicketRepo(db)
	ledger := service.NewCapacityLedger(db, holds, sailings, clk, log)

	var publisher service.EventPublisher = service.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		publisher = queue.NewPublisher(cfg.RabbitMQURL, log)
	}

	bookings := service.NewBookingService(service.BookingDeps{
		DB:        db,
		Ledger:    ledger,
		Sailings:  sailings,
		Bookings:  repository.NewBookingRepo(db),
		Tickets:   tickets,
		Events:    repository.NewPaymentEventRepo(db),
		Issuer:    creds,
		Publisher: publisher,
		Clock:     clk,
		Log:       log,
	}, service.BookingOptions{
		HoldTTL:         cfg.HoldTTL,
		TicketTTL:       cfg.TicketTTL,
		TicketGrace:     cfg.TicketGrace,
		ReferencePrefix: cfg.BookingRefPrefix,
		RequirePayment:  cfg.RequirePayment,
	})
	schedule := service.NewScheduleService(sailings, clk)
	gate := service.NewGate(creds, tickets, clk, log)

	if cfg.HoldSweepInterval > 0 {
		go ledger.RunSweeper(ctx, cfg.HoldSweepInterval)
	}
	if cfg.RabbitMQURL != "" {
		manifest := queue.NewManifestWriter(cfg.ManifestDir, log)
		go queue.NewConsumer(cfg.RabbitMQURL, queue.BookingConfirmedQueue, manifest.Handle, log).Run(ctx)
		go queue.NewConsumer(cfg.RabbitMQURL, queue.PaymentEventsQueue, queue.PaymentEventHandler(bookings, log), log).Run(ctx)
	}

	var rdb *redis.Client
	if client, err := config.NewRedisClient(config.LoadRedisConfig()); err != nil {
		log.Warn("redis unavailable; cache and rate limit disabled", "err", err)
	} else {
		rdb = client
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())
	e.Use(middleware.Tracing(cfg.TracingEnabled, cfg.ServiceName))

	router.RegisterRoutes(e)
	router.RegisterAPI(e, router.Handlers{
		Sailings: handler.NewSailingHandler(schedule, log),
		Bookings: handler.NewBookingHandler(bookings, log),
		Scan:     handler.NewScanHandler(gate, log),
		Payments: handler.NewPaymentHandler(bookings, log),
	}, router.Options{
		Redis:     rdb,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
		Log:       log,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/joho/godotenv"

	"github.com/iliyamo/ferry-reservation/internal/batch"
	"github.com/iliyamo/ferry-reservation/internal/clock"
	appconfig "github.com/iliyamo/ferry-reservation/internal/config"
	"github.com/iliyamo/ferry-reservation/internal/database"
	"github.com/iliyamo/ferry-reservation/internal/repository"
	"github.com/iliyamo/ferry-reservation/internal/service"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "maximum duration of the sweep")
	taskToken := flag.String("task-token", os.Getenv("TASK_TOKEN"), "Step Functions task token to complete")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to read .env", "err", err)
	}
	if err := run(log, *timeout, *taskToken); err != nil {
		log.Error("sweep failed", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, timeout time.Duration, taskToken string) error {
	cfg, err := appconfig.LoadBatch()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if cfg.TracingEnabled {
		if err := xray.Configure(xray.Config{ServiceVersion: "1.0.0"}); err != nil {
			log.Warn("failed to configure X-Ray", "err", err)
		}
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, cfg.ServiceName)
		defer seg.Close(nil)
		if err := seg.AddMetadata("timeout", timeout.String()); err != nil {
			log.Warn("add trace metadata", "err", err)
		}
	}

	var notifier batch.TaskNotifier = batch.NopNotifier{}
	if taskToken != "" {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return err
		}
		n, err := batch.NewSFNNotifier(sfn.NewFromConfig(awsCfg), taskToken)
		if err != nil {
			return err
		}
		notifier = n
	} else {
		log.Info("no task token; Step Functions notification skipped")
	}

	db, err := database.Open(cfg.Database())
	if err != nil {
		return err
	}
	defer db.Close()

	clk := clock.NewSystem()
	ledger := service.NewCapacityLedger(db, repository.NewHoldRepo(db), repository.NewSailingRepo(db), clk, log)
	_, err = batch.NewSweepBatch(ledger, notifier, clk, log).Run(ctx)
	return err
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/furniq/furniq-backend/internal/accounting"
	"github.com/furniq/furniq-backend/internal/catalog"
	"github.com/furniq/furniq-backend/internal/company"
	"github.com/furniq/furniq-backend/internal/ledger"
	"github.com/furniq/furniq-backend/internal/purchases"
	"github.com/furniq/furniq-backend/internal/sales"
	"github.com/furniq/furniq-backend/internal/snapshot"
	"github.com/furniq/furniq-backend/pkg/config"
	"github.com/furniq/furniq-backend/pkg/logger"
	"github.com/furniq/furniq-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "engined"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "engined",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	companyID, err := uuid.Parse(cfg.Company.ID)
	if err != nil {
		logg.Error(context.Background(), "invalid company id", err)
		os.Exit(1)
	}
	resolver := company.FixedResolver{Scope: company.Scope{ID: companyID, Name: cfg.Company.Name}}
	engineMetrics := metrics.NewEngineMetrics(prometheus.DefaultRegisterer)

	stock, err := ledger.NewService(resolver, logg, engineMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create stock ledger", err)
		os.Exit(1)
	}

	catalogRepo, err := catalog.NewRepository(resolver)
	if err != nil {
		logg.Error(context.Background(), "failed to create product catalog", err)
		os.Exit(1)
	}

	sink := accounting.NewLogSink(logg)
	dispatcher, err := accounting.NewDispatcher(accounting.DispatcherParams{
		Sink:        sink,
		Logger:      logg,
		Metrics:     engineMetrics,
		QueueSize:   cfg.Dispatcher.QueueSize,
		MaxAttempts: cfg.Dispatcher.MaxAttempts,
		BaseBackoff: cfg.Dispatcher.BaseBackoff,
		MaxBackoff:  cfg.Dispatcher.MaxBackoff,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create accounting dispatcher", err)
		os.Exit(1)
	}

	purchaseRepo := purchases.NewRepository()
	purchaseService, err := purchases.NewService(purchases.ServiceParams{
		Repo:     purchaseRepo,
		Resolver: resolver,
		Stock:    stock,
		Catalog:  catalogRepo,
		Acct:     dispatcher,
		Ageing:   sink,
		Logger:   logg,
		Metrics:  engineMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create purchase engine", err)
		os.Exit(1)
	}

	salesRepo := sales.NewRepository()
	salesService, err := sales.NewService(sales.ServiceParams{
		Repo:     salesRepo,
		Resolver: resolver,
		Stock:    stock,
		Catalog:  catalogRepo,
		Acct:     dispatcher,
		Logger:   logg,
		Metrics:  engineMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sales engine", err)
		os.Exit(1)
	}
	snapshots, err := snapshot.NewManager(snapshot.ManagerParams{
		Dir:       cfg.Snapshot.Dir,
		Resolver:  resolver,
		Stock:     stock,
		Purchases: purchaseRepo,
		Sales:     salesRepo,
		Catalog:   catalogRepo,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create snapshot manager", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := snapshots.Load(ctx); err != nil {
		logg.Error(ctx, "failed to restore snapshots", err)
		os.Exit(1)
	}
	docs, err := purchaseService.List(ctx)
	if err != nil {
		logg.Error(ctx, "failed to read purchase documents", err)
		os.Exit(1)
	}
	orders, err := salesService.List(ctx)
	if err != nil {
		logg.Error(ctx, "failed to read sales orders", err)
		os.Exit(1)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"purchase_documents": len(docs),
		"sales_orders":       len(orders),
	}), "state restored")

	go dispatcher.Run(ctx)
	flushDone := make(chan struct{})
	go func() {
		snapshots.RunPeriodicFlush(ctx, cfg.Snapshot.FlushInterval)
		close(flushDone)
	}()

	logg.Info(logg.WithCompanyID(ctx, companyID.String()), "inventory engines running")
	<-ctx.Done()

	logg.Info(context.Background(), "shutting down")
	<-flushDone
	dispatcher.Drain(context.Background())
	logg.Info(context.Background(), "shutdown complete")
}

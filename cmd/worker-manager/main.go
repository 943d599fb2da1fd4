// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/robfig/cron/v3"

	"nbn-order-workers/internal/api"
	"nbn-order-workers/internal/bootstrap"
	"nbn-order-workers/internal/common/camunda"
	"nbn-order-workers/internal/common/config"
	"nbn-order-workers/internal/common/logger"
	"nbn-order-workers/internal/common/observability"

	car "nbn-order-workers/internal/workers/application/create-application-record"
	dna "nbn-order-workers/internal/workers/application/dispatch-nbn-applications"
	sno "nbn-order-workers/internal/workers/application/submit-nbn-order"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	log, err := logger.NewFromConfig(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Starting worker manager...", map[string]interface{}{
		"version": cfg.App.Version,
		"queue":   cfg.Dispatch.Queue,
	})

	obs, err := observability.New(cfg.Observability)
	if err != nil {
		return err
	}
	defer obs.Shutdown(context.Background())

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required by the worker manager")
	}
	deps, err := bootstrap.Connect(ctx, cfg, log, obs, true)
	if err != nil {
		return err
	}
	defer deps.Close()

	if err := deps.Migrate(ctx); err != nil {
		return err
	}
	if err := deps.DeployWorkflows(ctx, cfg.Dispatch.ZeebeTimer); err != nil {
		return err
	}

	orders, err := deps.OrderHandler()
	if err != nil {
		return err
	}
	q, pool, err := deps.Queue(ctx, orders)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}
	dispatcher := deps.Dispatcher(q)

	// --- Job workers ---
	zeebeClient := deps.Camunda.GetClient()
	var workers []worker.JobWorker
	open := func(taskType string, wcfg config.WorkerConfig, handler camunda.HandlerFunc) {
		if w := camunda.StartWorker(zeebeClient, taskType, wcfg, handler, log); w != nil {
			workers = append(workers, w)
		}
	}

	open(sno.TaskType, orders.WorkerConfig(), orders.Handle)

	dispatchHandler, err := dna.NewHandler(dna.HandlerOptions{AppConfig: cfg, Logger: log, Dispatcher: dispatcher})
	if err != nil {
		return err
	}
	open(dna.TaskType, config.GetWorkerConfig(cfg, dna.TaskType), dispatchHandler.Handle)

	createHandler := car.NewHandler(car.LoadConfig(), deps.Store, deps.Notifier, log)
	open(car.TaskType, config.GetWorkerConfig(cfg, car.TaskType), createHandler.Handle)

	log.Info("Workers registered", map[string]interface{}{"count": len(workers)})

	// --- In-process schedule (when the BPMN timer is not used) ---
	var scheduler *cron.Cron
	if cfg.Dispatch.Schedule != "" && !cfg.Dispatch.ZeebeTimer {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.Dispatch.Schedule, func() {
			if _, err := dispatcher.Run(ctx); err != nil {
				log.Error("Scheduled dispatch cycle failed", map[string]interface{}{"error": err.Error()})
			}
		})
		if err != nil {
			return fmt.Errorf("invalid dispatch.schedule %q: %w", cfg.Dispatch.Schedule, err)
		}
		scheduler.Start()
		log.Info("Dispatch schedule started", map[string]interface{}{"schedule": cfg.Dispatch.Schedule})
	}

	// --- API, health & metrics server ---
	srv := &http.Server{
		Addr: cfg.API.ListenAddress,
		Handler: api.New(api.Options{
			Lister:   deps.Store,
			Logger:   log,
			PageSize: cfg.API.PageSize,
			BaseURL:  cfg.API.BaseURL,
			Checks: map[string]api.ReadinessCheck{
				"postgres": deps.Postgres.Ping,
				"zeebe":    deps.Camunda.HealthCheck,
			},
		}).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("API server listening", map[string]interface{}{"address": cfg.API.ListenAddress})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("API server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutdown signal received, stopping workers...", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	for _, w := range workers {
		w.Close()
		w.AwaitClose()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Worker manager stopped gracefully", nil)
	return nil
}

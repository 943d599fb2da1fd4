// cmd/process-nbn runs a dispatch cycle over every eligible NBN application.
//
// Without flags it runs one cycle and exits: 0 when selection succeeded,
// whatever happens to the queued orders, and 1 when it did not.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"nbn-order-workers/internal/bootstrap"
	"nbn-order-workers/internal/common/config"
	"nbn-order-workers/internal/common/logger"
	"nbn-order-workers/internal/common/observability"
	dna "nbn-order-workers/internal/workers/application/dispatch-nbn-applications"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a config file (default: ./configs/config.yaml)")
		schedule   = flag.String("schedule", "", "cron expression; keep running and dispatch on every tick")
		queueName  = flag.String("queue", "", "task queue backend: zeebe or local (default from config)")
	)
	flag.Parse()

	if err := run(*configPath, *schedule, *queueName, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, schedule, queueName string, out io.Writer) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if queueName != "" {
		cfg.Dispatch.Queue = queueName
	}
	if schedule == "" {
		schedule = cfg.Dispatch.Schedule
	}

	log, err := logger.NewFromConfig(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	useZeebe := cfg.Dispatch.Queue == config.QueueZeebe
	deps, err := bootstrap.Connect(ctx, cfg, log, observability.NewNoop(), useZeebe)
	if err != nil {
		return err
	}
	defer deps.Close()

	if useZeebe {
		if err := deps.DeployWorkflows(ctx, false); err != nil {
			return err
		}
	}

	orders, err := deps.OrderHandler()
	if err != nil {
		return err
	}
	// the pool gets its own context so a signal does not abort orders mid-flight
	q, pool, err := deps.Queue(context.Background(), orders)
	if err != nil {
		return err
	}
	if pool != nil {
		// drain queued local tasks before the process exits
		defer pool.Close()
	}
	dispatcher := deps.Dispatcher(q)

	cycle := func() error {
		result, err := dispatcher.Run(ctx)
		if err != nil {
			return fmt.Errorf("dispatch failed: %w", err)
		}
		fmt.Fprintln(out, dna.Message(result.Dispatched))
		return nil
	}

	if schedule == "" {
		return cycle()
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := cycle(); err != nil {
			log.Error("Scheduled dispatch cycle failed", map[string]interface{}{"error": err.Error()})
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	c.Start()
	log.Info("Dispatch schedule started", map[string]interface{}{
		"schedule": schedule,
		"queue":    cfg.Dispatch.Queue,
	})

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

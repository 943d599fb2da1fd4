// Package bootstrap connects the shared dependencies both binaries need.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"nbn-order-workers/internal/common/aws"
	"nbn-order-workers/internal/common/b2b"
	"nbn-order-workers/internal/common/camunda"
	"nbn-order-workers/internal/common/claims"
	"nbn-order-workers/internal/common/config"
	"nbn-order-workers/internal/common/database"
	"nbn-order-workers/internal/common/events"
	"nbn-order-workers/internal/common/logger"
	"nbn-order-workers/internal/common/observability"
	"nbn-order-workers/internal/common/queue"
	"nbn-order-workers/internal/store"
	"nbn-order-workers/internal/workflows"
	dispatch "nbn-order-workers/internal/workers/application/dispatch-nbn-applications"
	submit "nbn-order-workers/internal/workers/application/submit-nbn-order"
)

// Deps holds every connected client. Redis and Camunda are nil when not used.
type Deps struct {
	Config        *config.Config
	Logger        logger.Logger
	Observability *observability.Observability

	Postgres *database.PostgresClient
	Redis    *database.RedisClient
	Camunda  *camunda.Client

	Store    *store.ApplicationStore
	Claims   claims.Claimer
	Notifier events.Notifier
}

// RetryWithBackoff attempts to execute a function with exponential backoff.
func RetryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// Connect opens Postgres, the optional Redis claim store, the optional Zeebe
// client and the notification publisher.
func Connect(ctx context.Context, cfg *config.Config, log logger.Logger, obs *observability.Observability, needZeebe bool) (*Deps, error) {
	d := &Deps{Config: cfg, Logger: log, Observability: obs, Claims: claims.Noop{}}

	err := RetryWithBackoff(func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			_ = pg.Close()
			return err
		}
		d.Postgres = pg
		return nil
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	d.Store = store.NewApplicationStore(d.Postgres.DB)
	log.Info("PostgreSQL connected successfully", nil)

	if cfg.Database.Redis.Enabled() {
		err = RetryWithBackoff(func() error {
			rdb, err := database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			if err := rdb.Ping(ctx); err != nil {
				_ = rdb.Close()
				return err
			}
			d.Redis = rdb
			return nil
		}, 10, 2*time.Second, log, "Redis connection")
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Claims = claims.NewRedis(d.Redis.Client, config.GetDuration(cfg.Dispatch.ClaimTTL))
		log.Info("Redis connected, dispatch claims enabled", nil)
	} else {
		log.Warn("Redis not configured, overlapping dispatch cycles may double-submit", nil)
	}

	if needZeebe {
		err = RetryWithBackoff(func() error {
			client, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			if err != nil {
				return err
			}
			d.Camunda = client
			return nil
		}, 10, 2*time.Second, log, "Zeebe client initialization")
		if err != nil {
			d.Close()
			return nil, err
		}
		log.Info("Zeebe client connected successfully", map[string]interface{}{
			"gateway": cfg.Camunda.BrokerAddress,
		})
	}

	var publisher events.Publisher = events.LogPublisher{Logger: log}
	if cfg.Notifications.SNS.Enabled {
		sns, err := aws.NewSNSPublisher(ctx, cfg.Notifications.SNS.Region, cfg.Notifications.SNS.TopicARN)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("sns publisher: %w", err)
		}
		publisher = sns
	}
	d.Notifier = events.NewNotifier(publisher, log)

	return d, nil
}

// Close releases every connection that was opened.
func (d *Deps) Close() {
	if d.Camunda != nil {
		if err := d.Camunda.Close(); err != nil {
			d.Logger.Error("Error closing Zeebe client", map[string]interface{}{"error": err.Error()})
		}
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.Postgres != nil {
		_ = d.Postgres.Close()
	}
}

// Migrate applies the embedded schema migrations when database.postgres.migrate is set.
func (d *Deps) Migrate(ctx context.Context) error {
	if !d.Config.Database.Postgres.Migrate {
		return nil
	}
	version, err := store.Migrate(ctx, d.Postgres.DB)
	if err != nil {
		return err
	}
	d.Logger.Info("Database schema up to date", map[string]interface{}{"version": version})
	return nil
}

// DeployWorkflows deploys the order submission process and, when asked, the
// timer-started dispatch process.
func (d *Deps) DeployWorkflows(ctx context.Context, includeTimer bool) error {
	resources, err := workflows.Resources(includeTimer)
	if err != nil {
		return err
	}
	for _, res := range resources {
		key, err := d.Camunda.DeployResource(ctx, res.Name, res.Definition)
		if err != nil {
			return fmt.Errorf("deploy %s: %w", res.Name, err)
		}
		d.Logger.Info("Workflow deployed", map[string]interface{}{
			"resource": res.Name,
			"key":      key,
		})
	}
	return nil
}

// OrderHandler builds the submission task shared by the job worker and the local pool.
func (d *Deps) OrderHandler() (*submit.Handler, error) {
	return submit.NewHandler(submit.HandlerOptions{
		AppConfig: d.Config,
		Logger:    d.Logger,
		Dependencies: submit.ServiceDependencies{
			Store:         d.Store,
			Orders:        b2b.NewClient(d.Config.B2B),
			Claims:        d.Claims,
			Notifier:      d.Notifier,
			Observability: d.Observability,
		},
	})
}

// Queue returns the configured task queue. For the local backend the pool is
// started on ctx and must be closed by the caller to drain queued tasks.
func (d *Deps) Queue(ctx context.Context, orders *submit.Handler) (queue.Queue, *queue.Pool, error) {
	switch d.Config.Dispatch.Queue {
	case config.QueueZeebe:
		if d.Camunda == nil {
			return nil, nil, fmt.Errorf("zeebe queue selected but no Zeebe client is connected")
		}
		return queue.NewZeebeQueue(d.Camunda, d.Config.Dispatch.ProcessID, d.Logger), nil, nil

	case config.QueueLocal:
		pool := queue.NewPool(queue.PoolConfig{
			TaskType:    submit.TaskType,
			Workers:     d.Config.Dispatch.PoolWorkers,
			Buffer:      d.Config.Dispatch.PoolBuffer,
			MaxAttempts: d.Config.Dispatch.MaxAttempts,
			Backoff:     2 * time.Second,
		}, orders.RunTask, nil, d.Logger)
		pool.Start(ctx)
		return pool, pool, nil

	default:
		return nil, nil, fmt.Errorf("unknown dispatch queue %q", d.Config.Dispatch.Queue)
	}
}

func (d *Deps) Dispatcher(q queue.Queue) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(dispatch.ServiceDependencies{
		Selector: d.Store,
		Queue:    q,
		Claims:   d.Claims,
		Logger:   d.Logger,
	})
}

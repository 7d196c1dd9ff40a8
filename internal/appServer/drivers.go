package appServer

import (
	"fmt"

	"github.com/ds124wfegd/civicportal/config"
	"github.com/ds124wfegd/civicportal/internal/database"
	"github.com/ds124wfegd/civicportal/internal/database/memory"
	repository "github.com/ds124wfegd/civicportal/internal/database/postgres"
	"github.com/ds124wfegd/civicportal/pkg/keylock"
	"github.com/ds124wfegd/civicportal/pkg/postgres"
	"github.com/ds124wfegd/civicportal/pkg/queue"
	"github.com/ds124wfegd/civicportal/pkg/redis"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const queuePrefix = "civicportal"

func openStore(cfg *config.Config, logger logrus.FieldLogger, app *App) (database.Repositories, error) {
	switch cfg.Store.Driver {
	case "postgres":
		db, err := postgres.NewPostgresDB(&cfg.Database)
		if err != nil {
			return database.Repositories{}, fmt.Errorf("init database: %w", err)
		}
		app.onClose(db.Close)

		if err := postgres.RunMigrations(db); err != nil {
			return database.Repositories{}, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("Postgres store ready")
		return repository.NewRepositories(db), nil
	default:
		logger.Warn("Using in-memory store, data is lost on restart")
		return memory.NewStore().Repositories(), nil
	}
}

// sharedRedis connects on first use and is shared by the lock and the queue.
func (a *App) sharedRedis(cfg *config.Config) (*goredis.Client, error) {
	if a.redisClient != nil {
		return a.redisClient, nil
	}
	client, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	a.redisClient = client
	a.onClose(client.Close)
	return client, nil
}

func newLocker(cfg *config.Config, logger logrus.FieldLogger, app *App) (keylock.Locker, error) {
	if cfg.Lock.Driver != "redis" {
		return keylock.NewLocalLocker(cfg.Lock.Timeout), nil
	}

	client, err := app.sharedRedis(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Lock.TTL <= cfg.Server.RequestTimeout {
		logger.WithFields(logrus.Fields{
			"lock_ttl":        cfg.Lock.TTL,
			"request_timeout": cfg.Server.RequestTimeout,
		}).Warn("Lock TTL does not exceed the request timeout")
	}
	logger.Info("Redis key lock enabled")
	return keylock.NewRedisLocker(client, keylock.RedisLockerConfig{
		TTL:        cfg.Lock.TTL,
		Timeout:    cfg.Lock.Timeout,
		RetryDelay: cfg.Lock.RetryDelay,
	}), nil
}

// newQueue returns nil when decision publishing is disabled.
func newQueue(cfg *config.Config, logger logrus.FieldLogger, app *App) (queue.Queue, error) {
	var (
		q   queue.Queue
		err error
	)

	switch cfg.Notify.Driver {
	case "redis":
		client, rErr := app.sharedRedis(cfg)
		if rErr != nil {
			return nil, rErr
		}
		q = queue.NewRedisQueue(client, queue.DefaultRedisQueueConfig(queuePrefix), logger)
	case "rabbitmq":
		q, err = queue.NewRabbitQueue(cfg.Rabbit.URL, cfg.Notify.Topic, logger)
		if err != nil {
			return nil, fmt.Errorf("init rabbitmq queue: %w", err)
		}
	case "kafka":
		q = queue.NewKafkaQueue(cfg.Kafka.Brokers, cfg.Notify.Topic, cfg.Kafka.GroupID, logger)
	default:
		logger.Info("Decision publishing disabled")
		return nil, nil
	}

	app.onClose(q.Close)
	logger.WithField("driver", cfg.Notify.Driver).Info("Decision queue initialized")
	return q, nil
}

// Migrate applies the embedded schema migrations and exits.
func Migrate(cfg *config.Config) error {
	db, err := postgres.NewPostgresDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

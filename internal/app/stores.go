package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/medbot-api/internal/config"
	"github.com/jwalitptl/medbot-api/internal/email"
	"github.com/jwalitptl/medbot-api/internal/model"
	"github.com/jwalitptl/medbot-api/internal/repository"
	"github.com/jwalitptl/medbot-api/internal/repository/jsonfile"
	"github.com/jwalitptl/medbot-api/internal/repository/postgres"
	redisRepo "github.com/jwalitptl/medbot-api/internal/repository/redis"
	"github.com/jwalitptl/medbot-api/internal/service/notification"
	"github.com/jwalitptl/medbot-api/internal/service/record"
	"github.com/jwalitptl/medbot-api/pkg/logger"
	"github.com/jwalitptl/medbot-api/pkg/messaging"
	"github.com/jwalitptl/medbot-api/pkg/metrics"
)

// Stores holds the record and prescription stores of the configured
// backend. Close releases backend connections.
type Stores struct {
	Records       repository.RecordRepository
	Prescriptions repository.PrescriptionRepository
	closers       []func() error
}

func (s *Stores) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenStores opens the record store selected by store.backend. Prescriptions
// always live in a JSON file.
func OpenStores(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (*Stores, error) {
	stores := &Stores{}

	prescriptions, err := jsonfile.NewPrescriptionRepository(cfg.Store.PrescriptionsPath, cfg.Store.MaxRecords, log.With("prescriptions"))
	if err != nil {
		return nil, err
	}
	stores.Prescriptions = prescriptions

	var records repository.RecordRepository
	switch cfg.Store.Backend {
	case "redis":
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		opts.PoolSize = cfg.Redis.PoolSize
		opts.MinIdleConns = cfg.Redis.MinIdleConns
		opts.MaxRetries = cfg.Redis.MaxRetries
		client := redis.NewClient(opts)
		stores.closers = append(stores.closers, client.Close)

		records, err = redisRepo.NewRecordRepository(client, cfg.Store.RedisKey, cfg.Store.MaxRecords)
		if err != nil {
			stores.Close()
			return nil, err
		}
		if err := records.Ping(ctx); err != nil {
			stores.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

	case "postgres":
		db, err := postgres.NewDB(cfg.Database.URL, cfg.Database.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		stores.closers = append(stores.closers, db.Close)

		if err := postgres.Migrate(ctx, db); err != nil {
			stores.Close()
			return nil, err
		}
		records, err = postgres.NewHealthRecordRepository(postgres.NewBaseRepository(db), cfg.Store.MaxRecords)
		if err != nil {
			stores.Close()
			return nil, err
		}

	default:
		records, err = jsonfile.NewRecordRepository(cfg.Store.RecordsPath, cfg.Store.MaxRecords, log.With("records"))
		if err != nil {
			return nil, err
		}
	}

	stores.Records = repository.Instrument(records, cfg.Store.Backend, m)
	log.Info("Record store ready", "backend", cfg.Store.Backend, "capacity", cfg.Store.MaxRecords)
	return stores, nil
}

// NewRecordService wires the record service with its alerting chain.
func NewRecordService(cfg *config.Config, stores *Stores, publisher messaging.Publisher, log *logger.Logger, m *metrics.Metrics) *record.Service {
	mailer := email.NewService(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	notifier := notification.NewService(mailer, notification.Config{
		Recipients: cfg.Alerts.Recipients,
		MinLevel:   model.Level(cfg.Alerts.MinLevel),
	}, log.With("notification"), m)

	return record.NewService(stores.Records, stores.Prescriptions, publisher, notifier, log.With("records"))
}

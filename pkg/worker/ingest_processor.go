package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/medbot-api/internal/model"
	"github.com/jwalitptl/medbot-api/internal/service/record"
	"github.com/jwalitptl/medbot-api/pkg/logger"
	"github.com/jwalitptl/medbot-api/pkg/messaging"
	"github.com/jwalitptl/medbot-api/pkg/metrics"
)

// ErrMalformedMessage marks payloads that are not a health record.
var ErrMalformedMessage = errors.New("malformed analysis message")

// RecordStore is the record service the processor writes through.
type RecordStore interface {
	Store(ctx context.Context, rec model.HealthRecord) error
}

type IngestProcessorConfig struct {
	Channel       string
	RetryAttempts int
	RetryDelay    time.Duration
}

// IngestProcessor stores health records published by out-of-process
// analyzers on a broker channel.
type IngestProcessor struct {
	store   RecordStore
	broker  messaging.Broker
	config  IngestProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewIngestProcessor(
	store RecordStore,
	broker messaging.Broker,
	config IngestProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *IngestProcessor {
	// Config validation instead of defaults
	if config.Channel == "" {
		panic("Channel must not be empty")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay < 0 {
		panic("RetryDelay must not be negative")
	}

	return &IngestProcessor{
		store:   store,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

// Start consumes the channel until ctx is done.
func (p *IngestProcessor) Start(ctx context.Context) error {
	p.logger.Info("Starting ingest processor", "channel", p.config.Channel)

	err := messaging.Consume(ctx, p.broker, p.config.Channel, p.Process, func(err error) {
		p.logger.Error(err, "Failed to ingest message", "channel", p.config.Channel)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", p.config.Channel, err)
	}

	p.logger.Info("Shutting down ingest processor")
	return nil
}

// Process decodes one message and stores the record, retrying transient
// store failures. Malformed and invalid records are not retried.
func (p *IngestProcessor) Process(ctx context.Context, payload []byte) error {
	rec, err := decodeRecord(payload)
	if err != nil {
		p.metrics.IngestFailed.Inc()
		return err
	}

	err = p.retry(ctx, func() error {
		return p.store.Store(ctx, rec)
	})
	if err != nil {
		p.metrics.IngestFailed.Inc()
		return fmt.Errorf("failed to store record %s: %w", rec.FileName, err)
	}

	p.metrics.IngestProcessed.Inc()
	p.logger.Debug("Record ingested", "file_name", rec.FileName)
	return nil
}

func (p *IngestProcessor) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < p.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			p.metrics.IngestRetries.Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * p.config.RetryDelay):
			}
		}

		if err = fn(); err == nil || errors.Is(err, record.ErrInvalidRecord) {
			return err
		}
		p.logger.Warn("Retry storing record", "attempt", attempt+1, "error", err.Error())
	}
	return err
}

// decodeRecord accepts a bare record or one wrapped in a messaging.Message.
func decodeRecord(data []byte) (model.HealthRecord, error) {
	var env messaging.Message
	if err := json.Unmarshal(data, &env); err == nil && len(env.Payload) > 0 {
		data = env.Payload
	}

	var rec model.HealthRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.HealthRecord{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return rec, nil
}

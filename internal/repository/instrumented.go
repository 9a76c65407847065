package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jwalitptl/medbot-api/internal/model"
	"github.com/jwalitptl/medbot-api/pkg/metrics"
)

type instrumentedRecords struct {
	next    RecordRepository
	backend string
	metrics *metrics.Metrics
}

// Instrument records operation counts and latency for repo under backend.
func Instrument(repo RecordRepository, backend string, m *metrics.Metrics) RecordRepository {
	if m == nil {
		return repo
	}
	return &instrumentedRecords{next: repo, backend: backend, metrics: m}
}

func (r *instrumentedRecords) observe(op string, start time.Time, err error) {
	status := "success"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	r.metrics.StoreOperations.WithLabelValues(r.backend, op, status).Inc()
	r.metrics.StoreLatency.WithLabelValues(r.backend, op).Observe(time.Since(start).Seconds())
}

func (r *instrumentedRecords) LoadAll(ctx context.Context) ([]model.HealthRecord, error) {
	start := time.Now()
	records, err := r.next.LoadAll(ctx)
	r.observe("load_all", start, err)
	return records, err
}

func (r *instrumentedRecords) Append(ctx context.Context, record model.HealthRecord) error {
	start := time.Now()
	err := r.next.Append(ctx, record)
	r.observe("append", start, err)
	return err
}

func (r *instrumentedRecords) Latest(ctx context.Context) (*model.HealthRecord, error) {
	start := time.Now()
	rec, err := r.next.Latest(ctx)
	r.observe("latest", start, err)
	return rec, err
}

func (r *instrumentedRecords) FindByFileName(ctx context.Context, fileName string) (*model.HealthRecord, error) {
	start := time.Now()
	rec, err := r.next.FindByFileName(ctx, fileName)
	r.observe("find", start, err)
	return rec, err
}

func (r *instrumentedRecords) Ping(ctx context.Context) error {
	return r.next.Ping(ctx)
}

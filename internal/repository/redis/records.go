package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/medbot-api/internal/model"
	"github.com/jwalitptl/medbot-api/internal/repository"
)

// DefaultKey holds the record list when none is configured.
const DefaultKey = "medbot:health_records"

type recordRepository struct {
	client   redis.UniversalClient
	key      string
	capacity int
}

// NewRecordRepository stores records in a Redis list at key, newest at
// index 0, trimmed to capacity on every append.
func NewRecordRepository(client redis.UniversalClient, key string, capacity int) (repository.RecordRepository, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be greater than 0")
	}
	if key == "" {
		key = DefaultKey
	}
	return &recordRepository{client: client, key: key, capacity: capacity}, nil
}

func (r *recordRepository) LoadAll(ctx context.Context) ([]model.HealthRecord, error) {
	raw, err := r.client.LRange(ctx, r.key, 0, int64(r.capacity-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	records := make([]model.HealthRecord, 0, len(raw))
	for _, item := range raw {
		var rec model.HealthRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *recordRepository) Append(ctx context.Context, record model.HealthRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, r.key, payload)
		pipe.LTrim(ctx, r.key, 0, int64(r.capacity-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

func (r *recordRepository) Latest(ctx context.Context) (*model.HealthRecord, error) {
	item, err := r.client.LIndex(ctx, r.key, 0).Result()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest record: %w", err)
	}

	var rec model.HealthRecord
	if err := json.Unmarshal([]byte(item), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &rec, nil
}

func (r *recordRepository) FindByFileName(ctx context.Context, fileName string) (*model.HealthRecord, error) {
	records, err := r.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].FileName == fileName {
			return &records[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *recordRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/medbot-api/internal/model"
	"github.com/jwalitptl/medbot-api/internal/repository"
)

type healthRecordRepository struct {
	BaseRepository
	capacity int
	now      func() time.Time
}

type healthRecordRow struct {
	Payload []byte `db:"payload"`
}

// NewHealthRecordRepository keeps at most capacity rows; older rows are
// deleted in the same transaction that inserts a new one.
func NewHealthRecordRepository(base BaseRepository, capacity int) (repository.RecordRepository, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be greater than 0")
	}
	return &healthRecordRepository{BaseRepository: base, capacity: capacity, now: time.Now}, nil
}

func (r *healthRecordRepository) LoadAll(ctx context.Context) ([]model.HealthRecord, error) {
	query := `
		SELECT payload FROM health_records
		ORDER BY created_at DESC
		LIMIT $1
	`
	var rows []healthRecordRow
	if err := r.GetDB().SelectContext(ctx, &rows, query, r.capacity); err != nil {
		return nil, fmt.Errorf("failed to list health records: %w", err)
	}

	records := make([]model.HealthRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := decode(row)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

func (r *healthRecordRepository) Append(ctx context.Context, record model.HealthRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode health record: %w", err)
	}

	var recordedAt *time.Time
	if t := record.RecordedAt(); !t.IsZero() {
		recordedAt = &t
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		insert := `
			INSERT INTO health_records (
				id, file_name, recorded_at, payload, created_at
			) VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.ExecContext(ctx, insert, uuid.New(), record.FileName, recordedAt, payload, r.now().UTC()); err != nil {
			return fmt.Errorf("failed to insert health record: %w", err)
		}

		prune := `
			DELETE FROM health_records
			WHERE id NOT IN (
				SELECT id FROM health_records
				ORDER BY created_at DESC
				LIMIT $1
			)
		`
		if _, err := tx.ExecContext(ctx, prune, r.capacity); err != nil {
			return fmt.Errorf("failed to prune health records: %w", err)
		}
		return nil
	})
}

func (r *healthRecordRepository) Latest(ctx context.Context) (*model.HealthRecord, error) {
	query := `
		SELECT payload FROM health_records
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.get(ctx, query)
}

func (r *healthRecordRepository) FindByFileName(ctx context.Context, fileName string) (*model.HealthRecord, error) {
	query := `
		SELECT payload FROM health_records
		WHERE file_name = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.get(ctx, query, fileName)
}

func (r *healthRecordRepository) Ping(ctx context.Context) error {
	return r.GetDB().PingContext(ctx)
}

func (r *healthRecordRepository) get(ctx context.Context, query string, args ...interface{}) (*model.HealthRecord, error) {
	var row healthRecordRow
	if err := r.GetDB().GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get health record: %w", err)
	}
	return decode(row)
}

func decode(row healthRecordRow) (*model.HealthRecord, error) {
	var rec model.HealthRecord
	if err := json.Unmarshal(row.Payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode health record: %w", err)
	}
	return &rec, nil
}

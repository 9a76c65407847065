package repository

import (
	"context"
	"errors"

	"github.com/jwalitptl/medbot-api/internal/model"
)

// DefaultCapacity bounds every store; the oldest entry is dropped on append.
const DefaultCapacity = 50

// ErrNotFound is returned when a store holds no matching entry.
var ErrNotFound = errors.New("not found")

// All repository interfaces in one file
type (
	// RecordRepository keeps health records newest-first. Implementations
	// return copies; callers may modify the result freely.
	RecordRepository interface {
		LoadAll(ctx context.Context) ([]model.HealthRecord, error)
		Append(ctx context.Context, record model.HealthRecord) error
		Latest(ctx context.Context) (*model.HealthRecord, error)
		FindByFileName(ctx context.Context, fileName string) (*model.HealthRecord, error)
		Ping(ctx context.Context) error
	}

	// PrescriptionRepository keeps OCR results newest-first.
	PrescriptionRepository interface {
		LoadAll(ctx context.Context) ([]model.PrescriptionResult, error)
		Append(ctx context.Context, result model.PrescriptionResult) error
		Latest(ctx context.Context) (*model.PrescriptionResult, error)
	}
)

package jsonfile

import (
	"context"

	"github.com/jwalitptl/medbot-api/internal/model"
	"github.com/jwalitptl/medbot-api/internal/repository"
	"github.com/jwalitptl/medbot-api/pkg/logger"
)

type recordRepository struct {
	log *Log[model.HealthRecord]
}

// NewRecordRepository opens the health record file at path.
func NewRecordRepository(path string, capacity int, log *logger.Logger) (repository.RecordRepository, error) {
	l, err := OpenLog(path, capacity, model.HealthRecord.Clone, log)
	if err != nil {
		return nil, err
	}
	return &recordRepository{log: l}, nil
}

func (r *recordRepository) LoadAll(ctx context.Context) ([]model.HealthRecord, error) {
	return r.log.All(), nil
}

func (r *recordRepository) Append(ctx context.Context, record model.HealthRecord) error {
	return r.log.Prepend(record)
}

func (r *recordRepository) Latest(ctx context.Context) (*model.HealthRecord, error) {
	rec, ok := r.log.First()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (r *recordRepository) FindByFileName(ctx context.Context, fileName string) (*model.HealthRecord, error) {
	rec, ok := r.log.Find(func(h model.HealthRecord) bool { return h.FileName == fileName })
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (r *recordRepository) Ping(ctx context.Context) error {
	return nil
}

type prescriptionRepository struct {
	log *Log[model.PrescriptionResult]
}

// NewPrescriptionRepository opens the prescription file at path.
func NewPrescriptionRepository(path string, capacity int, log *logger.Logger) (repository.PrescriptionRepository, error) {
	l, err := OpenLog(path, capacity, model.PrescriptionResult.Clone, log)
	if err != nil {
		return nil, err
	}
	return &prescriptionRepository{log: l}, nil
}

func (r *prescriptionRepository) LoadAll(ctx context.Context) ([]model.PrescriptionResult, error) {
	return r.log.All(), nil
}

func (r *prescriptionRepository) Append(ctx context.Context, result model.PrescriptionResult) error {
	return r.log.Prepend(result)
}

func (r *prescriptionRepository) Latest(ctx context.Context) (*model.PrescriptionResult, error) {
	p, ok := r.log.First()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

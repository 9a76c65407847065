package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/medbot-api/internal/model"
	"github.com/jwalitptl/medbot-api/internal/prompt"
	"github.com/jwalitptl/medbot-api/internal/repository"
	"github.com/jwalitptl/medbot-api/internal/service/notification"
	"github.com/jwalitptl/medbot-api/pkg/logger"
	"github.com/jwalitptl/medbot-api/pkg/messaging"
)

// ErrInvalidRecord wraps validation failures of incoming records.
var ErrInvalidRecord = errors.New("invalid health record")

type RecordService interface {
	Store(ctx context.Context, rec model.HealthRecord) error
	List(ctx context.Context) ([]model.HealthRecord, error)
	Latest(ctx context.Context) (*model.HealthRecord, error)
	Find(ctx context.Context, fileName string) (*model.HealthRecord, error)
	Context(ctx context.Context, query string) (*model.RecordContext, error)
	Analytics(ctx context.Context) (*AnalyticsReport, error)
}

// AnalyticsReport is served by the analytics endpoint. Trend is nil with
// fewer than two records.
type AnalyticsReport struct {
	model.RecordAnalytics
	Trend *model.TrendSummary `json:"trend,omitempty"`
}

type Service struct {
	repo          repository.RecordRepository
	prescriptions repository.PrescriptionRepository
	publisher     messaging.Publisher
	notifier      notification.Service
	validate      *validator.Validate
	logger        *logger.Logger
	now           func() time.Time
}

func NewService(
	repo repository.RecordRepository,
	prescriptions repository.PrescriptionRepository,
	publisher messaging.Publisher,
	notifier notification.Service,
	log *logger.Logger,
) *Service {
	if publisher == nil {
		publisher = messaging.NopBroker{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:          repo,
		prescriptions: prescriptions,
		publisher:     publisher,
		notifier:      notifier,
		validate:      newValidator(),
		logger:        log,
		now:           time.Now,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("iso8601", func(fl validator.FieldLevel) bool {
		return model.ValidTimestamp(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// Store validates rec and prepends it to the store. Publishing the event
// and alerting are best effort and never fail the call.
func (s *Service) Store(ctx context.Context, rec model.HealthRecord) error {
	if err := s.validate.Struct(rec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if rec.Timestamp == "" {
		rec.Timestamp = s.now().UTC().Format(time.RFC3339)
	}

	if err := s.repo.Append(ctx, rec); err != nil {
		return fmt.Errorf("failed to store health record: %w", err)
	}

	if err := s.publisher.Publish(ctx, messaging.TopicHealthRecordCreated, rec); err != nil {
		s.logger.Error(err, "Failed to publish record event", "file_name", rec.FileName)
	}

	if s.notifier != nil {
		if _, err := s.notifier.NotifyRecord(ctx, rec); err != nil {
			s.logger.Error(err, "Failed to notify about record", "file_name", rec.FileName)
		}
	}

	s.logger.Info("Health record stored", "file_name", rec.FileName, "urgency", string(rec.Urgency.Level))
	return nil
}

func (s *Service) List(ctx context.Context) ([]model.HealthRecord, error) {
	return s.repo.LoadAll(ctx)
}

func (s *Service) Latest(ctx context.Context) (*model.HealthRecord, error) {
	return s.repo.Latest(ctx)
}

// Find returns the newest record analyzed from fileName.
func (s *Service) Find(ctx context.Context, fileName string) (*model.HealthRecord, error) {
	return s.repo.FindByFileName(ctx, fileName)
}

// Context returns the formatted record dump. With a query the dump is the
// full medical context for that query.
func (s *Service) Context(ctx context.Context, query string) (*model.RecordContext, error) {
	records, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	out := &model.RecordContext{
		Data:         prompt.FormatRecords(records),
		TotalRecords: len(records),
	}
	if len(records) > 0 {
		latest := records[0]
		out.LatestRecord = &latest
	}

	if query != "" {
		out.Data = prompt.MedicalContext(query, records, s.latestPrescription(ctx))
	}
	return out, nil
}

func (s *Service) Analytics(ctx context.Context) (*AnalyticsReport, error) {
	records, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &AnalyticsReport{RecordAnalytics: prompt.Analytics(records)}
	if trend, ok := prompt.Trend(records); ok {
		report.Trend = &trend
	}
	return report, nil
}

func (s *Service) latestPrescription(ctx context.Context) *model.PrescriptionResult {
	if s.prescriptions == nil {
		return nil
	}
	p, err := s.prescriptions.Latest(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error(err, "Failed to load latest prescription")
		}
		return nil
	}
	return p
}

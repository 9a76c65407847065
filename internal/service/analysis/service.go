package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medbot-api/internal/model"
	"github.com/jwalitptl/medbot-api/internal/repository"
	"github.com/jwalitptl/medbot-api/pkg/logger"
	"github.com/jwalitptl/medbot-api/pkg/metrics"
)

var (
	ErrAnalyzerUnavailable = errors.New("ECG analysis service not available")
	ErrNotImage            = errors.New("only image files are allowed")
	ErrTooLarge            = errors.New("file too large")
	ErrInvalidPath         = errors.New("image path is outside the upload directory")
	ErrAnalysisFailed      = errors.New("analysis failed")
	ErrBadOutput           = errors.New("failed to parse analysis result")
)

const (
	kindECG          = "ecg"
	kindPrescription = "prescription"

	statusSuccess = "success"
)

// DefaultMaxUploadBytes is the upload limit when none is configured.
const DefaultMaxUploadBytes = 10 << 20

type Config struct {
	Python         string
	ECGScript      string
	OCRScript      string
	UploadDir      string
	MaxUploadBytes int64
	Timeout        time.Duration
	ECGEnabled     bool
}

// RecordStore is the record service used to persist ECG results.
type RecordStore interface {
	Store(ctx context.Context, rec model.HealthRecord) error
}

type AnalysisService interface {
	Available() bool
	SaveUpload(field string, fh *multipart.FileHeader) (*model.UploadResponse, error)
	AnalyzeECG(ctx context.Context, imagePath string) (*model.HealthRecord, error)
	ProcessPrescription(ctx context.Context, imagePath string) (*model.PrescriptionResult, error)
}

type Service struct {
	runner        Runner
	records       RecordStore
	prescriptions repository.PrescriptionRepository
	cfg           Config
	available     bool
	logger        *logger.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

func NewService(
	runner Runner,
	records RecordStore,
	prescriptions repository.PrescriptionRepository,
	cfg Config,
	log *logger.Logger,
	metrics *metrics.Metrics,
) (*Service, error) {
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}

	s := &Service{
		runner:        runner,
		records:       records,
		prescriptions: prescriptions,
		cfg:           cfg,
		logger:        log,
		metrics:       metrics,
		now:           time.Now,
	}
	s.available = cfg.ECGEnabled && scriptExists(cfg.ECGScript)
	if cfg.ECGEnabled && !s.available {
		log.Warn("ECG analyzer script not found, analysis disabled", "script", cfg.ECGScript)
	}
	return s, nil
}

// Available reports whether ECG analysis can run.
func (s *Service) Available() bool {
	return s.available
}

// SaveUpload stores an uploaded image under the upload directory with a
// unique name derived from field.
func (s *Service) SaveUpload(field string, fh *multipart.FileHeader) (*model.UploadResponse, error) {
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
		return nil, ErrNotImage
	}
	if fh.Size > s.cfg.MaxUploadBytes {
		return nil, ErrTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	name := fmt.Sprintf("%s-%d-%s%s", field, s.now().UnixMilli(), uuid.NewString()[:8], strings.ToLower(filepath.Ext(fh.Filename)))
	path := filepath.Join(s.cfg.UploadDir, name)

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}

	// One extra byte detects bodies larger than the declared size.
	n, err := io.Copy(dst, io.LimitReader(src, s.cfg.MaxUploadBytes+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > s.cfg.MaxUploadBytes {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	s.logger.Info("Image uploaded", "filename", name, "size", n)
	return &model.UploadResponse{
		ImagePath:    path,
		Filename:     name,
		OriginalName: fh.Filename,
		Size:         n,
	}, nil
}

// analyzerStatus is the status envelope the ECG analyzer prints next to
// the record fields. A missing status means success.
type analyzerStatus struct {
	ProcessingStatus string `json:"processing_status"`
	Error            string `json:"error"`
}

func (a analyzerStatus) failed() bool {
	if a.ProcessingStatus == "" {
		return a.Error != ""
	}
	return a.ProcessingStatus != statusSuccess
}

func (a analyzerStatus) reason() string {
	if a.Error != "" {
		return a.Error
	}
	return fmt.Sprintf("processing status %q", a.ProcessingStatus)
}

// AnalyzeECG runs the ECG analyzer on an uploaded image and stores the
// resulting record.
func (s *Service) AnalyzeECG(ctx context.Context, imagePath string) (*model.HealthRecord, error) {
	if !s.available {
		return nil, ErrAnalyzerUnavailable
	}
	path, err := s.resolve(imagePath)
	if err != nil {
		return nil, err
	}

	out, err := s.run(ctx, kindECG, s.cfg.ECGScript, path)
	if err != nil {
		return nil, err
	}

	out = bytes.TrimSpace(out)
	var status analyzerStatus
	if err := json.Unmarshal(out, &status); err != nil {
		s.observe(kindECG, "bad_output")
		return nil, fmt.Errorf("%w: %v", ErrBadOutput, err)
	}
	if status.failed() {
		s.observe(kindECG, "failed")
		s.logger.Warn("ECG analyzer reported an error", "path", path, "status", status.ProcessingStatus, "error", status.Error)
		return nil, fmt.Errorf("%w: %s", ErrAnalysisFailed, status.reason())
	}

	var rec model.HealthRecord
	if err := json.Unmarshal(out, &rec); err != nil {
		s.observe(kindECG, "bad_output")
		return nil, fmt.Errorf("%w: %v", ErrBadOutput, err)
	}
	if rec.FileName == "" {
		rec.FileName = filepath.Base(path)
	}

	if err := s.records.Store(ctx, rec); err != nil {
		return nil, err
	}
	s.observe(kindECG, "success")
	return &rec, nil
}

// ProcessPrescription runs the OCR pipeline on an uploaded image, stores a
// successful result and removes the image.
func (s *Service) ProcessPrescription(ctx context.Context, imagePath string) (*model.PrescriptionResult, error) {
	path, err := s.resolve(imagePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Error(err, "Failed to clean up upload", "path", path)
		}
	}()

	if !scriptExists(s.cfg.OCRScript) {
		s.observe(kindPrescription, "unavailable")
		return nil, fmt.Errorf("%w: prescription OCR script not found", ErrAnalysisFailed)
	}

	out, err := s.run(ctx, kindPrescription, s.cfg.OCRScript, path)
	if err != nil {
		return nil, err
	}

	var result model.PrescriptionResult
	if err := json.Unmarshal(bytes.TrimSpace(out), &result); err != nil {
		s.observe(kindPrescription, "bad_output")
		return nil, fmt.Errorf("%w: %v", ErrBadOutput, err)
	}
	if result.ProcessingStatus != model.PrescriptionStatusSuccess {
		s.observe(kindPrescription, "failed")
		return nil, fmt.Errorf("%w: processing status %q", ErrAnalysisFailed, result.ProcessingStatus)
	}
	if result.Timestamp == "" {
		result.Timestamp = s.now().UTC().Format(time.RFC3339)
	}

	if err := s.prescriptions.Append(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to store prescription: %w", err)
	}
	s.observe(kindPrescription, "success")
	return &result, nil
}

func (s *Service) run(ctx context.Context, kind, script, imagePath string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	out, err := s.runner.Run(ctx, s.cfg.Python, script, imagePath)
	if s.metrics != nil {
		s.metrics.AnalysisLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.observe(kind, "error")
		var scriptErr *ScriptError
		if errors.As(err, &scriptErr) {
			s.logger.Error(err, "Analyzer script failed", "kind", kind, "stderr", scriptErr.Stderr)
		}
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	return out, nil
}

// resolve cleans imagePath and requires it to name a file inside the
// upload directory.
func (s *Service) resolve(imagePath string) (string, error) {
	root, err := filepath.Abs(s.cfg.UploadDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(imagePath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", ErrInvalidPath
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	return abs, nil
}

func (s *Service) observe(kind, status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.AnalysisRuns.WithLabelValues(kind, status).Inc()
}

func scriptExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

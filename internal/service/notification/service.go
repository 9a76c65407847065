package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/medbot-api/internal/email"
	"github.com/jwalitptl/medbot-api/internal/model"
	"github.com/jwalitptl/medbot-api/internal/prompt"
	"github.com/jwalitptl/medbot-api/pkg/logger"
	"github.com/jwalitptl/medbot-api/pkg/metrics"
)

const (
	maxRetries = 3
	retryDelay = 2 * time.Second
)

type Service interface {
	// NotifyRecord raises an alert when rec meets the alert threshold.
	NotifyRecord(ctx context.Context, rec model.HealthRecord) (*model.Alert, error)
}

type Config struct {
	Recipients []string
	// MinLevel is the lowest urgency that raises an alert.
	MinLevel model.Level
}

type service struct {
	emailSvc   email.Service
	cfg        Config
	logger     *logger.Logger
	metrics    *metrics.Metrics
	retryDelay time.Duration
}

func NewService(emailSvc email.Service, cfg Config, log *logger.Logger, m *metrics.Metrics) Service {
	if cfg.MinLevel == "" {
		cfg.MinLevel = model.LevelCritical
	}
	if log == nil {
		log = logger.Nop()
	}
	return &service{
		emailSvc:   emailSvc,
		cfg:        cfg,
		logger:     log,
		metrics:    m,
		retryDelay: retryDelay,
	}
}

func (s *service) NotifyRecord(ctx context.Context, rec model.HealthRecord) (*model.Alert, error) {
	if rec.Urgency.Level.Rank() < s.cfg.MinLevel.Rank() {
		return nil, nil
	}

	alert := &model.Alert{
		FileName:   rec.FileName,
		Level:      rec.Urgency.Level,
		Subject:    fmt.Sprintf("[MEDBOT] %s urgency ECG result: %s", strings.ToUpper(string(rec.Urgency.Level)), rec.FileName),
		Body:       prompt.FormatRecord(rec),
		Recipients: s.cfg.Recipients,
		CreatedAt:  time.Now(),
	}

	if len(alert.Recipients) == 0 {
		alert.Status = model.AlertStatusSkipped
		s.observe(alert.Status)
		s.logger.Warn("Critical record but no alert recipients configured", "file_name", rec.FileName)
		return alert, nil
	}

	var err error
send:
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = s.emailSvc.SendCustom(ctx, alert.Recipients, alert.Subject, alert.Body); err == nil {
			break
		}
		s.logger.Error(err, "Failed to send alert", "file_name", rec.FileName, "attempt", attempt)
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break send
		case <-time.After(s.retryDelay * time.Duration(attempt)):
		}
	}

	if err != nil {
		alert.Status = model.AlertStatusFailed
		s.observe(alert.Status)
		return alert, fmt.Errorf("failed to send alert: %w", err)
	}

	alert.Status = model.AlertStatusSent
	s.observe(alert.Status)
	s.logger.Info("Alert sent", "file_name", rec.FileName, "level", string(alert.Level))
	return alert, nil
}

func (s *service) observe(status model.AlertStatus) {
	if s.metrics == nil {
		return
	}
	s.metrics.AlertsSent.WithLabelValues(string(status)).Inc()
}

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwalitptl/medbot-api/internal/llm"
	"github.com/jwalitptl/medbot-api/internal/matcher"
	"github.com/jwalitptl/medbot-api/internal/model"
	"github.com/jwalitptl/medbot-api/internal/prompt"
	"github.com/jwalitptl/medbot-api/internal/repository"
	"github.com/jwalitptl/medbot-api/pkg/logger"
	"github.com/jwalitptl/medbot-api/pkg/metrics"
)

var (
	ErrEmptyMessage = errors.New("message is required")
	// ErrSuperseded is returned when a newer message of the same session
	// arrived while this one was being answered.
	ErrSuperseded = errors.New("reply superseded by a newer message")
)

type Config struct {
	MaxWords   int
	MinScore   float64
	ClipSuffix string
}

type ChatService interface {
	Reply(ctx context.Context, sessionID, message string) (*model.ChatResponse, error)
}

type Service struct {
	gen           llm.TextGenerator
	matcher       *matcher.Matcher
	records       repository.RecordRepository
	prescriptions repository.PrescriptionRepository
	seq           *Sequencer
	cfg           Config
	logger        *logger.Logger
	metrics       *metrics.Metrics
}

func NewService(
	gen llm.TextGenerator,
	m *matcher.Matcher,
	records repository.RecordRepository,
	prescriptions repository.PrescriptionRepository,
	seq *Sequencer,
	cfg Config,
	log *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = prompt.DefaultMaxWords
	}
	if cfg.ClipSuffix == "" {
		cfg.ClipSuffix = ".fbx"
	}
	if seq == nil {
		seq = NewSequencer(0)
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = matcher.New(nil)
	}
	return &Service{
		gen:           gen,
		matcher:       m,
		records:       records,
		prescriptions: prescriptions,
		seq:           seq,
		cfg:           cfg,
		logger:        log,
		metrics:       metrics,
	}
}

// Reply answers one chat message. Exercise requests are matched against
// the catalog first; health questions carry the stored records as context.
func (s *Service) Reply(ctx context.Context, sessionID, message string) (*model.ChatResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	seq := s.seq.Next(sessionID)

	resp, err := s.reply(ctx, message)
	if err != nil {
		s.observe("none", "error")
		return nil, err
	}

	if !s.seq.IsLatest(sessionID, seq) {
		s.observe(string(resp.Kind), "superseded")
		s.logger.Debug("Discarding superseded reply", "session_id", sessionID, "seq", seq)
		return nil, ErrSuperseded
	}

	s.observe(string(resp.Kind), "ok")
	return resp, nil
}

func (s *Service) reply(ctx context.Context, message string) (*model.ChatResponse, error) {
	health := prompt.IsHealthQuery(message)

	if prompt.IsExerciseRequest(message) && s.matcher.Len() > 0 {
		best, ok := s.matcher.Best(message)
		if s.metrics != nil && ok {
			s.metrics.MatchScore.Observe(best.Score)
		}
		matched := ok && best.Score >= s.cfg.MinScore
		switch {
		case matched:
			return s.exerciseReply(ctx, message, best, health)
		case !health:
			return &model.ChatResponse{Reply: prompt.NoMatchMessage, Kind: model.PromptFallback}, nil
		}
		// Exercise keywords are loose substrings; a health question with no
		// real catalog match is answered from the records.
	}

	kind := model.PromptDefault
	text := prompt.Default(message, s.cfg.MaxWords)

	if health {
		records, err := s.records.LoadAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load health records: %w", err)
		}
		kind = model.PromptHealth
		text = prompt.HealthContext(records, message, s.cfg.MaxWords)
	}

	if prompt.IsPrescriptionQuery(message) {
		if summary := s.latestPrescriptionSummary(ctx); summary != "" {
			kind = model.PromptHealth
			text = prompt.WithPrescription(text, summary)
		}
	}

	reply, err := s.gen.Complete(ctx, text)
	if err != nil {
		return nil, err
	}

	return &model.ChatResponse{
		Reply: prompt.Truncate(reply, s.cfg.MaxWords),
		Kind:  kind,
	}, nil
}

// exerciseReply asks for a reply about the matched entry. Health questions
// also get the record dump in front of the structured prompt.
func (s *Service) exerciseReply(ctx context.Context, message string, best model.SimilarityResult, health bool) (*model.ChatResponse, error) {
	text := prompt.Structured(message, best.Entry)
	if health {
		records, err := s.records.LoadAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load health records: %w", err)
		}
		text = prompt.WithRecords(text, records)
	}

	reply, err := s.gen.Complete(ctx, text)
	if err != nil {
		return nil, err
	}

	clip, found := prompt.ExtractQuoted(reply, s.cfg.ClipSuffix)
	if !found {
		clip = best.Entry.ID
	}

	entry := best.Entry
	return &model.ChatResponse{
		Reply: prompt.Truncate(reply, s.cfg.MaxWords),
		Kind:  model.PromptStructured,
		Match: &entry,
		Clip:  clip,
	}, nil
}

func (s *Service) latestPrescriptionSummary(ctx context.Context) string {
	if s.prescriptions == nil {
		return ""
	}
	p, err := s.prescriptions.Latest(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error(err, "Failed to load latest prescription")
		}
		return ""
	}
	return prompt.PrescriptionSummary(p)
}

func (s *Service) observe(kind, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ChatReplies.WithLabelValues(kind, outcome).Inc()
}

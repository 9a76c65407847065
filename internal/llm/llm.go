// Package llm talks to the external text-generation service.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/medbot-api/pkg/circuitbreaker"
	"github.com/jwalitptl/medbot-api/pkg/metrics"
)

var (
	// ErrUnavailable covers network failures, timeouts, non-2xx replies and
	// an open circuit breaker.
	ErrUnavailable = errors.New("generation service unavailable")
	// ErrServiceError is returned when the service answers with an explicit
	// error payload.
	ErrServiceError = errors.New("generation service error")
)

// DefaultTimeout bounds every generation call when none is configured.
const DefaultTimeout = 30 * time.Second

// TextGenerator produces a reply for a prompt.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	BaseURL  string
	Model    string
	APIKey   string
	Timeout  time.Duration

	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// New builds the configured provider wrapped in a circuit breaker.
func New(cfg Config, m *metrics.Metrics) (TextGenerator, error) {
	var gen TextGenerator
	switch cfg.Provider {
	case "gemini", "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key")
		}
		gen = NewGeminiClient(GeminiConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		})
	case "relay":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("relay provider requires a base URL")
		}
		gen = NewRelayClient(RelayConfig{URL: cfg.BaseURL, Timeout: cfg.Timeout})
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}

	provider := cfg.Provider
	if provider == "" {
		provider = "gemini"
	}

	gen = WithBreaker(gen, circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:         provider,
		MaxFailures:  cfg.BreakerFailures,
		Timeout:      cfg.BreakerTimeout,
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, ErrServiceError) },
	}))
	return Instrument(gen, provider, m), nil
}

type breakerGenerator struct {
	next TextGenerator
	cb   *circuitbreaker.CircuitBreaker
}

// WithBreaker routes calls through cb. Rejected calls fail with ErrUnavailable.
func WithBreaker(gen TextGenerator, cb *circuitbreaker.CircuitBreaker) TextGenerator {
	return &breakerGenerator{next: gen, cb: cb}
}

func (g *breakerGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	var reply string
	err := g.cb.Execute(func() error {
		var err error
		reply, err = g.next.Complete(ctx, prompt)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return reply, err
}

type instrumentedGenerator struct {
	next     TextGenerator
	provider string
	metrics  *metrics.Metrics
}

// Instrument records call latency and failures per error class.
func Instrument(gen TextGenerator, provider string, m *metrics.Metrics) TextGenerator {
	if m == nil {
		return gen
	}
	return &instrumentedGenerator{next: gen, provider: provider, metrics: m}
}

func (g *instrumentedGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	reply, err := g.next.Complete(ctx, prompt)
	g.metrics.GenerationLatency.WithLabelValues(g.provider).Observe(time.Since(start).Seconds())
	if err != nil {
		g.metrics.GenerationErrors.WithLabelValues(g.provider, Classify(err)).Inc()
	}
	return reply, err
}

// Classify names the error class of err: "service", "unavailable" or "other".
func Classify(err error) string {
	switch {
	case errors.Is(err, ErrServiceError):
		return "service"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}

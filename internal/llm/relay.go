package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RelayConfig configures a client for another relay server speaking the
// {prompt} -> {reply} | {error} protocol.
type RelayConfig struct {
	URL     string
	Timeout time.Duration
}

type RelayClient struct {
	cfg    RelayConfig
	client *http.Client
}

func NewRelayClient(cfg RelayConfig) *RelayClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &RelayClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type relayRequest struct {
	Prompt string `json:"prompt"`
}

type relayResponse struct {
	Reply string `json:"reply"`
	Error string `json:"error"`
}

func (c *RelayClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	jsonData, err := json.Marshal(relayRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	var respData relayResponse
	decodeErr := json.Unmarshal(body, &respData)

	// An explicit error payload wins over the status code.
	if decodeErr == nil && respData.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrServiceError, respData.Error)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: relay returned status %d", ErrUnavailable, resp.StatusCode)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", ErrUnavailable, decodeErr)
	}
	return respData.Reply, nil
}

var _ TextGenerator = (*RelayClient)(nil)

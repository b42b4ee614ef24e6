package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Endpoint is one registered provider destination.
type Endpoint struct {
	URL     string            `json:"url"     yaml:"url"`
	Headers map[string]string `json:"headers" yaml:"headers"`
}

// HTTPInvoker calls registered provider endpoints over HTTP with JSON
// payloads. Unknown provider IDs and non-2xx responses are ConnectorErrors;
// deadline hits are TimeoutErrors.
type HTTPInvoker struct {
	endpoints map[string]Endpoint
	client    *http.Client
	logger    *slog.Logger
}

// NewHTTPInvoker creates an invoker for the given provider endpoints.
func NewHTTPInvoker(endpoints map[string]Endpoint, logger *slog.Logger) *HTTPInvoker {
	return &HTTPInvoker{
		endpoints: endpoints,
		client:    &http.Client{},
		logger:    logger.With("module", "provider_invoker"),
	}
}

func (p *HTTPInvoker) Invoke(ctx context.Context, providerID string, payload map[string]any, timeout time.Duration) (map[string]any, error) {
	endpoint, ok := p.endpoints[providerID]
	if !ok {
		return nil, &ConnectorError{ProviderID: providerID, Err: fmt.Errorf("provider %q not registered", providerID)}
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ConnectorError{ProviderID: providerID, Err: err}
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &ConnectorError{ProviderID: providerID, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range endpoint.Headers {
		req.Header.Set(key, value)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{ProviderID: providerID, Timeout: timeout}
		}

		return nil, &ConnectorError{ProviderID: providerID, Err: err}
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.Warn("Failed to close provider response body", "provider_id", providerID, "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ConnectorError{ProviderID: providerID, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectorError{ProviderID: providerID, Err: err}
	}

	result := make(map[string]any)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, &ConnectorError{ProviderID: providerID, Err: fmt.Errorf("invalid provider response: %w", err)}
		}
	}

	return result, nil
}

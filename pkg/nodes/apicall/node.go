// Package apicall provides the api_call node executor.
package apicall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/nodes"
	"github.com/finwatch/sentinel/pkg/providers"
	"github.com/finwatch/sentinel/pkg/template"
)

const defaultTimeout = 30 * time.Second

// Executor performs a templated HTTP call. Any non-2xx response is a
// connector error; the optional response path extracts a sub-value from the
// decoded JSON body.
type Executor struct {
	client *http.Client
}

func NewExecutor() *Executor {
	return &Executor{client: &http.Client{}}
}

func (e *Executor) Kind() models.NodeKind {
	return models.NodeKindAPICall
}

func (e *Executor) Execute(ctx context.Context, node *models.Node, execCtx *models.ExecutionContext) (*nodes.Result, error) {
	cfg, ok := node.Config.(models.APICallConfig)
	if !ok {
		return nil, fmt.Errorf("node %s: config is not an api call config", node.ID)
	}

	var warnings []string

	url, w := template.Resolve(cfg.URL, execCtx)
	warnings = append(warnings, w...)

	if url == "" {
		return &nodes.Result{Warnings: warnings}, &providers.ConnectorError{
			ProviderID: node.ID,
			Err:        errors.New("url template resolved to empty string"),
		}
	}

	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader

	if cfg.Body != "" {
		rendered, bw := template.Resolve(cfg.Body, execCtx)
		warnings = append(warnings, bw...)
		body = strings.NewReader(rendered)
	}

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, url, body)
	if err != nil {
		return &nodes.Result{Warnings: warnings}, &providers.ConnectorError{ProviderID: node.ID, Err: err}
	}

	for key, value := range cfg.Headers {
		rendered, hw := template.Resolve(value, execCtx)
		warnings = append(warnings, hw...)
		req.Header.Set(key, rendered)
	}

	if cfg.Body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return &nodes.Result{Warnings: warnings}, &providers.TimeoutError{ProviderID: node.ID, Timeout: timeout}
		}

		return &nodes.Result{Warnings: warnings}, &providers.ConnectorError{ProviderID: node.ID, Err: err}
	}

	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &nodes.Result{Warnings: warnings}, &providers.ConnectorError{ProviderID: node.ID, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &nodes.Result{Warnings: warnings}, &providers.ConnectorError{ProviderID: node.ID, Err: err}
	}

	var output any

	if len(data) > 0 {
		if err := json.Unmarshal(data, &output); err != nil {
			// Non-JSON bodies are kept verbatim
			output = string(data)
		}
	}

	if cfg.ResponsePath != "" {
		extracted, found := nodes.ExtractPath(output, cfg.ResponsePath)
		if !found {
			warnings = append(warnings, fmt.Sprintf("response path %q not found in response", cfg.ResponsePath))
			extracted = nil
		}

		output = extracted
	}

	return &nodes.Result{Output: output, Warnings: warnings}, nil
}

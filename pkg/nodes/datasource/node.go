// Package datasource provides the data-source node executor, which invokes a
// named external verification provider.
package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/nodes"
	"github.com/finwatch/sentinel/pkg/providers"
	"github.com/finwatch/sentinel/pkg/template"
)

const defaultTimeout = 30 * time.Second

// Executor invokes the provider contract with resolved input and applies the
// optional response-mapping path to the result.
type Executor struct {
	invoker providers.Invoker
}

func NewExecutor(invoker providers.Invoker) *Executor {
	return &Executor{invoker: invoker}
}

func (e *Executor) Kind() models.NodeKind {
	return models.NodeKindDataSource
}

func (e *Executor) Execute(ctx context.Context, node *models.Node, execCtx *models.ExecutionContext) (*nodes.Result, error) {
	cfg, ok := node.Config.(models.DataSourceConfig)
	if !ok {
		return nil, fmt.Errorf("node %s: config is not a data source config", node.ID)
	}

	payload, warnings := template.ResolveMap(cfg.Payload, execCtx)

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	response, err := e.invoker.Invoke(ctx, cfg.ProviderID, payload, timeout)
	if err != nil {
		return &nodes.Result{Warnings: warnings}, err
	}

	output := any(response)

	if cfg.ResponsePath != "" {
		extracted, found := nodes.ExtractPath(response, cfg.ResponsePath)
		if !found {
			warnings = append(warnings, fmt.Sprintf("response path %q not found in provider response", cfg.ResponsePath))
			extracted = nil
		}

		output = extracted
	}

	return &nodes.Result{Output: output, Warnings: warnings}, nil
}

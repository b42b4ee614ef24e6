// Package start provides the start node executor.
package start

import (
	"context"
	"time"

	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/nodes"
)

// Executor marks the beginning of a run; it does no work.
type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

func (e *Executor) Kind() models.NodeKind {
	return models.NodeKindStart
}

func (e *Executor) Execute(_ context.Context, _ *models.Node, _ *models.ExecutionContext) (*nodes.Result, error) {
	return &nodes.Result{
		Output: map[string]any{"started_at": time.Now().UTC().Format(time.RFC3339)},
	}, nil
}

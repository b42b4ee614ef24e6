// Package registry wires node executors to node kinds and exposes their
// configuration schemas for editor consumption.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/nodes"
	"github.com/finwatch/sentinel/pkg/nodes/action"
	"github.com/finwatch/sentinel/pkg/nodes/apicall"
	"github.com/finwatch/sentinel/pkg/nodes/conditional"
	"github.com/finwatch/sentinel/pkg/nodes/datasource"
	"github.com/finwatch/sentinel/pkg/nodes/start"
	"github.com/finwatch/sentinel/pkg/nodes/terminal"
	"github.com/finwatch/sentinel/pkg/providers"
)

type Registry struct {
	logger    *slog.Logger
	executors map[models.NodeKind]nodes.Executor
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		executors: make(map[models.NodeKind]nodes.Executor),
	}
}

// NewDefaultRegistry registers every built-in node kind with its executor.
func NewDefaultRegistry(logger *slog.Logger, invoker providers.Invoker, effects nodes.EffectPort) *Registry {
	r := NewRegistry(logger)

	r.Register(start.NewExecutor())
	r.Register(datasource.NewExecutor(invoker))
	r.Register(apicall.NewExecutor())
	r.Register(conditional.NewExecutor())
	r.Register(action.NewExecutor(effects))
	r.Register(action.NewCustomCodeExecutor())
	r.Register(terminal.NewApproveExecutor())
	r.Register(terminal.NewRejectExecutor())
	r.Register(terminal.NewManualReviewExecutor())

	return r
}

func (r *Registry) Register(executor nodes.Executor) {
	r.executors[executor.Kind()] = executor
}

// ExecutorFor returns the executor for a node kind.
func (r *Registry) ExecutorFor(kind models.NodeKind) (nodes.Executor, error) {
	executor, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("node kind %q not registered", kind)
	}

	return executor, nil
}

// Kinds lists every registered node kind.
func (r *Registry) Kinds() []models.NodeKind {
	kinds := make([]models.NodeKind, 0, len(r.executors))
	for kind := range r.executors {
		kinds = append(kinds, kind)
	}

	return kinds
}

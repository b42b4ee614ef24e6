// Package nodes defines the execution contract every node kind fulfills.
package nodes

import (
	"context"
	"log/slog"

	"github.com/finwatch/sentinel/pkg/models"
)

// Result is what one node invocation produces. Branch is set only by
// condition nodes; Decision only by terminal nodes.
type Result struct {
	Output   any
	Branch   string
	Decision models.Decision
	Warnings []string
}

// Executor runs one node kind. Executors are stateless across runs; all
// per-run state lives in the execution context. Blocking executors must
// honor ctx cancellation.
type Executor interface {
	Kind() models.NodeKind
	Execute(ctx context.Context, node *models.Node, execCtx *models.ExecutionContext) (*Result, error)
}

// EffectPort is the injected side-effect boundary action nodes emit through.
type EffectPort interface {
	Emit(ctx context.Context, name string, params map[string]any) error
}

// LogEffects is an EffectPort that only records the effect. It stands in
// where no downstream effect consumer is wired.
type LogEffects struct {
	logger *slog.Logger
}

func NewLogEffects(logger *slog.Logger) *LogEffects {
	return &LogEffects{logger: logger.With("module", "effects")}
}

func (e *LogEffects) Emit(_ context.Context, name string, params map[string]any) error {
	e.logger.Info("Emitting side effect", "effect", name, "params", params)

	return nil
}

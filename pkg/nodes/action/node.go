// Package action provides the action and custom_code node executors. Both
// run bounded transformations against the execution's context variables;
// action nodes may additionally emit a side effect through the injected
// effect port.
package action

import (
	"context"
	"fmt"

	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/nodes"
	"github.com/finwatch/sentinel/pkg/template"
)

// Executor runs action nodes.
type Executor struct {
	effects nodes.EffectPort
}

func NewExecutor(effects nodes.EffectPort) *Executor {
	return &Executor{effects: effects}
}

func (e *Executor) Kind() models.NodeKind {
	return models.NodeKindAction
}

func (e *Executor) Execute(ctx context.Context, node *models.Node, execCtx *models.ExecutionContext) (*nodes.Result, error) {
	cfg, ok := node.Config.(models.ActionConfig)
	if !ok {
		return nil, fmt.Errorf("node %s: config is not an action config", node.ID)
	}

	assigned, warnings := applyAssignments(cfg.Set, execCtx)

	output := map[string]any{"assigned": assigned}

	if cfg.Effect != "" {
		params, pw := template.ResolveMap(cfg.Params, execCtx)
		warnings = append(warnings, pw...)

		if err := e.effects.Emit(ctx, cfg.Effect, params); err != nil {
			return &nodes.Result{Warnings: warnings}, fmt.Errorf("effect %q failed: %w", cfg.Effect, err)
		}

		output["effect"] = cfg.Effect
	}

	return &nodes.Result{Output: output, Warnings: warnings}, nil
}

// CustomCodeExecutor runs custom_code nodes: a bounded set of template
// assignments, with no general scripting.
type CustomCodeExecutor struct{}

func NewCustomCodeExecutor() *CustomCodeExecutor {
	return &CustomCodeExecutor{}
}

func (e *CustomCodeExecutor) Kind() models.NodeKind {
	return models.NodeKindCustomCode
}

func (e *CustomCodeExecutor) Execute(_ context.Context, node *models.Node, execCtx *models.ExecutionContext) (*nodes.Result, error) {
	cfg, ok := node.Config.(models.CustomCodeConfig)
	if !ok {
		return nil, fmt.Errorf("node %s: config is not a custom code config", node.ID)
	}

	assigned, warnings := applyAssignments(cfg.Assignments, execCtx)

	return &nodes.Result{
		Output:   map[string]any{"assigned": assigned},
		Warnings: warnings,
	}, nil
}

// applyAssignments resolves each template and stores the result in the
// execution's context variables.
func applyAssignments(assignments map[string]string, execCtx *models.ExecutionContext) ([]string, []string) {
	resolved, warnings := template.ResolveMap(assignments, execCtx)

	if execCtx.ContextVars == nil {
		execCtx.ContextVars = make(map[string]any, len(resolved))
	}

	keys := make([]string, 0, len(resolved))

	for key, value := range resolved {
		execCtx.ContextVars[key] = value
		keys = append(keys, key)
	}

	return keys, warnings
}

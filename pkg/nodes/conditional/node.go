// Package conditional provides the condition node executor, the control flow
// node that routes traversal along a labeled branch.
package conditional

import (
	"context"
	"fmt"

	"github.com/finwatch/sentinel/pkg/condition"
	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/nodes"
	"github.com/finwatch/sentinel/pkg/template"
)

// Branch labels of the two-branch convention.
const (
	BranchTrue  = "true"
	BranchFalse = "false"
)

// Executor resolves the configured value, applies the operator, and selects
// the branch whose label the engine then follows. Two-branch conditions
// yield "true"/"false"; N-way conditions evaluate one case per declared
// branch, first match wins, and an unmatched value selects no branch.
type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

func (e *Executor) Kind() models.NodeKind {
	return models.NodeKindCondition
}

func (e *Executor) Execute(_ context.Context, node *models.Node, execCtx *models.ExecutionContext) (*nodes.Result, error) {
	cfg, ok := node.Config.(models.ConditionConfig)
	if !ok {
		return nil, fmt.Errorf("node %s: config is not a condition config", node.ID)
	}

	value, warnings := template.ResolveValue(cfg.Value, execCtx)

	if len(cfg.Cases) > 0 {
		return e.executeCases(cfg, value, warnings)
	}

	matched, err := condition.Evaluate(value, cfg.Operator, cfg.Literal)
	if err != nil {
		return &nodes.Result{Warnings: warnings}, err
	}

	branch := BranchFalse
	if matched {
		branch = BranchTrue
	}

	return &nodes.Result{
		Branch: branch,
		Output: map[string]any{
			"matched":         matched,
			"evaluated_value": value,
		},
		Warnings: warnings,
	}, nil
}

// executeCases shares one resolved value across the branch set, evaluating
// the operator once per case.
func (e *Executor) executeCases(cfg models.ConditionConfig, value any, warnings []string) (*nodes.Result, error) {
	for _, cs := range cfg.Cases {
		matched, err := condition.Evaluate(value, cfg.Operator, cs.Literal)
		if err != nil {
			return &nodes.Result{Warnings: warnings}, err
		}

		if matched {
			return &nodes.Result{
				Branch: cs.Branch,
				Output: map[string]any{
					"matched_case":    cs.Branch,
					"evaluated_value": value,
				},
				Warnings: warnings,
			}, nil
		}
	}

	// No case matched; the engine records the run as incomplete.
	return &nodes.Result{
		Output:   map[string]any{"evaluated_value": value},
		Warnings: warnings,
	}, nil
}

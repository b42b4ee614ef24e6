// Package terminal provides the approve, reject, and manual_review node
// executors, which end traversal and fix the run's final decision.
package terminal

import (
	"context"
	"fmt"

	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/nodes"
	"github.com/finwatch/sentinel/pkg/template"
)

// Executor handles one terminal kind.
type Executor struct {
	kind     models.NodeKind
	decision models.Decision
}

func NewApproveExecutor() *Executor {
	return &Executor{kind: models.NodeKindApprove, decision: models.DecisionApproved}
}

func NewRejectExecutor() *Executor {
	return &Executor{kind: models.NodeKindReject, decision: models.DecisionRejected}
}

func NewManualReviewExecutor() *Executor {
	return &Executor{kind: models.NodeKindManualReview, decision: models.DecisionManualReview}
}

func (e *Executor) Kind() models.NodeKind {
	return e.kind
}

func (e *Executor) Execute(_ context.Context, node *models.Node, execCtx *models.ExecutionContext) (*nodes.Result, error) {
	cfg, ok := node.Config.(models.TerminalConfig)
	if !ok {
		return nil, fmt.Errorf("node %s: config is not a terminal config", node.ID)
	}

	output := map[string]any{"decision": string(e.decision)}

	var warnings []string

	if cfg.Reason != "" {
		reason, w := template.Resolve(cfg.Reason, execCtx)
		warnings = w
		output["reason"] = reason
	}

	return &nodes.Result{
		Decision: e.decision,
		Output:   output,
		Warnings: warnings,
	}, nil
}

package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwatch/sentinel/pkg/abrouter"
	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/nodes"
	"github.com/finwatch/sentinel/pkg/persistence/file"
	"github.com/finwatch/sentinel/pkg/registry"
)

// flakyInvoker fails the first failures calls, then answers successfully.
type flakyInvoker struct {
	mu       sync.Mutex
	failures int
	calls    int
	response map[string]any
}

func (f *flakyInvoker) Invoke(_ context.Context, providerID string, _ map[string]any, _ time.Duration) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("provider " + providerID + " unavailable")
	}

	return f.response, nil
}

func newTestEngine(t *testing.T, invoker *flakyInvoker) (*Engine, *file.Persistence) {
	t.Helper()

	logger := slog.Default()
	persist := file.NewPersistence(t.TempDir())
	reg := registry.NewDefaultRegistry(logger, invoker, nodes.NewLogEffects(logger))
	router := abrouter.NewRouter(logger, persist.PolicyRepository())

	return NewEngine(logger, persist, reg, router, nil, nil), persist
}

func terminalNode(id string, kind models.NodeKind) *models.Node {
	return &models.Node{ID: id, Kind: kind, Config: models.TerminalConfig{}, ErrorHandling: models.ErrorHandlingStop}
}

func amountPolicy() *models.Policy {
	return &models.Policy{
		ID:     "policy-amount",
		Name:   "High amount review",
		Type:   models.PolicyTypeTransaction,
		Status: models.PolicyStatusActive,
		WorkflowDefinition: &models.WorkflowDefinition{
			Nodes: []*models.Node{
				{ID: "start", Kind: models.NodeKindStart, Config: models.StartConfig{}},
				{ID: "check", Kind: models.NodeKindCondition, Config: models.ConditionConfig{
					Value:    "{{input.amount}}",
					Operator: "greater_than",
					Literal:  "100",
				}},
				terminalNode("approve", models.NodeKindApprove),
				terminalNode("reject", models.NodeKindReject),
			},
			Edges: []*models.Edge{
				{ID: "e1", SourceNodeID: "start", TargetNodeID: "check"},
				{ID: "e2", SourceNodeID: "check", TargetNodeID: "reject", BranchLabel: "true"},
				{ID: "e3", SourceNodeID: "check", TargetNodeID: "approve", BranchLabel: "false"},
			},
		},
	}
}

func TestExecutePolicyApproved(t *testing.T) {
	t.Parallel()

	eng, persist := newTestEngine(t, &flakyInvoker{})
	ctx := context.Background()

	require.NoError(t, persist.PolicyRepository().SavePolicy(ctx, amountPolicy()))

	trace, err := eng.ExecutePolicy(ctx, "policy-amount", map[string]any{"amount": 50})
	require.NoError(t, err)

	assert.Equal(t, models.DecisionApproved, trace.Decision)
	assert.Equal(t, models.ExecutionStatusApproved, trace.Status())
	assert.Len(t, trace.Results, 4)
	assert.Equal(t, "false", trace.Results[1].Branch)

	// The trace must be queryable after the run.
	stored, err := persist.TraceRepository().TraceByExecutionID(ctx, trace.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionApproved, stored.Decision)

	// Outcome statistics are recorded against the executed policy.
	policy, err := persist.PolicyRepository().PolicyByID(ctx, "policy-amount")
	require.NoError(t, err)
	assert.Equal(t, int64(1), policy.Stats.ExecutionCount)
	assert.Equal(t, int64(1), policy.Stats.ApprovedCount)
	assert.InDelta(t, 1.0, policy.Stats.ApprovalRate, 0.001)
}

func TestExecutePolicyRejected(t *testing.T) {
	t.Parallel()

	eng, persist := newTestEngine(t, &flakyInvoker{})
	ctx := context.Background()

	require.NoError(t, persist.PolicyRepository().SavePolicy(ctx, amountPolicy()))

	trace, err := eng.ExecutePolicy(ctx, "policy-amount", map[string]any{"amount": 250})
	require.NoError(t, err)

	assert.Equal(t, models.DecisionRejected, trace.Decision)
	assert.Equal(t, "true", trace.Results[1].Branch)
}

func TestExecutePolicyNotExecutable(t *testing.T) {
	t.Parallel()

	eng, persist := newTestEngine(t, &flakyInvoker{})
	ctx := context.Background()

	policy := amountPolicy()
	policy.Status = models.PolicyStatusDraft
	require.NoError(t, persist.PolicyRepository().SavePolicy(ctx, policy))

	_, err := eng.ExecutePolicy(ctx, policy.ID, nil)
	require.ErrorIs(t, err, ErrPolicyNotExecutable)
}

func TestExecutePolicyRetrySucceeds(t *testing.T) {
	t.Parallel()

	invoker := &flakyInvoker{failures: 2, response: map[string]any{"score": 0.2}}
	eng, persist := newTestEngine(t, invoker)
	ctx := context.Background()

	policy := &models.Policy{
		ID:     "policy-retry",
		Name:   "Provider lookup",
		Type:   models.PolicyTypeTransaction,
		Status: models.PolicyStatusActive,
		WorkflowDefinition: &models.WorkflowDefinition{
			Nodes: []*models.Node{
				{ID: "start", Kind: models.NodeKindStart, Config: models.StartConfig{}},
				{ID: "lookup", Kind: models.NodeKindDataSource, Config: models.DataSourceConfig{
					ProviderID: "risk-scorer",
				}, ErrorHandling: models.ErrorHandlingRetry, RetryCount: 3},
				terminalNode("approve", models.NodeKindApprove),
			},
			Edges: []*models.Edge{
				{ID: "e1", SourceNodeID: "start", TargetNodeID: "lookup"},
				{ID: "e2", SourceNodeID: "lookup", TargetNodeID: "approve"},
			},
		},
	}
	require.NoError(t, persist.PolicyRepository().SavePolicy(ctx, policy))

	trace, err := eng.ExecutePolicy(ctx, policy.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.DecisionApproved, trace.Decision)
	assert.Equal(t, 3, trace.Results[1].Attempts)
	assert.Equal(t, 3, invoker.calls)
	assert.Equal(t, models.NodeResultSuccess, trace.Results[1].Status)
}

func TestExecutePolicyStopOnError(t *testing.T) {
	t.Parallel()

	invoker := &flakyInvoker{failures: 10}
	eng, persist := newTestEngine(t, invoker)
	ctx := context.Background()

	policy := &models.Policy{
		ID:     "policy-failing",
		Name:   "Failing lookup",
		Type:   models.PolicyTypeTransaction,
		Status: models.PolicyStatusActive,
		WorkflowDefinition: &models.WorkflowDefinition{
			Nodes: []*models.Node{
				{ID: "start", Kind: models.NodeKindStart, Config: models.StartConfig{}},
				{ID: "lookup", Kind: models.NodeKindDataSource, Config: models.DataSourceConfig{
					ProviderID: "risk-scorer",
				}, ErrorHandling: models.ErrorHandlingStop},
				terminalNode("approve", models.NodeKindApprove),
			},
			Edges: []*models.Edge{
				{ID: "e1", SourceNodeID: "start", TargetNodeID: "lookup"},
				{ID: "e2", SourceNodeID: "lookup", TargetNodeID: "approve"},
			},
		},
	}
	require.NoError(t, persist.PolicyRepository().SavePolicy(ctx, policy))

	trace, err := eng.ExecutePolicy(ctx, policy.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.DecisionFailed, trace.Decision)
	assert.Equal(t, "lookup", trace.FailedNode)
	assert.NotEmpty(t, trace.Error)

	// Partial traces are persisted for audit even on failure.
	stored, err := persist.TraceRepository().TraceByExecutionID(ctx, trace.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionFailed, stored.Decision)

	// Failed runs do not count toward approval statistics.
	policyAfter, err := persist.PolicyRepository().PolicyByID(ctx, policy.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), policyAfter.Stats.ExecutionCount)
}

func TestExecutePolicyContinueOnError(t *testing.T) {
	t.Parallel()

	invoker := &flakyInvoker{failures: 10}
	eng, persist := newTestEngine(t, invoker)
	ctx := context.Background()

	policy := &models.Policy{
		ID:     "policy-continue",
		Name:   "Optional enrichment",
		Type:   models.PolicyTypeTransaction,
		Status: models.PolicyStatusActive,
		WorkflowDefinition: &models.WorkflowDefinition{
			Nodes: []*models.Node{
				{ID: "start", Kind: models.NodeKindStart, Config: models.StartConfig{}},
				{ID: "enrich", Kind: models.NodeKindDataSource, Config: models.DataSourceConfig{
					ProviderID: "enrichment",
				}, ErrorHandling: models.ErrorHandlingContinue},
				terminalNode("approve", models.NodeKindApprove),
			},
			Edges: []*models.Edge{
				{ID: "e1", SourceNodeID: "start", TargetNodeID: "enrich"},
				{ID: "e2", SourceNodeID: "enrich", TargetNodeID: "approve"},
			},
		},
	}
	require.NoError(t, persist.PolicyRepository().SavePolicy(ctx, policy))

	trace, err := eng.ExecutePolicy(ctx, policy.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.DecisionApproved, trace.Decision)
	assert.Equal(t, models.NodeResultError, trace.Results[1].Status)
}

func TestExecutePolicyCycleDetectedAtRuntime(t *testing.T) {
	t.Parallel()

	eng, persist := newTestEngine(t, &flakyInvoker{})
	ctx := context.Background()

	// This graph bypasses load-time validation deliberately; the engine's
	// visited set is the second line of defense.
	policy := &models.Policy{
		ID:     "policy-cycle",
		Name:   "Corrupted graph",
		Type:   models.PolicyTypeTransaction,
		Status: models.PolicyStatusActive,
		WorkflowDefinition: &models.WorkflowDefinition{
			Nodes: []*models.Node{
				{ID: "start", Kind: models.NodeKindStart, Config: models.StartConfig{}},
				{ID: "assign", Kind: models.NodeKindCustomCode, Config: models.CustomCodeConfig{
					Assignments: map[string]string{"step": "loop"},
				}},
			},
			Edges: []*models.Edge{
				{ID: "e1", SourceNodeID: "start", TargetNodeID: "assign"},
				{ID: "e2", SourceNodeID: "assign", TargetNodeID: "start"},
			},
		},
	}
	require.NoError(t, persist.PolicyRepository().SavePolicy(ctx, policy))

	trace, err := eng.ExecutePolicy(ctx, policy.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.DecisionFailed, trace.Decision)
	assert.Contains(t, trace.Error, "cycle detected")
}

func TestExecutePolicyIncomplete(t *testing.T) {
	t.Parallel()

	eng, persist := newTestEngine(t, &flakyInvoker{})
	ctx := context.Background()

	policy := &models.Policy{
		ID:     "policy-incomplete",
		Name:   "Unmatched case routing",
		Type:   models.PolicyTypeTransaction,
		Status: models.PolicyStatusActive,
		WorkflowDefinition: &models.WorkflowDefinition{
			Nodes: []*models.Node{
				{ID: "start", Kind: models.NodeKindStart, Config: models.StartConfig{}},
				{ID: "route", Kind: models.NodeKindCondition, Config: models.ConditionConfig{
					Value:    "{{input.country}}",
					Operator: "equals",
					Branches: []string{"domestic", "eu"},
					Cases: []models.Case{
						{Branch: "domestic", Literal: "US"},
						{Branch: "eu", Literal: "DE"},
					},
				}},
				terminalNode("approve", models.NodeKindApprove),
				terminalNode("review", models.NodeKindManualReview),
			},
			Edges: []*models.Edge{
				{ID: "e1", SourceNodeID: "start", TargetNodeID: "route"},
				{ID: "e2", SourceNodeID: "route", TargetNodeID: "approve", BranchLabel: "domestic"},
				{ID: "e3", SourceNodeID: "route", TargetNodeID: "review", BranchLabel: "eu"},
			},
		},
	}
	require.NoError(t, persist.PolicyRepository().SavePolicy(ctx, policy))

	trace, err := eng.ExecutePolicy(ctx, policy.ID, map[string]any{"country": "BR"})
	require.NoError(t, err)

	assert.Equal(t, models.DecisionIncomplete, trace.Decision)
	assert.Equal(t, models.ExecutionStatusIncomplete, trace.Status())
	assert.Contains(t, trace.Error, "no outgoing edge")
}

func TestExecutePolicyCancellation(t *testing.T) {
	t.Parallel()

	eng, persist := newTestEngine(t, &flakyInvoker{})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, persist.PolicyRepository().SavePolicy(context.Background(), amountPolicy()))

	cancel()

	trace, err := eng.ExecutePolicy(ctx, "policy-amount", map[string]any{"amount": 50})
	if err != nil {
		// Cancellation before the policy load is a startup error.
		return
	}

	assert.Equal(t, models.DecisionFailed, trace.Decision)
	assert.Contains(t, trace.Error, "cancel")
}

func TestExecutePolicyRecordsSkippedBranch(t *testing.T) {
	t.Parallel()

	eng, persist := newTestEngine(t, &flakyInvoker{})
	ctx := context.Background()

	require.NoError(t, persist.PolicyRepository().SavePolicy(ctx, amountPolicy()))

	trace, err := eng.ExecutePolicy(ctx, "policy-amount", map[string]any{"amount": 250})
	require.NoError(t, err)

	assert.Equal(t, models.DecisionRejected, trace.Decision)
	assert.Len(t, trace.Results, 4)

	// The approve branch was never taken; the trace still accounts for it.
	skipped := resultFor(t, trace.Results, "approve")
	assert.Equal(t, models.NodeResultSkipped, skipped.Status)
	assert.Zero(t, skipped.Attempts)

	for _, id := range []string{"start", "check", "reject"} {
		assert.Equal(t, models.NodeResultSuccess, resultFor(t, trace.Results, id).Status)
	}
}

// stalledEffects never returns until the invocation context is cancelled.
type stalledEffects struct{}

func (stalledEffects) Emit(ctx context.Context, _ string, _ map[string]any) error {
	<-ctx.Done()

	return ctx.Err()
}

func TestExecutePolicyNodeTimeoutBoundsStalledEffect(t *testing.T) {
	t.Parallel()

	logger := slog.Default()
	persist := file.NewPersistence(t.TempDir())
	reg := registry.NewDefaultRegistry(logger, &flakyInvoker{}, stalledEffects{})
	router := abrouter.NewRouter(logger, persist.PolicyRepository())
	eng := NewEngine(logger, persist, reg, router, nil, nil)
	ctx := context.Background()

	policy := &models.Policy{
		ID:     "policy-stalled",
		Name:   "Stalled side effect",
		Type:   models.PolicyTypeTransaction,
		Status: models.PolicyStatusActive,
		WorkflowDefinition: &models.WorkflowDefinition{
			Nodes: []*models.Node{
				{ID: "start", Kind: models.NodeKindStart, Config: models.StartConfig{}},
				{ID: "notify", Kind: models.NodeKindAction, Config: models.ActionConfig{
					Effect:         "notify-ops",
					TimeoutSeconds: 1,
				}, ErrorHandling: models.ErrorHandlingStop},
				terminalNode("approve", models.NodeKindApprove),
			},
			Edges: []*models.Edge{
				{ID: "e1", SourceNodeID: "start", TargetNodeID: "notify"},
				{ID: "e2", SourceNodeID: "notify", TargetNodeID: "approve"},
			},
		},
	}
	require.NoError(t, persist.PolicyRepository().SavePolicy(ctx, policy))

	var (
		trace   *models.ExecutionTrace
		execErr error
	)

	done := make(chan struct{})

	go func() {
		trace, execErr = eng.ExecutePolicy(ctx, policy.ID, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("execution did not return after the node timeout elapsed")
	}

	require.NoError(t, execErr)
	assert.Equal(t, models.DecisionFailed, trace.Decision)
	assert.Equal(t, "notify", trace.FailedNode)
	assert.Contains(t, trace.Error, context.DeadlineExceeded.Error())
}

func resultFor(t *testing.T, results []models.NodeResult, nodeID string) models.NodeResult {
	t.Helper()

	for _, r := range results {
		if r.NodeID == nodeID {
			return r
		}
	}

	t.Fatalf("no result recorded for node %s", nodeID)

	return models.NodeResult{}
}

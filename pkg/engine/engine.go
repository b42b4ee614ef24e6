// Package engine executes policy workflow graphs against input records and
// produces auditable decisions with per-node traces.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/finwatch/sentinel/pkg/abrouter"
	"github.com/finwatch/sentinel/pkg/eventbus"
	"github.com/finwatch/sentinel/pkg/events"
	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/nodes"
	"github.com/finwatch/sentinel/pkg/otelhelper"
	"github.com/finwatch/sentinel/pkg/persistence"
	"github.com/finwatch/sentinel/pkg/registry"
)

const (
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 5 * time.Second

	// defaultNodeTimeout bounds a single executor invocation when the
	// node's config does not carry its own timeout.
	defaultNodeTimeout = 30 * time.Second
)

type Engine struct {
	logger   *slog.Logger
	persist  persistence.Persistence
	registry *registry.Registry
	router   *abrouter.Router
	eventBus eventbus.EventPublisher
	tracer   trace.Tracer
}

// NewEngine wires the engine. The event bus and tracer are optional; a nil
// value disables that integration.
func NewEngine(
	logger *slog.Logger,
	persist persistence.Persistence,
	reg *registry.Registry,
	router *abrouter.Router,
	bus eventbus.EventPublisher,
	tracer trace.Tracer,
) *Engine {
	return &Engine{
		logger:   logger.With("module", "engine"),
		persist:  persist,
		registry: reg,
		router:   router,
		eventBus: bus,
		tracer:   tracer,
	}
}

// ExecutePolicy runs the policy's graph against inputData and returns the
// full execution trace. The trace is persisted before returning, including
// partial traces of failed runs. An error is returned only when the run
// could not start at all; runtime failures are reported in the trace.
func (e *Engine) ExecutePolicy(ctx context.Context, policyID string, inputData map[string]any) (*models.ExecutionTrace, error) {
	policy, err := e.persist.PolicyRepository().PolicyByID(ctx, policyID)
	if err != nil {
		return nil, fmt.Errorf("load policy %s: %w", policyID, err)
	}

	if !policy.IsExecutable() {
		return nil, fmt.Errorf("%w: policy %s has status %s", ErrPolicyNotExecutable, policy.ID, policy.Status)
	}

	assignment, err := e.router.Assign(ctx, policy, idempotencyKey(inputData))
	if err != nil {
		return nil, fmt.Errorf("assign variant for policy %s: %w", policyID, err)
	}

	execCtx := &models.ExecutionContext{
		ID:          uuid.New().String(),
		PolicyID:    assignment.Policy.ID,
		Variant:     assignment.Variant,
		InputData:   inputData,
		Results:     make(map[string]models.NodeResult),
		ContextVars: make(map[string]any),
		Metadata:    make(map[string]any),
	}

	logger := e.logger.With("policy_id", assignment.Policy.ID, "execution_id", execCtx.ID, "variant", assignment.Variant)
	logger.InfoContext(ctx, "Starting policy execution")

	if e.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "engine.execute_policy",
			attribute.String(otelhelper.PolicyIDKey, assignment.Policy.ID),
			attribute.String(otelhelper.ExecutionIDKey, execCtx.ID),
			attribute.String(otelhelper.VariantKey, assignment.Variant),
		)
		defer span.End()
	}

	e.publish(ctx, events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, assignment.Policy.ID),
		ExecutionID: execCtx.ID,
		Variant:     assignment.Variant,
		InputData:   inputData,
	})

	// Each run traverses on its own goroutine with independent
	// cancellation so one slow connector never stalls unrelated runs.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	traceCh := make(chan *models.ExecutionTrace, 1)

	go func() {
		traceCh <- e.run(runCtx, assignment.Policy, execCtx, logger)
	}()

	execTrace := <-traceCh

	e.finalize(ctx, execTrace, logger)

	return execTrace, nil
}

// finalize persists the trace, updates policy statistics and publishes the
// closing lifecycle event. Persistence failures are logged, never raised:
// the decision already happened.
func (e *Engine) finalize(ctx context.Context, execTrace *models.ExecutionTrace, logger *slog.Logger) {
	if err := e.persist.TraceRepository().SaveTrace(ctx, execTrace); err != nil {
		logger.ErrorContext(ctx, "Failed to persist execution trace", "error", err)
	}

	if _, err := e.router.RecordOutcome(ctx, execTrace.PolicyID, execTrace.Decision); err != nil {
		logger.ErrorContext(ctx, "Failed to record execution outcome", "error", err)
	}

	duration := execTrace.CompletedAt.Sub(execTrace.StartedAt)

	switch execTrace.Decision {
	case models.DecisionFailed:
		e.publish(ctx, events.ExecutionFailed{
			BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, execTrace.PolicyID),
			ExecutionID: execTrace.ExecutionID,
			FailedNode:  execTrace.FailedNode,
			Error:       execTrace.Error,
			Duration:    duration,
		})
	default:
		e.publish(ctx, events.ExecutionCompleted{
			BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent, execTrace.PolicyID),
			ExecutionID: execTrace.ExecutionID,
			Decision:    execTrace.Decision,
			Duration:    duration,
		})
	}

	logger.InfoContext(ctx, "Policy execution finished", "decision", execTrace.Decision, "duration", duration)
}

// run walks the graph from the start node following a single active path.
func (e *Engine) run(ctx context.Context, policy *models.Policy, execCtx *models.ExecutionContext, logger *slog.Logger) *models.ExecutionTrace {
	execTrace := &models.ExecutionTrace{
		ExecutionID: execCtx.ID,
		PolicyID:    policy.ID,
		Variant:     execCtx.Variant,
		StartedAt:   time.Now().UTC(),
	}

	def := policy.WorkflowDefinition
	if def == nil {
		return e.fail(execTrace, "", fmt.Errorf("policy %s has no workflow definition", policy.ID))
	}

	current, ok := def.StartNode()
	if !ok {
		return e.fail(execTrace, "", fmt.Errorf("policy %s has no start node", policy.ID))
	}

	visited := make(map[string]bool)

	for {
		if err := ctx.Err(); err != nil {
			return e.fail(execTrace, current.ID, fmt.Errorf("execution cancelled: %w", err))
		}

		if visited[current.ID] {
			return e.fail(execTrace, current.ID, &CycleDetectedError{NodeID: current.ID})
		}

		visited[current.ID] = true

		nodeResult, result := e.executeNode(ctx, current, execCtx, logger)

		execCtx.Results[current.ID] = nodeResult
		execTrace.Results = append(execTrace.Results, nodeResult)

		e.publish(ctx, events.NodeCompleted{
			BaseEvent:   events.NewBaseEvent(events.NodeCompletedEvent, policy.ID),
			ExecutionID: execCtx.ID,
			NodeID:      current.ID,
			Status:      nodeResult.Status,
			Branch:      nodeResult.Branch,
			DurationMs:  nodeResult.CompletedAt.Sub(nodeResult.StartedAt).Milliseconds(),
		})

		if nodeResult.Status == models.NodeResultError && current.ErrorHandling != models.ErrorHandlingContinue {
			return e.fail(execTrace, current.ID, fmt.Errorf("node %s failed: %s", current.ID, nodeResult.Error))
		}

		if current.Kind.IsTerminal() {
			execTrace.Decision = result.Decision
			recordSkipped(execTrace, def, visited)
			execTrace.CompletedAt = time.Now().UTC()

			return execTrace
		}

		next, err := nextNode(def, current, nodeResult)
		if err != nil {
			var notReached *TerminalNotReachedError
			if errors.As(err, &notReached) {
				execTrace.Decision = models.DecisionIncomplete
				execTrace.Error = err.Error()
				execTrace.CompletedAt = time.Now().UTC()

				return execTrace
			}

			return e.fail(execTrace, current.ID, err)
		}

		current = next
	}
}

// recordSkipped appends a skipped result for every node the active path
// never reached, so the trace accounts for the full graph.
func recordSkipped(execTrace *models.ExecutionTrace, def *models.WorkflowDefinition, visited map[string]bool) {
	now := time.Now().UTC()

	for _, node := range def.Nodes {
		if visited[node.ID] {
			continue
		}

		execTrace.Results = append(execTrace.Results, models.NodeResult{
			NodeID:      node.ID,
			Status:      models.NodeResultSkipped,
			StartedAt:   now,
			CompletedAt: now,
		})
	}
}

func (e *Engine) fail(execTrace *models.ExecutionTrace, nodeID string, err error) *models.ExecutionTrace {
	execTrace.Decision = models.DecisionFailed
	execTrace.FailedNode = nodeID
	execTrace.Error = err.Error()
	execTrace.CompletedAt = time.Now().UTC()

	return execTrace
}

// executeNode invokes one node, applying the node's error handling policy.
// Retry re-invokes with capped exponential backoff; the returned result
// records every attempt made.
func (e *Engine) executeNode(ctx context.Context, node *models.Node, execCtx *models.ExecutionContext, logger *slog.Logger) (models.NodeResult, *nodes.Result) {
	nodeResult := models.NodeResult{
		NodeID:    node.ID,
		StartedAt: time.Now().UTC(),
	}

	if e.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "engine.execute_node",
			attribute.String(otelhelper.NodeIDKey, node.ID),
			attribute.String(otelhelper.NodeKindKey, string(node.Kind)),
		)
		defer span.End()
	}

	executor, err := e.registry.ExecutorFor(node.Kind)
	if err != nil {
		nodeResult.Status = models.NodeResultError
		nodeResult.Error = err.Error()
		nodeResult.CompletedAt = time.Now().UTC()

		return nodeResult, &nodes.Result{}
	}

	maxAttempts := 1
	if node.ErrorHandling == models.ErrorHandlingRetry && node.RetryCount > 0 {
		maxAttempts = node.RetryCount
	}

	var (
		result  *nodes.Result
		execErr error
	)

	timeout := nodeTimeout(node)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		nodeResult.Attempts = attempt

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		result, execErr = executor.Execute(attemptCtx, node, execCtx)

		cancel()

		if execErr == nil {
			break
		}

		logger.WarnContext(ctx, "Node execution attempt failed",
			"node_id", node.ID, "attempt", attempt, "error", execErr)

		if attempt < maxAttempts {
			if err := sleepBackoff(ctx, attempt); err != nil {
				execErr = fmt.Errorf("retry interrupted: %w", err)

				break
			}
		}
	}

	nodeResult.CompletedAt = time.Now().UTC()

	if execErr != nil {
		nodeResult.Status = models.NodeResultError
		nodeResult.Error = execErr.Error()

		if e.tracer != nil {
			otelhelper.RecordFailure(trace.SpanFromContext(ctx), execErr)
		}

		return nodeResult, &nodes.Result{}
	}

	nodeResult.Status = models.NodeResultSuccess
	nodeResult.Output = result.Output
	nodeResult.Branch = result.Branch
	nodeResult.Warnings = result.Warnings

	return nodeResult, result
}

// nodeTimeout returns the per-invocation deadline for a node. Configs that
// carry timeout_seconds use it; everything else gets the engine default, so
// no executor can stall a run indefinitely.
func nodeTimeout(node *models.Node) time.Duration {
	var seconds int

	switch cfg := node.Config.(type) {
	case models.DataSourceConfig:
		seconds = cfg.TimeoutSeconds
	case models.APICallConfig:
		seconds = cfg.TimeoutSeconds
	case models.ActionConfig:
		seconds = cfg.TimeoutSeconds
	}

	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultNodeTimeout
}

// nextNode selects the single follow-up edge. Condition nodes pick the edge
// whose branch label matches the evaluated branch; all other nodes follow
// their only outgoing edge. No usable edge ends the run as incomplete.
func nextNode(def *models.WorkflowDefinition, current *models.Node, nodeResult models.NodeResult) (*models.Node, error) {
	outgoing := def.OutgoingEdges(current.ID)

	var selected *models.Edge

	if current.Kind == models.NodeKindCondition && nodeResult.Status == models.NodeResultSuccess {
		for _, edge := range outgoing {
			if edge.BranchLabel == nodeResult.Branch && nodeResult.Branch != "" {
				selected = edge

				break
			}
		}
	} else if len(outgoing) == 1 {
		selected = outgoing[0]
	}

	if selected == nil {
		return nil, &TerminalNotReachedError{NodeID: current.ID, Branch: nodeResult.Branch}
	}

	next, ok := def.NodeByID(selected.TargetNodeID)
	if !ok {
		return nil, fmt.Errorf("edge %s targets unknown node %s", selected.ID, selected.TargetNodeID)
	}

	return next, nil
}

func (e *Engine) publish(ctx context.Context, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, string(event.GetType()), event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

// sleepBackoff waits before the next retry attempt, doubling the delay per
// attempt up to a fixed cap. The wait aborts on context cancellation.
func sleepBackoff(ctx context.Context, attempt int) error {
	delay := retryBaseDelay << (attempt - 1)
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// idempotencyKey extracts the caller-supplied routing key. Scheduled and
// replayed invocations carry one so variant assignment stays stable.
func idempotencyKey(inputData map[string]any) string {
	if inputData == nil {
		return ""
	}

	if key, ok := inputData["idempotency_key"].(string); ok {
		return key
	}

	if id, ok := inputData["transaction_id"].(string); ok {
		return id
	}

	return ""
}

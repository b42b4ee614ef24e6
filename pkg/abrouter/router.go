// Package abrouter assigns executions to A/B test variants and keeps the
// per-variant outcome statistics.
package abrouter

import (
	"context"
	"hash/fnv"
	"log/slog"
	"math/rand/v2"

	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/persistence"
)

const (
	VariantA = "A"
	VariantB = "B"
)

// Assignment is the routing outcome: which variant was chosen and the
// policy whose graph actually runs.
type Assignment struct {
	Variant string
	Policy  *models.Policy
}

type Router struct {
	policies persistence.PolicyRepository
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger, policies persistence.PolicyRepository) *Router {
	return &Router{
		policies: policies,
		logger:   logger.With("module", "abrouter"),
	}
}

// Assign picks the variant for one execution. When idempotencyKey is
// non-empty the bucket is derived from its hash, so replays of the same
// key land on the same variant; otherwise assignment is uniformly random.
// A policy without an A/B config always runs its own graph.
func (r *Router) Assign(ctx context.Context, policy *models.Policy, idempotencyKey string) (*Assignment, error) {
	cfg := policy.ABTestConfig
	if cfg == nil {
		return &Assignment{Variant: VariantA, Policy: policy}, nil
	}

	if bucket(idempotencyKey) < cfg.VariantAPercentage {
		return &Assignment{Variant: VariantA, Policy: policy}, nil
	}

	variantB, err := r.policies.PolicyByID(ctx, cfg.VariantBPolicyID)
	if err != nil {
		// A broken variant-B reference must not fail live traffic;
		// fall back to the policy's own graph.
		r.logger.WarnContext(ctx, "Variant B policy unavailable, falling back to variant A",
			"policy_id", policy.ID, "variant_b_policy_id", cfg.VariantBPolicyID, "error", err)

		return &Assignment{Variant: VariantA, Policy: policy}, nil
	}

	if !variantB.IsExecutable() {
		r.logger.WarnContext(ctx, "Variant B policy not executable, falling back to variant A",
			"policy_id", policy.ID, "variant_b_policy_id", variantB.ID, "status", variantB.Status)

		return &Assignment{Variant: VariantA, Policy: policy}, nil
	}

	return &Assignment{Variant: VariantB, Policy: variantB}, nil
}

// RecordOutcome increments the executed policy's statistics after a run
// reaches a verdict. Failed and incomplete runs are not counted.
func (r *Router) RecordOutcome(ctx context.Context, policyID string, decision models.Decision) (models.VariantStats, error) {
	switch decision {
	case models.DecisionApproved, models.DecisionRejected, models.DecisionManualReview:
	default:
		return models.VariantStats{}, nil
	}

	return r.policies.RecordExecution(ctx, policyID, decision == models.DecisionApproved)
}

// bucket maps an idempotency key onto [0, 100). An empty key gets a
// random bucket.
func bucket(idempotencyKey string) int {
	if idempotencyKey == "" {
		return rand.IntN(100)
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(idempotencyKey))

	return int(h.Sum64() % 100)
}

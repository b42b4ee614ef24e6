package abrouter

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/persistence/file"
)

func newTestRouter(t *testing.T) (*Router, *file.Persistence) {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())

	return NewRouter(slog.Default(), persist.PolicyRepository()), persist
}

func abPolicy(pct int) (*models.Policy, *models.Policy) {
	variantB := &models.Policy{
		ID:     "policy-b",
		Name:   "Variant B",
		Type:   models.PolicyTypeTransaction,
		Status: models.PolicyStatusActive,
	}

	policy := &models.Policy{
		ID:     "policy-a",
		Name:   "Variant A",
		Type:   models.PolicyTypeTransaction,
		Status: models.PolicyStatusActive,
		ABTestConfig: &models.ABTestConfig{
			VariantAPercentage: pct,
			VariantBPolicyID:   variantB.ID,
		},
	}

	return policy, variantB
}

func TestAssignWithoutConfig(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	policy := &models.Policy{ID: "plain", Status: models.PolicyStatusActive}

	assignment, err := router.Assign(context.Background(), policy, "")
	require.NoError(t, err)

	assert.Equal(t, VariantA, assignment.Variant)
	assert.Same(t, policy, assignment.Policy)
}

func TestAssignDeterministicByKey(t *testing.T) {
	t.Parallel()

	router, persist := newTestRouter(t)
	ctx := context.Background()

	policy, variantB := abPolicy(50)
	require.NoError(t, persist.PolicyRepository().SavePolicy(ctx, variantB))

	first, err := router.Assign(ctx, policy, "tx-42")
	require.NoError(t, err)

	for range 10 {
		again, err := router.Assign(ctx, policy, "tx-42")
		require.NoError(t, err)
		assert.Equal(t, first.Variant, again.Variant)
	}
}

func TestAssignSplitWithinTolerance(t *testing.T) {
	t.Parallel()

	router, persist := newTestRouter(t)
	ctx := context.Background()

	policy, variantB := abPolicy(50)
	require.NoError(t, persist.PolicyRepository().SavePolicy(ctx, variantB))

	const total = 10000

	variantACount := 0

	for i := range total {
		assignment, err := router.Assign(ctx, policy, fmt.Sprintf("tx-%d", i))
		require.NoError(t, err)

		if assignment.Variant == VariantA {
			variantACount++
		}
	}

	share := float64(variantACount) / float64(total) * 100
	assert.GreaterOrEqual(t, share, 45.0)
	assert.LessOrEqual(t, share, 55.0)
}

func TestAssignFallsBackWhenVariantBMissing(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	// Percentage 0 forces variant B, but the referenced policy does not
	// exist; live traffic falls back to the policy's own graph.
	policy, _ := abPolicy(0)

	assignment, err := router.Assign(context.Background(), policy, "tx-1")
	require.NoError(t, err)

	assert.Equal(t, VariantA, assignment.Variant)
	assert.Equal(t, policy.ID, assignment.Policy.ID)
}

func TestRecordOutcome(t *testing.T) {
	t.Parallel()

	router, persist := newTestRouter(t)
	ctx := context.Background()

	policy := &models.Policy{ID: "outcomes", Name: "Outcomes", Status: models.PolicyStatusActive}
	require.NoError(t, persist.PolicyRepository().SavePolicy(ctx, policy))

	_, err := router.RecordOutcome(ctx, policy.ID, models.DecisionApproved)
	require.NoError(t, err)

	_, err = router.RecordOutcome(ctx, policy.ID, models.DecisionRejected)
	require.NoError(t, err)

	stats, err := router.RecordOutcome(ctx, policy.ID, models.DecisionApproved)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.ExecutionCount)
	assert.Equal(t, int64(2), stats.ApprovedCount)
	assert.InDelta(t, 2.0/3.0, stats.ApprovalRate, 0.001)

	// Failed runs are not counted.
	stats, err = router.RecordOutcome(ctx, policy.ID, models.DecisionFailed)
	require.NoError(t, err)
	assert.Equal(t, models.VariantStats{}, stats)

	stored, err := persist.PolicyRepository().PolicyByID(ctx, policy.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.Stats.ExecutionCount)
}

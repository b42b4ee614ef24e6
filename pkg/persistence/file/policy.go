package file

import (
	"context"
	"os"
	"time"

	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/persistence"
)

// PolicyRepository stores one JSON file per policy under policies/.
type PolicyRepository struct {
	p *Persistence
}

func (r *PolicyRepository) path(id string) string {
	return r.p.dir("policies", id+".json")
}

func (r *PolicyRepository) Policies(_ context.Context) ([]*models.Policy, error) {
	return readAll[models.Policy](r.p, r.p.dir("policies"))
}

func (r *PolicyRepository) PolicyByID(_ context.Context, id string) (*models.Policy, error) {
	var policy models.Policy

	if err := r.p.readJSON(r.path(id), &policy); err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewPolicyError("PolicyByID", id, persistence.ErrPolicyNotFound)
		}

		return nil, persistence.NewPolicyError("PolicyByID", id, err)
	}

	return &policy, nil
}

func (r *PolicyRepository) SavePolicy(_ context.Context, policy *models.Policy) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	policy.UpdatedAt = time.Now().UTC()

	if err := r.p.writeJSON(r.path(policy.ID), policy); err != nil {
		return persistence.NewPolicyError("SavePolicy", policy.ID, err)
	}

	return nil
}

func (r *PolicyRepository) RecordExecution(ctx context.Context, policyID string, approved bool) (models.VariantStats, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	var policy models.Policy

	if err := r.p.readJSON(r.path(policyID), &policy); err != nil {
		if os.IsNotExist(err) {
			return models.VariantStats{}, persistence.NewPolicyError("RecordExecution", policyID, persistence.ErrPolicyNotFound)
		}

		return models.VariantStats{}, persistence.NewPolicyError("RecordExecution", policyID, err)
	}

	policy.Stats.ExecutionCount++
	if approved {
		policy.Stats.ApprovedCount++
	}

	policy.Stats.ApprovalRate = float64(policy.Stats.ApprovedCount) / float64(policy.Stats.ExecutionCount)
	policy.UpdatedAt = time.Now().UTC()

	if err := r.p.writeJSON(r.path(policyID), &policy); err != nil {
		return models.VariantStats{}, persistence.NewPolicyError("RecordExecution", policyID, err)
	}

	return policy.Stats, nil
}

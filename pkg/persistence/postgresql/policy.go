package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/persistence"
)

// PolicyRepository stores policies in the policies table. Statistics are
// updated with single-statement atomic increments so concurrent triggers
// never lose updates.
type PolicyRepository struct {
	db *sql.DB
}

func (r *PolicyRepository) Policies(ctx context.Context) ([]*models.Policy, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, type, status, workflow_definition, ab_test_config,
		       execution_count, approved_count, approval_rate, metadata,
		       created_at, updated_at, archived_at
		FROM policies
		ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var policies []*models.Policy

	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}

		policies = append(policies, policy)
	}

	return policies, rows.Err()
}

func (r *PolicyRepository) PolicyByID(ctx context.Context, id string) (*models.Policy, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, type, status, workflow_definition, ab_test_config,
		       execution_count, approved_count, approval_rate, metadata,
		       created_at, updated_at, archived_at
		FROM policies
		WHERE id = $1`, id)

	policy, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewPolicyError("PolicyByID", id, persistence.ErrPolicyNotFound)
		}

		return nil, persistence.NewPolicyError("PolicyByID", id, err)
	}

	return policy, nil
}

func (r *PolicyRepository) SavePolicy(ctx context.Context, policy *models.Policy) error {
	definition, err := json.Marshal(policy.WorkflowDefinition)
	if err != nil {
		return persistence.NewPolicyError("SavePolicy", policy.ID, err)
	}

	var abConfig []byte

	if policy.ABTestConfig != nil {
		abConfig, err = json.Marshal(policy.ABTestConfig)
		if err != nil {
			return persistence.NewPolicyError("SavePolicy", policy.ID, err)
		}
	}

	metadata, err := json.Marshal(policy.Metadata)
	if err != nil {
		return persistence.NewPolicyError("SavePolicy", policy.ID, err)
	}

	policy.UpdatedAt = time.Now().UTC()
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = policy.UpdatedAt
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO policies (id, name, type, status, workflow_definition, ab_test_config,
		                      execution_count, approved_count, approval_rate, metadata,
		                      created_at, updated_at, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			workflow_definition = EXCLUDED.workflow_definition,
			ab_test_config = EXCLUDED.ab_test_config,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at,
			archived_at = EXCLUDED.archived_at`,
		policy.ID, policy.Name, policy.Type, policy.Status, definition, abConfig,
		policy.Stats.ExecutionCount, policy.Stats.ApprovedCount, policy.Stats.ApprovalRate,
		metadata, policy.CreatedAt, policy.UpdatedAt, policy.ArchivedAt)
	if err != nil {
		return persistence.NewPolicyError("SavePolicy", policy.ID, err)
	}

	return nil
}

func (r *PolicyRepository) RecordExecution(ctx context.Context, policyID string, approved bool) (models.VariantStats, error) {
	approvedDelta := 0
	if approved {
		approvedDelta = 1
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE policies
		SET execution_count = execution_count + 1,
		    approved_count = approved_count + $2,
		    approval_rate = (approved_count + $2)::double precision / (execution_count + 1),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING execution_count, approved_count, approval_rate`, policyID, approvedDelta)

	var stats models.VariantStats

	if err := row.Scan(&stats.ExecutionCount, &stats.ApprovedCount, &stats.ApprovalRate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.VariantStats{}, persistence.NewPolicyError("RecordExecution", policyID, persistence.ErrPolicyNotFound)
		}

		return models.VariantStats{}, persistence.NewPolicyError("RecordExecution", policyID, err)
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*models.Policy, error) {
	var (
		policy     models.Policy
		definition []byte
		abConfig   []byte
		metadata   []byte
	)

	err := row.Scan(&policy.ID, &policy.Name, &policy.Type, &policy.Status, &definition, &abConfig,
		&policy.Stats.ExecutionCount, &policy.Stats.ApprovedCount, &policy.Stats.ApprovalRate,
		&metadata, &policy.CreatedAt, &policy.UpdatedAt, &policy.ArchivedAt)
	if err != nil {
		return nil, err
	}

	if len(definition) > 0 {
		if err := json.Unmarshal(definition, &policy.WorkflowDefinition); err != nil {
			return nil, err
		}
	}

	if len(abConfig) > 0 {
		if err := json.Unmarshal(abConfig, &policy.ABTestConfig); err != nil {
			return nil, err
		}
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &policy.Metadata); err != nil {
			return nil, err
		}
	}

	return &policy, nil
}

package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/persistence"
)

// FraudModelRepository stores scoring model configurations.
type FraudModelRepository struct {
	db *sql.DB
}

func (r *FraudModelRepository) ActiveModels(ctx context.Context) ([]*models.FraudModel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, model_type, confidence_threshold, severity, auto_block,
		       is_active, detection_count, created_at, updated_at
		FROM fraud_models
		WHERE is_active = true
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var fraudModels []*models.FraudModel

	for rows.Next() {
		model, err := scanFraudModel(rows)
		if err != nil {
			return nil, err
		}

		fraudModels = append(fraudModels, model)
	}

	return fraudModels, rows.Err()
}

func (r *FraudModelRepository) ModelByID(ctx context.Context, id string) (*models.FraudModel, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, model_type, confidence_threshold, severity, auto_block,
		       is_active, detection_count, created_at, updated_at
		FROM fraud_models
		WHERE id = $1`, id)

	model, err := scanFraudModel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrModelNotFound
		}

		return nil, err
	}

	return model, nil
}

func (r *FraudModelRepository) SaveModel(ctx context.Context, model *models.FraudModel) error {
	now := time.Now().UTC()
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}

	model.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fraud_models (id, model_type, confidence_threshold, severity,
		                          auto_block, is_active, detection_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			model_type = EXCLUDED.model_type,
			confidence_threshold = EXCLUDED.confidence_threshold,
			severity = EXCLUDED.severity,
			auto_block = EXCLUDED.auto_block,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`,
		model.ID, model.ModelType, model.ConfidenceThreshold, model.Severity,
		model.AutoBlock, model.IsActive, model.DetectionCount, model.CreatedAt, model.UpdatedAt)

	return err
}

func (r *FraudModelRepository) IncrementDetectionCount(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE fraud_models
		SET detection_count = detection_count + 1, updated_at = $2
		WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return persistence.ErrModelNotFound
	}

	return nil
}

func scanFraudModel(row rowScanner) (*models.FraudModel, error) {
	var model models.FraudModel

	err := row.Scan(&model.ID, &model.ModelType, &model.ConfidenceThreshold,
		&model.Severity, &model.AutoBlock, &model.IsActive, &model.DetectionCount,
		&model.CreatedAt, &model.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &model, nil
}

// FraudAlertRepository stores alerts keyed by (transaction_id, model_id).
type FraudAlertRepository struct {
	db *sql.DB
}

// CreateAlert relies on the composite primary key: a concurrent duplicate
// insert loses the race and reports created=false instead of an error.
func (r *FraudAlertRepository) CreateAlert(ctx context.Context, alert *models.FraudAlert) (bool, error) {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}

	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	if alert.Status == "" {
		alert.Status = models.AlertStatusNew
	}

	indicators, err := json.Marshal(alert.Indicators)
	if err != nil {
		return false, err
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO fraud_alerts (id, transaction_id, model_id, confidence_score,
		                          risk_score, indicators, severity, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (transaction_id, model_id) DO NOTHING`,
		alert.ID, alert.TransactionID, alert.ModelID, alert.ConfidenceScore,
		alert.RiskScore, indicators, alert.Severity, alert.Status, alert.CreatedAt)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *FraudAlertRepository) AlertsByTransaction(ctx context.Context, transactionID string) ([]*models.FraudAlert, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, transaction_id, model_id, confidence_score, risk_score,
		       indicators, severity, status, created_at
		FROM fraud_alerts
		WHERE transaction_id = $1
		ORDER BY created_at`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var alerts []*models.FraudAlert

	for rows.Next() {
		var (
			alert      models.FraudAlert
			indicators []byte
		)

		err := rows.Scan(&alert.ID, &alert.TransactionID, &alert.ModelID,
			&alert.ConfidenceScore, &alert.RiskScore, &indicators,
			&alert.Severity, &alert.Status, &alert.CreatedAt)
		if err != nil {
			return nil, err
		}

		if len(indicators) > 0 {
			if err := json.Unmarshal(indicators, &alert.Indicators); err != nil {
				return nil, err
			}
		}

		alerts = append(alerts, &alert)
	}

	return alerts, rows.Err()
}

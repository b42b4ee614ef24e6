package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/persistence"
)

// FraudModelRepository stores one JSON file per model under fraud_models/.
type FraudModelRepository struct {
	p *Persistence
}

func (r *FraudModelRepository) path(id string) string {
	return r.p.dir("fraud_models", id+".json")
}

func (r *FraudModelRepository) ActiveModels(_ context.Context) ([]*models.FraudModel, error) {
	all, err := readAll[models.FraudModel](r.p, r.p.dir("fraud_models"))
	if err != nil {
		return nil, err
	}

	active := make([]*models.FraudModel, 0, len(all))

	for _, model := range all {
		if model.IsActive {
			active = append(active, model)
		}
	}

	return active, nil
}

func (r *FraudModelRepository) ModelByID(_ context.Context, id string) (*models.FraudModel, error) {
	var model models.FraudModel

	if err := r.p.readJSON(r.path(id), &model); err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrModelNotFound
		}

		return nil, err
	}

	return &model, nil
}

func (r *FraudModelRepository) SaveModel(_ context.Context, model *models.FraudModel) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	model.UpdatedAt = time.Now().UTC()

	return r.p.writeJSON(r.path(model.ID), model)
}

func (r *FraudModelRepository) IncrementDetectionCount(_ context.Context, id string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	var model models.FraudModel

	if err := r.p.readJSON(r.path(id), &model); err != nil {
		if os.IsNotExist(err) {
			return persistence.ErrModelNotFound
		}

		return err
	}

	model.DetectionCount++
	model.UpdatedAt = time.Now().UTC()

	return r.p.writeJSON(r.path(id), &model)
}

// FraudAlertRepository stores one JSON file per (transaction, model) pair
// under alerts/. Idempotency comes from exclusive file creation on the pair
// key.
type FraudAlertRepository struct {
	p *Persistence
}

func (r *FraudAlertRepository) path(transactionID, modelID string) string {
	return r.p.dir("alerts", fmt.Sprintf("%s__%s.json", transactionID, modelID))
}

func (r *FraudAlertRepository) CreateAlert(_ context.Context, alert *models.FraudAlert) (bool, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	path := r.path(alert.TransactionID, alert.ModelID)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}

	// O_EXCL makes the (transaction, model) key first-writer-wins
	handle, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}

		return false, err
	}

	if closeErr := handle.Close(); closeErr != nil {
		return false, closeErr
	}

	return true, r.p.writeJSON(path, alert)
}

func (r *FraudAlertRepository) AlertsByTransaction(_ context.Context, transactionID string) ([]*models.FraudAlert, error) {
	all, err := readAll[models.FraudAlert](r.p, r.p.dir("alerts"))
	if err != nil {
		return nil, err
	}

	var matched []*models.FraudAlert

	for _, alert := range all {
		if alert.TransactionID == transactionID {
			matched = append(matched, alert)
		}
	}

	return matched, nil
}

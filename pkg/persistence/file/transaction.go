package file

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/persistence"
)

// TransactionRepository stores one JSON file per transaction under
// transactions/.
type TransactionRepository struct {
	p *Persistence
}

func (r *TransactionRepository) path(id string) string {
	return r.p.dir("transactions", id+".json")
}

func (r *TransactionRepository) TransactionByID(_ context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction

	if err := r.p.readJSON(r.path(id), &tx); err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrTransactionNotFound
		}

		return nil, err
	}

	return &tx, nil
}

func (r *TransactionRepository) SaveTransaction(_ context.Context, tx *models.Transaction) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	return r.p.writeJSON(r.path(tx.ID), tx)
}

func (r *TransactionRepository) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	var tx models.Transaction

	if err := r.p.readJSON(r.path(id), &tx); err != nil {
		if os.IsNotExist(err) {
			return persistence.ErrTransactionNotFound
		}

		return err
	}

	tx.Status = status

	return r.p.writeJSON(r.path(id), &tx)
}

func (r *TransactionRepository) RecentByAccount(_ context.Context, accountID string, since time.Time) ([]*models.Transaction, error) {
	all, err := readAll[models.Transaction](r.p, r.p.dir("transactions"))
	if err != nil {
		return nil, err
	}

	var matched []*models.Transaction

	for _, tx := range all {
		if tx.AccountID == accountID && !tx.CreatedAt.Before(since) {
			matched = append(matched, tx)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return matched, nil
}

func (r *TransactionRepository) DistinctIPsForFingerprint(_ context.Context, fingerprint string, since time.Time) ([]string, error) {
	all, err := readAll[models.Transaction](r.p, r.p.dir("transactions"))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)

	var ips []string

	for _, tx := range all {
		if tx.DeviceFingerprint != fingerprint || tx.CreatedAt.Before(since) || tx.IPAddress == "" {
			continue
		}

		if !seen[tx.IPAddress] {
			seen[tx.IPAddress] = true
			ips = append(ips, tx.IPAddress)
		}
	}

	return ips, nil
}

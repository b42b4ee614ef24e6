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

// TransactionRepository stores transactions in the transactions table.
type TransactionRepository struct {
	db *sql.DB
}

func (r *TransactionRepository) TransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, amount, currency, status, device_fingerprint,
		       ip_address, country, metadata, created_at
		FROM transactions
		WHERE id = $1`, id)

	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTransactionNotFound
		}

		return nil, err
	}

	return tx, nil
}

func (r *TransactionRepository) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	metadata, err := json.Marshal(tx.Metadata)
	if err != nil {
		return err
	}

	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, amount, currency, status,
		                          device_fingerprint, ip_address, country, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			metadata = EXCLUDED.metadata`,
		tx.ID, tx.AccountID, tx.Amount, tx.Currency, tx.Status,
		tx.DeviceFingerprint, tx.IPAddress, tx.Country, metadata, tx.CreatedAt)

	return err
}

func (r *TransactionRepository) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE transactions SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return persistence.ErrTransactionNotFound
	}

	return nil
}

func (r *TransactionRepository) RecentByAccount(ctx context.Context, accountID string, since time.Time) ([]*models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, amount, currency, status, device_fingerprint,
		       ip_address, country, metadata, created_at
		FROM transactions
		WHERE account_id = $1 AND created_at >= $2
		ORDER BY created_at DESC`, accountID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var transactions []*models.Transaction

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}

		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func (r *TransactionRepository) DistinctIPsForFingerprint(ctx context.Context, fingerprint string, since time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ip_address
		FROM transactions
		WHERE device_fingerprint = $1 AND created_at >= $2 AND ip_address <> ''`, fingerprint, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var ips []string

	for rows.Next() {
		var ip string

		if err := rows.Scan(&ip); err != nil {
			return nil, err
		}

		ips = append(ips, ip)
	}

	return ips, rows.Err()
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		tx       models.Transaction
		metadata []byte
	)

	err := row.Scan(&tx.ID, &tx.AccountID, &tx.Amount, &tx.Currency, &tx.Status,
		&tx.DeviceFingerprint, &tx.IPAddress, &tx.Country, &metadata, &tx.CreatedAt)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
			return nil, err
		}
	}

	return &tx, nil
}

package models

import "time"

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusBlocked   TransactionStatus = "blocked"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is the incoming record the fraud pipeline scores.
type Transaction struct {
	ID                string            `json:"id"         validate:"required"`
	AccountID         string            `json:"account_id" validate:"required"`
	Amount            float64           `json:"amount"`
	Currency          string            `json:"currency"`
	Status            TransactionStatus `json:"status"`
	DeviceFingerprint string            `json:"device_fingerprint,omitempty"`
	IPAddress         string            `json:"ip_address,omitempty"`
	Country           string            `json:"country,omitempty"`
	Metadata          map[string]any    `json:"metadata,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// AsInput converts the transaction to the generic input map a policy
// execution resolves template references against.
func (t *Transaction) AsInput() map[string]any {
	return map[string]any{
		"id":                 t.ID,
		"account_id":         t.AccountID,
		"amount":             t.Amount,
		"currency":           t.Currency,
		"status":             string(t.Status),
		"device_fingerprint": t.DeviceFingerprint,
		"ip_address":         t.IPAddress,
		"country":            t.Country,
		"metadata":           t.Metadata,
	}
}

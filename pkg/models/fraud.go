package models

import "time"

// FraudModelType identifies a scoring heuristic.
type FraudModelType string

const (
	ModelTypeDeviceFingerprint FraudModelType = "device_fingerprint"
	ModelTypeBehavioral        FraudModelType = "behavioral"
	ModelTypeVelocity          FraudModelType = "velocity"
	ModelTypeExternalAnomaly   FraudModelType = "external_anomaly"
	ModelTypePatternFraud      FraudModelType = "pattern_fraud"
)

// Severity grades how serious a triggering detection is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// FraudModel is the persisted configuration of one scoring model.
type FraudModel struct {
	ID                  string         `json:"id"         validate:"required"`
	ModelType           FraudModelType `json:"model_type" validate:"required"`
	ConfidenceThreshold float64        `json:"confidence_threshold" validate:"min=0,max=1"`
	Severity            Severity       `json:"severity"`
	AutoBlock           bool           `json:"auto_block"`
	IsActive            bool           `json:"is_active"`
	DetectionCount      int64          `json:"detection_count"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// AlertStatus is the review lifecycle of a fraud alert.
type AlertStatus string

const (
	AlertStatusNew      AlertStatus = "new"
	AlertStatusReviewed AlertStatus = "reviewed"
	AlertStatusResolved AlertStatus = "resolved"
)

// FraudAlert is one confirmed detection. Alerts are keyed uniquely by
// (TransactionID, ModelID) so retried evaluations stay idempotent.
type FraudAlert struct {
	ID              string      `json:"id"`
	TransactionID   string      `json:"transaction_id" validate:"required"`
	ModelID         string      `json:"model_id"       validate:"required"`
	ConfidenceScore float64     `json:"confidence_score"`
	RiskScore       float64     `json:"risk_score"`
	Indicators      []string    `json:"indicators,omitempty"`
	Severity        Severity    `json:"severity"`
	Status          AlertStatus `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
}

// ScoringResult is what one model returns for one transaction.
type ScoringResult struct {
	IsFraud    bool     `json:"is_fraud"`
	Confidence float64  `json:"confidence"`
	RiskScore  float64  `json:"risk_score"`
	Indicators []string `json:"indicators,omitempty"`
}

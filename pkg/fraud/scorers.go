package fraud

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/persistence"
	"github.com/finwatch/sentinel/pkg/providers"
)

// Scorer is one heuristic model implementation. A scorer inspects the
// transaction (and whatever history it needs) and reports whether it looks
// fraudulent; the pipeline compares the confidence to the persisted model's
// threshold.
type Scorer interface {
	ModelType() models.FraudModelType
	Score(ctx context.Context, tx *models.Transaction) (*models.ScoringResult, error)
}

const (
	// Distinct source addresses within the lookback window before a
	// device fingerprint is considered compromised.
	distinctIPThreshold = 5

	fingerprintLookback = 24 * time.Hour

	// Two countries for the same account inside this window cannot be
	// physical travel.
	travelWindow = time.Hour

	deviceFingerprintConfidence = 0.85
)

// DeviceFingerprintScorer flags fingerprints seen from many distinct source
// addresses inside a short window.
type DeviceFingerprintScorer struct {
	transactions persistence.TransactionRepository
}

func NewDeviceFingerprintScorer(transactions persistence.TransactionRepository) *DeviceFingerprintScorer {
	return &DeviceFingerprintScorer{transactions: transactions}
}

func (s *DeviceFingerprintScorer) ModelType() models.FraudModelType {
	return models.ModelTypeDeviceFingerprint
}

func (s *DeviceFingerprintScorer) Score(ctx context.Context, tx *models.Transaction) (*models.ScoringResult, error) {
	if travel, err := s.impossibleTravel(ctx, tx); err != nil {
		return nil, err
	} else if travel != nil {
		return travel, nil
	}

	if tx.DeviceFingerprint == "" {
		return &models.ScoringResult{}, nil
	}

	since := tx.CreatedAt.Add(-fingerprintLookback)

	ips, err := s.transactions.DistinctIPsForFingerprint(ctx, tx.DeviceFingerprint, since)
	if err != nil {
		return nil, fmt.Errorf("fingerprint history lookup: %w", err)
	}

	seen := make(map[string]bool, len(ips)+1)
	for _, ip := range ips {
		seen[ip] = true
	}

	if tx.IPAddress != "" {
		seen[tx.IPAddress] = true
	}

	if len(seen) < distinctIPThreshold {
		return &models.ScoringResult{}, nil
	}

	return &models.ScoringResult{
		IsFraud:    true,
		Confidence: deviceFingerprintConfidence,
		RiskScore:  math.Min(1, float64(len(seen))/10),
		Indicators: []string{
			fmt.Sprintf("device fingerprint %s seen from %d distinct source addresses within %s",
				tx.DeviceFingerprint, len(seen), fingerprintLookback),
		},
	}, nil
}

// impossibleTravel flags the transaction when the account transacted from a
// different country within the travel window.
func (s *DeviceFingerprintScorer) impossibleTravel(ctx context.Context, tx *models.Transaction) (*models.ScoringResult, error) {
	if tx.Country == "" {
		return nil, nil
	}

	recent, err := s.transactions.RecentByAccount(ctx, tx.AccountID, tx.CreatedAt.Add(-travelWindow))
	if err != nil {
		return nil, fmt.Errorf("account history lookup: %w", err)
	}

	for _, prev := range recent {
		if prev.ID == tx.ID || prev.Country == "" || prev.Country == tx.Country {
			continue
		}

		return &models.ScoringResult{
			IsFraud:    true,
			Confidence: deviceFingerprintConfidence,
			RiskScore:  deviceFingerprintConfidence,
			Indicators: []string{
				fmt.Sprintf("impossible travel: seen in %s and %s within %s",
					prev.Country, tx.Country, travelWindow),
			},
		}, nil
	}

	return nil, nil
}

const (
	behavioralLookback   = 30 * 24 * time.Hour
	behavioralMinSamples = 5
	behavioralConfidence = 0.8
)

// BehavioralScorer flags amounts far outside the account's own baseline:
// anything above mean + 3 standard deviations of the account's history.
type BehavioralScorer struct {
	transactions persistence.TransactionRepository
}

func NewBehavioralScorer(transactions persistence.TransactionRepository) *BehavioralScorer {
	return &BehavioralScorer{transactions: transactions}
}

func (s *BehavioralScorer) ModelType() models.FraudModelType {
	return models.ModelTypeBehavioral
}

func (s *BehavioralScorer) Score(ctx context.Context, tx *models.Transaction) (*models.ScoringResult, error) {
	since := tx.CreatedAt.Add(-behavioralLookback)

	history, err := s.transactions.RecentByAccount(ctx, tx.AccountID, since)
	if err != nil {
		return nil, fmt.Errorf("account history lookup: %w", err)
	}

	var amounts []float64

	for _, prev := range history {
		if prev.ID == tx.ID {
			continue
		}

		amounts = append(amounts, prev.Amount)
	}

	// Too little history to establish a baseline.
	if len(amounts) < behavioralMinSamples {
		return &models.ScoringResult{}, nil
	}

	mean, stddev := meanStddev(amounts)

	limit := mean + 3*stddev
	if tx.Amount <= limit {
		return &models.ScoringResult{}, nil
	}

	return &models.ScoringResult{
		IsFraud:    true,
		Confidence: behavioralConfidence,
		RiskScore:  math.Min(1, (tx.Amount-limit)/math.Max(limit, 1)),
		Indicators: []string{
			fmt.Sprintf("amount %.2f exceeds account baseline %.2f (mean %.2f + 3*stddev %.2f)",
				tx.Amount, limit, mean, stddev),
		},
	}, nil
}

func meanStddev(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}

	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}

	variance /= float64(len(values))

	return mean, math.Sqrt(variance)
}

const (
	velocityWindow     = time.Hour
	velocityMaxCount   = 10
	velocityConfidence = 0.75
)

// VelocityScorer flags accounts exceeding a fixed transaction count inside a
// rolling one-hour window.
type VelocityScorer struct {
	transactions persistence.TransactionRepository
}

func NewVelocityScorer(transactions persistence.TransactionRepository) *VelocityScorer {
	return &VelocityScorer{transactions: transactions}
}

func (s *VelocityScorer) ModelType() models.FraudModelType {
	return models.ModelTypeVelocity
}

func (s *VelocityScorer) Score(ctx context.Context, tx *models.Transaction) (*models.ScoringResult, error) {
	since := tx.CreatedAt.Add(-velocityWindow)

	recent, err := s.transactions.RecentByAccount(ctx, tx.AccountID, since)
	if err != nil {
		return nil, fmt.Errorf("account velocity lookup: %w", err)
	}

	count := len(recent)
	if count < velocityMaxCount {
		return &models.ScoringResult{}, nil
	}

	return &models.ScoringResult{
		IsFraud:    true,
		Confidence: velocityConfidence,
		RiskScore:  math.Min(1, float64(count)/float64(2*velocityMaxCount)),
		Indicators: []string{
			fmt.Sprintf("%d transactions for account %s within %s", count, tx.AccountID, velocityWindow),
		},
	}, nil
}

const externalScorerTimeout = 10 * time.Second

// ExternalAnomalyScorer delegates scoring to an external provider through
// the provider contract. The provider answers with suspicion, confidence
// and indicator strings.
type ExternalAnomalyScorer struct {
	invoker    providers.Invoker
	providerID string
}

func NewExternalAnomalyScorer(invoker providers.Invoker, providerID string) *ExternalAnomalyScorer {
	return &ExternalAnomalyScorer{invoker: invoker, providerID: providerID}
}

func (s *ExternalAnomalyScorer) ModelType() models.FraudModelType {
	return models.ModelTypeExternalAnomaly
}

func (s *ExternalAnomalyScorer) Score(ctx context.Context, tx *models.Transaction) (*models.ScoringResult, error) {
	response, err := s.invoker.Invoke(ctx, s.providerID, tx.AsInput(), externalScorerTimeout)
	if err != nil {
		return nil, fmt.Errorf("external anomaly provider: %w", err)
	}

	result := &models.ScoringResult{}

	if suspicious, ok := response["suspicious"].(bool); ok {
		result.IsFraud = suspicious
	}

	if confidence, ok := response["confidence"].(float64); ok {
		result.Confidence = confidence
	}

	if riskScore, ok := response["risk_score"].(float64); ok {
		result.RiskScore = riskScore
	}

	if indicators, ok := response["indicators"].([]any); ok {
		for _, indicator := range indicators {
			if s, ok := indicator.(string); ok {
				result.Indicators = append(result.Indicators, s)
			}
		}
	}

	return result, nil
}

const (
	// ReportingThreshold is the fixed reporting limit structuring schemes
	// stay just under.
	ReportingThreshold = 10000.0

	structuringMargin     = 500.0
	structuringConfidence = 0.7
	structuringRoundStep  = 100.0
)

// StructuringScorer flags round amounts deliberately kept just under the
// reporting threshold.
type StructuringScorer struct{}

func NewStructuringScorer() *StructuringScorer {
	return &StructuringScorer{}
}

func (s *StructuringScorer) ModelType() models.FraudModelType {
	return models.ModelTypePatternFraud
}

func (s *StructuringScorer) Score(_ context.Context, tx *models.Transaction) (*models.ScoringResult, error) {
	underThreshold := tx.Amount < ReportingThreshold && tx.Amount >= ReportingThreshold-structuringMargin
	rounded := math.Mod(tx.Amount, structuringRoundStep) == 0

	if !underThreshold || !rounded {
		return &models.ScoringResult{}, nil
	}

	return &models.ScoringResult{
		IsFraud:    true,
		Confidence: structuringConfidence,
		RiskScore:  tx.Amount / ReportingThreshold,
		Indicators: []string{
			fmt.Sprintf("possible structuring: round amount %.2f just under reporting threshold %.0f",
				tx.Amount, ReportingThreshold),
		},
	}, nil
}

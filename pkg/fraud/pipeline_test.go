package fraud

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwatch/sentinel/pkg/cases"
	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/persistence/file"
)

type stubInvoker struct {
	response map[string]any
	err      error
}

func (s *stubInvoker) Invoke(_ context.Context, _ string, _ map[string]any, _ time.Duration) (map[string]any, error) {
	return s.response, s.err
}

// captureEscalator records every case request.
type captureEscalator struct {
	mu       sync.Mutex
	requests []cases.Request
}

func (c *captureEscalator) CreateCase(_ context.Context, req cases.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)

	return "case-1", nil
}

// panicScorer exercises the isolation boundary.
type panicScorer struct{}

func (panicScorer) ModelType() models.FraudModelType { return models.ModelTypeExternalAnomaly }

func (panicScorer) Score(context.Context, *models.Transaction) (*models.ScoringResult, error) {
	panic("scorer exploded")
}

func newTestPipeline(t *testing.T) (*Pipeline, *file.Persistence, *captureEscalator) {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())
	escalator := &captureEscalator{}
	pipeline := NewPipeline(slog.Default(), persist, escalator, nil, nil)
	pipeline.RegisterScorer(NewStructuringScorer())

	return pipeline, persist, escalator
}

func saveModel(t *testing.T, persist *file.Persistence, model *models.FraudModel) {
	t.Helper()
	require.NoError(t, persist.FraudModelRepository().SaveModel(context.Background(), model))
}

func structuringModel() *models.FraudModel {
	return &models.FraudModel{
		ID:                  "model-structuring",
		ModelType:           models.ModelTypePatternFraud,
		ConfidenceThreshold: 0.6,
		Severity:            models.SeverityHigh,
		IsActive:            true,
	}
}

func structuringTx(t *testing.T, persist *file.Persistence) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		ID:        "tx-9800",
		AccountID: "acct-1",
		Amount:    9800,
		Status:    models.TransactionStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, persist.TransactionRepository().SaveTransaction(context.Background(), tx))

	return tx
}

func TestEvaluateCreatesAlert(t *testing.T) {
	t.Parallel()

	pipeline, persist, _ := newTestPipeline(t)
	ctx := context.Background()

	saveModel(t, persist, structuringModel())
	tx := structuringTx(t, persist)

	alerts, err := pipeline.Evaluate(ctx, tx)
	require.NoError(t, err)

	require.Len(t, alerts, 1)
	assert.Equal(t, "model-structuring", alerts[0].ModelID)
	assert.InDelta(t, 0.7, alerts[0].ConfidenceScore, 0.0001)
	assert.Contains(t, alerts[0].Indicators[0], "structuring")

	// Detection count is bumped once.
	model, err := persist.FraudModelRepository().ModelByID(ctx, "model-structuring")
	require.NoError(t, err)
	assert.Equal(t, int64(1), model.DetectionCount)
}

func TestEvaluateBelowThresholdDoesNotAlert(t *testing.T) {
	t.Parallel()

	pipeline, persist, _ := newTestPipeline(t)
	ctx := context.Background()

	model := structuringModel()
	model.ConfidenceThreshold = 0.9
	saveModel(t, persist, model)
	tx := structuringTx(t, persist)

	alerts, err := pipeline.Evaluate(ctx, tx)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestEvaluateIdempotentOnReplay(t *testing.T) {
	t.Parallel()

	pipeline, persist, _ := newTestPipeline(t)
	ctx := context.Background()

	saveModel(t, persist, structuringModel())
	tx := structuringTx(t, persist)

	first, err := pipeline.Evaluate(ctx, tx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	replay, err := pipeline.Evaluate(ctx, tx)
	require.NoError(t, err)
	assert.Empty(t, replay)

	stored, err := persist.FraudAlertRepository().AlertsByTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	// The replay must not double-count the detection either.
	model, err := persist.FraudModelRepository().ModelByID(ctx, "model-structuring")
	require.NoError(t, err)
	assert.Equal(t, int64(1), model.DetectionCount)
}

func TestEvaluateConcurrentDuplicates(t *testing.T) {
	t.Parallel()

	pipeline, persist, _ := newTestPipeline(t)
	ctx := context.Background()

	saveModel(t, persist, structuringModel())
	tx := structuringTx(t, persist)

	const evaluations = 10

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)

	for range evaluations {
		wg.Add(1)

		go func() {
			defer wg.Done()

			alerts, err := pipeline.Evaluate(ctx, tx)
			if err != nil {
				return
			}

			mu.Lock()
			created += len(alerts)
			mu.Unlock()
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, created)

	stored, err := persist.FraudAlertRepository().AlertsByTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestEvaluateAutoBlock(t *testing.T) {
	t.Parallel()

	pipeline, persist, _ := newTestPipeline(t)
	ctx := context.Background()

	model := structuringModel()
	model.AutoBlock = true
	saveModel(t, persist, model)
	tx := structuringTx(t, persist)

	_, err := pipeline.Evaluate(ctx, tx)
	require.NoError(t, err)

	stored, err := persist.TransactionRepository().TransactionByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusBlocked, stored.Status)
}

func TestEvaluateNoAutoBlockLeavesStatus(t *testing.T) {
	t.Parallel()

	pipeline, persist, _ := newTestPipeline(t)
	ctx := context.Background()

	saveModel(t, persist, structuringModel())
	tx := structuringTx(t, persist)

	_, err := pipeline.Evaluate(ctx, tx)
	require.NoError(t, err)

	stored, err := persist.TransactionRepository().TransactionByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, stored.Status)
}

func TestEvaluateCriticalSeverityEscalates(t *testing.T) {
	t.Parallel()

	pipeline, persist, escalator := newTestPipeline(t)
	ctx := context.Background()

	model := structuringModel()
	model.Severity = models.SeverityCritical
	saveModel(t, persist, model)
	tx := structuringTx(t, persist)

	_, err := pipeline.Evaluate(ctx, tx)
	require.NoError(t, err)

	require.Len(t, escalator.requests, 1)
	req := escalator.requests[0]
	assert.Equal(t, cases.PriorityCritical, req.Priority)
	assert.Equal(t, 1, req.SLAHours)
	assert.Contains(t, req.Subject, "pattern_fraud")
}

func TestEvaluateScorerPanicIsolated(t *testing.T) {
	t.Parallel()

	pipeline, persist, _ := newTestPipeline(t)
	pipeline.RegisterScorer(panicScorer{})
	ctx := context.Background()

	saveModel(t, persist, structuringModel())
	saveModel(t, persist, &models.FraudModel{
		ID:                  "model-panics",
		ModelType:           models.ModelTypeExternalAnomaly,
		ConfidenceThreshold: 0.5,
		Severity:            models.SeverityLow,
		IsActive:            true,
	})
	tx := structuringTx(t, persist)

	// The panicking model is treated as "not fraud"; the structuring
	// model still fires.
	alerts, err := pipeline.Evaluate(ctx, tx)
	require.NoError(t, err)

	require.Len(t, alerts, 1)
	assert.Equal(t, "model-structuring", alerts[0].ModelID)
}

func TestEvaluateInactiveModelSkipped(t *testing.T) {
	t.Parallel()

	pipeline, persist, _ := newTestPipeline(t)
	ctx := context.Background()

	model := structuringModel()
	model.IsActive = false
	saveModel(t, persist, model)
	tx := structuringTx(t, persist)

	alerts, err := pipeline.Evaluate(ctx, tx)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

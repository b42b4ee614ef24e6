// Package fraud runs the multi-model scoring pipeline: every active model
// is evaluated independently against a transaction and triggering models
// produce alerts with idempotent side effects.
package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/finwatch/sentinel/pkg/cases"
	"github.com/finwatch/sentinel/pkg/eventbus"
	"github.com/finwatch/sentinel/pkg/events"
	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/otelhelper"
	"github.com/finwatch/sentinel/pkg/persistence"
	"github.com/finwatch/sentinel/pkg/providers"
)

const (
	sideEffectAttempts = 3
	sideEffectBackoff  = 100 * time.Millisecond

	criticalCaseSLAHours = 1
)

type Pipeline struct {
	logger    *slog.Logger
	persist   persistence.Persistence
	escalator cases.Escalator
	eventBus  eventbus.EventPublisher
	tracer    trace.Tracer
	scorers   map[models.FraudModelType]Scorer
}

// NewPipeline wires an empty pipeline; register scorers explicitly. The
// event bus and tracer are optional.
func NewPipeline(
	logger *slog.Logger,
	persist persistence.Persistence,
	escalator cases.Escalator,
	bus eventbus.EventPublisher,
	tracer trace.Tracer,
) *Pipeline {
	return &Pipeline{
		logger:    logger.With("module", "fraud_pipeline"),
		persist:   persist,
		escalator: escalator,
		eventBus:  bus,
		tracer:    tracer,
		scorers:   make(map[models.FraudModelType]Scorer),
	}
}

// NewDefaultPipeline registers the full scorer catalogue.
func NewDefaultPipeline(
	logger *slog.Logger,
	persist persistence.Persistence,
	escalator cases.Escalator,
	bus eventbus.EventPublisher,
	tracer trace.Tracer,
	invoker providers.Invoker,
	anomalyProviderID string,
) *Pipeline {
	p := NewPipeline(logger, persist, escalator, bus, tracer)

	transactions := persist.TransactionRepository()

	p.RegisterScorer(NewDeviceFingerprintScorer(transactions))
	p.RegisterScorer(NewBehavioralScorer(transactions))
	p.RegisterScorer(NewVelocityScorer(transactions))
	p.RegisterScorer(NewExternalAnomalyScorer(invoker, anomalyProviderID))
	p.RegisterScorer(NewStructuringScorer())

	return p
}

func (p *Pipeline) RegisterScorer(scorer Scorer) {
	p.scorers[scorer.ModelType()] = scorer
}

// Evaluate runs every active model against the transaction and returns the
// alerts created by this evaluation. Replayed evaluations return no new
// alerts because alert creation is keyed on (transaction, model).
func (p *Pipeline) Evaluate(ctx context.Context, tx *models.Transaction) ([]*models.FraudAlert, error) {
	if p.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, p.tracer, "fraud.evaluate",
			attribute.String(otelhelper.TransactionIDKey, tx.ID),
		)
		defer span.End()
	}

	activeModels, err := p.persist.FraudModelRepository().ActiveModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active models: %w", err)
	}

	var created []*models.FraudAlert

	for _, model := range activeModels {
		logger := p.logger.With("transaction_id", tx.ID, "model_id", model.ID, "model_type", model.ModelType)

		scorer, ok := p.scorers[model.ModelType]
		if !ok {
			logger.WarnContext(ctx, "No scorer registered for model type, skipping")

			continue
		}

		result := p.scoreIsolated(ctx, scorer, tx, logger)

		if !result.IsFraud || result.Confidence < model.ConfidenceThreshold {
			continue
		}

		alert, isNew := p.applySideEffects(ctx, model, tx, result, logger)
		if isNew {
			created = append(created, alert)
		}
	}

	return created, nil
}

// scoreIsolated runs one scorer inside an isolating boundary: a panic or
// error from one model is logged and treated as "not fraud" for that model,
// never affecting the others.
func (p *Pipeline) scoreIsolated(ctx context.Context, scorer Scorer, tx *models.Transaction, logger *slog.Logger) (result *models.ScoringResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Scorer panicked, treating as not fraud", "panic", r)

			result = &models.ScoringResult{}
		}
	}()

	scored, err := scorer.Score(ctx, tx)
	if err != nil {
		logger.WarnContext(ctx, "Scorer failed, treating as not fraud", "error", err)

		return &models.ScoringResult{}
	}

	if scored == nil {
		return &models.ScoringResult{}
	}

	return scored
}

// applySideEffects performs the per-detection side effects in order: create
// the alert, bump the model's detection count, auto-block, and escalate
// critical detections. Each effect is retried; all are gated on the alert
// being newly created so replays stay idempotent.
func (p *Pipeline) applySideEffects(ctx context.Context, model *models.FraudModel, tx *models.Transaction, result *models.ScoringResult, logger *slog.Logger) (*models.FraudAlert, bool) {
	alert := &models.FraudAlert{
		ID:              uuid.New().String(),
		TransactionID:   tx.ID,
		ModelID:         model.ID,
		ConfidenceScore: result.Confidence,
		RiskScore:       result.RiskScore,
		Indicators:      result.Indicators,
		Severity:        model.Severity,
		Status:          models.AlertStatusNew,
		CreatedAt:       time.Now().UTC(),
	}

	var isNew bool

	err := p.retrySideEffect(ctx, "create_alert", logger, func() error {
		createdNow, err := p.persist.FraudAlertRepository().CreateAlert(ctx, alert)
		if err != nil {
			return err
		}

		isNew = createdNow

		return nil
	})
	if err != nil {
		return nil, false
	}

	if !isNew {
		logger.InfoContext(ctx, "Alert already exists for transaction and model, skipping side effects")

		return nil, false
	}

	p.publish(ctx, events.FraudAlertCreated{
		BaseEvent:     events.NewBaseEvent(events.FraudAlertCreatedEvent, ""),
		AlertID:       alert.ID,
		TransactionID: tx.ID,
		ModelID:       model.ID,
		Severity:      alert.Severity,
		Confidence:    alert.ConfidenceScore,
	})

	_ = p.retrySideEffect(ctx, "increment_detection_count", logger, func() error {
		return p.persist.FraudModelRepository().IncrementDetectionCount(ctx, model.ID)
	})

	if model.AutoBlock {
		err := p.retrySideEffect(ctx, "block_transaction", logger, func() error {
			return p.persist.TransactionRepository().UpdateStatus(ctx, tx.ID, models.TransactionStatusBlocked)
		})
		if err == nil {
			p.publish(ctx, events.TransactionBlocked{
				BaseEvent:     events.NewBaseEvent(events.TransactionBlockedEvent, ""),
				TransactionID: tx.ID,
				ModelID:       model.ID,
			})
		}
	}

	if model.Severity == models.SeverityCritical {
		_ = p.retrySideEffect(ctx, "escalate_case", logger, func() error {
			_, err := p.escalator.CreateCase(ctx, cases.Request{
				Type:     "fraud_review",
				Priority: cases.PriorityCritical,
				Subject:  fmt.Sprintf("Critical %s detection on transaction %s", model.ModelType, tx.ID),
				Description: fmt.Sprintf("Model %s flagged transaction %s with confidence %.2f. Indicators: %v",
					model.ID, tx.ID, result.Confidence, result.Indicators),
				SLAHours: criticalCaseSLAHours,
			})

			return err
		})
	}

	return alert, true
}

// retrySideEffect retries a confirmed-detection side effect a few times
// before giving up. Losing a confirmed determination is worse than a
// duplicate attempt, so exhaustion is logged loudly, never silent.
func (p *Pipeline) retrySideEffect(ctx context.Context, name string, logger *slog.Logger, fn func() error) error {
	var err error

	for attempt := 1; attempt <= sideEffectAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		logger.WarnContext(ctx, "Side effect attempt failed", "effect", name, "attempt", attempt, "error", err)

		if attempt < sideEffectAttempts {
			timer := time.NewTimer(sideEffectBackoff * time.Duration(attempt))

			select {
			case <-ctx.Done():
				timer.Stop()

				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	logger.ErrorContext(ctx, "Side effect abandoned after retries", "effect", name, "error", err)

	return err
}

func (p *Pipeline) publish(ctx context.Context, event eventbus.Event) {
	if p.eventBus == nil {
		return
	}

	if err := p.eventBus.Publish(ctx, string(event.GetType()), event); err != nil {
		p.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

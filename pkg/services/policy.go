package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/finwatch/sentinel/pkg/eventbus"
	"github.com/finwatch/sentinel/pkg/events"
	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/persistence"
	"github.com/finwatch/sentinel/pkg/registry"
	"github.com/finwatch/sentinel/pkg/workflow"
)

// PolicyService owns policy lifecycle: creation, definition replacement,
// status transitions, archival. Policies are archived, never hard-deleted;
// execution history keeps referencing them.
type PolicyService struct {
	persist  persistence.Persistence
	validate *validator.Validate
	eventBus eventbus.EventPublisher
	logger   *slog.Logger
}

func NewPolicyService(logger *slog.Logger, persist persistence.Persistence, validate *validator.Validate, bus eventbus.EventPublisher) *PolicyService {
	return &PolicyService{
		persist:  persist,
		validate: validate,
		eventBus: bus,
		logger:   logger.With("module", "policy_service"),
	}
}

func (s *PolicyService) List(ctx context.Context) ([]*models.Policy, error) {
	return s.persist.PolicyRepository().Policies(ctx)
}

func (s *PolicyService) FetchByID(ctx context.Context, id string) (*models.Policy, error) {
	return s.persist.PolicyRepository().PolicyByID(ctx, id)
}

// Create validates and stores a new policy in draft status. Returned
// warnings are non-fatal graph observations (unreachable nodes).
func (s *PolicyService) Create(ctx context.Context, policy *models.Policy) ([]string, error) {
	if policy == nil {
		return nil, ErrPolicyNil
	}

	if policy.ID == "" {
		policy.ID = uuid.New().String()
	}

	policy.Status = models.PolicyStatusDraft

	now := time.Now().UTC()
	policy.CreatedAt = now
	policy.UpdatedAt = now

	warnings, err := s.validatePolicy(policy)
	if err != nil {
		return nil, err
	}

	if err := s.persist.PolicyRepository().SavePolicy(ctx, policy); err != nil {
		return nil, fmt.Errorf("save policy: %w", err)
	}

	return warnings, nil
}

// UpdateDefinition replaces the policy's workflow definition wholesale.
func (s *PolicyService) UpdateDefinition(ctx context.Context, id string, def *models.WorkflowDefinition) ([]string, error) {
	policy, err := s.persist.PolicyRepository().PolicyByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if policy.Status == models.PolicyStatusArchived {
		return nil, ErrPolicyImmutable
	}

	policy.WorkflowDefinition = def
	policy.UpdatedAt = time.Now().UTC()

	warnings, err := s.validatePolicy(policy)
	if err != nil {
		return nil, err
	}

	if err := s.persist.PolicyRepository().SavePolicy(ctx, policy); err != nil {
		return nil, fmt.Errorf("save policy: %w", err)
	}

	return warnings, nil
}

// Activate makes a draft or paused policy executable.
func (s *PolicyService) Activate(ctx context.Context, id string) (*models.Policy, error) {
	policy, err := s.transition(ctx, id, models.PolicyStatusActive,
		models.PolicyStatusDraft, models.PolicyStatusPaused)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.PolicyActivated{
		BaseEvent: events.NewBaseEvent(events.PolicyActivatedEvent, policy.ID),
	})

	return policy, nil
}

// Pause makes an active policy temporarily non-executable.
func (s *PolicyService) Pause(ctx context.Context, id string) (*models.Policy, error) {
	return s.transition(ctx, id, models.PolicyStatusPaused, models.PolicyStatusActive)
}

// Archive retires the policy permanently, keeping it for execution audit.
func (s *PolicyService) Archive(ctx context.Context, id string) (*models.Policy, error) {
	policy, err := s.transition(ctx, id, models.PolicyStatusArchived,
		models.PolicyStatusDraft, models.PolicyStatusActive, models.PolicyStatusPaused)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.PolicyArchived{
		BaseEvent: events.NewBaseEvent(events.PolicyArchivedEvent, policy.ID),
	})

	return policy, nil
}

func (s *PolicyService) transition(ctx context.Context, id string, target models.PolicyStatus, allowed ...models.PolicyStatus) (*models.Policy, error) {
	policy, err := s.persist.PolicyRepository().PolicyByID(ctx, id)
	if err != nil {
		return nil, err
	}

	permitted := false

	for _, status := range allowed {
		if policy.Status == status {
			permitted = true

			break
		}
	}

	if !permitted {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, policy.Status, target)
	}

	policy.Status = target
	policy.UpdatedAt = time.Now().UTC()

	if target == models.PolicyStatusArchived {
		archivedAt := policy.UpdatedAt
		policy.ArchivedAt = &archivedAt
	}

	if err := s.persist.PolicyRepository().SavePolicy(ctx, policy); err != nil {
		return nil, fmt.Errorf("save policy: %w", err)
	}

	return policy, nil
}

// validatePolicy checks struct constraints, the graph shape, and each
// node's config against its kind's schema.
func (s *PolicyService) validatePolicy(policy *models.Policy) ([]string, error) {
	if err := s.validate.Struct(policy); err != nil {
		return nil, NewValidationError("validatePolicy", "invalid_policy", err.Error(), ErrInvalidRequest)
	}

	if policy.WorkflowDefinition == nil {
		return nil, ErrDefinitionRequired
	}

	warnings, err := workflow.Validate(policy.WorkflowDefinition)
	if err != nil {
		return nil, NewValidationError("validatePolicy", "invalid_definition", err.Error(), ErrInvalidDefinition)
	}

	for _, node := range policy.WorkflowDefinition.Nodes {
		if err := validateNodeConfig(node); err != nil {
			return nil, err
		}
	}

	return warnings, nil
}

// validateNodeConfig checks the node's config variant against the kind's
// JSON schema, the same schema the graph editor consumes.
func validateNodeConfig(node *models.Node) error {
	schema := registry.ConfigSchema(node.Kind)
	if schema == nil {
		return NewValidationError("validateNodeConfig", "unknown_kind",
			fmt.Sprintf("node %s has unknown kind %q", node.ID, node.Kind), ErrInvalidNodeConfig)
	}

	encoded, err := json.Marshal(node.Config)
	if err != nil {
		return fmt.Errorf("encode node %s config: %w", node.ID, err)
	}

	var config map[string]any
	if err := json.Unmarshal(encoded, &config); err != nil {
		return fmt.Errorf("decode node %s config: %w", node.ID, err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(config))
	if err != nil {
		return fmt.Errorf("validate node %s config: %w", node.ID, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return NewValidationError("validateNodeConfig", "invalid_node_config",
			fmt.Sprintf("node %s: %s", node.ID, strings.Join(details, "; ")), ErrInvalidNodeConfig)
	}

	return nil
}

func (s *PolicyService) publish(ctx context.Context, event eventbus.Event) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.Publish(ctx, string(event.GetType()), event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

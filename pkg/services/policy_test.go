package services

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finwatch/sentinel/pkg/events"
	"github.com/finwatch/sentinel/pkg/log"
	"github.com/finwatch/sentinel/pkg/mocks"
	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/persistence/file"
)

func newTestService(t *testing.T) (*PolicyService, *file.Persistence) {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())
	validate := validator.New(validator.WithRequiredStructEnabled())

	return NewPolicyService(log.WithModule("policy-test"), persist, validate, nil), persist
}

func simpleDefinition() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		Nodes: []*models.Node{
			{ID: "start", Kind: models.NodeKindStart, Config: models.StartConfig{}},
			{ID: "approve", Kind: models.NodeKindApprove, Config: models.TerminalConfig{}},
		},
		Edges: []*models.Edge{
			{ID: "e1", SourceNodeID: "start", TargetNodeID: "approve"},
		},
	}
}

func draftPolicy(name string) *models.Policy {
	return &models.Policy{
		Name:               name,
		Type:               models.PolicyTypeTransaction,
		WorkflowDefinition: simpleDefinition(),
	}
}

func TestCreateAssignsIDAndDraftStatus(t *testing.T) {
	t.Parallel()

	svc, persist := newTestService(t)
	ctx := context.Background()

	policy := draftPolicy("New account screening")
	policy.Status = models.PolicyStatusActive // ignored on create

	warnings, err := svc.Create(ctx, policy)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.NotEmpty(t, policy.ID)
	assert.Equal(t, models.PolicyStatusDraft, policy.Status)
	assert.False(t, policy.CreatedAt.IsZero())

	stored, err := persist.PolicyRepository().PolicyByID(ctx, policy.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PolicyStatusDraft, stored.Status)
}

func TestCreateRejectsMissingDefinition(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	policy := draftPolicy("No definition")
	policy.WorkflowDefinition = nil

	_, err := svc.Create(context.Background(), policy)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestCreateRejectsCyclicDefinition(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	policy := draftPolicy("Cyclic graph")
	policy.WorkflowDefinition = &models.WorkflowDefinition{
		Nodes: []*models.Node{
			{ID: "start", Kind: models.NodeKindStart, Config: models.StartConfig{}},
			{ID: "a", Kind: models.NodeKindCustomCode, Config: models.CustomCodeConfig{Assignments: map[string]string{"x": "{{input.amount}}"}}},
			{ID: "b", Kind: models.NodeKindCustomCode, Config: models.CustomCodeConfig{Assignments: map[string]string{"y": "{{input.amount}}"}}},
			{ID: "approve", Kind: models.NodeKindApprove, Config: models.TerminalConfig{}},
		},
		Edges: []*models.Edge{
			{ID: "e1", SourceNodeID: "start", TargetNodeID: "a"},
			{ID: "e2", SourceNodeID: "a", TargetNodeID: "b"},
			{ID: "e3", SourceNodeID: "b", TargetNodeID: "a"},
			{ID: "e4", SourceNodeID: "b", TargetNodeID: "approve"},
		},
	}

	_, err := svc.Create(context.Background(), policy)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "cycle")
}

func TestCreateRejectsInvalidNodeConfig(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	policy := draftPolicy("Bad timeout")
	policy.WorkflowDefinition = &models.WorkflowDefinition{
		Nodes: []*models.Node{
			{ID: "start", Kind: models.NodeKindStart, Config: models.StartConfig{}},
			{ID: "lookup", Kind: models.NodeKindDataSource, Config: models.DataSourceConfig{
				ProviderID:     "sanctions_screening",
				TimeoutSeconds: -1,
			}},
			{ID: "approve", Kind: models.NodeKindApprove, Config: models.TerminalConfig{}},
		},
		Edges: []*models.Edge{
			{ID: "e1", SourceNodeID: "start", TargetNodeID: "lookup"},
			{ID: "e2", SourceNodeID: "lookup", TargetNodeID: "approve"},
		},
	}

	_, err := svc.Create(context.Background(), policy)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestLifecycleTransitions(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	policy := draftPolicy("Lifecycle policy")
	_, err := svc.Create(ctx, policy)
	require.NoError(t, err)

	// draft -> paused is not allowed.
	_, err = svc.Pause(ctx, policy.ID)
	require.Error(t, err)
	assert.True(t, IsConflictError(err))

	activated, err := svc.Activate(ctx, policy.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PolicyStatusActive, activated.Status)
	assert.True(t, activated.IsExecutable())

	paused, err := svc.Pause(ctx, policy.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PolicyStatusPaused, paused.Status)
	assert.False(t, paused.IsExecutable())

	reactivated, err := svc.Activate(ctx, policy.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PolicyStatusActive, reactivated.Status)
}

func TestArchiveIsTerminal(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	policy := draftPolicy("Retired policy")
	_, err := svc.Create(ctx, policy)
	require.NoError(t, err)

	archived, err := svc.Archive(ctx, policy.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PolicyStatusArchived, archived.Status)
	require.NotNil(t, archived.ArchivedAt)

	// Archived policies cannot be reactivated or edited.
	_, err = svc.Activate(ctx, policy.ID)
	require.Error(t, err)
	assert.True(t, IsConflictError(err))

	_, err = svc.UpdateDefinition(ctx, policy.ID, simpleDefinition())
	require.ErrorIs(t, err, ErrPolicyImmutable)
}

func TestUpdateDefinitionRevalidates(t *testing.T) {
	t.Parallel()

	svc, persist := newTestService(t)
	ctx := context.Background()

	policy := draftPolicy("Editable policy")
	_, err := svc.Create(ctx, policy)
	require.NoError(t, err)

	// A definition without a start node is rejected and the stored policy
	// keeps its previous definition.
	_, err = svc.UpdateDefinition(ctx, policy.ID, &models.WorkflowDefinition{
		Nodes: []*models.Node{
			{ID: "approve", Kind: models.NodeKindApprove, Config: models.TerminalConfig{}},
		},
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	stored, err := persist.PolicyRepository().PolicyByID(ctx, policy.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.WorkflowDefinition)
	assert.Len(t, stored.WorkflowDefinition.Nodes, 2)
}

func TestActivatePublishesLifecycleEvent(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())
	validate := validator.New(validator.WithRequiredStructEnabled())

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, string(events.PolicyActivatedEvent), mock.AnythingOfType("events.PolicyActivated")).Return(nil)

	svc := NewPolicyService(log.WithModule("policy-test"), persist, validate, bus)
	ctx := context.Background()

	policy := draftPolicy("Published policy")
	_, err := svc.Create(ctx, policy)
	require.NoError(t, err)

	_, err = svc.Activate(ctx, policy.ID)
	require.NoError(t, err)

	bus.AssertExpectations(t)
}

func TestCreateWarnsOnUnreachableNode(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	policy := draftPolicy("Orphan node policy")
	policy.WorkflowDefinition.Nodes = append(policy.WorkflowDefinition.Nodes,
		&models.Node{ID: "orphan", Kind: models.NodeKindReject, Config: models.TerminalConfig{}})

	warnings, err := svc.Create(context.Background(), policy)
	require.NoError(t, err)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "orphan")
}

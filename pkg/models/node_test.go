package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_UnmarshalJSON_ConfigVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		payload  string
		wantKind NodeKind
		check    func(t *testing.T, n *Node)
	}{
		{
			name:     "condition config",
			payload:  `{"id":"n1","kind":"condition","config":{"value":"{{input.amount}}","operator":"greater_than","literal":"100"}}`,
			wantKind: NodeKindCondition,
			check: func(t *testing.T, n *Node) {
				t.Helper()

				cfg, ok := n.Config.(ConditionConfig)
				require.True(t, ok)
				assert.Equal(t, "greater_than", cfg.Operator)
				assert.Equal(t, []string{"true", "false"}, cfg.BranchLabels())
			},
		},
		{
			name:     "api call config",
			payload:  `{"id":"n2","kind":"api_call","config":{"url":"https://api.example.com/v1/check","method":"POST","timeout_seconds":5}}`,
			wantKind: NodeKindAPICall,
			check: func(t *testing.T, n *Node) {
				t.Helper()

				cfg, ok := n.Config.(APICallConfig)
				require.True(t, ok)
				assert.Equal(t, "POST", cfg.Method)
				assert.Equal(t, 5, cfg.TimeoutSeconds)
			},
		},
		{
			name:     "data source config",
			payload:  `{"id":"n3","kind":"data_source","config":{"provider_id":"sanctions","payload":{"name":"{{input.name}}"}}}`,
			wantKind: NodeKindDataSource,
			check: func(t *testing.T, n *Node) {
				t.Helper()

				cfg, ok := n.Config.(DataSourceConfig)
				require.True(t, ok)
				assert.Equal(t, "sanctions", cfg.ProviderID)
			},
		},
		{
			name:     "terminal config with empty body",
			payload:  `{"id":"n4","kind":"approve"}`,
			wantKind: NodeKindApprove,
			check: func(t *testing.T, n *Node) {
				t.Helper()

				_, ok := n.Config.(TerminalConfig)
				require.True(t, ok)
				assert.True(t, n.Kind.IsTerminal())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var node Node

			require.NoError(t, json.Unmarshal([]byte(tt.payload), &node))
			assert.Equal(t, tt.wantKind, node.Kind)
			tt.check(t, &node)
		})
	}
}

func TestNode_UnmarshalJSON_UnknownKind(t *testing.T) {
	t.Parallel()

	var node Node

	err := json.Unmarshal([]byte(`{"id":"n1","kind":"teleport"}`), &node)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node kind")
}

func TestNode_UnmarshalJSON_DefaultErrorHandling(t *testing.T) {
	t.Parallel()

	var node Node

	require.NoError(t, json.Unmarshal([]byte(`{"id":"n1","kind":"start"}`), &node))
	assert.Equal(t, ErrorHandlingStop, node.ErrorHandling)
}

func TestNode_MarshalRoundTrip(t *testing.T) {
	t.Parallel()

	node := &Node{
		ID:   "check-amount",
		Kind: NodeKindCondition,
		Config: ConditionConfig{
			Value:    "{{input.amount}}",
			Operator: "greater_than",
			Literal:  "100",
		},
		ErrorHandling: ErrorHandlingRetry,
		RetryCount:    3,
	}

	data, err := json.Marshal(node)
	require.NoError(t, err)

	var decoded Node

	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, node.ID, decoded.ID)
	assert.Equal(t, node.RetryCount, decoded.RetryCount)
	assert.Equal(t, node.Config, decoded.Config)
}

func TestConditionConfig_BranchLabels_Cases(t *testing.T) {
	t.Parallel()

	cfg := ConditionConfig{
		Value:    "{{input.country}}",
		Operator: "equals",
		Cases: []Case{
			{Branch: "domestic", Literal: "BR"},
			{Branch: "foreign", Literal: ""},
		},
	}

	assert.Equal(t, []string{"domestic", "foreign"}, cfg.BranchLabels())
}

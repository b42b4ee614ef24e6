package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwatch/sentinel/pkg/models"
)

func testContext() *models.ExecutionContext {
	return &models.ExecutionContext{
		ID:       "exec-1",
		PolicyID: "pol-1",
		InputData: map[string]any{
			"amount":     float64(120),
			"account_id": "acc-9",
			"devices":    []any{"ios", "android"},
			"customer": map[string]any{
				"name":    "Ada",
				"country": "BR",
			},
		},
		Results: map[string]models.NodeResult{
			"lookup": {
				NodeID: "lookup",
				Status: models.NodeResultSuccess,
				Output: map[string]any{"risk": float64(0.42)},
			},
		},
		ContextVars: map[string]any{"threshold": float64(100)},
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		template     string
		want         string
		wantWarnings int
	}{
		{"input scalar", "amount={{input.amount}}", "amount=120", 0},
		{"nested map", "{{input.customer.name}} ({{input.customer.country}})", "Ada (BR)", 0},
		{"sequence index", "first={{input.devices.0}}", "first=ios", 0},
		{"results scope", "risk={{results.lookup.risk}}", "risk=0.42", 0},
		{"context scope", "limit={{context.threshold}}", "limit=100", 0},
		{"missing path falls back to empty", "v={{input.customer.age}}!", "v=!", 1},
		{"unknown scope", "{{secrets.token}}", "", 1},
		{"multiple placeholders resolved independently", "{{input.account_id}}:{{input.missing}}:{{context.threshold}}", "acc-9::100", 1},
		{"no placeholders", "plain text", "plain text", 0},
		{"out of range index", "{{input.devices.7}}", "", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, warnings := Resolve(tt.template, testContext())
			assert.Equal(t, tt.want, got)
			assert.Len(t, warnings, tt.wantWarnings)
		})
	}
}

func TestResolveValue_KeepsNativeTypes(t *testing.T) {
	t.Parallel()

	ctx := testContext()

	value, warnings := ResolveValue("{{input.amount}}", ctx)
	require.Empty(t, warnings)
	assert.Equal(t, float64(120), value)

	value, warnings = ResolveValue(" {{input.customer}} ", ctx)
	require.Empty(t, warnings)
	assert.Equal(t, map[string]any{"name": "Ada", "country": "BR"}, value)

	// Mixed templates degrade to string resolution
	value, warnings = ResolveValue("total: {{input.amount}}", ctx)
	require.Empty(t, warnings)
	assert.Equal(t, "total: 120", value)
}

func TestResolveMap(t *testing.T) {
	t.Parallel()

	resolved, warnings := ResolveMap(map[string]string{
		"account": "{{input.account_id}}",
		"level":   "{{context.threshold}}",
		"gone":    "{{input.nope}}",
	}, testContext())

	assert.Equal(t, "acc-9", resolved["account"])
	assert.Equal(t, float64(100), resolved["level"])
	assert.Equal(t, "", resolved["gone"])
	assert.Len(t, warnings, 1)
}

package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"none", "plain text", nil},
		{"single", "echo: {{A.text}}", []string{"A.text"}},
		{"multiple", "{{greeting}}, {{name}}!", []string{"greeting", "name"}},
		{"whitespace", "{{ tone }}", []string{"tone"}},
		{"deduplicated", "{{x}} and {{x}}", []string{"x"}},
		{"empty braces ignored", "{{}}", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Placeholders(tt.input))
		})
	}
}

func TestCollectPlaceholders(t *testing.T) {
	config := map[string]any{
		"prompt": "Summarize {{answers}} in a {{tone}} tone",
		"options": map[string]any{
			"model": "{{model}}",
		},
		"examples":    []any{"{{example1}}", 42},
		"temperature": 0.2,
	}

	names := CollectPlaceholders(config)
	assert.Equal(t, []string{"answers", "example1", "model", "tone"}, names)
}

func TestRenderStringInterpolation(t *testing.T) {
	values := map[string]any{"A.text": "hi", "count": float64(3)}

	result := RenderString("echo: {{A.text}} x{{count}}", values)
	assert.Equal(t, "echo: hi x3", result)
}

func TestRenderStringPreservesTypeForSolePlaceholder(t *testing.T) {
	values := map[string]any{"score": 0.75, "flags": map[string]any{"a": true}}

	assert.Equal(t, 0.75, RenderString("{{score}}", values))
	assert.Equal(t, map[string]any{"a": true}, RenderString("{{flags}}", values))
	assert.Equal(t, 0.75, RenderString("  {{score}}  ", values))
}

func TestRenderStringUnknownPlaceholderLeftIntact(t *testing.T) {
	result := RenderString("hello {{nobody}}", map[string]any{})
	assert.Equal(t, "hello {{nobody}}", result)
}

func TestRenderConfigDeepCopy(t *testing.T) {
	config := map[string]any{
		"prompt": "{{greeting}}",
		"nested": map[string]any{"field": "{{greeting}} there"},
	}
	values := map[string]any{"greeting": "hi"}

	rendered := RenderConfig(config, values)
	assert.Equal(t, "hi", rendered["prompt"])
	assert.Equal(t, "hi there", rendered["nested"].(map[string]any)["field"])

	// Source config untouched.
	assert.Equal(t, "{{greeting}}", config["prompt"])
	assert.Equal(t, "{{greeting}} there", config["nested"].(map[string]any)["field"])
}

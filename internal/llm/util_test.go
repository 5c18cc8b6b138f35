package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"json code block", "```json\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"generic code block", "```\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"code block with language", "```javascript\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"plain JSON", `{"key": "value"}`, `{"key": "value"}`},
		{"preamble", "As requested, here is the JSON:\n{\"title\": \"Engineer\"}", `{"title": "Engineer"}`},
		{"trailing text", "{\"key\": \"value\"}\n\nLet me know if you need anything else!", `{"key": "value"}`},
		{"escaped quotes", "Result: {\"message\": \"He said \\\"hello\\\"\"}", `{"message": "He said \"hello\""}`},
		{"array", "Here are the items:\n[\"item1\", \"item2\"]", `["item1", "item2"]`},
		{"unbalanced passes through", `{"key": "value"`, `{"key": "value"`},
		{"no JSON", "nothing here", "nothing here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a": {"b": 1}}`, extractJSONObject(`{"a": {"b": 1}} tail`))
	assert.Equal(t, `{"template": "Hello {name}!"}`, extractJSONObject(`{"template": "Hello {name}!"}`))
	assert.Equal(t, "", extractJSONObject(""))
	assert.Equal(t, "", extractJSONObject(`["not an object"]`))
}

func TestExtractJSONArray(t *testing.T) {
	assert.Equal(t, `[1, [2, 3]]`, extractJSONArray(`[1, [2, 3]] and more`))
	assert.Equal(t, `["]"]`, extractJSONArray(`["]"]`))
	assert.Equal(t, "", extractJSONArray(`[1, 2`))
}

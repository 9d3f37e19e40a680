package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/Andy963/rsp4copilot-sub000/internal/config"
)

func variantStrings(body string, apiMode string) []string {
	var out []string
	for _, v := range Variants([]byte(body), apiMode) {
		out = append(out, string(v))
	}
	return out
}

func TestVariantsCanonicalFirst(t *testing.T) {
	body := `{"model":"m","input":"hi","max_output_tokens":100}`
	got := variantStrings(body, config.APIModeOpenAIResponses)
	require.NotEmpty(t, got)
	assert.Equal(t, body, got[0])
}

func TestVariantsDeduplicated(t *testing.T) {
	got := variantStrings(`{"model":"m","input":"hi"}`, config.APIModeOpenAIResponses)
	seen := map[string]bool{}
	for _, v := range got {
		assert.False(t, seen[v], "duplicate variant: %s", v)
		seen[v] = true
	}
}

func TestVariantsTokenFieldSwap(t *testing.T) {
	got := variantStrings(`{"max_output_tokens":128}`, config.APIModeOpenAIResponses)
	var found bool
	for _, v := range got {
		if gjson.Get(v, "max_tokens").Int() == 128 && !gjson.Get(v, "max_output_tokens").Exists() {
			found = true
		}
	}
	assert.True(t, found)

	got = variantStrings(`{"max_tokens":128}`, config.APIModeOpenAIChat)
	found = false
	for _, v := range got {
		if gjson.Get(v, "max_output_tokens").Int() == 128 && !gjson.Get(v, "max_tokens").Exists() {
			found = true
		}
	}
	assert.True(t, found)
}

func TestVariantsInstructionsHoist(t *testing.T) {
	body := `{"instructions":"be terse","input":[{"role":"user","content":[{"type":"input_text","text":"hi"}]}]}`
	got := variantStrings(body, config.APIModeOpenAIResponses)

	var demoted string
	for _, v := range got {
		if !gjson.Get(v, "instructions").Exists() && gjson.Get(v, "input.0.role").String() == "system" {
			demoted = v
		}
	}
	require.NotEmpty(t, demoted)
	assert.Equal(t, "be terse", gjson.Get(demoted, "input.0.content.0.text").String())
	assert.Equal(t, "user", gjson.Get(demoted, "input.1.role").String())

	// And the reverse: a leading system item becomes instructions.
	body = `{"input":[{"role":"system","content":"be terse"},{"role":"user","content":"hi"}]}`
	var hoisted string
	for _, v := range variantStrings(body, config.APIModeOpenAIResponses) {
		if gjson.Get(v, "instructions").String() == "be terse" {
			hoisted = v
		}
	}
	require.NotEmpty(t, hoisted)
	assert.Equal(t, "user", gjson.Get(hoisted, "input.0.role").String())
}

func TestVariantsSinglePrompt(t *testing.T) {
	body := `{"input":[{"role":"system","content":"rules"},{"role":"user","content":[{"type":"input_text","text":"hi"}]}]}`
	var prompt string
	for _, v := range variantStrings(body, config.APIModeOpenAIResponses) {
		if input := gjson.Get(v, "input"); input.Type == gjson.String {
			prompt = input.String()
		}
	}
	assert.Equal(t, "system: rules\n\nuser: hi", prompt)
}

func TestVariantsSkipFlatteningToolTraffic(t *testing.T) {
	body := `{"input":[{"type":"function_call","call_id":"c1","name":"f","arguments":"{}"},{"type":"function_call_output","call_id":"c1","output":"ok"}]}`
	for _, v := range variantStrings(body, config.APIModeOpenAIResponses) {
		assert.True(t, gjson.Get(v, "input").IsArray(), "tool traffic must never be flattened: %s", v)
	}
}

func TestVariantsImageURLShape(t *testing.T) {
	body := `{"input":[{"role":"user","content":[{"type":"input_image","image_url":"data:image/png;base64,AAA"}]}]}`
	var swapped string
	for _, v := range variantStrings(body, config.APIModeOpenAIResponses) {
		if gjson.Get(v, "input.0.content.0.image_url.url").Exists() {
			swapped = v
		}
	}
	require.NotEmpty(t, swapped)
	assert.Equal(t, "data:image/png;base64,AAA", gjson.Get(swapped, "input.0.content.0.image_url.url").String())
}

func TestVariantsReasoningShapes(t *testing.T) {
	body := `{"model":"m","reasoning":{"effort":"high"}}`
	got := variantStrings(body, config.APIModeOpenAIChat)

	var swapped, stripped bool
	for _, v := range got {
		if gjson.Get(v, "reasoning_effort").String() == "high" && !gjson.Get(v, "reasoning").Exists() {
			swapped = true
		}
		if !gjson.Get(v, "reasoning").Exists() && !gjson.Get(v, "reasoning_effort").Exists() {
			stripped = true
		}
	}
	assert.True(t, swapped)
	assert.True(t, stripped)
}

func TestVariantsStripOperationalFields(t *testing.T) {
	body := `{"model":"m","prompt_cache_retention":"24h","safety_identifier":"u1"}`
	var found bool
	for _, v := range variantStrings(body, config.APIModeClaude) {
		if !gjson.Get(v, "prompt_cache_retention").Exists() && !gjson.Get(v, "safety_identifier").Exists() {
			found = true
		}
	}
	assert.True(t, found)
}

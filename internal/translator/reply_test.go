package translator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

const foldedCompletion = `{
	"id": "chatcmpl-77",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "m",
	"choices": [{
		"index": 0,
		"message": {
			"role": "assistant",
			"content": "hello",
			"reasoning_content": "mull",
			"tool_calls": [{
				"id": "call_1",
				"type": "function",
				"thought_signature": "sig",
				"function": {"name": "add", "arguments": "{\"x\":1}"}
			}]
		},
		"finish_reason": "tool_calls"
	}],
	"usage": {"prompt_tokens": 5, "completion_tokens": 7, "total_tokens": 12}
}`

func TestNormalizeResponsesReply(t *testing.T) {
	raw := `{
		"id": "resp_1",
		"model": "gpt-x",
		"created_at": 1700000000,
		"status": "completed",
		"output": [
			{"type": "reasoning", "summary": [{"type": "summary_text", "text": "think"}]},
			{"type": "message", "role": "assistant", "content": [
				{"type": "output_text", "text": "four"}
			]},
			{"type": "function_call", "call_id": "call_9", "name": "add", "arguments": "{\"x\":1}"}
		],
		"usage": {"input_tokens": 3, "output_tokens": 2}
	}`
	out := gjson.ParseBytes(NormalizeResponses("fallback", []byte(raw)))

	assert.Equal(t, "resp_1", out.Get("id").String())
	assert.Equal(t, "gpt-x", out.Get("model").String())
	assert.Equal(t, int64(1700000000), out.Get("created").Int())
	assert.Equal(t, "four", out.Get("choices.0.message.content").String())
	assert.Equal(t, "think", out.Get("choices.0.message.reasoning_content").String())
	assert.Equal(t, "call_9", out.Get("choices.0.message.tool_calls.0.id").String())
	assert.Equal(t, `{"x":1}`, out.Get("choices.0.message.tool_calls.0.function.arguments").String())
	assert.Equal(t, "tool_calls", out.Get("choices.0.finish_reason").String())
	assert.Equal(t, int64(5), out.Get("usage.total_tokens").Int())
}

func TestNormalizeResponsesIncompleteMapsToLength(t *testing.T) {
	raw := `{
		"id": "resp_2",
		"status": "incomplete",
		"incomplete_details": {"reason": "max_output_tokens"},
		"output": [{"type": "message", "content": [{"type": "output_text", "text": "cut"}]}]
	}`
	out := gjson.ParseBytes(NormalizeResponses("m", []byte(raw)))
	assert.Equal(t, "length", out.Get("choices.0.finish_reason").String())
}

func TestNormalizeClaudeReply(t *testing.T) {
	raw := `{
		"id": "msg_1",
		"model": "claude-x",
		"stop_reason": "tool_use",
		"content": [
			{"type": "thinking", "thinking": "hm"},
			{"type": "text", "text": "sum is "},
			{"type": "text", "text": "4"},
			{"type": "tool_use", "id": "toolu_1", "name": "add", "input": {"x": 1}}
		],
		"usage": {"input_tokens": 3, "output_tokens": 2}
	}`
	out := gjson.ParseBytes(NormalizeClaude("fallback", []byte(raw)))

	assert.Equal(t, "msg_1", out.Get("id").String())
	assert.Equal(t, "claude-x", out.Get("model").String())
	assert.Equal(t, "sum is 4", out.Get("choices.0.message.content").String())
	assert.Equal(t, "hm", out.Get("choices.0.message.reasoning_content").String())
	assert.Equal(t, "toolu_1", out.Get("choices.0.message.tool_calls.0.id").String())
	assert.Equal(t, `{"x":1}`, out.Get("choices.0.message.tool_calls.0.function.arguments").String())
	assert.Equal(t, "tool_calls", out.Get("choices.0.finish_reason").String())
	assert.Equal(t, int64(5), out.Get("usage.total_tokens").Int())
}

func TestNormalizeGeminiReply(t *testing.T) {
	raw := `{
		"modelVersion": "gemini-x",
		"candidates": [{
			"content": {"role": "model", "parts": [
				{"text": "hm", "thought": true},
				{"text": "four"},
				{"functionCall": {"name": "add", "args": {"x": 1}}, "thoughtSignature": "sig"}
			]},
			"finishReason": "STOP"
		}],
		"usageMetadata": {"promptTokenCount": 3, "candidatesTokenCount": 2}
	}`
	out := gjson.ParseBytes(NormalizeGemini("fallback", []byte(raw)))

	assert.True(t, strings.HasPrefix(out.Get("id").String(), "chatcmpl"))
	assert.Equal(t, "gemini-x", out.Get("model").String())
	assert.Equal(t, "four", out.Get("choices.0.message.content").String())
	assert.Equal(t, "hm", out.Get("choices.0.message.reasoning_content").String())

	call := out.Get("choices.0.message.tool_calls.0")
	assert.True(t, strings.HasPrefix(call.Get("id").String(), "call_"))
	assert.Equal(t, "add", call.Get("function.name").String())
	assert.Equal(t, "sig", call.Get("thought_signature").String())
	assert.Equal(t, "tool_calls", out.Get("choices.0.finish_reason").String())
	assert.Equal(t, int64(5), out.Get("usage.total_tokens").Int())
}

func TestToResponsesReply(t *testing.T) {
	out := gjson.ParseBytes(ToResponsesReply([]byte(foldedCompletion)))

	assert.Equal(t, "resp_77", out.Get("id").String())
	assert.Equal(t, "completed", out.Get("status").String())

	items := out.Get("output").Array()
	assert.Len(t, items, 3)
	assert.Equal(t, "reasoning", items[0].Get("type").String())
	assert.Equal(t, "mull", items[0].Get("summary.0.text").String())
	assert.Equal(t, "message", items[1].Get("type").String())
	assert.Equal(t, "hello", items[1].Get("content.0.text").String())
	assert.Equal(t, "function_call", items[2].Get("type").String())
	assert.Equal(t, "fc_call_1", items[2].Get("id").String())
	assert.Equal(t, "call_1", items[2].Get("call_id").String())
	assert.Equal(t, `{"x":1}`, items[2].Get("arguments").String())

	assert.Equal(t, int64(5), out.Get("usage.input_tokens").Int())
	assert.Equal(t, int64(12), out.Get("usage.total_tokens").Int())
}

func TestToResponsesReplyLengthBecomesIncomplete(t *testing.T) {
	completion := `{"id":"chatcmpl-1","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"cut"},"finish_reason":"length"}]}`
	out := gjson.ParseBytes(ToResponsesReply([]byte(completion)))
	assert.Equal(t, "incomplete", out.Get("status").String())
	assert.Equal(t, "max_output_tokens", out.Get("incomplete_details.reason").String())
}

func TestToClaudeReply(t *testing.T) {
	out := gjson.ParseBytes(ToClaudeReply([]byte(foldedCompletion)))

	assert.True(t, strings.HasPrefix(out.Get("id").String(), "msg_"))
	assert.Equal(t, "message", out.Get("type").String())

	blocks := out.Get("content").Array()
	assert.Len(t, blocks, 3)
	assert.Equal(t, "thinking", blocks[0].Get("type").String())
	assert.Equal(t, "mull", blocks[0].Get("thinking").String())
	assert.Equal(t, "text", blocks[1].Get("type").String())
	assert.Equal(t, "hello", blocks[1].Get("text").String())
	assert.Equal(t, "tool_use", blocks[2].Get("type").String())
	assert.Equal(t, "call_1", blocks[2].Get("id").String())
	assert.Equal(t, int64(1), blocks[2].Get("input.x").Int())

	assert.Equal(t, "tool_use", out.Get("stop_reason").String())
	assert.Equal(t, int64(5), out.Get("usage.input_tokens").Int())
	assert.Equal(t, int64(7), out.Get("usage.output_tokens").Int())
}

func TestToGeminiReply(t *testing.T) {
	out := gjson.ParseBytes(ToGeminiReply([]byte(foldedCompletion)))

	assert.Equal(t, "m", out.Get("modelVersion").String())
	parts := out.Get("candidates.0.content.parts").Array()
	assert.Len(t, parts, 3)
	assert.True(t, parts[0].Get("thought").Bool())
	assert.Equal(t, "mull", parts[0].Get("text").String())
	assert.Equal(t, "hello", parts[1].Get("text").String())
	assert.Equal(t, "add", parts[2].Get("functionCall.name").String())
	assert.Equal(t, int64(1), parts[2].Get("functionCall.args.x").Int())
	assert.Equal(t, "sig", parts[2].Get("thoughtSignature").String())

	assert.Equal(t, "STOP", out.Get("candidates.0.finishReason").String())
	assert.Equal(t, int64(12), out.Get("usageMetadata.totalTokenCount").Int())
}

func TestResponseIDFromPrefixSwap(t *testing.T) {
	assert.Equal(t, "resp_abc", ResponseIDFrom("chatcmpl-abc"))
	assert.Equal(t, "resp_abc", ResponseIDFrom("chatcmpl_abc"))
	assert.Equal(t, "resp_xyz", ResponseIDFrom("resp_xyz"))
	assert.True(t, strings.HasPrefix(ResponseIDFrom("other-1"), "resp_"))
}

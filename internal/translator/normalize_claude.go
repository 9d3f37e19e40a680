package translator

import (
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// NormalizeClaude rebuilds a non-streaming Anthropic Messages reply as a
// chat completion. Text blocks join into content, thinking blocks join into
// reasoning_content, and tool_use blocks become tool_calls with stringified
// arguments.
func NormalizeClaude(model string, raw []byte) []byte {
	root := gjson.ParseBytes(raw)

	out := `{"id":"","object":"chat.completion","created":0,"model":"","choices":[{"index":0,"message":{"role":"assistant","content":""},"finish_reason":"stop"}]}`

	id := root.Get("id").String()
	if id == "" {
		id = NewChatCompletionID()
	}
	out, _ = sjson.Set(out, "id", id)
	out, _ = sjson.Set(out, "created", time.Now().Unix())

	if upstream := root.Get("model").String(); upstream != "" {
		model = upstream
	}
	out, _ = sjson.Set(out, "model", model)

	var content, reasoning string
	toolCalls := "[]"
	root.Get("content").ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			content += block.Get("text").String()
		case "thinking":
			reasoning += block.Get("thinking").String()
		case "tool_use":
			call := `{"id":"","type":"function","function":{"name":"","arguments":""}}`
			callID := block.Get("id").String()
			if callID == "" {
				callID = NewCallID()
			}
			call, _ = sjson.Set(call, "id", callID)
			call, _ = sjson.Set(call, "function.name", block.Get("name").String())
			call, _ = sjson.Set(call, "function.arguments", ArgumentsString(block.Get("input")))
			toolCalls, _ = sjson.SetRaw(toolCalls, "-1", call)
		}
		return true
	})

	out, _ = sjson.Set(out, "choices.0.message.content", content)
	if reasoning != "" {
		out, _ = sjson.Set(out, "choices.0.message.reasoning_content", reasoning)
	}
	hasToolCalls := gjson.Get(toolCalls, "0").Exists()
	if hasToolCalls {
		out, _ = sjson.SetRaw(out, "choices.0.message.tool_calls", toolCalls)
	}
	out, _ = sjson.Set(out, "choices.0.finish_reason", MapFinishReason(root.Get("stop_reason").String(), hasToolCalls))

	if usage := root.Get("usage"); usage.Exists() {
		prompt := usage.Get("input_tokens").Int()
		completion := usage.Get("output_tokens").Int()
		out, _ = sjson.Set(out, "usage.prompt_tokens", prompt)
		out, _ = sjson.Set(out, "usage.completion_tokens", completion)
		out, _ = sjson.Set(out, "usage.total_tokens", prompt+completion)
	}

	return []byte(out)
}

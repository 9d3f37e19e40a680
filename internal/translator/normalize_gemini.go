package translator

import (
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// NormalizeGemini rebuilds a non-streaming Gemini generateContent reply as a
// chat completion. Gemini responses carry no id, so one is minted. Thought
// parts join into reasoning_content; functionCall parts become tool_calls
// with minted call ids, carrying any sibling thoughtSignature on the call so
// downstream layers can persist it.
func NormalizeGemini(model string, raw []byte) []byte {
	root := gjson.ParseBytes(raw)

	out := `{"id":"","object":"chat.completion","created":0,"model":"","choices":[{"index":0,"message":{"role":"assistant","content":""},"finish_reason":"stop"}]}`
	out, _ = sjson.Set(out, "id", NewChatCompletionID())
	out, _ = sjson.Set(out, "created", time.Now().Unix())

	if upstream := root.Get("modelVersion").String(); upstream != "" {
		model = upstream
	}
	out, _ = sjson.Set(out, "model", model)

	candidate := root.Get("candidates.0")

	var content, reasoning string
	toolCalls := "[]"
	candidate.Get("content.parts").ForEach(func(_, part gjson.Result) bool {
		if fn := part.Get("functionCall"); fn.Exists() {
			call := `{"id":"","type":"function","function":{"name":"","arguments":""}}`
			call, _ = sjson.Set(call, "id", NewCallID())
			call, _ = sjson.Set(call, "function.name", fn.Get("name").String())
			call, _ = sjson.Set(call, "function.arguments", ArgumentsString(fn.Get("args")))
			if signature := part.Get("thoughtSignature").String(); signature != "" {
				call, _ = sjson.Set(call, "thought_signature", signature)
			}
			toolCalls, _ = sjson.SetRaw(toolCalls, "-1", call)
			return true
		}
		if text := part.Get("text").String(); text != "" {
			if part.Get("thought").Bool() {
				reasoning += text
			} else {
				content += text
			}
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
	out, _ = sjson.Set(out, "choices.0.finish_reason", MapFinishReason(candidate.Get("finishReason").String(), hasToolCalls))

	if usage := root.Get("usageMetadata"); usage.Exists() {
		prompt := usage.Get("promptTokenCount").Int()
		completion := usage.Get("candidatesTokenCount").Int()
		total := usage.Get("totalTokenCount").Int()
		if total == 0 {
			total = prompt + completion
		}
		out, _ = sjson.Set(out, "usage.prompt_tokens", prompt)
		out, _ = sjson.Set(out, "usage.completion_tokens", completion)
		out, _ = sjson.Set(out, "usage.total_tokens", total)
	}

	return []byte(out)
}

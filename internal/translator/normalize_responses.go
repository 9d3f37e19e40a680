package translator

import (
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// NormalizeResponses rebuilds a non-streaming OpenAI Responses reply as a
// chat completion. Output items fold into a single assistant message:
// output_text joins into content, reasoning summaries join into
// reasoning_content, and function_call items become tool_calls.
func NormalizeResponses(model string, raw []byte) []byte {
	root := gjson.ParseBytes(raw)

	out := `{"id":"","object":"chat.completion","created":0,"model":"","choices":[{"index":0,"message":{"role":"assistant","content":""},"finish_reason":"stop"}]}`

	id := root.Get("id").String()
	if id == "" {
		id = NewChatCompletionID()
	}
	out, _ = sjson.Set(out, "id", id)

	created := root.Get("created_at").Int()
	if created == 0 {
		created = time.Now().Unix()
	}
	out, _ = sjson.Set(out, "created", created)

	if upstream := root.Get("model").String(); upstream != "" {
		model = upstream
	}
	out, _ = sjson.Set(out, "model", model)

	var content, reasoning string
	toolCalls := "[]"
	root.Get("output").ForEach(func(_, item gjson.Result) bool {
		switch item.Get("type").String() {
		case "message":
			item.Get("content").ForEach(func(_, part gjson.Result) bool {
				switch part.Get("type").String() {
				case "output_text", "text", "refusal":
					content += part.Get("text").String()
				}
				return true
			})
		case "reasoning":
			item.Get("summary").ForEach(func(_, part gjson.Result) bool {
				reasoning += part.Get("text").String()
				return true
			})
		case "function_call":
			call := `{"id":"","type":"function","function":{"name":"","arguments":""}}`
			callID := item.Get("call_id").String()
			if callID == "" {
				callID = NewCallID()
			}
			call, _ = sjson.Set(call, "id", callID)
			call, _ = sjson.Set(call, "function.name", item.Get("name").String())
			call, _ = sjson.Set(call, "function.arguments", ArgumentsString(item.Get("arguments")))
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

	reason := root.Get("status").String()
	if detail := root.Get("incomplete_details.reason").String(); detail != "" {
		reason = detail
	}
	out, _ = sjson.Set(out, "choices.0.finish_reason", MapFinishReason(reason, hasToolCalls))

	if usage := root.Get("usage"); usage.Exists() {
		prompt := usage.Get("input_tokens").Int()
		completion := usage.Get("output_tokens").Int()
		total := usage.Get("total_tokens").Int()
		if total == 0 {
			total = prompt + completion
		}
		out, _ = sjson.Set(out, "usage.prompt_tokens", prompt)
		out, _ = sjson.Set(out, "usage.completion_tokens", completion)
		out, _ = sjson.Set(out, "usage.total_tokens", total)
	}

	return []byte(out)
}

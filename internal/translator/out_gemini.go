package translator

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ToGeminiReply rebuilds a chat completion as a non-streaming Gemini
// generateContent reply.
func ToGeminiReply(raw []byte) []byte {
	root := gjson.ParseBytes(raw)

	out := `{"candidates":[{"content":{"role":"model","parts":[]},"finishReason":"STOP","index":0}]}`
	out, _ = sjson.Set(out, "modelVersion", root.Get("model").String())

	message := root.Get("choices.0.message")

	if reasoning := message.Get("reasoning_content").String(); reasoning != "" {
		part, _ := sjson.Set(`{"text":"","thought":true}`, "text", reasoning)
		out, _ = sjson.SetRaw(out, "candidates.0.content.parts.-1", part)
	}
	if content := message.Get("content").String(); content != "" {
		part, _ := sjson.Set(`{"text":""}`, "text", content)
		out, _ = sjson.SetRaw(out, "candidates.0.content.parts.-1", part)
	}
	message.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		part := `{"functionCall":{"name":"","args":{}}}`
		part, _ = sjson.Set(part, "functionCall.name", call.Get("function.name").String())
		arguments := call.Get("function.arguments").String()
		if gjson.Valid(arguments) && arguments != "" {
			part, _ = sjson.SetRaw(part, "functionCall.args", arguments)
		}
		if signature := call.Get("thought_signature").String(); signature != "" {
			part, _ = sjson.Set(part, "thoughtSignature", signature)
		}
		out, _ = sjson.SetRaw(out, "candidates.0.content.parts.-1", part)
		return true
	})

	out, _ = sjson.Set(out, "candidates.0.finishReason", GeminiFinishReason(root.Get("choices.0.finish_reason").String()))

	if usage := root.Get("usage"); usage.Exists() {
		out, _ = sjson.Set(out, "usageMetadata.promptTokenCount", usage.Get("prompt_tokens").Int())
		out, _ = sjson.Set(out, "usageMetadata.candidatesTokenCount", usage.Get("completion_tokens").Int())
		out, _ = sjson.Set(out, "usageMetadata.totalTokenCount", usage.Get("total_tokens").Int())
	}

	return []byte(out)
}

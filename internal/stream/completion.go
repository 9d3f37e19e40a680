package stream

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ChunksFromCompletion slices a non-streaming chat completion into the
// chunk sequence an equivalent stream would have produced: a role chunk,
// one content chunk, one reasoning chunk, one chunk per tool call, and the
// terminal chunk carrying finish_reason and usage.
func ChunksFromCompletion(chatJSON string) []string {
	root := gjson.Parse(chatJSON)

	base := `{"id":"","object":"chat.completion.chunk","created":0,"model":"","choices":[{"index":0,"delta":{}}]}`
	base, _ = sjson.Set(base, "id", root.Get("id").String())
	base, _ = sjson.Set(base, "created", root.Get("created").Int())
	base, _ = sjson.Set(base, "model", root.Get("model").String())

	role, _ := sjson.Set(base, "choices.0.delta.role", "assistant")
	chunks := []string{role}

	message := root.Get("choices.0.message")

	if reasoning := message.Get("reasoning_content").String(); reasoning != "" {
		chunk, _ := sjson.Set(base, "choices.0.delta.reasoning_content", reasoning)
		chunks = append(chunks, chunk)
	}
	if content := message.Get("content").String(); content != "" {
		chunk, _ := sjson.Set(base, "choices.0.delta.content", content)
		chunks = append(chunks, chunk)
	}
	slot := 0
	message.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		item, _ := sjson.Set(call.Raw, "index", slot)
		chunk, _ := sjson.SetRaw(base, "choices.0.delta.tool_calls", "["+item+"]")
		chunks = append(chunks, chunk)
		slot++
		return true
	})

	terminal, _ := sjson.Set(base, "choices.0.finish_reason", root.Get("choices.0.finish_reason").String())
	if usage := root.Get("usage"); usage.IsObject() {
		terminal, _ = sjson.SetRaw(terminal, "usage", usage.Raw)
	}
	return append(chunks, terminal)
}

package stream

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/Andy963/rsp4copilot-sub000/internal/translator"
)

// CollectCompletion drains an upstream SSE body through source and folds
// the resulting chunks into one chat completion. Used when a client asked
// for JSON but the upstream would only answer over SSE.
func CollectCompletion(body io.ReadCloser, source translator.ChunkSource) string {
	defer body.Close()

	var chunks []string
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, scannerInitialBuffer), scannerMaxBuffer)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			break
		}
		chunks = append(chunks, source.Feed([]byte(payload))...)
		if source.Finished() {
			break
		}
	}
	if terminal := source.Terminal(); terminal != "" {
		chunks = append(chunks, terminal)
	}
	return FoldChunks(chunks)
}

// FoldChunks merges a chunk sequence back into a single chat completion.
func FoldChunks(chunks []string) string {
	out := `{"id":"","object":"chat.completion","created":0,"model":"","choices":[{"index":0,"message":{"role":"assistant","content":""},"finish_reason":"stop"}]}`

	var content, reasoning string
	type call struct {
		id, name, arguments, signature string
	}
	calls := map[int]*call{}
	var order []int

	for _, raw := range chunks {
		chunk := gjson.Parse(raw)
		if id := chunk.Get("id").String(); id != "" {
			out, _ = sjson.Set(out, "id", id)
		}
		if model := chunk.Get("model").String(); model != "" {
			out, _ = sjson.Set(out, "model", model)
		}
		if created := chunk.Get("created").Int(); created != 0 {
			out, _ = sjson.Set(out, "created", created)
		}

		delta := chunk.Get("choices.0.delta")
		content += delta.Get("content").String()
		reasoning += delta.Get("reasoning_content").String()
		delta.Get("tool_calls").ForEach(func(_, entry gjson.Result) bool {
			slot := int(entry.Get("index").Int())
			accumulated, ok := calls[slot]
			if !ok {
				accumulated = &call{}
				calls[slot] = accumulated
				order = append(order, slot)
			}
			if id := entry.Get("id").String(); id != "" {
				accumulated.id = id
			}
			if name := entry.Get("function.name").String(); name != "" {
				accumulated.name = name
			}
			accumulated.arguments += entry.Get("function.arguments").String()
			if signature := entry.Get("thought_signature").String(); signature != "" {
				accumulated.signature = signature
			}
			return true
		})

		if reason := chunk.Get("choices.0.finish_reason").String(); reason != "" {
			out, _ = sjson.Set(out, "choices.0.finish_reason", reason)
		}
		if usage := chunk.Get("usage"); usage.IsObject() {
			out, _ = sjson.SetRaw(out, "usage", usage.Raw)
		}
	}

	if gjson.Get(out, "created").Int() == 0 {
		out, _ = sjson.Set(out, "created", time.Now().Unix())
	}
	if gjson.Get(out, "id").String() == "" {
		out, _ = sjson.Set(out, "id", translator.NewChatCompletionID())
	}
	out, _ = sjson.Set(out, "choices.0.message.content", content)
	if reasoning != "" {
		out, _ = sjson.Set(out, "choices.0.message.reasoning_content", reasoning)
	}
	for _, slot := range order {
		accumulated := calls[slot]
		item := `{"id":"","type":"function","function":{"name":"","arguments":""}}`
		if accumulated.id == "" {
			accumulated.id = translator.NewCallID()
		}
		item, _ = sjson.Set(item, "id", accumulated.id)
		item, _ = sjson.Set(item, "function.name", accumulated.name)
		item, _ = sjson.Set(item, "function.arguments", accumulated.arguments)
		if accumulated.signature != "" {
			item, _ = sjson.Set(item, "thought_signature", accumulated.signature)
		}
		out, _ = sjson.SetRaw(out, "choices.0.message.tool_calls.-1", item)
	}
	return out
}

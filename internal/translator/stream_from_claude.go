package translator

import (
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ClaudeStreamState carries per-stream accumulators while converting an
// Anthropic Messages event stream into chat completion chunks.
type ClaudeStreamState struct {
	ID      string
	Model   string
	Created int64
	Usage   string

	roleSent     bool
	finished     bool
	stopReason   string
	promptTokens int64
	blocks       map[int64]*callState
	toolSlots    int
}

// Finished reports whether the terminal chunk has been produced.
func (st *ClaudeStreamState) Finished() bool { return st.finished }

func (st *ClaudeStreamState) chunk() string {
	out := `{"id":"","object":"chat.completion.chunk","created":0,"model":"","choices":[{"index":0,"delta":{}}]}`
	if st.ID == "" {
		st.ID = NewChatCompletionID()
	}
	if st.Created == 0 {
		st.Created = time.Now().Unix()
	}
	out, _ = sjson.Set(out, "id", st.ID)
	out, _ = sjson.Set(out, "created", st.Created)
	out, _ = sjson.Set(out, "model", st.Model)
	return out
}

func (st *ClaudeStreamState) roleChunk() (string, bool) {
	if st.roleSent {
		return "", false
	}
	st.roleSent = true
	out, _ := sjson.Set(st.chunk(), "choices.0.delta.role", "assistant")
	return out, true
}

// FromClaudeStream converts one Anthropic Messages SSE payload into zero or
// more chat completion chunks. Content blocks are tracked by their stream
// index; tool_use blocks get chat tool-call slots in first-seen order.
func FromClaudeStream(payload []byte, st *ClaudeStreamState) []string {
	event := gjson.ParseBytes(payload)
	var chunks []string

	switch event.Get("type").String() {
	case "message_start":
		message := event.Get("message")
		st.ID = message.Get("id").String()
		st.Model = message.Get("model").String()
		st.promptTokens = message.Get("usage.input_tokens").Int()

	case "content_block_start":
		block := event.Get("content_block")
		if block.Get("type").String() != "tool_use" {
			break
		}
		if st.blocks == nil {
			st.blocks = map[int64]*callState{}
		}
		call := &callState{index: st.toolSlots, id: block.Get("id").String(), name: block.Get("name").String()}
		st.toolSlots++
		st.blocks[event.Get("index").Int()] = call
		if call.id == "" {
			call.id = NewCallID()
		}
		if role, ok := st.roleChunk(); ok {
			chunks = append(chunks, role)
		}
		chunks = append(chunks, st.callChunk(call, ""))

	case "content_block_delta":
		delta := event.Get("delta")
		switch delta.Get("type").String() {
		case "text_delta":
			text := delta.Get("text").String()
			if text == "" {
				break
			}
			if role, ok := st.roleChunk(); ok {
				chunks = append(chunks, role)
			}
			out, _ := sjson.Set(st.chunk(), "choices.0.delta.content", text)
			chunks = append(chunks, out)
		case "thinking_delta":
			thinking := delta.Get("thinking").String()
			if thinking == "" {
				break
			}
			if role, ok := st.roleChunk(); ok {
				chunks = append(chunks, role)
			}
			out, _ := sjson.Set(st.chunk(), "choices.0.delta.reasoning_content", thinking)
			chunks = append(chunks, out)
		case "input_json_delta":
			call, ok := st.blocks[event.Get("index").Int()]
			if !ok {
				break
			}
			partial := delta.Get("partial_json").String()
			call.arguments += partial
			chunks = append(chunks, st.callChunk(call, partial))
		}

	case "message_delta":
		if reason := event.Get("delta.stop_reason").String(); reason != "" {
			st.stopReason = reason
		}
		if tokens := event.Get("usage.output_tokens"); tokens.Exists() {
			usage := `{"prompt_tokens":0,"completion_tokens":0,"total_tokens":0}`
			usage, _ = sjson.Set(usage, "prompt_tokens", st.promptTokens)
			usage, _ = sjson.Set(usage, "completion_tokens", tokens.Int())
			usage, _ = sjson.Set(usage, "total_tokens", st.promptTokens+tokens.Int())
			st.Usage = usage
		}

	case "message_stop":
		chunks = append(chunks, st.TerminalChunk())
	}

	return chunks
}

func (st *ClaudeStreamState) callChunk(call *callState, suffix string) string {
	out := st.chunk()
	item := `{"index":0,"type":"function","function":{}}`
	item, _ = sjson.Set(item, "index", call.index)
	if !call.announced {
		call.announced = true
		item, _ = sjson.Set(item, "id", call.id)
		item, _ = sjson.Set(item, "function.name", call.name)
	}
	item, _ = sjson.Set(item, "function.arguments", suffix)
	out, _ = sjson.SetRaw(out, "choices.0.delta.tool_calls", "["+item+"]")
	return out
}

// TerminalChunk emits the finish_reason chunk once, mapping the recorded
// stop_reason.
func (st *ClaudeStreamState) TerminalChunk() string {
	if st.finished {
		return ""
	}
	st.finished = true
	out, _ := sjson.Set(st.chunk(), "choices.0.finish_reason", MapFinishReason(st.stopReason, st.toolSlots > 0))
	if st.Usage != "" {
		out, _ = sjson.SetRaw(out, "usage", st.Usage)
	}
	return out
}

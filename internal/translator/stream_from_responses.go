package translator

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// callState accumulates streamed tool-call arguments for one call id. The
// slot index is assigned in first-seen order and never changes within a
// stream.
type callState struct {
	index     int
	id        string
	name      string
	arguments string
	announced bool
}

// ResponsesStreamState carries per-stream accumulators while converting an
// OpenAI Responses event stream into chat completion chunks.
type ResponsesStreamState struct {
	ID      string
	Model   string
	Created int64
	Usage   string

	roleSent  bool
	text      string
	finished  bool
	calls     map[string]*callState
	order     []string
	itemCalls map[string]string
}

// Finished reports whether the terminal chunk has been produced.
func (st *ResponsesStreamState) Finished() bool { return st.finished }

func (st *ResponsesStreamState) chunk() string {
	out := `{"id":"","object":"chat.completion.chunk","created":0,"model":"","choices":[{"index":0,"delta":{}}]}`
	id := st.ID
	if id == "" {
		id = NewChatCompletionID()
		st.ID = id
	}
	out, _ = sjson.Set(out, "id", id)
	created := st.Created
	if created == 0 {
		created = time.Now().Unix()
		st.Created = created
	}
	out, _ = sjson.Set(out, "created", created)
	out, _ = sjson.Set(out, "model", st.Model)
	return out
}

func (st *ResponsesStreamState) roleChunk() (string, bool) {
	if st.roleSent {
		return "", false
	}
	st.roleSent = true
	out, _ := sjson.Set(st.chunk(), "choices.0.delta.role", "assistant")
	return out, true
}

func (st *ResponsesStreamState) call(key string) *callState {
	if st.calls == nil {
		st.calls = map[string]*callState{}
	}
	call, ok := st.calls[key]
	if !ok {
		call = &callState{index: len(st.order), id: key}
		st.calls[key] = call
		st.order = append(st.order, key)
	}
	return call
}

// callKey resolves an event to its call id, falling back to the item id
// until output_item.added reveals the mapping.
func (st *ResponsesStreamState) callKey(event gjson.Result) string {
	if callID := event.Get("call_id").String(); callID != "" {
		return callID
	}
	itemID := event.Get("item_id").String()
	if mapped, ok := st.itemCalls[itemID]; ok {
		return mapped
	}
	return itemID
}

// streamArguments renders arguments carried on stream events. Unlike
// ArgumentsString it preserves emptiness: inventing "{}" here would poison
// the accumulator while argument deltas may still follow.
func streamArguments(value gjson.Result) string {
	if !value.Exists() || (value.Type == gjson.String && value.String() == "") {
		return ""
	}
	return ArgumentsString(value)
}

// argumentsSuffix reconciles the accumulated arguments against full and
// returns the unseen suffix, or "" when full is a prefix of (or equal to)
// what was already emitted.
func (call *callState) argumentsSuffix(full string) string {
	if strings.HasPrefix(full, call.arguments) {
		suffix := full[len(call.arguments):]
		call.arguments = full
		return suffix
	}
	return ""
}

func (st *ResponsesStreamState) callChunk(call *callState, suffix string) string {
	out := st.chunk()
	item := `{"index":0,"type":"function","function":{}}`
	item, _ = sjson.Set(item, "index", call.index)
	if !call.announced {
		call.announced = true
		item, _ = sjson.Set(item, "id", NormalizeCallID(call.id))
		item, _ = sjson.Set(item, "function.name", call.name)
	}
	item, _ = sjson.Set(item, "function.arguments", suffix)
	out, _ = sjson.SetRaw(out, "choices.0.delta.tool_calls", "["+item+"]")
	return out
}

// FromResponsesStream converts one OpenAI Responses SSE payload into zero or
// more chat completion chunks. Text and argument deltas are forwarded as
// they arrive; cumulative done events contribute only their unseen suffix.
func FromResponsesStream(payload []byte, st *ResponsesStreamState) []string {
	event := gjson.ParseBytes(payload)
	var chunks []string

	switch event.Get("type").String() {
	case "response.created", "response.in_progress":
		if response := event.Get("response"); response.Exists() {
			st.ID = response.Get("id").String()
			st.Model = response.Get("model").String()
			st.Created = response.Get("created_at").Int()
		}

	case "response.output_text.delta", "response.refusal.delta":
		delta := event.Get("delta").String()
		if delta == "" {
			break
		}
		if role, ok := st.roleChunk(); ok {
			chunks = append(chunks, role)
		}
		st.text += delta
		out, _ := sjson.Set(st.chunk(), "choices.0.delta.content", delta)
		chunks = append(chunks, out)

	case "response.output_text.done", "response.refusal.done":
		text := event.Get("text").String()
		if suffix := textSuffix(st.text, text); suffix != "" {
			if role, ok := st.roleChunk(); ok {
				chunks = append(chunks, role)
			}
			st.text = text
			out, _ := sjson.Set(st.chunk(), "choices.0.delta.content", suffix)
			chunks = append(chunks, out)
		}

	case "response.reasoning.delta", "response.reasoning_summary.delta",
		"response.reasoning_summary_text.delta", "response.reasoning_text.delta":
		delta := event.Get("delta").String()
		if delta == "" {
			break
		}
		if role, ok := st.roleChunk(); ok {
			chunks = append(chunks, role)
		}
		out, _ := sjson.Set(st.chunk(), "choices.0.delta.reasoning_content", delta)
		chunks = append(chunks, out)

	case "response.output_item.added", "response.output_item.done":
		item := event.Get("item")
		if item.Get("type").String() != "function_call" {
			break
		}
		callID := item.Get("call_id").String()
		if callID == "" {
			callID = item.Get("id").String()
		}
		if itemID := item.Get("id").String(); itemID != "" && callID != itemID {
			if st.itemCalls == nil {
				st.itemCalls = map[string]string{}
			}
			// Carry accumulation started under the item id over to the call id.
			if orphan, ok := st.calls[itemID]; ok && st.calls[callID] == nil {
				orphan.id = callID
				st.calls[callID] = orphan
				delete(st.calls, itemID)
				for i, key := range st.order {
					if key == itemID {
						st.order[i] = callID
					}
				}
			}
			st.itemCalls[itemID] = callID
		}
		call := st.call(callID)
		if name := item.Get("name").String(); name != "" {
			call.name = name
		}
		if suffix := call.argumentsSuffix(streamArguments(item.Get("arguments"))); suffix != "" || !call.announced {
			chunks = append(chunks, st.callChunk(call, suffix))
		}

	case "response.function_call_arguments.delta":
		call := st.call(st.callKey(event))
		if name := event.Get("name").String(); name != "" {
			call.name = name
		}
		delta := event.Get("delta").String()
		call.arguments += delta
		chunks = append(chunks, st.callChunk(call, delta))

	case "response.function_call_arguments.done":
		call := st.call(st.callKey(event))
		if name := event.Get("name").String(); name != "" {
			call.name = name
		}
		if suffix := call.argumentsSuffix(streamArguments(event.Get("arguments"))); suffix != "" {
			chunks = append(chunks, st.callChunk(call, suffix))
		}

	case "response.completed", "response.incomplete", "response.failed":
		chunks = append(chunks, st.completedChunks(event.Get("response"))...)
	}

	return chunks
}

// completedChunks flushes any text or tool calls that only appeared in the
// final response object, then emits the terminal chunk.
func (st *ResponsesStreamState) completedChunks(response gjson.Result) []string {
	if st.finished {
		return nil
	}
	st.finished = true

	var chunks []string
	var finalText string
	response.Get("output").ForEach(func(_, item gjson.Result) bool {
		switch item.Get("type").String() {
		case "message":
			item.Get("content").ForEach(func(_, part gjson.Result) bool {
				finalText += part.Get("text").String()
				return true
			})
		case "function_call":
			callID := item.Get("call_id").String()
			if callID == "" {
				callID = item.Get("id").String()
			}
			call := st.call(callID)
			if name := item.Get("name").String(); name != "" {
				call.name = name
			}
			if suffix := call.argumentsSuffix(streamArguments(item.Get("arguments"))); suffix != "" || !call.announced {
				chunks = append(chunks, st.callChunk(call, suffix))
			}
		}
		return true
	})
	if suffix := textSuffix(st.text, finalText); suffix != "" {
		if role, ok := st.roleChunk(); ok {
			chunks = append(chunks, role)
		}
		st.text = finalText
		out, _ := sjson.Set(st.chunk(), "choices.0.delta.content", suffix)
		chunks = append(chunks, out)
	}

	reason := response.Get("status").String()
	if detail := response.Get("incomplete_details.reason").String(); detail != "" {
		reason = detail
	}
	terminal := st.chunk()
	terminal, _ = sjson.Set(terminal, "choices.0.finish_reason", MapFinishReason(reason, len(st.order) > 0))
	if usage := response.Get("usage"); usage.Exists() {
		prompt := usage.Get("input_tokens").Int()
		completion := usage.Get("output_tokens").Int()
		total := usage.Get("total_tokens").Int()
		if total == 0 {
			total = prompt + completion
		}
		terminal, _ = sjson.Set(terminal, "usage.prompt_tokens", prompt)
		terminal, _ = sjson.Set(terminal, "usage.completion_tokens", completion)
		terminal, _ = sjson.Set(terminal, "usage.total_tokens", total)
		st.Usage = gjson.Get(terminal, "usage").Raw
	}
	return append(chunks, terminal)
}

// TerminalChunk synthesizes the terminal chunk for streams the upstream
// closed without completing.
func (st *ResponsesStreamState) TerminalChunk() string {
	if st.finished {
		return ""
	}
	st.finished = true
	out, _ := sjson.Set(st.chunk(), "choices.0.finish_reason", MapFinishReason("", len(st.order) > 0))
	return out
}

// textSuffix returns the part of full that extends seen. Upstreams that emit
// both deltas and a cumulative done would otherwise duplicate the text.
func textSuffix(seen, full string) string {
	if full == "" || full == seen {
		return ""
	}
	if strings.HasPrefix(full, seen) {
		return full[len(seen):]
	}
	if seen == "" {
		return full
	}
	return ""
}

package translator

import (
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// GeminiStreamState carries per-stream accumulators while converting a
// Gemini streamGenerateContent stream into chat completion chunks. Gemini
// sends whole generateContent-shaped payloads per data line, so each payload
// may carry text, tool calls, and the finish reason at once.
type GeminiStreamState struct {
	ID      string
	Model   string
	Created int64
	Usage   string

	// Signatures maps minted call ids to the thoughtSignature that arrived
	// alongside the functionCall, for session persistence.
	Signatures map[string]string
	// CallNames maps minted call ids to their function names.
	CallNames map[string]string

	roleSent  bool
	finished  bool
	toolSlots int
}

// Finished reports whether the terminal chunk has been produced.
func (st *GeminiStreamState) Finished() bool { return st.finished }

func (st *GeminiStreamState) chunk() string {
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

func (st *GeminiStreamState) roleChunk() (string, bool) {
	if st.roleSent {
		return "", false
	}
	st.roleSent = true
	out, _ := sjson.Set(st.chunk(), "choices.0.delta.role", "assistant")
	return out, true
}

// FromGeminiStream converts one Gemini SSE payload into zero or more chat
// completion chunks.
func FromGeminiStream(payload []byte, st *GeminiStreamState) []string {
	root := gjson.ParseBytes(payload)
	var chunks []string

	if model := root.Get("modelVersion").String(); model != "" && st.Model == "" {
		st.Model = model
	}

	candidate := root.Get("candidates.0")
	candidate.Get("content.parts").ForEach(func(_, part gjson.Result) bool {
		if fn := part.Get("functionCall"); fn.Exists() {
			callID := NewCallID()
			name := fn.Get("name").String()
			if st.CallNames == nil {
				st.CallNames = map[string]string{}
			}
			st.CallNames[callID] = name
			if signature := part.Get("thoughtSignature").String(); signature != "" {
				if st.Signatures == nil {
					st.Signatures = map[string]string{}
				}
				st.Signatures[callID] = signature
			}

			if role, ok := st.roleChunk(); ok {
				chunks = append(chunks, role)
			}
			out := st.chunk()
			item := `{"index":0,"type":"function","function":{"name":"","arguments":""}}`
			item, _ = sjson.Set(item, "index", st.toolSlots)
			item, _ = sjson.Set(item, "id", callID)
			item, _ = sjson.Set(item, "function.name", name)
			item, _ = sjson.Set(item, "function.arguments", ArgumentsString(fn.Get("args")))
			out, _ = sjson.SetRaw(out, "choices.0.delta.tool_calls", "["+item+"]")
			chunks = append(chunks, out)
			st.toolSlots++
			return true
		}

		text := part.Get("text").String()
		if text == "" {
			return true
		}
		if role, ok := st.roleChunk(); ok {
			chunks = append(chunks, role)
		}
		out := st.chunk()
		if part.Get("thought").Bool() {
			out, _ = sjson.Set(out, "choices.0.delta.reasoning_content", text)
		} else {
			out, _ = sjson.Set(out, "choices.0.delta.content", text)
		}
		chunks = append(chunks, out)
		return true
	})

	if usage := root.Get("usageMetadata"); usage.Exists() {
		prompt := usage.Get("promptTokenCount").Int()
		completion := usage.Get("candidatesTokenCount").Int()
		total := usage.Get("totalTokenCount").Int()
		if total == 0 {
			total = prompt + completion
		}
		raw := `{"prompt_tokens":0,"completion_tokens":0,"total_tokens":0}`
		raw, _ = sjson.Set(raw, "prompt_tokens", prompt)
		raw, _ = sjson.Set(raw, "completion_tokens", completion)
		raw, _ = sjson.Set(raw, "total_tokens", total)
		st.Usage = raw
	}

	if reason := candidate.Get("finishReason").String(); reason != "" && !st.finished {
		st.finished = true
		out, _ := sjson.Set(st.chunk(), "choices.0.finish_reason", MapFinishReason(reason, st.toolSlots > 0))
		if st.Usage != "" {
			out, _ = sjson.SetRaw(out, "usage", st.Usage)
		}
		chunks = append(chunks, out)
	}

	return chunks
}

// TerminalChunk synthesizes the finish_reason chunk for streams that closed
// without one.
func (st *GeminiStreamState) TerminalChunk() string {
	if st.finished {
		return ""
	}
	st.finished = true
	out, _ := sjson.Set(st.chunk(), "choices.0.finish_reason", MapFinishReason("", st.toolSlots > 0))
	if st.Usage != "" {
		out, _ = sjson.SetRaw(out, "usage", st.Usage)
	}
	return out
}

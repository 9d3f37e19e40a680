package translator

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ChunkSource converts upstream SSE payloads into chat completion chunks.
// Feed may return zero chunks (bookkeeping events) or several (role
// announcement plus content). Terminal synthesizes the finish_reason chunk
// when the upstream closed without one; it returns "" once the stream has
// already finished.
type ChunkSource interface {
	Feed(payload []byte) []string
	Terminal() string
	Finished() bool
}

// ChatStreamState passes chat completion chunks through while tracking the
// stream metadata the gateway needs: terminal detection, accumulated tool
// calls, and usage.
type ChatStreamState struct {
	ID    string
	Model string
	Usage string

	finished  bool
	toolSlots int
}

// Finished reports whether the terminal chunk has been seen.
func (st *ChatStreamState) Finished() bool { return st.finished }

// Feed validates and forwards one chat completion chunk.
func (st *ChatStreamState) Feed(payload []byte) []string {
	chunk := gjson.ParseBytes(payload)
	if !chunk.IsObject() {
		return nil
	}
	if id := chunk.Get("id").String(); id != "" {
		st.ID = id
	}
	if model := chunk.Get("model").String(); model != "" {
		st.Model = model
	}
	if usage := chunk.Get("usage"); usage.IsObject() {
		st.Usage = usage.Raw
	}
	chunk.Get("choices.0.delta.tool_calls").ForEach(func(_, call gjson.Result) bool {
		if index := int(call.Get("index").Int()) + 1; index > st.toolSlots {
			st.toolSlots = index
		}
		return true
	})
	if chunk.Get("choices.0.finish_reason").String() != "" {
		st.finished = true
	}
	return []string{chunk.Raw}
}

// Terminal synthesizes a finish chunk for upstreams that closed early.
func (st *ChatStreamState) Terminal() string {
	if st.finished {
		return ""
	}
	st.finished = true
	out := `{"id":"","object":"chat.completion.chunk","created":0,"model":"","choices":[{"index":0,"delta":{}}]}`
	if st.ID == "" {
		st.ID = NewChatCompletionID()
	}
	out, _ = sjson.Set(out, "id", st.ID)
	out, _ = sjson.Set(out, "model", st.Model)
	out, _ = sjson.Set(out, "choices.0.finish_reason", MapFinishReason("", st.toolSlots > 0))
	return out
}

// Source adapters so the pump can treat every upstream dialect uniformly.

type responsesSource struct{ st *ResponsesStreamState }

func (s responsesSource) Feed(payload []byte) []string { return FromResponsesStream(payload, s.st) }
func (s responsesSource) Terminal() string             { return s.st.TerminalChunk() }
func (s responsesSource) Finished() bool               { return s.st.Finished() }

type claudeSource struct{ st *ClaudeStreamState }

func (s claudeSource) Feed(payload []byte) []string { return FromClaudeStream(payload, s.st) }
func (s claudeSource) Terminal() string             { return s.st.TerminalChunk() }
func (s claudeSource) Finished() bool               { return s.st.Finished() }

type geminiSource struct{ st *GeminiStreamState }

func (s geminiSource) Feed(payload []byte) []string { return FromGeminiStream(payload, s.st) }
func (s geminiSource) Terminal() string             { return s.st.TerminalChunk() }
func (s geminiSource) Finished() bool               { return s.st.Finished() }

// The constructors wrap a dialect state as a ChunkSource while leaving the
// state visible to the caller, which mines it for session data after the
// stream ends.
func NewResponsesSource(st *ResponsesStreamState) ChunkSource { return responsesSource{st} }
func NewClaudeSource(st *ClaudeStreamState) ChunkSource       { return claudeSource{st} }
func NewGeminiSource(st *GeminiStreamState) ChunkSource       { return geminiSource{st} }

package translator

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ClaudeSink rewrites chat completion chunks as Anthropic Messages events.
// Blocks are emitted sequentially: switching between text, thinking, and
// tool_use closes the open block before starting the next.
type ClaudeSink struct {
	messageID string
	model     string

	started    bool
	blockIndex int
	blockOpen  bool
	blockKind  string
	toolSlot   int
	usage      string
	finished   bool
	hasTools   bool
}

func NewClaudeSink() *ClaudeSink { return &ClaudeSink{} }

func claudeFrame(eventType, payload string) string {
	return "event: " + eventType + "\ndata: " + payload + "\n\n"
}

func (s *ClaudeSink) start(chunk gjson.Result) []string {
	if s.started {
		return nil
	}
	s.started = true
	s.messageID = chunk.Get("id").String()
	if !strings.HasPrefix(s.messageID, "msg_") {
		s.messageID = "msg_" + strings.TrimPrefix(NewCallID(), "call_")
	}
	s.model = chunk.Get("model").String()

	payload := `{"type":"message_start","message":{"id":"","type":"message","role":"assistant","model":"","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":0,"output_tokens":0}}}`
	payload, _ = sjson.Set(payload, "message.id", s.messageID)
	payload, _ = sjson.Set(payload, "message.model", s.model)
	return []string{
		claudeFrame("message_start", payload),
		claudeFrame("ping", `{"type":"ping"}`),
	}
}

func (s *ClaudeSink) closeBlock() []string {
	if !s.blockOpen {
		return nil
	}
	s.blockOpen = false
	payload, _ := sjson.Set(`{"type":"content_block_stop","index":0}`, "index", s.blockIndex)
	s.blockIndex++
	return []string{claudeFrame("content_block_stop", payload)}
}

func (s *ClaudeSink) openBlock(kind, blockJSON string) []string {
	frames := s.closeBlock()
	s.blockOpen = true
	s.blockKind = kind
	payload, _ := sjson.Set(`{"type":"content_block_start","index":0}`, "index", s.blockIndex)
	payload, _ = sjson.SetRaw(payload, "content_block", blockJSON)
	return append(frames, claudeFrame("content_block_start", payload))
}

func (s *ClaudeSink) deltaFrame(deltaJSON string) string {
	payload, _ := sjson.Set(`{"type":"content_block_delta","index":0}`, "index", s.blockIndex)
	payload, _ = sjson.SetRaw(payload, "delta", deltaJSON)
	return claudeFrame("content_block_delta", payload)
}

// Feed rewrites one chat completion chunk into zero or more Messages
// events.
func (s *ClaudeSink) Feed(chunk string) []string {
	parsed := gjson.Parse(chunk)
	frames := s.start(parsed)

	delta := parsed.Get("choices.0.delta")

	if reasoning := delta.Get("reasoning_content").String(); reasoning != "" {
		if !s.blockOpen || s.blockKind != "thinking" {
			frames = append(frames, s.openBlock("thinking", `{"type":"thinking","thinking":""}`)...)
		}
		entry, _ := sjson.Set(`{"type":"thinking_delta","thinking":""}`, "thinking", reasoning)
		frames = append(frames, s.deltaFrame(entry))
	}

	if text := delta.Get("content").String(); text != "" {
		if !s.blockOpen || s.blockKind != "text" {
			frames = append(frames, s.openBlock("text", `{"type":"text","text":""}`)...)
		}
		entry, _ := sjson.Set(`{"type":"text_delta","text":""}`, "text", text)
		frames = append(frames, s.deltaFrame(entry))
	}

	delta.Get("tool_calls").ForEach(func(_, entry gjson.Result) bool {
		s.hasTools = true
		slot := int(entry.Get("index").Int())
		if !s.blockOpen || s.blockKind != "tool_use" || s.toolSlot != slot {
			block := `{"type":"tool_use","id":"","name":"","input":{}}`
			callID := entry.Get("id").String()
			if callID == "" {
				callID = NewCallID()
			}
			block, _ = sjson.Set(block, "id", callID)
			block, _ = sjson.Set(block, "name", entry.Get("function.name").String())
			frames = append(frames, s.openBlock("tool_use", block)...)
			s.toolSlot = slot
		}
		if suffix := entry.Get("function.arguments").String(); suffix != "" {
			jsonDelta, _ := sjson.Set(`{"type":"input_json_delta","partial_json":""}`, "partial_json", suffix)
			frames = append(frames, s.deltaFrame(jsonDelta))
		}
		return true
	})

	if usage := parsed.Get("usage"); usage.IsObject() {
		s.usage = usage.Raw
	}

	if reason := parsed.Get("choices.0.finish_reason").String(); reason != "" && !s.finished {
		s.finished = true
		frames = append(frames, s.finish(reason)...)
	}

	return frames
}

func (s *ClaudeSink) finish(finishReason string) []string {
	frames := s.closeBlock()

	payload := `{"type":"message_delta","delta":{"stop_reason":"","stop_sequence":null},"usage":{"output_tokens":0}}`
	payload, _ = sjson.Set(payload, "delta.stop_reason", ClaudeStopReason(finishReason))
	if s.usage != "" {
		payload, _ = sjson.Set(payload, "usage.output_tokens", gjson.Get(s.usage, "completion_tokens").Int())
		payload, _ = sjson.Set(payload, "usage.input_tokens", gjson.Get(s.usage, "prompt_tokens").Int())
	}
	frames = append(frames, claudeFrame("message_delta", payload))
	frames = append(frames, claudeFrame("message_stop", `{"type":"message_stop"}`))
	return frames
}

// Close flushes the terminal events if the upstream never sent a finish
// reason. The Messages dialect has no [DONE] sentinel.
func (s *ClaudeSink) Close() []string {
	if !s.started || s.finished {
		return nil
	}
	s.finished = true
	reason := "stop"
	if s.hasTools {
		reason = "tool_calls"
	}
	return s.finish(reason)
}

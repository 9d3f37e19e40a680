package translator

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// geminiCall accumulates one streamed tool call until the terminal chunk.
type geminiCall struct {
	name      string
	arguments string
	signature string
}

// GeminiSink rewrites chat completion chunks as Gemini streamGenerateContent
// payloads. Text and reasoning stream through as they arrive; tool-call
// argument suffixes accumulate until the terminal chunk, since Gemini
// functionCall parts are atomic.
type GeminiSink struct {
	model    string
	finished bool
	usage    string
	calls    map[int]*geminiCall
	order    []int
}

func NewGeminiSink() *GeminiSink { return &GeminiSink{} }

func (s *GeminiSink) emit(out string, withModel bool) string {
	if withModel {
		out, _ = sjson.Set(out, "modelVersion", s.model)
	}
	return "data: " + out + "\n\n"
}

// Feed rewrites one chat completion chunk into zero or one Gemini chunks.
func (s *GeminiSink) Feed(chunk string) []string {
	parsed := gjson.Parse(chunk)
	if model := parsed.Get("model").String(); model != "" {
		s.model = model
	}

	delta := parsed.Get("choices.0.delta")
	out := `{"candidates":[{"content":{"role":"model","parts":[]},"index":0}]}`
	hasParts := false

	if reasoning := delta.Get("reasoning_content").String(); reasoning != "" {
		part, _ := sjson.Set(`{"text":"","thought":true}`, "text", reasoning)
		out, _ = sjson.SetRaw(out, "candidates.0.content.parts.-1", part)
		hasParts = true
	}
	if text := delta.Get("content").String(); text != "" {
		part, _ := sjson.Set(`{"text":""}`, "text", text)
		out, _ = sjson.SetRaw(out, "candidates.0.content.parts.-1", part)
		hasParts = true
	}

	delta.Get("tool_calls").ForEach(func(_, entry gjson.Result) bool {
		slot := int(entry.Get("index").Int())
		if s.calls == nil {
			s.calls = map[int]*geminiCall{}
		}
		call, ok := s.calls[slot]
		if !ok {
			call = &geminiCall{}
			s.calls[slot] = call
			s.order = append(s.order, slot)
		}
		if name := entry.Get("function.name").String(); name != "" {
			call.name = name
		}
		call.arguments += entry.Get("function.arguments").String()
		if signature := entry.Get("thought_signature").String(); signature != "" {
			call.signature = signature
		}
		return true
	})

	if usage := parsed.Get("usage"); usage.IsObject() {
		s.usage = usage.Raw
	}

	if reason := parsed.Get("choices.0.finish_reason").String(); reason != "" && !s.finished {
		s.finished = true
		for _, slot := range s.order {
			call := s.calls[slot]
			part := `{"functionCall":{"name":"","args":{}}}`
			part, _ = sjson.Set(part, "functionCall.name", call.name)
			if call.arguments != "" && gjson.Valid(call.arguments) {
				part, _ = sjson.SetRaw(part, "functionCall.args", call.arguments)
			}
			if call.signature != "" {
				part, _ = sjson.Set(part, "thoughtSignature", call.signature)
			}
			out, _ = sjson.SetRaw(out, "candidates.0.content.parts.-1", part)
			hasParts = true
		}
		out, _ = sjson.Set(out, "candidates.0.finishReason", GeminiFinishReason(reason))
		if s.usage != "" {
			out, _ = sjson.Set(out, "usageMetadata.promptTokenCount", gjson.Get(s.usage, "prompt_tokens").Int())
			out, _ = sjson.Set(out, "usageMetadata.candidatesTokenCount", gjson.Get(s.usage, "completion_tokens").Int())
			out, _ = sjson.Set(out, "usageMetadata.totalTokenCount", gjson.Get(s.usage, "total_tokens").Int())
		}
		return []string{s.emit(out, true)}
	}

	if !hasParts {
		return nil
	}
	return []string{s.emit(out, true)}
}

// Close synthesizes the terminal chunk when the upstream never finished.
// The Gemini dialect has no [DONE] sentinel.
func (s *GeminiSink) Close() []string {
	if s.finished {
		return nil
	}
	s.finished = true
	out := `{"candidates":[{"content":{"role":"model","parts":[]},"finishReason":"STOP","index":0}]}`
	if len(s.order) > 0 {
		for _, slot := range s.order {
			call := s.calls[slot]
			part := `{"functionCall":{"name":"","args":{}}}`
			part, _ = sjson.Set(part, "functionCall.name", call.name)
			if call.arguments != "" && gjson.Valid(call.arguments) {
				part, _ = sjson.SetRaw(part, "functionCall.args", call.arguments)
			}
			out, _ = sjson.SetRaw(out, "candidates.0.content.parts.-1", part)
		}
	}
	return []string{s.emit(out, true)}
}

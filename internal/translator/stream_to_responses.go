package translator

import (
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// FrameSink converts chat completion chunks into client-dialect SSE frames.
// Feed returns fully formed frames including the data: prefix and blank-line
// terminator; Close flushes whatever the dialect needs after the terminal
// chunk.
type FrameSink interface {
	Feed(chunk string) []string
	Close() []string
}

// responsesCall tracks one streamed function call on the client side.
type responsesCall struct {
	itemID      string
	outputIndex int
	callID      string
	name        string
	arguments   string
}

// ResponsesSink rewrites chat completion chunks as OpenAI Responses events.
type ResponsesSink struct {
	responseID string
	model      string
	created    int64
	sequence   int

	started     bool
	textOpen    bool
	textItemID  string
	textIndex   int
	text        string
	reasoning   string
	outputCount int
	calls       map[int]*responsesCall
	callOrder   []int
	usage       string
	finished    bool
}

func NewResponsesSink() *ResponsesSink { return &ResponsesSink{} }

// ResponseID is the id minted for this stream, for session persistence.
func (s *ResponsesSink) ResponseID() string { return s.responseID }

func (s *ResponsesSink) frame(eventType, payload string) string {
	payload, _ = sjson.Set(payload, "sequence_number", s.sequence)
	s.sequence++
	return "event: " + eventType + "\ndata: " + payload + "\n\n"
}

func (s *ResponsesSink) snapshot(status string) string {
	out := `{"id":"","object":"response","status":"","created_at":0,"model":"","output":[]}`
	out, _ = sjson.Set(out, "id", s.responseID)
	out, _ = sjson.Set(out, "status", status)
	out, _ = sjson.Set(out, "created_at", s.created)
	out, _ = sjson.Set(out, "model", s.model)
	return out
}

func (s *ResponsesSink) start(chunk gjson.Result) []string {
	if s.started {
		return nil
	}
	s.started = true
	s.responseID = ResponseIDFrom(chunk.Get("id").String())
	s.model = chunk.Get("model").String()
	s.created = chunk.Get("created").Int()
	if s.created == 0 {
		s.created = time.Now().Unix()
	}
	created, _ := sjson.SetRaw(`{"type":"response.created"}`, "response", s.snapshot("in_progress"))
	inProgress, _ := sjson.SetRaw(`{"type":"response.in_progress"}`, "response", s.snapshot("in_progress"))
	return []string{s.frame("response.created", created), s.frame("response.in_progress", inProgress)}
}

func (s *ResponsesSink) openText() []string {
	if s.textOpen {
		return nil
	}
	s.textOpen = true
	s.textItemID = "msg_" + strconv.FormatInt(time.Now().UnixNano(), 36)
	s.textIndex = s.outputCount
	s.outputCount++

	added := `{"type":"response.output_item.added","output_index":0,"item":{"type":"message","role":"assistant","status":"in_progress","content":[]}}`
	added, _ = sjson.Set(added, "output_index", s.textIndex)
	added, _ = sjson.Set(added, "item.id", s.textItemID)

	part := `{"type":"response.content_part.added","item_id":"","output_index":0,"content_index":0,"part":{"type":"output_text","text":""}}`
	part, _ = sjson.Set(part, "item_id", s.textItemID)
	part, _ = sjson.Set(part, "output_index", s.textIndex)

	return []string{s.frame("response.output_item.added", added), s.frame("response.content_part.added", part)}
}

// Feed rewrites one chat completion chunk into zero or more Responses
// events.
func (s *ResponsesSink) Feed(chunk string) []string {
	parsed := gjson.Parse(chunk)
	frames := s.start(parsed)

	delta := parsed.Get("choices.0.delta")

	if text := delta.Get("content").String(); text != "" {
		frames = append(frames, s.openText()...)
		s.text += text
		event := `{"type":"response.output_text.delta","item_id":"","output_index":0,"content_index":0,"delta":""}`
		event, _ = sjson.Set(event, "item_id", s.textItemID)
		event, _ = sjson.Set(event, "output_index", s.textIndex)
		event, _ = sjson.Set(event, "delta", text)
		frames = append(frames, s.frame("response.output_text.delta", event))
	}

	if reasoning := delta.Get("reasoning_content").String(); reasoning != "" {
		s.reasoning += reasoning
		event, _ := sjson.Set(`{"type":"response.reasoning_summary_text.delta","delta":""}`, "delta", reasoning)
		frames = append(frames, s.frame("response.reasoning_summary_text.delta", event))
	}

	delta.Get("tool_calls").ForEach(func(_, entry gjson.Result) bool {
		slot := int(entry.Get("index").Int())
		if s.calls == nil {
			s.calls = map[int]*responsesCall{}
		}
		call, ok := s.calls[slot]
		if !ok {
			callID := entry.Get("id").String()
			if callID == "" {
				callID = NewCallID()
			}
			call = &responsesCall{
				itemID:      "fc_" + callID,
				outputIndex: s.outputCount,
				callID:      callID,
				name:        entry.Get("function.name").String(),
			}
			s.outputCount++
			s.calls[slot] = call
			s.callOrder = append(s.callOrder, slot)

			added := `{"type":"response.output_item.added","output_index":0,"item":{"type":"function_call","status":"in_progress","id":"","call_id":"","name":"","arguments":""}}`
			added, _ = sjson.Set(added, "output_index", call.outputIndex)
			added, _ = sjson.Set(added, "item.id", call.itemID)
			added, _ = sjson.Set(added, "item.call_id", call.callID)
			added, _ = sjson.Set(added, "item.name", call.name)
			frames = append(frames, s.frame("response.output_item.added", added))
		}
		if name := entry.Get("function.name").String(); name != "" && call.name == "" {
			call.name = name
		}
		if suffix := entry.Get("function.arguments").String(); suffix != "" {
			call.arguments += suffix
			event := `{"type":"response.function_call_arguments.delta","item_id":"","output_index":0,"delta":""}`
			event, _ = sjson.Set(event, "item_id", call.itemID)
			event, _ = sjson.Set(event, "output_index", call.outputIndex)
			event, _ = sjson.Set(event, "delta", suffix)
			frames = append(frames, s.frame("response.function_call_arguments.delta", event))
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

// finish closes open items and emits response.completed with the assembled
// response object.
func (s *ResponsesSink) finish(finishReason string) []string {
	var frames []string

	if s.textOpen {
		done := `{"type":"response.output_text.done","item_id":"","output_index":0,"content_index":0,"text":""}`
		done, _ = sjson.Set(done, "item_id", s.textItemID)
		done, _ = sjson.Set(done, "output_index", s.textIndex)
		done, _ = sjson.Set(done, "text", s.text)
		frames = append(frames, s.frame("response.output_text.done", done))

		item := `{"type":"response.output_item.done","output_index":0,"item":{"type":"message","role":"assistant","status":"completed","content":[{"type":"output_text","text":""}]}}`
		item, _ = sjson.Set(item, "output_index", s.textIndex)
		item, _ = sjson.Set(item, "item.id", s.textItemID)
		item, _ = sjson.Set(item, "item.content.0.text", s.text)
		frames = append(frames, s.frame("response.output_item.done", item))
	}

	for _, slot := range s.callOrder {
		call := s.calls[slot]
		done := `{"type":"response.function_call_arguments.done","item_id":"","output_index":0,"arguments":""}`
		done, _ = sjson.Set(done, "item_id", call.itemID)
		done, _ = sjson.Set(done, "output_index", call.outputIndex)
		done, _ = sjson.Set(done, "arguments", call.arguments)
		frames = append(frames, s.frame("response.function_call_arguments.done", done))

		item := `{"type":"response.output_item.done","output_index":0,"item":{"type":"function_call","status":"completed","id":"","call_id":"","name":"","arguments":""}}`
		item, _ = sjson.Set(item, "output_index", call.outputIndex)
		item, _ = sjson.Set(item, "item.id", call.itemID)
		item, _ = sjson.Set(item, "item.call_id", call.callID)
		item, _ = sjson.Set(item, "item.name", call.name)
		item, _ = sjson.Set(item, "item.arguments", call.arguments)
		frames = append(frames, s.frame("response.output_item.done", item))
	}

	status := "completed"
	if finishReason == "length" {
		status = "incomplete"
	}
	response := s.snapshot(status)
	if finishReason == "length" {
		response, _ = sjson.Set(response, "incomplete_details.reason", "max_output_tokens")
	}
	if s.text != "" {
		item := `{"type":"message","role":"assistant","status":"completed","content":[{"type":"output_text","text":""}]}`
		item, _ = sjson.Set(item, "id", s.textItemID)
		item, _ = sjson.Set(item, "content.0.text", s.text)
		response, _ = sjson.SetRaw(response, "output.-1", item)
	}
	for _, slot := range s.callOrder {
		call := s.calls[slot]
		item := `{"type":"function_call","status":"completed","id":"","call_id":"","name":"","arguments":""}`
		item, _ = sjson.Set(item, "id", call.itemID)
		item, _ = sjson.Set(item, "call_id", call.callID)
		item, _ = sjson.Set(item, "name", call.name)
		item, _ = sjson.Set(item, "arguments", call.arguments)
		response, _ = sjson.SetRaw(response, "output.-1", item)
	}
	if s.usage != "" {
		response, _ = sjson.Set(response, "usage.input_tokens", gjson.Get(s.usage, "prompt_tokens").Int())
		response, _ = sjson.Set(response, "usage.output_tokens", gjson.Get(s.usage, "completion_tokens").Int())
		response, _ = sjson.Set(response, "usage.total_tokens", gjson.Get(s.usage, "total_tokens").Int())
	}

	completedType := "response.completed"
	if status == "incomplete" {
		completedType = "response.incomplete"
	}
	completed, _ := sjson.SetRaw(`{"type":""}`, "response", response)
	completed, _ = sjson.Set(completed, "type", completedType)
	frames = append(frames, s.frame(completedType, completed))
	return frames
}

// Close terminates the event stream.
func (s *ResponsesSink) Close() []string {
	var frames []string
	if s.started && !s.finished {
		s.finished = true
		frames = append(frames, s.finish("stop")...)
	}
	return append(frames, "data: [DONE]\n\n")
}

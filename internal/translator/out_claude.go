package translator

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ToClaudeReply rebuilds a chat completion as a non-streaming Anthropic
// Messages reply.
func ToClaudeReply(raw []byte) []byte {
	root := gjson.ParseBytes(raw)

	out := `{"id":"","type":"message","role":"assistant","model":"","content":[],"stop_reason":"end_turn","stop_sequence":null}`

	id := root.Get("id").String()
	if !strings.HasPrefix(id, "msg_") {
		id = "msg_" + strings.ReplaceAll(NewCallID(), "call_", "")
	}
	out, _ = sjson.Set(out, "id", id)
	out, _ = sjson.Set(out, "model", root.Get("model").String())

	message := root.Get("choices.0.message")

	if reasoning := message.Get("reasoning_content").String(); reasoning != "" {
		block, _ := sjson.Set(`{"type":"thinking","thinking":""}`, "thinking", reasoning)
		out, _ = sjson.SetRaw(out, "content.-1", block)
	}
	if content := message.Get("content").String(); content != "" {
		block, _ := sjson.Set(`{"type":"text","text":""}`, "text", content)
		out, _ = sjson.SetRaw(out, "content.-1", block)
	}
	message.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		block := `{"type":"tool_use","id":"","name":"","input":{}}`
		callID := call.Get("id").String()
		if callID == "" {
			callID = NewCallID()
		}
		block, _ = sjson.Set(block, "id", callID)
		block, _ = sjson.Set(block, "name", call.Get("function.name").String())
		arguments := call.Get("function.arguments").String()
		if gjson.Valid(arguments) && arguments != "" {
			block, _ = sjson.SetRaw(block, "input", arguments)
		}
		out, _ = sjson.SetRaw(out, "content.-1", block)
		return true
	})

	out, _ = sjson.Set(out, "stop_reason", ClaudeStopReason(root.Get("choices.0.finish_reason").String()))

	if usage := root.Get("usage"); usage.Exists() {
		out, _ = sjson.Set(out, "usage.input_tokens", usage.Get("prompt_tokens").Int())
		out, _ = sjson.Set(out, "usage.output_tokens", usage.Get("completion_tokens").Int())
	}

	return []byte(out)
}

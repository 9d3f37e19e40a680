package translator

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ResponseIDFrom derives the Responses id from a chat completion id: a
// chatcmpl prefix is swapped for resp_ so multi-turn linkage survives the
// round trip, anything else mints a fresh id.
func ResponseIDFrom(chatID string) string {
	for _, prefix := range []string{"chatcmpl_", "chatcmpl-"} {
		if suffix, ok := strings.CutPrefix(chatID, prefix); ok && suffix != "" {
			return "resp_" + suffix
		}
	}
	if strings.HasPrefix(chatID, "resp_") {
		return chatID
	}
	return NewResponseID()
}

// ToResponsesReply rebuilds a chat completion as a non-streaming OpenAI
// Responses reply.
func ToResponsesReply(raw []byte) []byte {
	root := gjson.ParseBytes(raw)

	out := `{"id":"","object":"response","status":"completed","created_at":0,"model":"","output":[]}`
	out, _ = sjson.Set(out, "id", ResponseIDFrom(root.Get("id").String()))

	created := root.Get("created").Int()
	if created == 0 {
		created = time.Now().Unix()
	}
	out, _ = sjson.Set(out, "created_at", created)
	out, _ = sjson.Set(out, "model", root.Get("model").String())

	message := root.Get("choices.0.message")

	if reasoning := message.Get("reasoning_content").String(); reasoning != "" {
		item := `{"type":"reasoning","summary":[{"type":"summary_text","text":""}]}`
		item, _ = sjson.Set(item, "summary.0.text", reasoning)
		out, _ = sjson.SetRaw(out, "output.-1", item)
	}

	if content := message.Get("content").String(); content != "" {
		item := `{"type":"message","role":"assistant","status":"completed","content":[{"type":"output_text","text":""}]}`
		item, _ = sjson.Set(item, "content.0.text", content)
		out, _ = sjson.SetRaw(out, "output.-1", item)
	}

	message.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		item := `{"type":"function_call","status":"completed","id":"","call_id":"","name":"","arguments":""}`
		callID := call.Get("id").String()
		if callID == "" {
			callID = NewCallID()
		}
		item, _ = sjson.Set(item, "id", "fc_"+callID)
		item, _ = sjson.Set(item, "call_id", callID)
		item, _ = sjson.Set(item, "name", call.Get("function.name").String())
		item, _ = sjson.Set(item, "arguments", call.Get("function.arguments").String())
		out, _ = sjson.SetRaw(out, "output.-1", item)
		return true
	})

	if root.Get("choices.0.finish_reason").String() == "length" {
		out, _ = sjson.Set(out, "status", "incomplete")
		out, _ = sjson.Set(out, "incomplete_details.reason", "max_output_tokens")
	}

	if usage := root.Get("usage"); usage.Exists() {
		out, _ = sjson.Set(out, "usage.input_tokens", usage.Get("prompt_tokens").Int())
		out, _ = sjson.Set(out, "usage.output_tokens", usage.Get("completion_tokens").Int())
		out, _ = sjson.Set(out, "usage.total_tokens", usage.Get("total_tokens").Int())
	}

	return []byte(out)
}

package translator

import (
	"github.com/tidwall/gjson"
)

// FromOpenAIResponses decodes an OpenAI Responses request into the pivot.
// The instructions field becomes a leading system message; input items map
// to messages, with function_call / function_call_output pairs becoming
// assistant tool calls and tool results.
func FromOpenAIResponses(rawJSON []byte) *Request {
	root := gjson.ParseBytes(rawJSON)
	req := &Request{Model: root.Get("model").String()}

	decodeSampling(req, root)
	req.Stream = root.Get("stream").Bool()
	req.User = root.Get("user").String()
	req.ReasoningEffort = root.Get("reasoning.effort").String()
	if req.ReasoningEffort == "" {
		req.ReasoningEffort = root.Get("reasoning_effort").String()
	}
	req.MaxOutputTokens = root.Get("max_output_tokens").Int()

	req.PreviousResponseID = root.Get("previous_response_id").String()
	req.Conversation = root.Get("conversation").String()
	if req.Conversation == "" {
		req.Conversation = root.Get("conversation.id").String()
	}
	req.Anchored = req.PreviousResponseID != "" || req.Conversation != ""

	if instructions := root.Get("instructions").String(); instructions != "" {
		req.Messages = append(req.Messages, Message{
			Role:  RoleSystem,
			Parts: []Part{TextPart(instructions)},
		})
	}

	input := root.Get("input")
	if input.Type == gjson.String {
		req.Messages = append(req.Messages, Message{
			Role:  RoleUser,
			Parts: []Part{TextPart(input.String())},
		})
	} else if input.IsArray() {
		input.ForEach(func(_, item gjson.Result) bool {
			decodeResponsesItem(req, item)
			return true
		})
	}

	decodeOpenAITools(req, root)
	return req
}

func decodeResponsesItem(req *Request, item gjson.Result) {
	switch item.Get("type").String() {
	case "function_call":
		callID := NormalizeCallID(item.Get("call_id").String())
		if callID == "" {
			callID = NormalizeCallID(item.Get("id").String())
		}
		if callID == "" {
			callID = NewCallID()
		}
		req.Messages = append(req.Messages, Message{
			Role: RoleAssistant,
			ToolCalls: []ToolCall{{
				ID:        callID,
				Name:      item.Get("name").String(),
				Arguments: ArgumentsString(item.Get("arguments")),
			}},
		})

	case "function_call_output":
		callID := NormalizeCallID(item.Get("call_id").String())
		msg := Message{Role: RoleTool, ToolCallID: callID}
		output := item.Get("output")
		if output.Type == gjson.String {
			msg.Parts = append(msg.Parts, TextPart(output.String()))
		} else {
			msg.Parts = AppendContent(msg.Parts, output)
		}
		req.Messages = append(req.Messages, msg)

	case "reasoning":
		// Opaque reasoning items are dropped; upstreams regenerate them.

	default:
		role := item.Get("role").String()
		switch role {
		case "developer", RoleSystem:
			role = RoleSystem
		case RoleAssistant:
		default:
			role = RoleUser
		}
		msg := Message{Role: role}
		msg.Parts = AppendContent(msg.Parts, item.Get("content"))
		if len(msg.Parts) > 0 {
			req.Messages = append(req.Messages, msg)
		}
	}
}

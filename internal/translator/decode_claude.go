package translator

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// FromClaude decodes an Anthropic Messages request into the pivot. The
// system field (string or block array) becomes a leading system message;
// tool_use blocks become assistant tool calls and tool_result blocks become
// tool messages keyed by tool_use_id.
func FromClaude(rawJSON []byte) *Request {
	root := gjson.ParseBytes(rawJSON)
	req := &Request{Model: root.Get("model").String()}

	decodeSampling(req, root)
	req.Stream = root.Get("stream").Bool()
	req.MaxOutputTokens = root.Get("max_tokens").Int()
	req.User = root.Get("metadata.user_id").String()
	if root.Get("thinking.type").String() == "enabled" {
		req.ReasoningEffort = "medium"
	}

	if system := root.Get("system"); system.Exists() {
		msg := Message{Role: RoleSystem}
		if system.Type == gjson.String {
			if system.String() != "" {
				msg.Parts = append(msg.Parts, TextPart(system.String()))
			}
		} else {
			msg.Parts = AppendContent(msg.Parts, system)
		}
		if len(msg.Parts) > 0 {
			req.Messages = append(req.Messages, msg)
		}
	}

	root.Get("messages").ForEach(func(_, message gjson.Result) bool {
		decodeClaudeMessage(req, message)
		return true
	})

	if tools := root.Get("tools"); tools.IsArray() {
		tools.ForEach(func(_, tool gjson.Result) bool {
			decl := Tool{
				Name:        tool.Get("name").String(),
				Description: tool.Get("description").String(),
			}
			if decl.Name == "" {
				return true
			}
			if schema := tool.Get("input_schema"); schema.Exists() {
				decl.ParametersJSON = schema.Raw
			}
			req.Tools = append(req.Tools, decl)
			return true
		})
	}

	switch root.Get("tool_choice.type").String() {
	case "auto":
		req.ToolChoice = "auto"
	case "any":
		req.ToolChoice = "required"
	case "none":
		req.ToolChoice = "none"
	case "tool":
		req.ToolChoiceName = root.Get("tool_choice.name").String()
	}

	return req
}

func decodeClaudeMessage(req *Request, message gjson.Result) {
	role := message.Get("role").String()
	if role != RoleAssistant {
		role = RoleUser
	}
	content := message.Get("content")

	if content.Type == gjson.String {
		req.Messages = append(req.Messages, Message{
			Role:  role,
			Parts: []Part{TextPart(content.String())},
		})
		return
	}

	msg := Message{Role: role}
	flush := func() {
		if len(msg.Parts) > 0 || len(msg.ToolCalls) > 0 {
			req.Messages = append(req.Messages, msg)
			msg = Message{Role: role}
		}
	}

	content.ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text", "image":
			msg.Parts = AppendContent(msg.Parts, block)

		case "thinking", "redacted_thinking":
			// Dropped; upstreams regenerate thinking themselves.

		case "tool_use":
			id := NormalizeCallID(block.Get("id").String())
			if id == "" {
				id = NewCallID()
			}
			arguments := "{}"
			if input := block.Get("input"); input.Exists() {
				if data, err := json.Marshal(input.Value()); err == nil {
					arguments = string(data)
				}
			}
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:        id,
				Name:      block.Get("name").String(),
				Arguments: arguments,
			})

		case "tool_result":
			// Tool results become standalone tool messages, preserving order.
			flush()
			result := Message{
				Role:       RoleTool,
				ToolCallID: NormalizeCallID(block.Get("tool_use_id").String()),
			}
			inner := block.Get("content")
			if inner.Type == gjson.String {
				result.Parts = append(result.Parts, TextPart(inner.String()))
			} else {
				result.Parts = AppendContent(result.Parts, inner)
			}
			req.Messages = append(req.Messages, result)
		}
		return true
	})

	flush()
}

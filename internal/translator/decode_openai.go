package translator

import (
	"github.com/tidwall/gjson"
)

// FromOpenAIChat decodes an OpenAI Chat Completions request into the pivot.
func FromOpenAIChat(rawJSON []byte) *Request {
	root := gjson.ParseBytes(rawJSON)
	req := &Request{Model: root.Get("model").String()}

	decodeSampling(req, root)
	req.Stream = root.Get("stream").Bool()
	req.User = root.Get("user").String()
	req.ReasoningEffort = root.Get("reasoning_effort").String()
	if req.ReasoningEffort == "" {
		req.ReasoningEffort = root.Get("reasoning.effort").String()
	}

	if maxTokens := root.Get("max_completion_tokens"); maxTokens.Exists() {
		req.MaxOutputTokens = maxTokens.Int()
	} else if maxTokens = root.Get("max_tokens"); maxTokens.Exists() {
		req.MaxOutputTokens = maxTokens.Int()
	}

	root.Get("messages").ForEach(func(_, message gjson.Result) bool {
		role := message.Get("role").String()
		switch role {
		case "developer":
			role = RoleSystem
		case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		default:
			role = RoleUser
		}

		msg := Message{Role: role}
		msg.Parts = AppendContent(msg.Parts, message.Get("content"))

		if role == RoleTool {
			msg.ToolCallID = NormalizeCallID(message.Get("tool_call_id").String())
			msg.ToolName = message.Get("name").String()
		}

		if toolCalls := message.Get("tool_calls"); toolCalls.IsArray() {
			toolCalls.ForEach(func(_, call gjson.Result) bool {
				id := NormalizeCallID(call.Get("id").String())
				if id == "" {
					id = NewCallID()
				}
				msg.ToolCalls = append(msg.ToolCalls, ToolCall{
					ID:               id,
					Name:             call.Get("function.name").String(),
					Arguments:        ArgumentsString(call.Get("function.arguments")),
					Thought:          call.Get("thought").String(),
					ThoughtSignature: call.Get("thought_signature").String(),
				})
				return true
			})
		}

		req.Messages = append(req.Messages, msg)
		return true
	})

	decodeOpenAITools(req, root)
	return req
}

func decodeSampling(req *Request, root gjson.Result) {
	if temp := root.Get("temperature"); temp.Exists() {
		v := temp.Float()
		req.Temperature = &v
	}
	if topP := root.Get("top_p"); topP.Exists() {
		v := topP.Float()
		req.TopP = &v
	}
	stop := root.Get("stop")
	if !stop.Exists() {
		stop = root.Get("stop_sequences")
	}
	if stop.Type == gjson.String {
		req.Stop = append(req.Stop, stop.String())
	} else if stop.IsArray() {
		stop.ForEach(func(_, s gjson.Result) bool {
			req.Stop = append(req.Stop, s.String())
			return true
		})
	}
}

func decodeOpenAITools(req *Request, root gjson.Result) {
	if tools := root.Get("tools"); tools.IsArray() {
		tools.ForEach(func(_, tool gjson.Result) bool {
			fn := tool.Get("function")
			if !fn.Exists() && tool.Get("name").Exists() {
				// Responses-style flat tool declarations.
				fn = tool
			}
			name := fn.Get("name").String()
			if name == "" {
				return true
			}
			decl := Tool{
				Name:        name,
				Description: fn.Get("description").String(),
			}
			if params := fn.Get("parameters"); params.Exists() {
				decl.ParametersJSON = params.Raw
			}
			req.Tools = append(req.Tools, decl)
			return true
		})
	}

	choice := root.Get("tool_choice")
	switch {
	case choice.Type == gjson.String:
		req.ToolChoice = choice.String()
	case choice.IsObject():
		if name := choice.Get("function.name").String(); name != "" {
			req.ToolChoiceName = name
		} else if name = choice.Get("name").String(); name != "" {
			req.ToolChoiceName = name
		}
	}
}

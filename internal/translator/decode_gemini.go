package translator

import (
	"github.com/tidwall/gjson"
)

// FromGemini decodes a Gemini generateContent request into the pivot.
// systemInstruction becomes a system message; functionCall parts become
// assistant tool calls (with any sibling thoughtSignature attached) and
// functionResponse parts become tool messages matched by call order.
func FromGemini(model string, rawJSON []byte) *Request {
	root := gjson.ParseBytes(rawJSON)
	req := &Request{Model: model}

	if cfg := root.Get("generationConfig"); cfg.Exists() {
		if temp := cfg.Get("temperature"); temp.Exists() {
			v := temp.Float()
			req.Temperature = &v
		}
		if topP := cfg.Get("topP"); topP.Exists() {
			v := topP.Float()
			req.TopP = &v
		}
		req.MaxOutputTokens = cfg.Get("maxOutputTokens").Int()
		cfg.Get("stopSequences").ForEach(func(_, s gjson.Result) bool {
			req.Stop = append(req.Stop, s.String())
			return true
		})
	}

	if instruction := root.Get("systemInstruction"); instruction.Exists() {
		msg := Message{Role: RoleSystem}
		msg.Parts = AppendContent(msg.Parts, instruction.Get("parts"))
		if len(msg.Parts) > 0 {
			req.Messages = append(req.Messages, msg)
		}
	}

	// functionResponse parts arrive without call ids; pair them with pending
	// functionCall ids in order.
	var pendingCallIDs []string
	var pendingNames []string

	root.Get("contents").ForEach(func(_, content gjson.Result) bool {
		role := content.Get("role").String()
		if role == "model" {
			role = RoleAssistant
		} else {
			role = RoleUser
		}

		msg := Message{Role: role}
		content.Get("parts").ForEach(func(_, part gjson.Result) bool {
			if fn := part.Get("functionCall"); fn.Exists() {
				id := NormalizeCallID(fn.Get("id").String())
				if id == "" {
					id = NewCallID()
				}
				call := ToolCall{
					ID:               id,
					Name:             fn.Get("name").String(),
					Arguments:        ArgumentsString(fn.Get("args")),
					ThoughtSignature: part.Get("thoughtSignature").String(),
				}
				msg.ToolCalls = append(msg.ToolCalls, call)
				pendingCallIDs = append(pendingCallIDs, id)
				pendingNames = append(pendingNames, call.Name)
				return true
			}
			if fn := part.Get("functionResponse"); fn.Exists() {
				result := Message{Role: RoleTool, ToolName: fn.Get("name").String()}
				if len(pendingCallIDs) > 0 {
					result.ToolCallID = pendingCallIDs[0]
					if result.ToolName == "" {
						result.ToolName = pendingNames[0]
					}
					pendingCallIDs = pendingCallIDs[1:]
					pendingNames = pendingNames[1:]
				} else {
					result.ToolCallID = NewCallID()
				}
				response := fn.Get("response.output")
				if !response.Exists() {
					response = fn.Get("response")
				}
				result.Parts = append(result.Parts, TextPart(ArgumentsString(response)))
				req.Messages = append(req.Messages, result)
				return true
			}
			if part.Get("thought").Bool() {
				// Echoed thought text; upstreams regenerate it.
				return true
			}
			msg.Parts = AppendContent(msg.Parts, part)
			return true
		})

		if len(msg.Parts) > 0 || len(msg.ToolCalls) > 0 {
			req.Messages = append(req.Messages, msg)
		}
		return true
	})

	root.Get("tools").ForEach(func(_, tool gjson.Result) bool {
		tool.Get("functionDeclarations").ForEach(func(_, decl gjson.Result) bool {
			t := Tool{
				Name:        decl.Get("name").String(),
				Description: decl.Get("description").String(),
			}
			if t.Name == "" {
				return true
			}
			if params := decl.Get("parameters"); params.Exists() {
				t.ParametersJSON = params.Raw
			}
			req.Tools = append(req.Tools, t)
			return true
		})
		return true
	})

	switch root.Get("toolConfig.functionCallingConfig.mode").String() {
	case "AUTO":
		req.ToolChoice = "auto"
	case "ANY":
		req.ToolChoice = "required"
	case "NONE":
		req.ToolChoice = "none"
	}

	return req
}

package translator

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/Andy963/rsp4copilot-sub000/internal/schema"
)

// geminiFallbackMaxOutputTokens is used when neither the request nor the
// configuration provides a cap. Some gateways treat an absent cap as zero.
const geminiFallbackMaxOutputTokens = 65536

// ToGemini encodes the pivot as a Gemini generateContent request. Assistant
// tool calls become functionCall parts with thoughtSignature as a sibling of
// the functionCall; the tool results that follow them are assembled into a
// single user turn of functionResponse parts with structural parity
// preserved (missing outputs are backfilled with empty strings).
func ToGemini(req *Request, opts *EncodeOptions) []byte {
	out := `{"contents":[]}`

	prefix, rest := opts.systemPrefix(req)
	if prefix != "" {
		instruction := `{"role":"user","parts":[{"text":""}]}`
		instruction, _ = sjson.Set(instruction, "parts.0.text", prefix)
		out, _ = sjson.SetRaw(out, "systemInstruction", instruction)
	}

	for i := 0; i < len(rest); i++ {
		msg := &rest[i]

		if msg.Role == RoleAssistant && len(msg.ToolCalls) > 0 {
			out, _ = sjson.SetRaw(out, "contents.-1", encodeGeminiAssistant(msg, opts))

			// Greedily consume the contiguous tool results that answer this
			// turn's calls, one functionResponse per call, in call order.
			outputs := map[string]string{}
			for i+1 < len(rest) && rest[i+1].Role == RoleTool {
				i++
				outputs[rest[i].ToolCallID] = rest[i].Text()
			}
			turn := `{"role":"user","parts":[]}`
			for _, call := range msg.ToolCalls {
				part := `{"functionResponse":{"name":"","response":{"output":""}}}`
				part, _ = sjson.Set(part, "functionResponse.name", call.Name)
				part, _ = sjson.Set(part, "functionResponse.response.output", outputs[call.ID])
				turn, _ = sjson.SetRaw(turn, "parts.-1", part)
			}
			out, _ = sjson.SetRaw(out, "contents.-1", turn)
			continue
		}

		if msg.Role == RoleTool {
			// Orphan tool result with no preceding call turn.
			turn := `{"role":"user","parts":[]}`
			part := `{"functionResponse":{"name":"","response":{"output":""}}}`
			part, _ = sjson.Set(part, "functionResponse.name", msg.ToolName)
			part, _ = sjson.Set(part, "functionResponse.response.output", msg.Text())
			turn, _ = sjson.SetRaw(turn, "parts.-1", part)
			out, _ = sjson.SetRaw(out, "contents.-1", turn)
			continue
		}

		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		turn, _ := sjson.Set(`{"role":"","parts":[]}`, "role", role)
		for _, part := range msg.Parts {
			switch part.Type {
			case "text":
				entry, _ := sjson.Set(`{"text":""}`, "text", part.Text)
				turn, _ = sjson.SetRaw(turn, "parts.-1", entry)
			case "image":
				entry := `{"inlineData":{"mimeType":"","data":""}}`
				entry, _ = sjson.Set(entry, "inlineData.mimeType", part.MimeType)
				entry, _ = sjson.Set(entry, "inlineData.data", part.Data)
				turn, _ = sjson.SetRaw(turn, "parts.-1", entry)
			}
		}
		if gjson.Get(turn, "parts.0").Exists() {
			out, _ = sjson.SetRaw(out, "contents.-1", turn)
		}
	}

	out = encodeGeminiGenerationConfig(out, req, opts)
	out = encodeGeminiTools(out, req)
	return []byte(out)
}

func encodeGeminiAssistant(msg *Message, opts *EncodeOptions) string {
	turn := `{"role":"model","parts":[]}`
	if text := msg.Text(); text != "" {
		entry, _ := sjson.Set(`{"text":""}`, "text", text)
		turn, _ = sjson.SetRaw(turn, "parts.-1", entry)
	}
	for _, call := range msg.ToolCalls {
		part := `{"functionCall":{"name":"","args":{}}}`
		part, _ = sjson.Set(part, "functionCall.name", call.Name)
		if gjson.Valid(call.Arguments) {
			part, _ = sjson.SetRaw(part, "functionCall.args", call.Arguments)
		}

		signature := call.ThoughtSignature
		if signature == "" && opts != nil {
			signature = opts.ThoughtSignatures[call.ID]
		}
		if signature != "" {
			// Sibling of functionCall, not inside it.
			part, _ = sjson.Set(part, "thoughtSignature", signature)
		}
		turn, _ = sjson.SetRaw(turn, "parts.-1", part)
	}
	return turn
}

func encodeGeminiGenerationConfig(out string, req *Request, opts *EncodeOptions) string {
	if req.Temperature != nil {
		out, _ = sjson.Set(out, "generationConfig.temperature", *req.Temperature)
	}
	if req.TopP != nil {
		out, _ = sjson.Set(out, "generationConfig.topP", *req.TopP)
	}
	if len(req.Stop) > 0 {
		out, _ = sjson.Set(out, "generationConfig.stopSequences", req.Stop)
	}

	maxTokens := opts.cappedMaxTokens(req.MaxOutputTokens)
	if maxTokens <= 0 {
		if opts != nil && opts.GeminiMaxOutputTokens > 0 {
			maxTokens = opts.GeminiMaxOutputTokens
		} else {
			maxTokens = geminiFallbackMaxOutputTokens
		}
	}
	out, _ = sjson.Set(out, "generationConfig.maxOutputTokens", maxTokens)
	out, _ = sjson.Set(out, "generationConfig.thinkingConfig.includeThoughts", true)
	return out
}

func encodeGeminiTools(out string, req *Request) string {
	if len(req.Tools) == 0 {
		return out
	}

	declarations := "[]"
	for _, tool := range req.Tools {
		item := `{"name":""}`
		item, _ = sjson.Set(item, "name", tool.Name)
		if tool.Description != "" {
			item, _ = sjson.Set(item, "description", tool.Description)
		}
		if tool.ParametersJSON != "" {
			item, _ = sjson.SetRaw(item, "parameters", string(schema.ToGemini([]byte(tool.ParametersJSON))))
		}
		declarations, _ = sjson.SetRaw(declarations, "-1", item)
	}
	out, _ = sjson.SetRaw(out, "tools", `[{"functionDeclarations":`+declarations+`}]`)

	mode := ""
	if req.ToolChoiceName != "" {
		mode = "ANY"
		out, _ = sjson.Set(out, "toolConfig.functionCallingConfig.allowedFunctionNames", []string{req.ToolChoiceName})
	} else {
		switch req.ToolChoice {
		case "auto":
			mode = "AUTO"
		case "required":
			mode = "ANY"
		case "none":
			mode = "NONE"
		}
	}
	if mode != "" {
		out, _ = sjson.Set(out, "toolConfig.functionCallingConfig.mode", mode)
	}
	return out
}

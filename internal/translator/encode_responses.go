package translator

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ToOpenAIResponses encodes the pivot as an OpenAI Responses request. System
// messages travel in the instructions field unless the provider's
// noInstructions quirk keeps them inline as input items.
func ToOpenAIResponses(req *Request, opts *EncodeOptions) []byte {
	out := `{"model":"","input":[]}`
	out, _ = sjson.Set(out, "model", opts.model(req))

	prefix, rest := opts.systemPrefix(req)
	if prefix != "" {
		if opts != nil && opts.NoInstructions {
			item := `{"role":"system","content":[{"type":"input_text","text":""}]}`
			item, _ = sjson.Set(item, "content.0.text", prefix)
			out, _ = sjson.SetRaw(out, "input.-1", item)
		} else {
			out, _ = sjson.Set(out, "instructions", prefix)
		}
	}

	for i := range rest {
		for _, item := range encodeResponsesItems(&rest[i]) {
			out, _ = sjson.SetRaw(out, "input.-1", item)
		}
	}

	if req.Temperature != nil {
		out, _ = sjson.Set(out, "temperature", *req.Temperature)
	}
	if req.TopP != nil {
		out, _ = sjson.Set(out, "top_p", *req.TopP)
	}
	if maxTokens := opts.cappedMaxTokens(req.MaxOutputTokens); maxTokens > 0 {
		out, _ = sjson.Set(out, "max_output_tokens", maxTokens)
	}
	if req.Stream {
		out, _ = sjson.Set(out, "stream", true)
	}
	if effort := opts.effort(req); effort != "" {
		out, _ = sjson.Set(out, "reasoning.effort", effort)
	}

	if opts == nil || !opts.NoPreviousResponseID {
		previousID := req.PreviousResponseID
		if previousID == "" && opts != nil {
			previousID = opts.PreviousResponseID
		}
		if previousID != "" {
			out, _ = sjson.Set(out, "previous_response_id", previousID)
		}
	}
	if req.Conversation != "" {
		out, _ = sjson.Set(out, "conversation", req.Conversation)
	}

	for _, tool := range req.Tools {
		item := `{"type":"function","name":""}`
		item, _ = sjson.Set(item, "name", tool.Name)
		if tool.Description != "" {
			item, _ = sjson.Set(item, "description", tool.Description)
		}
		if tool.ParametersJSON != "" && gjson.Valid(tool.ParametersJSON) {
			item, _ = sjson.SetRaw(item, "parameters", tool.ParametersJSON)
		}
		out, _ = sjson.SetRaw(out, "tools.-1", item)
	}

	if req.ToolChoiceName != "" {
		choice, _ := sjson.Set(`{"type":"function","name":""}`, "name", req.ToolChoiceName)
		out, _ = sjson.SetRaw(out, "tool_choice", choice)
	} else if req.ToolChoice != "" {
		out, _ = sjson.Set(out, "tool_choice", req.ToolChoice)
	}

	return []byte(out)
}

func encodeResponsesItems(msg *Message) []string {
	var items []string

	switch msg.Role {
	case RoleTool:
		item := `{"type":"function_call_output","call_id":"","output":""}`
		item, _ = sjson.Set(item, "call_id", msg.ToolCallID)
		item, _ = sjson.Set(item, "output", msg.Text())
		return []string{item}

	case RoleAssistant:
		if text := msg.Text(); text != "" {
			item := `{"role":"assistant","content":[{"type":"output_text","text":""}]}`
			item, _ = sjson.Set(item, "content.0.text", text)
			items = append(items, item)
		}
		for _, call := range msg.ToolCalls {
			item := `{"type":"function_call","call_id":"","name":"","arguments":""}`
			item, _ = sjson.Set(item, "call_id", call.ID)
			item, _ = sjson.Set(item, "name", call.Name)
			item, _ = sjson.Set(item, "arguments", call.Arguments)
			items = append(items, item)
		}
		return items
	}

	item := `{"role":"","content":[]}`
	item, _ = sjson.Set(item, "role", msg.Role)
	for _, part := range msg.Parts {
		switch part.Type {
		case "text":
			entry, _ := sjson.Set(`{"type":"input_text","text":""}`, "text", part.Text)
			item, _ = sjson.SetRaw(item, "content.-1", entry)
		case "image":
			entry, _ := sjson.Set(`{"type":"input_image","image_url":""}`, "image_url", "data:"+part.MimeType+";base64,"+part.Data)
			item, _ = sjson.SetRaw(item, "content.-1", entry)
		}
	}
	return []string{item}
}

package translator

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ToOpenAIChat encodes the pivot as an OpenAI Chat Completions request.
func ToOpenAIChat(req *Request, opts *EncodeOptions) []byte {
	out := `{"model":"","messages":[]}`
	out, _ = sjson.Set(out, "model", opts.model(req))

	for i := range req.Messages {
		out, _ = sjson.SetRaw(out, "messages.-1", encodeChatMessage(&req.Messages[i]))
	}

	if req.Temperature != nil {
		out, _ = sjson.Set(out, "temperature", *req.Temperature)
	}
	if req.TopP != nil {
		out, _ = sjson.Set(out, "top_p", *req.TopP)
	}
	if len(req.Stop) == 1 {
		out, _ = sjson.Set(out, "stop", req.Stop[0])
	} else if len(req.Stop) > 1 {
		out, _ = sjson.Set(out, "stop", req.Stop)
	}
	if maxTokens := opts.cappedMaxTokens(req.MaxOutputTokens); maxTokens > 0 {
		out, _ = sjson.Set(out, "max_tokens", maxTokens)
	}
	if req.Stream {
		out, _ = sjson.Set(out, "stream", true)
	}
	if req.User != "" {
		out, _ = sjson.Set(out, "user", req.User)
	}
	if effort := opts.effort(req); effort != "" {
		out, _ = sjson.Set(out, "reasoning_effort", effort)
	}

	out = encodeChatTools(out, req)
	return []byte(out)
}

func encodeChatMessage(msg *Message) string {
	entry := `{"role":""}`
	entry, _ = sjson.Set(entry, "role", msg.Role)

	switch msg.Role {
	case RoleTool:
		entry, _ = sjson.Set(entry, "tool_call_id", msg.ToolCallID)
		entry, _ = sjson.Set(entry, "content", msg.Text())
		return entry
	}

	hasImages := false
	for _, part := range msg.Parts {
		if part.Type == "image" {
			hasImages = true
			break
		}
	}

	if hasImages {
		entry, _ = sjson.SetRaw(entry, "content", "[]")
		for _, part := range msg.Parts {
			switch part.Type {
			case "text":
				item, _ := sjson.Set(`{"type":"text","text":""}`, "text", part.Text)
				entry, _ = sjson.SetRaw(entry, "content.-1", item)
			case "image":
				item, _ := sjson.Set(`{"type":"image_url","image_url":{"url":""}}`, "image_url.url", "data:"+part.MimeType+";base64,"+part.Data)
				entry, _ = sjson.SetRaw(entry, "content.-1", item)
			}
		}
	} else {
		entry, _ = sjson.Set(entry, "content", msg.Text())
	}

	for _, call := range msg.ToolCalls {
		item := `{"id":"","type":"function","function":{"name":"","arguments":""}}`
		item, _ = sjson.Set(item, "id", call.ID)
		item, _ = sjson.Set(item, "function.name", call.Name)
		item, _ = sjson.Set(item, "function.arguments", call.Arguments)
		entry, _ = sjson.SetRaw(entry, "tool_calls.-1", item)
	}

	return entry
}

func encodeChatTools(out string, req *Request) string {
	for _, tool := range req.Tools {
		item := `{"type":"function","function":{"name":""}}`
		item, _ = sjson.Set(item, "function.name", tool.Name)
		if tool.Description != "" {
			item, _ = sjson.Set(item, "function.description", tool.Description)
		}
		if tool.ParametersJSON != "" && gjson.Valid(tool.ParametersJSON) {
			item, _ = sjson.SetRaw(item, "function.parameters", tool.ParametersJSON)
		}
		out, _ = sjson.SetRaw(out, "tools.-1", item)
	}

	if req.ToolChoiceName != "" {
		choice, _ := sjson.Set(`{"type":"function","function":{"name":""}}`, "function.name", req.ToolChoiceName)
		out, _ = sjson.SetRaw(out, "tool_choice", choice)
	} else if req.ToolChoice != "" {
		out, _ = sjson.Set(out, "tool_choice", req.ToolChoice)
	}
	return out
}

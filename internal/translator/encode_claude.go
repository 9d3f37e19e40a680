package translator

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// claudeDefaultMaxTokens is applied when the client sent no cap; the Messages
// API rejects requests without one.
const claudeDefaultMaxTokens = 8192

// ToClaude encodes the pivot as an Anthropic Messages request. System
// messages become the system block array; tool calls become tool_use blocks
// with parsed JSON input; consecutive tool results group into a single user
// turn of tool_result blocks.
func ToClaude(req *Request, opts *EncodeOptions) []byte {
	out := `{"model":"","max_tokens":0,"messages":[]}`
	out, _ = sjson.Set(out, "model", opts.model(req))

	maxTokens := opts.cappedMaxTokens(req.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = claudeDefaultMaxTokens
	}
	out, _ = sjson.Set(out, "max_tokens", maxTokens)

	prefix, rest := opts.systemPrefix(req)
	if prefix != "" {
		block, _ := sjson.Set(`{"type":"text","text":""}`, "text", prefix)
		out, _ = sjson.SetRaw(out, "system", "["+block+"]")
	}

	for i := 0; i < len(rest); i++ {
		msg := &rest[i]
		if msg.Role == RoleTool {
			// Group this and any following tool results into one user turn.
			turn := `{"role":"user","content":[]}`
			for ; i < len(rest) && rest[i].Role == RoleTool; i++ {
				block := `{"type":"tool_result","tool_use_id":""}`
				block, _ = sjson.Set(block, "tool_use_id", rest[i].ToolCallID)
				block, _ = sjson.Set(block, "content", rest[i].Text())
				turn, _ = sjson.SetRaw(turn, "content.-1", block)
			}
			i--
			out, _ = sjson.SetRaw(out, "messages.-1", turn)
			continue
		}
		out, _ = sjson.SetRaw(out, "messages.-1", encodeClaudeMessage(msg))
	}

	if req.Temperature != nil {
		out, _ = sjson.Set(out, "temperature", *req.Temperature)
	}
	if req.TopP != nil {
		out, _ = sjson.Set(out, "top_p", *req.TopP)
	}
	if len(req.Stop) > 0 {
		out, _ = sjson.Set(out, "stop_sequences", req.Stop)
	}
	if req.Stream {
		out, _ = sjson.Set(out, "stream", true)
	}
	if req.User != "" {
		out, _ = sjson.Set(out, "metadata.user_id", req.User)
	}

	for _, tool := range req.Tools {
		item := `{"name":""}`
		item, _ = sjson.Set(item, "name", tool.Name)
		if tool.Description != "" {
			item, _ = sjson.Set(item, "description", tool.Description)
		}
		if tool.ParametersJSON != "" && gjson.Valid(tool.ParametersJSON) {
			item, _ = sjson.SetRaw(item, "input_schema", tool.ParametersJSON)
		} else {
			item, _ = sjson.SetRaw(item, "input_schema", `{"type":"object"}`)
		}
		out, _ = sjson.SetRaw(out, "tools.-1", item)
	}

	if req.ToolChoiceName != "" {
		choice, _ := sjson.Set(`{"type":"tool","name":""}`, "name", req.ToolChoiceName)
		out, _ = sjson.SetRaw(out, "tool_choice", choice)
	} else {
		switch req.ToolChoice {
		case "auto":
			out, _ = sjson.SetRaw(out, "tool_choice", `{"type":"auto"}`)
		case "required":
			out, _ = sjson.SetRaw(out, "tool_choice", `{"type":"any"}`)
		case "none":
			out, _ = sjson.SetRaw(out, "tool_choice", `{"type":"none"}`)
		}
	}

	return []byte(out)
}

func encodeClaudeMessage(msg *Message) string {
	entry := `{"role":"","content":[]}`
	role := msg.Role
	if role != RoleAssistant {
		role = "user"
	}
	entry, _ = sjson.Set(entry, "role", role)

	for _, part := range msg.Parts {
		switch part.Type {
		case "text":
			if part.Text == "" {
				continue
			}
			block, _ := sjson.Set(`{"type":"text","text":""}`, "text", part.Text)
			entry, _ = sjson.SetRaw(entry, "content.-1", block)
		case "image":
			block := `{"type":"image","source":{"type":"base64","media_type":"","data":""}}`
			block, _ = sjson.Set(block, "source.media_type", part.MimeType)
			block, _ = sjson.Set(block, "source.data", part.Data)
			entry, _ = sjson.SetRaw(entry, "content.-1", block)
		}
	}

	for _, call := range msg.ToolCalls {
		block := `{"type":"tool_use","id":"","name":"","input":{}}`
		block, _ = sjson.Set(block, "id", call.ID)
		block, _ = sjson.Set(block, "name", call.Name)
		if gjson.Valid(call.Arguments) {
			block, _ = sjson.SetRaw(block, "input", call.Arguments)
		}
		entry, _ = sjson.SetRaw(entry, "content.-1", block)
	}

	// The Messages API rejects empty content arrays.
	if !gjson.Get(entry, "content.0").Exists() {
		entry, _ = sjson.SetRaw(entry, "content", `[{"type":"text","text":" "}]`)
	}
	return entry
}

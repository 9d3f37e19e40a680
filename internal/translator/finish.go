package translator

// MapFinishReason folds the upstream dialects' stop reasons into the OpenAI
// vocabulary. hasToolCalls overrides the mapped value, since several
// upstreams report "stop" even when the turn ended on a tool call.
func MapFinishReason(reason string, hasToolCalls bool) string {
	if hasToolCalls {
		return "tool_calls"
	}
	switch reason {
	case "stop", "end_turn", "STOP", "completed", "stop_sequence":
		return "stop"
	case "length", "max_tokens", "max_tokens_reached", "MAX_TOKENS", "max_output_tokens", "incomplete":
		return "length"
	case "safety", "recitation", "content_filter", "SAFETY", "RECITATION", "refusal":
		return "content_filter"
	case "tool_use", "tool_calls", "function_call":
		return "tool_calls"
	case "":
		return "stop"
	}
	return "stop"
}

// ClaudeStopReason maps an OpenAI finish reason back to the Messages API
// vocabulary.
func ClaudeStopReason(finishReason string) string {
	switch finishReason {
	case "length":
		return "max_tokens"
	case "tool_calls":
		return "tool_use"
	case "content_filter":
		return "refusal"
	}
	return "end_turn"
}

// GeminiFinishReason maps an OpenAI finish reason back to the Gemini
// vocabulary.
func GeminiFinishReason(finishReason string) string {
	switch finishReason {
	case "length":
		return "MAX_TOKENS"
	case "content_filter":
		return "SAFETY"
	}
	return "STOP"
}

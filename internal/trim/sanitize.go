package trim

import (
	"github.com/Andy963/rsp4copilot-sub000/internal/translator"
)

// SanitizeToolPairs removes tool calls and tool results whose counterpart is
// missing. Upstreams reject requests with dangling halves ("no tool call
// found for function call output"), which trimming can easily produce.
// Anchored requests keep orphan results: the matching call lives upstream in
// the linked response history.
func SanitizeToolPairs(req *translator.Request) {
	calls := map[string]bool{}
	results := map[string]bool{}
	for i := range req.Messages {
		msg := &req.Messages[i]
		for _, call := range msg.ToolCalls {
			calls[translator.NormalizeCallID(call.ID)] = true
		}
		if msg.Role == translator.RoleTool {
			results[translator.NormalizeCallID(msg.ToolCallID)] = true
		}
	}

	kept := req.Messages[:0]
	for i := range req.Messages {
		msg := req.Messages[i]

		if len(msg.ToolCalls) > 0 {
			pairedCalls := msg.ToolCalls[:0]
			for _, call := range msg.ToolCalls {
				call.ID = translator.NormalizeCallID(call.ID)
				if results[call.ID] {
					pairedCalls = append(pairedCalls, call)
				}
			}
			msg.ToolCalls = pairedCalls
			// An assistant message stripped of all content disappears.
			if len(msg.ToolCalls) == 0 && msg.Text() == "" {
				continue
			}
		}

		if msg.Role == translator.RoleTool {
			msg.ToolCallID = translator.NormalizeCallID(msg.ToolCallID)
			if !calls[msg.ToolCallID] && !req.Anchored {
				continue
			}
		}

		kept = append(kept, msg)
	}
	req.Messages = kept
}

package trim

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andy963/rsp4copilot-sub000/internal/translator"
)

func user(text string) translator.Message {
	return translator.Message{Role: translator.RoleUser, Parts: []translator.Part{translator.TextPart(text)}}
}

func assistant(text string) translator.Message {
	return translator.Message{Role: translator.RoleAssistant, Parts: []translator.Part{translator.TextPart(text)}}
}

func conversation(turns int) *translator.Request {
	req := &translator.Request{Model: "m"}
	req.Messages = append(req.Messages, translator.Message{Role: translator.RoleSystem, Parts: []translator.Part{translator.TextPart("sys")}})
	for i := 0; i < turns; i++ {
		req.Messages = append(req.Messages, user("question"), assistant("answer"))
	}
	return req
}

func TestTrimDropsOldestTurns(t *testing.T) {
	req := conversation(10)
	Request(req, Limits{MaxTurns: 3})

	turns := 0
	for _, msg := range req.Messages {
		if msg.Role == translator.RoleUser {
			turns++
		}
	}
	assert.Equal(t, 3, turns)
	assert.Equal(t, translator.RoleSystem, req.Messages[0].Role)
}

func TestTrimKeepsLastUserMessage(t *testing.T) {
	// A single huge user message must survive, truncated.
	req := &translator.Request{Model: "m", Messages: []translator.Message{user(strings.Repeat("x", 5000))}}
	Request(req, Limits{MaxInputChars: 1000})

	require.Len(t, req.Messages, 1)
	assert.Equal(t, translator.RoleUser, req.Messages[0].Role)
	assert.NotEmpty(t, req.Messages[0].Text())
	assert.LessOrEqual(t, req.CharCount(), 1000)
}

func TestTrimMonotonic(t *testing.T) {
	tight := conversation(30)
	loose := conversation(30)
	Request(tight, Limits{MaxTurns: 2, MaxMessages: 10, MaxInputChars: 100})
	Request(loose, Limits{MaxTurns: 20, MaxMessages: 100, MaxInputChars: 10000})
	assert.GreaterOrEqual(t, loose.CharCount(), tight.CharCount())
}

func TestTrimShrinksSystemPrefixFromFront(t *testing.T) {
	req := &translator.Request{
		Model: "m",
		Messages: []translator.Message{
			{Role: translator.RoleSystem, Parts: []translator.Part{translator.TextPart(strings.Repeat("a", 900) + "TAIL")}},
			user("hi"),
		},
	}
	Request(req, Limits{MaxInputChars: 100})

	require.Equal(t, translator.RoleSystem, req.Messages[0].Role)
	assert.True(t, strings.HasSuffix(req.Messages[0].Text(), "TAIL"))
	assert.LessOrEqual(t, len(req.Messages[0].Text()), 100)
}

func TestTrimDropsNonUserTail(t *testing.T) {
	req := conversation(2)
	req.Messages = append(req.Messages, assistant(strings.Repeat("tail", 100)))
	Request(req, Limits{MaxInputChars: 50})
	assert.Equal(t, translator.RoleUser, req.Messages[len(req.Messages)-1].Role)
}

func TestSanitizeDropsOrphans(t *testing.T) {
	req := &translator.Request{
		Messages: []translator.Message{
			user("go"),
			{Role: translator.RoleAssistant, ToolCalls: []translator.ToolCall{
				{ID: "call_a", Name: "f", Arguments: "{}"},
				{ID: "call_b", Name: "g", Arguments: "{}"},
			}},
			{Role: translator.RoleTool, ToolCallID: "call_a", Parts: []translator.Part{translator.TextPart("ok")}},
			{Role: translator.RoleTool, ToolCallID: "call_gone", Parts: []translator.Part{translator.TextPart("??")}},
		},
	}
	SanitizeToolPairs(req)

	var callIDs, resultIDs []string
	for _, msg := range req.Messages {
		for _, call := range msg.ToolCalls {
			callIDs = append(callIDs, call.ID)
		}
		if msg.Role == translator.RoleTool {
			resultIDs = append(resultIDs, msg.ToolCallID)
		}
	}
	assert.Equal(t, []string{"call_a"}, callIDs)
	assert.Equal(t, []string{"call_a"}, resultIDs)
}

func TestSanitizeKeepsOrphanResultsWhenAnchored(t *testing.T) {
	req := &translator.Request{
		Anchored: true,
		Messages: []translator.Message{
			{Role: translator.RoleTool, ToolCallID: "call_remote", Parts: []translator.Part{translator.TextPart("ok")}},
			user("continue"),
		},
	}
	SanitizeToolPairs(req)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "call_remote", req.Messages[0].ToolCallID)
}

func TestSanitizeNormalizesDuplicatedPrefix(t *testing.T) {
	req := &translator.Request{
		Messages: []translator.Message{
			{Role: translator.RoleAssistant, ToolCalls: []translator.ToolCall{{ID: "fc_call_1", Name: "f", Arguments: "{}"}}},
			{Role: translator.RoleTool, ToolCallID: "call_1", Parts: []translator.Part{translator.TextPart("ok")}},
		},
	}
	SanitizeToolPairs(req)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "call_1", req.Messages[0].ToolCalls[0].ID)
}

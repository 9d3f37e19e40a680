// Package translator converts between the four wire dialects the gateway
// speaks: OpenAI Chat Completions, OpenAI Responses, Claude Messages and
// Gemini generateContent. Every inbound request is first decoded into the
// canonical pivot records in this file, then re-encoded into the selected
// upstream dialect; replies travel the reverse path through an OpenAI
// chat-completion intermediate.
package translator

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Message roles used throughout the pivot.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Request is the canonical pivot for one inbound request. It is created per
// request and never shared across requests.
type Request struct {
	Model    string
	Messages []Message
	Tools    []Tool

	// ToolChoice is "", "auto", "required" or "none"; ToolChoiceName names a
	// specific forced tool and wins when set.
	ToolChoice     string
	ToolChoiceName string

	Temperature     *float64
	TopP            *float64
	Stop            []string
	MaxOutputTokens int64
	Stream          bool
	User            string
	ReasoningEffort string

	// PreviousResponseID and Conversation carry OpenAI Responses multi-turn
	// linkage. Anchored is true when either was present on the wire.
	PreviousResponseID string
	Conversation       string
	Anchored           bool
}

// Message is one turn. Tool messages carry ToolCallID (and, for Gemini
// pairing, the function name); assistant messages may carry ToolCalls.
type Message struct {
	Role       string
	Parts      []Part
	ToolCalls  []ToolCall
	ToolCallID string
	ToolName   string
}

// Part is a tagged content variant: text or an inline base64 image.
type Part struct {
	Type     string // "text" or "image"
	Text     string
	MimeType string
	Data     string
}

// ToolCall is an assistant-requested function invocation. Arguments is always
// a JSON string. Thought and ThoughtSignature carry Gemini thinking state.
type ToolCall struct {
	ID               string
	Name             string
	Arguments        string
	Thought          string
	ThoughtSignature string
}

// Tool is a function declaration. ParametersJSON is the raw JSON Schema.
type Tool struct {
	Name           string
	Description    string
	ParametersJSON string
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Type: "text", Text: text}
}

// ImagePart builds an inline image part.
func ImagePart(mimeType, data string) Part {
	return Part{Type: "image", MimeType: mimeType, Data: data}
}

// Text concatenates the message's text parts in order.
func (m *Message) Text() string {
	var b strings.Builder
	for _, part := range m.Parts {
		if part.Type == "text" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// HasImages reports whether any message carries an image part.
func (r *Request) HasImages() bool {
	for i := range r.Messages {
		for _, part := range r.Messages[i].Parts {
			if part.Type == "image" {
				return true
			}
		}
	}
	return false
}

// HasToolTraffic reports whether any message carries tool calls or results.
func (r *Request) HasToolTraffic() bool {
	for i := range r.Messages {
		if len(r.Messages[i].ToolCalls) > 0 || r.Messages[i].Role == RoleTool {
			return true
		}
	}
	return false
}

// CharCount is the trimmer's size metric: the sum of all text, argument and
// tool-output characters.
func (r *Request) CharCount() int {
	total := 0
	for i := range r.Messages {
		msg := &r.Messages[i]
		for _, part := range msg.Parts {
			total += len(part.Text)
		}
		for _, call := range msg.ToolCalls {
			total += len(call.Arguments)
		}
	}
	return total
}

// NewCallID mints a tool call id in the gateway's format.
func NewCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewResponseID mints an OpenAI Responses id.
func NewResponseID() string {
	return "resp_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewChatCompletionID mints an OpenAI chat completion id.
func NewChatCompletionID() string {
	return "chatcmpl-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ArgumentsString renders tool arguments as a JSON string. String input
// passes through; other shapes are marshalled; failure yields "{}".
func ArgumentsString(value gjson.Result) string {
	if !value.Exists() {
		return "{}"
	}
	if value.Type == gjson.String {
		if value.String() == "" {
			return "{}"
		}
		return value.String()
	}
	data, err := json.Marshal(value.Value())
	if err != nil {
		return "{}"
	}
	return string(data)
}

// NormalizeCallID strips a duplicated "fc_" prefix some clients attach to
// call ids they echo back.
func NormalizeCallID(id string) string {
	if strings.HasPrefix(id, "fc_call_") {
		return strings.TrimPrefix(id, "fc_")
	}
	return id
}

package translator

// EncodeOptions tune pivot-to-upstream encoding for the selected provider
// and model.
type EncodeOptions struct {
	// UpstreamModel is the model name the upstream expects.
	UpstreamModel string

	// ReasoningEffort is applied when the request carries none. Empty
	// disables the field entirely.
	ReasoningEffort string

	// MaxInstructionsChars truncates the combined system prefix when
	// positive.
	MaxInstructionsChars int

	// MaxTokens caps max_output_tokens when positive.
	MaxTokens int64

	// GeminiMaxOutputTokens is used when the client sent no cap. Zero falls
	// back to 65536, since some gateways treat an absent cap as zero.
	GeminiMaxOutputTokens int64

	// NoInstructions hoists Responses instructions into the input as a
	// system message.
	NoInstructions bool

	// NoPreviousResponseID suppresses previous_response_id linkage.
	NoPreviousResponseID bool

	// PreviousResponseID is cache-injected linkage for Responses upstreams.
	PreviousResponseID string

	// ThoughtSignatures maps call ids to cached Gemini thought signatures to
	// echo back on this turn's functionCall parts.
	ThoughtSignatures map[string]string
}

func (o *EncodeOptions) model(req *Request) string {
	if o != nil && o.UpstreamModel != "" {
		return o.UpstreamModel
	}
	return req.Model
}

func (o *EncodeOptions) effort(req *Request) string {
	if req.ReasoningEffort != "" {
		return req.ReasoningEffort
	}
	if o != nil {
		return o.ReasoningEffort
	}
	return ""
}

func (o *EncodeOptions) cappedMaxTokens(requested int64) int64 {
	if o != nil && o.MaxTokens > 0 && (requested <= 0 || requested > o.MaxTokens) {
		return o.MaxTokens
	}
	return requested
}

// systemPrefix joins the leading system messages into a single string,
// truncated from the front when MaxInstructionsChars is exceeded. The
// remaining messages are returned unchanged.
func (o *EncodeOptions) systemPrefix(req *Request) (string, []Message) {
	var prefix string
	rest := req.Messages
	for len(rest) > 0 && rest[0].Role == RoleSystem {
		if prefix != "" {
			prefix += "\n\n"
		}
		prefix += rest[0].Text()
		rest = rest[1:]
	}
	if o != nil && o.MaxInstructionsChars > 0 && len(prefix) > o.MaxInstructionsChars {
		prefix = prefix[len(prefix)-o.MaxInstructionsChars:]
	}
	return prefix, rest
}

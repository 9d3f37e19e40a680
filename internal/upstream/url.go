package upstream

import (
	"net/url"
	"strings"

	"github.com/Andy963/rsp4copilot-sub000/internal/config"
)

// SynthesizeURLs expands a provider's base URLs into an ordered list of
// candidate endpoints for one request. Bases may be prefixes or complete
// endpoints; explicit endpoint overrides win. Query strings and fragments on
// the base are dropped.
func SynthesizeURLs(provider *config.Provider, modelID string, stream bool) []string {
	var out []string
	for _, base := range provider.BaseURLs {
		out = append(out, synthesizeOne(provider, base, modelID, stream)...)
	}
	return out
}

func stripQuery(base string) string {
	parsed, err := url.Parse(base)
	if err != nil {
		if i := strings.IndexAny(base, "?#"); i >= 0 {
			return base[:i]
		}
		return base
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return strings.TrimSuffix(parsed.String(), "/")
}

func synthesizeOne(provider *config.Provider, base, modelID string, stream bool) []string {
	base = stripQuery(strings.TrimSuffix(base, "/"))

	switch provider.APIMode {
	case config.APIModeOpenAIResponses:
		return openAIStyleURLs(base, provider.Endpoints.ResponsesPath, "/responses")
	case config.APIModeOpenAIChat:
		return openAIStyleURLs(base, provider.Endpoints.ChatCompletionsPath, "/chat/completions")
	case config.APIModeClaude:
		return []string{claudeURL(base, provider.Endpoints.MessagesPath)}
	case config.APIModeGemini:
		return []string{geminiURL(base, modelID, stream)}
	}
	return []string{base}
}

// openAIStyleURLs handles the shared shape of the Responses and Chat
// Completions endpoints. Three forms of a base can denote the endpoint: the
// base verbatim when it already ends with the endpoint path, base+suffix,
// and base+"/v1"+suffix. The verbatim form is the early return below, so
// synthesis only ever chooses between the two appended forms, inferred one
// first; whichever of the pair would duplicate a trailing /v1 is skipped
// rather than emitted as /v1/v1.
func openAIStyleURLs(base, configuredPath, suffix string) []string {
	if configuredPath != "" {
		if !strings.HasPrefix(configuredPath, "/") {
			configuredPath = "/" + configuredPath
		}
		return []string{base + configuredPath}
	}

	if strings.HasSuffix(base, suffix) {
		return []string{base}
	}

	var candidates []string
	if strings.HasSuffix(base, "/v1") {
		candidates = []string{base + suffix, base + "/v1" + suffix}
	} else {
		candidates = []string{base + "/v1" + suffix, base + suffix}
	}
	var out []string
	for _, candidate := range candidates {
		if strings.Contains(candidate, "/v1/v1/") {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

func claudeURL(base, configuredPath string) string {
	if configuredPath != "" {
		if !strings.HasPrefix(configuredPath, "/") {
			configuredPath = "/" + configuredPath
		}
		return base + configuredPath
	}
	if strings.HasSuffix(base, "/messages") {
		return base
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/messages"
	}
	return base + "/v1/messages"
}

func geminiURL(base, modelID string, stream bool) string {
	method := ":generateContent"
	if stream {
		method = ":streamGenerateContent"
	}

	switch {
	case strings.HasSuffix(base, ":generateContent"):
		base = strings.TrimSuffix(base, ":generateContent") + method
	case strings.HasSuffix(base, ":streamGenerateContent"):
		base = strings.TrimSuffix(base, ":streamGenerateContent") + method
	default:
		if !strings.Contains(base, "/v1beta") {
			base += "/v1beta"
		}
		base += "/models/" + modelID + method
	}

	if stream {
		base += "?alt=sse"
	}
	return base
}

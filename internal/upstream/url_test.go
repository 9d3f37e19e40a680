package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Andy963/rsp4copilot-sub000/internal/config"
)

func provider(mode string, bases ...string) *config.Provider {
	return &config.Provider{ID: "p", APIMode: mode, BaseURLs: bases}
}

func TestSynthesizeOpenAIStyle(t *testing.T) {
	cases := []struct {
		name string
		base string
		want []string
	}{
		{"prefix", "https://api.test", []string{"https://api.test/v1/responses", "https://api.test/responses"}},
		{"v1 suffix", "https://api.test/v1", []string{"https://api.test/v1/responses"}},
		{"complete", "https://api.test/v1/responses", []string{"https://api.test/v1/responses"}},
		{"nested prefix", "https://api.test/openai", []string{"https://api.test/openai/v1/responses", "https://api.test/openai/responses"}},
		{"query stripped", "https://api.test/v1?version=2", []string{"https://api.test/v1/responses"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SynthesizeURLs(provider(config.APIModeOpenAIResponses, tc.base), "m", false)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSynthesizeNeverDuplicatesV1(t *testing.T) {
	for _, got := range SynthesizeURLs(provider(config.APIModeOpenAIChat, "https://api.test/v1"), "m", false) {
		assert.NotContains(t, got, "/v1/v1/")
	}
}

func TestSynthesizeConfiguredPathWins(t *testing.T) {
	p := provider(config.APIModeOpenAIChat, "https://api.test")
	p.Endpoints.ChatCompletionsPath = "custom/chat"
	assert.Equal(t, []string{"https://api.test/custom/chat"}, SynthesizeURLs(p, "m", false))
}

func TestSynthesizeClaude(t *testing.T) {
	assert.Equal(t, []string{"https://api.test/v1/messages"},
		SynthesizeURLs(provider(config.APIModeClaude, "https://api.test"), "m", false))
	assert.Equal(t, []string{"https://api.test/v1/messages"},
		SynthesizeURLs(provider(config.APIModeClaude, "https://api.test/v1"), "m", false))
	assert.Equal(t, []string{"https://api.test/v1/messages"},
		SynthesizeURLs(provider(config.APIModeClaude, "https://api.test/v1/messages"), "m", false))
}

func TestSynthesizeGemini(t *testing.T) {
	assert.Equal(t, []string{"https://g.test/v1beta/models/gemini-1.5-pro:generateContent"},
		SynthesizeURLs(provider(config.APIModeGemini, "https://g.test"), "gemini-1.5-pro", false))

	assert.Equal(t, []string{"https://g.test/v1beta/models/gemini-1.5-pro:streamGenerateContent?alt=sse"},
		SynthesizeURLs(provider(config.APIModeGemini, "https://g.test"), "gemini-1.5-pro", true))

	// A v1beta base is not doubled.
	assert.Equal(t, []string{"https://g.test/v1beta/models/m:generateContent"},
		SynthesizeURLs(provider(config.APIModeGemini, "https://g.test/v1beta"), "m", false))

	// A complete endpoint has its method switched to match the request.
	assert.Equal(t, []string{"https://g.test/v1beta/models/pinned:streamGenerateContent?alt=sse"},
		SynthesizeURLs(provider(config.APIModeGemini, "https://g.test/v1beta/models/pinned:generateContent"), "other", true))
	assert.Equal(t, []string{"https://g.test/v1beta/models/pinned:generateContent"},
		SynthesizeURLs(provider(config.APIModeGemini, "https://g.test/v1beta/models/pinned:streamGenerateContent?alt=sse"), "other", false))
}

func TestSynthesizeMultipleBases(t *testing.T) {
	got := SynthesizeURLs(provider(config.APIModeClaude, "https://a.test", "https://b.test/v1"), "m", false)
	assert.Equal(t, []string{"https://a.test/v1/messages", "https://b.test/v1/messages"}, got)
}

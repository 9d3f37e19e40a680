package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/Andy963/rsp4copilot-sub000/internal/cache"
	"github.com/Andy963/rsp4copilot-sub000/internal/config"
)

func testServer(t *testing.T, upstreamURL string) *Server {
	t.Helper()
	settings := &config.Settings{
		AuthKeys:    []string{"sk-inbound"},
		MaxTurns:    config.DefaultMaxTurns,
		MaxMessages: config.DefaultMaxMessages,
	}
	registry := &config.GatewayConfig{
		Version: 1,
		Providers: []*config.Provider{{
			ID:       "up",
			APIMode:  config.APIModeOpenAIChat,
			OwnedBy:  "openai",
			BaseURLs: []string{upstreamURL},
			APIKey:   "sk-upstream",
			Models:   []*config.Model{{Name: "echo"}},
		}},
	}
	return New(settings, registry, cache.NewMemoryStore(16))
}

func do(s *Server, request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	s.engine.ServeHTTP(recorder, request)
	return recorder
}

func TestHealthIsPublic(t *testing.T) {
	s := testServer(t, "https://up.test")
	res := do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.True(t, gjson.Get(res.Body.String(), "ok").Bool())
}

func TestAuthRequired(t *testing.T) {
	s := testServer(t, "https://up.test")

	res := do(s, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "Bearer", res.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "authentication_error", gjson.Get(res.Body.String(), "error.type").String())

	request := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	request.Header.Set("Authorization", "Bearer wrong")
	res = do(s, request)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	request = httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	request.Header.Set("Authorization", "Bearer sk-inbound")
	res = do(s, request)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "echo", gjson.Get(res.Body.String(), "data.0.id").String())
}

func TestAuthHeaderFallbacks(t *testing.T) {
	s := testServer(t, "https://up.test")

	for _, header := range []string{"x-api-key", "x-goog-api-key", "anthropic-api-key", "x-anthropic-api-key"} {
		request := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
		request.Header.Set(header, "sk-inbound")
		res := do(s, request)
		assert.Equal(t, http.StatusOK, res.Code, header)
	}

	// The key query parameter only works on the Gemini surface.
	res := do(s, httptest.NewRequest(http.MethodGet, "/gemini/v1beta/models?key=sk-inbound", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	res = do(s, httptest.NewRequest(http.MethodGet, "/v1/models?key=sk-inbound", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestNoKeysConfiguredRefusesEverything(t *testing.T) {
	s := testServer(t, "https://up.test")
	s.settings.AuthKeys = nil

	request := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	request.Header.Set("Authorization", "Bearer anything")
	res := do(s, request)
	assert.Equal(t, http.StatusInternalServerError, res.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := testServer(t, "https://up.test")
	request := httptest.NewRequest(http.MethodOptions, "/v1/chat/completions", nil)
	request.Header.Set("Origin", "https://app.test")
	res := do(s, request)

	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.Equal(t, "https://app.test", res.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, res.Header().Get("Access-Control-Allow-Headers"), "x-session-id")
}

func TestLoopGuard(t *testing.T) {
	s := testServer(t, "https://gateway.test/v1")

	request := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"model":"echo","messages":[{"role":"user","content":"hi"}]}`))
	request.Host = "gateway.test"
	request.Header.Set("Authorization", "Bearer sk-inbound")
	res := do(s, request)

	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Contains(t, gjson.Get(res.Body.String(), "error.message").String(), "infinite routing loop")
}

func TestUnknownModelRejected(t *testing.T) {
	s := testServer(t, "https://up.test")
	request := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"model":"missing","messages":[{"role":"user","content":"hi"}]}`))
	request.Header.Set("Authorization", "Bearer sk-inbound")
	res := do(s, request)

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, gjson.Get(res.Body.String(), "error.message").String(), "Unknown model")
}

func TestChatCompletionEndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-upstream", r.Header.Get("Authorization"))
		w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","model":"echo","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}]}`))
	}))
	defer upstream.Close()

	s := testServer(t, upstream.URL)
	request := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"model":"echo","messages":[{"role":"user","content":"hi"}]}`))
	request.Header.Set("Authorization", "Bearer sk-inbound")
	res := do(s, request)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "hello", gjson.Get(res.Body.String(), "choices.0.message.content").String())
}

func TestClaudeInboundOverChatUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","model":"echo","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`))
	}))
	defer upstream.Close()

	s := testServer(t, upstream.URL)
	request := httptest.NewRequest(http.MethodPost, "/claude/v1/messages",
		strings.NewReader(`{"model":"echo","max_tokens":100,"messages":[{"role":"user","content":"hi"}]}`))
	request.Header.Set("x-api-key", "sk-inbound")
	res := do(s, request)

	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Equal(t, "message", gjson.Get(body, "type").String())
	assert.Equal(t, "hello", gjson.Get(body, "content.0.text").String())
	assert.Equal(t, "end_turn", gjson.Get(body, "stop_reason").String())
}

func TestGeminiRouteParsesModelAndMethod(t *testing.T) {
	s := testServer(t, "https://up.test")

	request := httptest.NewRequest(http.MethodPost, "/gemini/v1beta/models/echo:explode",
		strings.NewReader(`{"contents":[]}`))
	request.Header.Set("x-goog-api-key", "sk-inbound")
	res := do(s, request)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Contains(t, gjson.Get(res.Body.String(), "error.message").String(), "unknown gemini method")

	request = httptest.NewRequest(http.MethodPost, "/gemini/v1beta/models/noseparator",
		strings.NewReader(`{"contents":[]}`))
	request.Header.Set("x-goog-api-key", "sk-inbound")
	res = do(s, request)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestRegistryReloadSwapsSnapshot(t *testing.T) {
	s := testServer(t, "https://up.test")
	require.Len(t, s.Registry().Providers, 1)

	s.Reload(&config.GatewayConfig{Version: 1, Providers: []*config.Provider{
		{ID: "a", APIMode: config.APIModeClaude, BaseURLs: []string{"https://a.test"}, APIKey: "k",
			Models: []*config.Model{{Name: "m"}}},
		{ID: "b", APIMode: config.APIModeGemini, BaseURLs: []string{"https://b.test"}, APIKey: "k",
			Models: []*config.Model{{Name: "g"}}},
	}})
	assert.Len(t, s.Registry().Providers, 2)
}

package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/Andy963/rsp4copilot-sub000/internal/config"
)

func TestDispatchWalksURLsInOrder(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer good.Close()

	reply, errMsg := NewDispatcher().Dispatch(context.Background(),
		[]string{bad.URL, good.URL}, nil, [][]byte{[]byte(`{}`)}, config.APIModeOpenAIChat, false)
	require.Nil(t, errMsg)
	assert.JSONEq(t, `{"ok":true}`, string(reply.JSON))
}

func TestDispatchRetriesVariantsOn400(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		body, _ := io.ReadAll(r.Body)
		if gjson.GetBytes(body, "max_tokens").Exists() {
			w.Write([]byte(`{"ok":true}`))
			return
		}
		http.Error(w, `{"error":{"message":"unknown field max_output_tokens"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	variants := Variants([]byte(`{"max_output_tokens":64}`), config.APIModeOpenAIResponses)
	reply, errMsg := NewDispatcher().Dispatch(context.Background(),
		[]string{server.URL}, nil, variants, config.APIModeOpenAIResponses, false)
	require.Nil(t, errMsg)
	assert.JSONEq(t, `{"ok":true}`, string(reply.JSON))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestDispatchFatal400SkipsVariants(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, `{"error":{"message":"model_not_found"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	variants := Variants([]byte(`{"max_output_tokens":64}`), config.APIModeOpenAIResponses)
	require.Greater(t, len(variants), 1)
	_, errMsg := NewDispatcher().Dispatch(context.Background(),
		[]string{server.URL}, nil, variants, config.APIModeOpenAIResponses, false)

	require.NotNil(t, errMsg)
	// The status is echoed because retrying cannot fix it.
	assert.Equal(t, http.StatusBadRequest, errMsg.StatusCode)
	assert.Contains(t, errMsg.Body, "model_not_found")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestDispatchEchoesUpstream401(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	_, errMsg := NewDispatcher().Dispatch(context.Background(),
		[]string{server.URL}, nil, [][]byte{[]byte(`{}`)}, config.APIModeOpenAIChat, false)

	require.NotNil(t, errMsg)
	// A bad upstream credential is neither a body-shape nor a routing
	// problem, so the status surfaces as-is instead of folding to 502.
	assert.Equal(t, http.StatusUnauthorized, errMsg.StatusCode)
	assert.Contains(t, errMsg.Body, "invalid api key")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestDispatchPreservesFirstErrorBody(t *testing.T) {
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "first failure detail", http.StatusInternalServerError)
	}))
	defer first.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "second failure detail", http.StatusServiceUnavailable)
	}))
	defer second.Close()

	_, errMsg := NewDispatcher().Dispatch(context.Background(),
		[]string{first.URL, second.URL}, nil, [][]byte{[]byte(`{}`)}, config.APIModeOpenAIChat, false)

	require.NotNil(t, errMsg)
	// Retryable statuses fold to 502; the first body survives for diagnosis.
	assert.Equal(t, http.StatusBadGateway, errMsg.StatusCode)
	assert.Contains(t, errMsg.Body, "first failure detail")
}

func TestDispatchForwardsHeaders(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer sk-up")
	_, errMsg := NewDispatcher().Dispatch(context.Background(),
		[]string{server.URL}, headers, [][]byte{[]byte(`{}`)}, config.APIModeOpenAIChat, false)
	require.Nil(t, errMsg)
	assert.Equal(t, "Bearer sk-up", auth)
}

func TestDispatchEmptyStreamRetriesAsJSON(t *testing.T) {
	var jsonRetry atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Header.Get("Accept") == "application/json" {
			jsonRetry.Store(string(body))
			w.Write([]byte(`{"choices":[{"message":{"content":"hi"}}]}`))
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	reply, errMsg := NewDispatcher().Dispatch(context.Background(),
		[]string{server.URL}, nil, [][]byte{[]byte(`{"stream":true}`)}, config.APIModeOpenAIChat, true)

	require.Nil(t, errMsg)
	assert.False(t, reply.IsStream)
	assert.Contains(t, string(reply.JSON), "hi")

	retried, _ := jsonRetry.Load().(string)
	require.NotEmpty(t, retried)
	assert.False(t, gjson.Get(retried, "stream").Bool())
}

func TestDispatchStreamReplayedAfterProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\ndata: [DONE]\n\n"))
	}))
	defer server.Close()

	reply, errMsg := NewDispatcher().Dispatch(context.Background(),
		[]string{server.URL}, nil, [][]byte{[]byte(`{"stream":true}`)}, config.APIModeOpenAIChat, true)

	require.Nil(t, errMsg)
	require.True(t, reply.IsStream)
	defer reply.Body.Close()

	// The probed prefix must be replayed, not swallowed.
	data, err := io.ReadAll(reply.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"content":"a"`)
	assert.Contains(t, string(data), "[DONE]")
}

func TestDispatchRejectsEmptyGeminiCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if gjson.GetBytes(body, "generationConfig.maxOutputTokens").Int() == 8192 {
			w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
			return
		}
		w.Write([]byte(`{"candidates":[{"finishReason":"MAX_TOKENS"}]}`))
	}))
	defer server.Close()

	bodies := GeminiShrinkBodies([]byte(`{"contents":[],"generationConfig":{"maxOutputTokens":65536}}`))
	reply, errMsg := NewDispatcher().Dispatch(context.Background(),
		[]string{server.URL}, nil, bodies, config.APIModeGemini, false)

	require.Nil(t, errMsg)
	assert.Contains(t, string(reply.JSON), `"ok"`)
}

func TestGeminiShrinkBodies(t *testing.T) {
	bodies := GeminiShrinkBodies([]byte(`{"generationConfig":{"maxOutputTokens":65536,"thinkingConfig":{"includeThoughts":true}}}`))
	require.Len(t, bodies, 5)

	var caps []int64
	for _, body := range bodies[:4] {
		caps = append(caps, gjson.GetBytes(body, "generationConfig.maxOutputTokens").Int())
	}
	assert.Equal(t, []int64{65536, 8192, 4096, 2048}, caps)
	assert.False(t, gjson.GetBytes(bodies[4], "generationConfig.thinkingConfig").Exists())
}

func TestProbeStreamEmptyMarkers(t *testing.T) {
	body := io.NopCloser(strings.NewReader("data: [DONE]\n\n"))
	_, empty := ProbeStream(body)
	assert.True(t, empty)

	body = io.NopCloser(strings.NewReader(": ping\n\ndata: {\"choices\":[{\"delta\":{}}]}\n\n"))
	probed, empty := ProbeStream(body)
	require.False(t, empty)
	data, _ := io.ReadAll(probed)
	assert.Contains(t, string(data), "choices")
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker(2, time.Minute)
	assert.True(t, b.Allow("u"))
	b.Failure("u")
	assert.True(t, b.Allow("u"))
	b.Failure("u")
	assert.False(t, b.Allow("u"))
	b.Success("u")
	assert.True(t, b.Allow("u"))
}

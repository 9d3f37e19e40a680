package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/Andy963/rsp4copilot-sub000/internal/config"
	"github.com/Andy963/rsp4copilot-sub000/internal/registry"
	"github.com/Andy963/rsp4copilot-sub000/internal/stream"
	"github.com/Andy963/rsp4copilot-sub000/internal/translator"
	"github.com/Andy963/rsp4copilot-sub000/internal/upstream"
)

// LegacyCompletions serves the old text-completions surface by rewriting
// prompt to a single user message and the reply back to text form. Only
// openai-responses providers are supported here, matching what the clients
// still using this surface expect.
func (core *Core) LegacyCompletions(c *gin.Context) {
	cfg := core.Registry()
	if cfg == nil {
		Fail(c, http.StatusInternalServerError, TypeServer, CodeServer, "no provider registry loaded")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		Fail(c, http.StatusBadRequest, TypeInvalidRequest, CodeBadRequest, "empty request body")
		return
	}
	parsed := gjson.ParseBytes(body)

	modelID := parsed.Get("model").String()
	resolution, err := registry.Resolve(cfg, modelID, c.Query("provider"))
	if err != nil {
		Fail(c, http.StatusBadRequest, TypeInvalidRequest, CodeInvalidRequest, err.Error())
		return
	}
	if resolution.Provider.APIMode != config.APIModeOpenAIResponses {
		Fail(c, http.StatusBadRequest, TypeInvalidRequest, CodeBadRequest,
			"completions requires an openai-responses provider")
		return
	}

	prompt := parsed.Get("prompt").String()
	if prompt == "" && parsed.Get("prompt").IsArray() {
		parsed.Get("prompt").ForEach(func(_, part gjson.Result) bool {
			prompt += part.String()
			return true
		})
	}
	if prompt == "" {
		Fail(c, http.StatusBadRequest, TypeInvalidRequest, CodeBadRequest, "missing prompt")
		return
	}

	req := &translator.Request{
		Model:           modelID,
		Messages:        []translator.Message{{Role: translator.RoleUser, Parts: []translator.Part{translator.TextPart(prompt)}}},
		MaxOutputTokens: parsed.Get("max_tokens").Int(),
		Stream:          parsed.Get("stream").Bool(),
	}
	if temperature := parsed.Get("temperature"); temperature.Exists() {
		value := temperature.Float()
		req.Temperature = &value
	}

	opts := core.encodeOptions(resolution, req, "")
	upstreamBody := translator.ToOpenAIResponses(req, opts)
	urls := upstream.SynthesizeURLs(resolution.Provider, resolution.UpstreamModel(), req.Stream)
	variants := upstream.Variants(upstreamBody, resolution.Provider.APIMode)

	reply, errMsg := core.Dispatcher.Dispatch(c.Request.Context(), urls, upstreamHeaders(resolution.Provider), variants, resolution.Provider.APIMode, req.Stream)
	if errMsg != nil {
		FailUpstream(c, errMsg)
		return
	}

	if !req.Stream {
		chatJSON := core.normalize(resolution.Provider.APIMode, resolution, reply.JSON)
		if reply.IsStream {
			source, _ := core.newSource(resolution.Provider.APIMode)
			chatJSON = stream.CollectCompletion(reply.Body, source)
		}
		c.Data(http.StatusOK, "application/json", []byte(textCompletionFromChat(chatJSON)))
		return
	}

	SSEHeaders(c)
	send := func(frame string) bool {
		if _, writeErr := c.Writer.WriteString(frame); writeErr != nil {
			return false
		}
		c.Writer.Flush()
		return true
	}
	sink := &textCompletionSink{}
	if reply.IsStream {
		source, _ := core.newSource(resolution.Provider.APIMode)
		fallback := func(raw []byte) string { return core.normalize(resolution.Provider.APIMode, resolution, raw) }
		stream.Pump(c.Request.Context(), reply.Body, source, sink, send, nil, fallback)
		return
	}
	chatJSON := core.normalize(resolution.Provider.APIMode, resolution, reply.JSON)
	stream.PumpCompletion(chatJSON, sink, send, nil)
}

// textCompletionFromChat rewrites a chat completion as a legacy
// text_completion object.
func textCompletionFromChat(chatJSON string) string {
	root := gjson.Parse(chatJSON)
	out := `{"id":"","object":"text_completion","created":0,"model":"","choices":[{"index":0,"text":"","finish_reason":"stop"}]}`
	out, _ = sjson.Set(out, "id", root.Get("id").String())
	out, _ = sjson.Set(out, "created", root.Get("created").Int())
	out, _ = sjson.Set(out, "model", root.Get("model").String())
	out, _ = sjson.Set(out, "choices.0.text", root.Get("choices.0.message.content").String())
	out, _ = sjson.Set(out, "choices.0.finish_reason", root.Get("choices.0.finish_reason").String())
	if usage := root.Get("usage"); usage.IsObject() {
		out, _ = sjson.SetRaw(out, "usage", usage.Raw)
	}
	return out
}

// textCompletionSink frames chat chunks as legacy text_completion chunks.
type textCompletionSink struct {
	done bool
}

func (s *textCompletionSink) Feed(chunk string) []string {
	parsed := gjson.Parse(chunk)
	text := parsed.Get("choices.0.delta.content").String()
	reason := parsed.Get("choices.0.finish_reason").String()
	if text == "" && reason == "" {
		return nil
	}
	out := `{"id":"","object":"text_completion","created":0,"model":"","choices":[{"index":0,"text":""}]}`
	out, _ = sjson.Set(out, "id", parsed.Get("id").String())
	out, _ = sjson.Set(out, "created", parsed.Get("created").Int())
	out, _ = sjson.Set(out, "model", parsed.Get("model").String())
	out, _ = sjson.Set(out, "choices.0.text", text)
	if reason != "" {
		out, _ = sjson.Set(out, "choices.0.finish_reason", reason)
	}
	return []string{"data: " + out + "\n\n"}
}

func (s *textCompletionSink) Close() []string {
	if s.done {
		return nil
	}
	s.done = true
	return []string{"data: [DONE]\n\n"}
}

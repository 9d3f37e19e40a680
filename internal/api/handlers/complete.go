package handlers

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/Andy963/rsp4copilot-sub000/internal/cache"
	"github.com/Andy963/rsp4copilot-sub000/internal/config"
	"github.com/Andy963/rsp4copilot-sub000/internal/registry"
	"github.com/Andy963/rsp4copilot-sub000/internal/stream"
	"github.com/Andy963/rsp4copilot-sub000/internal/translator"
	"github.com/Andy963/rsp4copilot-sub000/internal/trim"
	"github.com/Andy963/rsp4copilot-sub000/internal/upstream"
	"github.com/Andy963/rsp4copilot-sub000/internal/util"
)

// Complete serves one completion request arriving in inboundMode. pathModel
// carries the model from the URL path for Gemini routes; forceStream is set
// for routes whose method implies streaming.
func (core *Core) Complete(c *gin.Context, inboundMode, pathModel string, forceStream bool) {
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
	if !gjson.ValidBytes(body) {
		body = []byte(util.FixJSON(string(body)))
		if !gjson.ValidBytes(body) {
			Fail(c, http.StatusBadRequest, TypeInvalidRequest, CodeBadRequest, "request body is not valid JSON")
			return
		}
	}
	if core.Settings.RequestLog {
		log.Debugf("inbound %s %s: %s", inboundMode, c.Request.URL.Path, body)
	}

	req := core.decode(inboundMode, pathModel, body)
	if forceStream {
		req.Stream = true
	}
	core.applyDefaultModel(req, inboundMode)
	if req.Model == "" {
		Fail(c, http.StatusBadRequest, TypeInvalidRequest, CodeBadRequest, "missing model")
		return
	}

	resolution, err := registry.Resolve(cfg, req.Model, c.Query("provider"))
	if err != nil {
		Fail(c, http.StatusBadRequest, TypeInvalidRequest, CodeInvalidRequest, err.Error())
		return
	}
	provider := resolution.Provider

	if looped := loopGuard(c.Request, provider); looped != "" {
		Fail(c, http.StatusInternalServerError, TypeServer, CodeServer,
			"infinite routing loop: provider "+provider.ID+" points at "+looped)
		return
	}
	if provider.UpstreamKey() == "" {
		Fail(c, http.StatusInternalServerError, TypeServer, CodeServer,
			"no upstream API key for provider "+provider.ID)
		return
	}

	trim.Request(req, trim.Limits{
		MaxTurns:      core.Settings.MaxTurns,
		MaxMessages:   core.Settings.MaxMessages,
		MaxInputChars: core.Settings.MaxInputChars,
	})

	token, _ := c.Get("inboundToken")
	inboundToken, _ := token.(string)
	sessionKey := cache.SessionKey(c.GetHeader("x-session-id"), inboundToken, body)

	opts := core.encodeOptions(resolution, req, sessionKey)
	upstreamBody := core.encode(provider.APIMode, req, opts)
	urls := upstream.SynthesizeURLs(provider, resolution.UpstreamModel(), req.Stream)
	headers := upstreamHeaders(provider)

	var variants [][]byte
	switch {
	case provider.APIMode == config.APIModeGemini && !req.Stream:
		variants = upstream.GeminiShrinkBodies(upstreamBody)
	case provider.APIMode == config.APIModeGemini:
		variants = [][]byte{upstreamBody}
	default:
		variants = upstream.Variants(upstreamBody, provider.APIMode)
	}

	reply, errMsg := core.Dispatcher.Dispatch(c.Request.Context(), urls, headers, variants, provider.APIMode, req.Stream)
	if errMsg != nil && provider.APIMode == config.APIModeGemini && !req.Stream {
		// JSON endpoint stayed empty; assemble the reply from the SSE one.
		streamURLs := upstream.SynthesizeURLs(provider, resolution.UpstreamModel(), true)
		reply, errMsg = core.Dispatcher.Dispatch(c.Request.Context(), streamURLs, headers, [][]byte{upstreamBody}, provider.APIMode, true)
	}
	if errMsg != nil {
		FailUpstream(c, errMsg)
		return
	}

	core.respond(c, inboundMode, resolution, reply, req, sessionKey)
}

func (core *Core) decode(inboundMode, pathModel string, body []byte) *translator.Request {
	switch inboundMode {
	case config.APIModeOpenAIResponses:
		return translator.FromOpenAIResponses(body)
	case config.APIModeClaude:
		return translator.FromClaude(body)
	case config.APIModeGemini:
		return translator.FromGemini(pathModel, body)
	default:
		return translator.FromOpenAIChat(body)
	}
}

func (core *Core) applyDefaultModel(req *translator.Request, inboundMode string) {
	if req.Model != "" {
		return
	}
	switch inboundMode {
	case config.APIModeClaude:
		req.Model = core.Settings.ClaudeDefaultModel
	case config.APIModeGemini:
		req.Model = core.Settings.GeminiDefaultModel
	}
}

func (core *Core) encodeOptions(resolution *registry.Resolution, req *translator.Request, sessionKey string) *translator.EncodeOptions {
	provider := resolution.Provider
	model := resolution.Model

	opts := &translator.EncodeOptions{
		UpstreamModel:         resolution.UpstreamModel(),
		ReasoningEffort:       core.Settings.ReasoningEffort,
		MaxInstructionsChars:  model.Options.MaxInstructionsChars,
		MaxTokens:             model.Options.MaxTokens,
		GeminiMaxOutputTokens: core.Settings.GeminiMaxOutputTokens,
		NoInstructions:        provider.Quirks.NoInstructions || model.Quirks.NoInstructions,
		NoPreviousResponseID:  provider.Quirks.NoPreviousResponseID || model.Quirks.NoPreviousResponseID,
	}
	if model.Options.ReasoningEffort != "" {
		opts.ReasoningEffort = model.Options.ReasoningEffort
	}

	switch provider.APIMode {
	case config.APIModeOpenAIResponses:
		if !req.Anchored && !opts.NoPreviousResponseID {
			opts.PreviousResponseID = core.Cache.PreviousResponseID(sessionKey)
		}
	case config.APIModeGemini:
		if cached := core.Cache.ThoughtSignatures(sessionKey); len(cached) > 0 {
			opts.ThoughtSignatures = make(map[string]string, len(cached))
			for callID, sig := range cached {
				opts.ThoughtSignatures[callID] = sig.Signature
			}
		}
	}
	return opts
}

func (core *Core) encode(apiMode string, req *translator.Request, opts *translator.EncodeOptions) []byte {
	switch apiMode {
	case config.APIModeOpenAIResponses:
		return translator.ToOpenAIResponses(req, opts)
	case config.APIModeClaude:
		return translator.ToClaude(req, opts)
	case config.APIModeGemini:
		return translator.ToGemini(req, opts)
	default:
		return translator.ToOpenAIChat(req, opts)
	}
}

func upstreamHeaders(provider *config.Provider) http.Header {
	headers := http.Header{}
	key := provider.UpstreamKey()
	switch provider.APIMode {
	case config.APIModeClaude:
		headers.Set("x-api-key", key)
		headers.Set("anthropic-version", "2023-06-01")
	case config.APIModeGemini:
		headers.Set("x-goog-api-key", key)
	default:
		headers.Set("Authorization", "Bearer "+key)
	}
	return headers
}

// loopGuard reports the offending base URL when a provider would route the
// request back into this gateway.
func loopGuard(request *http.Request, provider *config.Provider) string {
	host := request.Host
	if host == "" {
		return ""
	}
	for _, base := range provider.BaseURLs {
		parsed, err := url.Parse(base)
		if err != nil {
			continue
		}
		if !strings.EqualFold(parsed.Host, host) {
			continue
		}
		prefix := strings.TrimSuffix(parsed.Path, "/")
		if prefix == "" || strings.HasPrefix(request.URL.Path, prefix) {
			return base
		}
	}
	return ""
}

// respond translates the upstream reply into the inbound dialect, streaming
// or not, and persists session state once the reply is complete.
func (core *Core) respond(c *gin.Context, inboundMode string, resolution *registry.Resolution, reply *upstream.Reply, req *translator.Request, sessionKey string) {
	provider := resolution.Provider

	if reply.IsStream && !req.Stream {
		// Gemini SSE fallback for a JSON client.
		source, _ := core.newSource(provider.APIMode)
		chatJSON := stream.CollectCompletion(reply.Body, source)
		core.persistSession(provider.APIMode, sessionKey, chatJSON)
		core.writeJSON(c, inboundMode, chatJSON)
		return
	}

	if !reply.IsStream && !req.Stream {
		chatJSON := core.normalize(provider.APIMode, resolution, reply.JSON)
		core.persistSession(provider.APIMode, sessionKey, chatJSON)
		core.writeJSON(c, inboundMode, chatJSON)
		return
	}

	SSEHeaders(c)
	sink := core.newSink(inboundMode)
	send := func(frame string) bool {
		if _, err := c.Writer.WriteString(frame); err != nil {
			return false
		}
		c.Writer.Flush()
		return true
	}

	if !reply.IsStream {
		// Empty-SSE retry produced JSON; synthesize the stream.
		chatJSON := core.normalize(provider.APIMode, resolution, reply.JSON)
		core.persistSession(provider.APIMode, sessionKey, chatJSON)
		stream.PumpCompletion(chatJSON, sink, send, nil)
		return
	}

	source, state := core.newSource(provider.APIMode)
	fallback := func(raw []byte) string { return core.normalize(provider.APIMode, resolution, raw) }
	stream.Pump(c.Request.Context(), reply.Body, source, sink, send, nil, fallback)
	core.persistStreamSession(provider.APIMode, sessionKey, state)
}

func (core *Core) normalize(apiMode string, resolution *registry.Resolution, raw []byte) string {
	model := resolution.UpstreamModel()
	switch apiMode {
	case config.APIModeOpenAIResponses:
		return string(translator.NormalizeResponses(model, raw))
	case config.APIModeClaude:
		return string(translator.NormalizeClaude(model, raw))
	case config.APIModeGemini:
		return string(translator.NormalizeGemini(model, raw))
	default:
		return string(raw)
	}
}

func (core *Core) writeJSON(c *gin.Context, inboundMode, chatJSON string) {
	var out []byte
	switch inboundMode {
	case config.APIModeOpenAIResponses:
		out = translator.ToResponsesReply([]byte(chatJSON))
	case config.APIModeClaude:
		out = translator.ToClaudeReply([]byte(chatJSON))
	case config.APIModeGemini:
		out = translator.ToGeminiReply([]byte(chatJSON))
	default:
		out = []byte(chatJSON)
	}
	c.Data(http.StatusOK, "application/json", out)
}

func (core *Core) newSource(apiMode string) (translator.ChunkSource, interface{}) {
	switch apiMode {
	case config.APIModeOpenAIResponses:
		state := &translator.ResponsesStreamState{}
		return translator.NewResponsesSource(state), state
	case config.APIModeClaude:
		state := &translator.ClaudeStreamState{}
		return translator.NewClaudeSource(state), state
	case config.APIModeGemini:
		state := &translator.GeminiStreamState{}
		return translator.NewGeminiSource(state), state
	default:
		state := &translator.ChatStreamState{}
		return state, state
	}
}

func (core *Core) newSink(inboundMode string) translator.FrameSink {
	switch inboundMode {
	case config.APIModeOpenAIResponses:
		return translator.NewResponsesSink()
	case config.APIModeClaude:
		return translator.NewClaudeSink()
	case config.APIModeGemini:
		return translator.NewGeminiSink()
	default:
		return translator.NewChatSink()
	}
}

// persistSession stores linkage material mined from a completed chat
// completion intermediate.
func (core *Core) persistSession(apiMode, sessionKey, chatJSON string) {
	switch apiMode {
	case config.APIModeOpenAIResponses:
		if id := gjson.Get(chatJSON, "id").String(); strings.HasPrefix(id, "resp_") {
			core.Cache.PutPreviousResponseID(sessionKey, id)
		}
	case config.APIModeGemini:
		updates := map[string]cache.ThoughtSignature{}
		gjson.Get(chatJSON, "choices.0.message.tool_calls").ForEach(func(_, call gjson.Result) bool {
			signature := call.Get("thought_signature").String()
			if signature == "" {
				return true
			}
			updates[call.Get("id").String()] = cache.ThoughtSignature{
				Signature: signature,
				Name:      call.Get("function.name").String(),
			}
			return true
		})
		core.Cache.PutThoughtSignatures(sessionKey, updates)
	}
}

// persistStreamSession stores linkage material after a pumped stream ends.
func (core *Core) persistStreamSession(apiMode, sessionKey string, state interface{}) {
	switch apiMode {
	case config.APIModeOpenAIResponses:
		if st, ok := state.(*translator.ResponsesStreamState); ok && strings.HasPrefix(st.ID, "resp_") {
			core.Cache.PutPreviousResponseID(sessionKey, st.ID)
		}
	case config.APIModeGemini:
		st, ok := state.(*translator.GeminiStreamState)
		if !ok || len(st.Signatures) == 0 {
			return
		}
		updates := map[string]cache.ThoughtSignature{}
		for callID, signature := range st.Signatures {
			updates[callID] = cache.ThoughtSignature{Signature: signature, Name: st.CallNames[callID]}
		}
		core.Cache.PutThoughtSignatures(sessionKey, updates)
	}
}

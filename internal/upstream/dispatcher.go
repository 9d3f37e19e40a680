package upstream

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/Andy963/rsp4copilot-sub000/internal/config"
	"github.com/Andy963/rsp4copilot-sub000/internal/util"
)

// Reply is one successful upstream response. Stream replies carry an open
// Body the caller must close; non-stream replies are fully read into JSON.
type Reply struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
	JSON       []byte
	IsStream   bool
}

// Dispatcher posts encoded bodies to candidate URLs, walking URL and
// variant lists in order and preserving the first error observed when
// everything fails.
type Dispatcher struct {
	Client  *http.Client
	Breaker *Breaker
}

// NewDispatcher builds a dispatcher with a streaming-friendly client.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		Client: &http.Client{Timeout: 0, Transport: &http.Transport{
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
		}},
	}
}

// fatalBodyPatterns mark a 400/422 as a path or auth problem rather than a
// body-shape problem; switching variants cannot fix those.
var fatalBodyPatterns = []string{
	"not found",
	"unauthorized",
	"invalid api key",
	"invalid_api_key",
	"model_not_found",
	"does not exist",
	"no route",
	"unknown path",
}

func variantRetryable(status int, body string) bool {
	if status != http.StatusBadRequest && status != http.StatusUnprocessableEntity {
		return false
	}
	lower := strings.ToLower(body)
	for _, pattern := range fatalBodyPatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}
	return true
}

func urlRetryable(status int) bool {
	switch status {
	case http.StatusForbidden, http.StatusNotFound,
		http.StatusMethodNotAllowed, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	}
	return false
}

type firstError struct {
	err *ErrorMessage
	// echo is true when the recorded status should be surfaced as-is rather
	// than folded into a 502.
	echo bool
}

func (f *firstError) record(status int, body string, echo bool) {
	if f.err != nil {
		return
	}
	f.err = &ErrorMessage{StatusCode: status, Body: body}
	f.echo = echo
}

func (f *firstError) result() *ErrorMessage {
	if f.err == nil {
		return NewError(http.StatusBadGateway, "all upstream endpoints failed")
	}
	if !f.echo {
		f.err.StatusCode = http.StatusBadGateway
	}
	return f.err
}

// Dispatch tries every URL and variant in order and returns the first
// usable reply. wantStream selects SSE handling: empty event streams are
// detected and retried as JSON before the variant is abandoned.
func (d *Dispatcher) Dispatch(ctx context.Context, urls []string, headers http.Header, variants [][]byte, apiMode string, wantStream bool) (*Reply, *ErrorMessage) {
	failure := &firstError{}

	for _, url := range urls {
		if !d.Breaker.Allow(url) {
			log.Debugf("skipping %s: circuit open", url)
			continue
		}
		for _, body := range variants {
			reply, errMsg, nextURL := d.attempt(ctx, url, headers, body, apiMode, wantStream)
			if reply != nil {
				d.Breaker.Success(url)
				return reply, nil
			}
			if errMsg != nil {
				failure.record(errMsg.StatusCode, errMsg.Body, errMsg.echo)
			}
			d.Breaker.Failure(url)
			if nextURL {
				break
			}
		}
	}
	return nil, failure.result()
}

// attempt posts one body to one URL. nextURL reports that further variants
// against this URL are pointless.
func (d *Dispatcher) attempt(ctx context.Context, url string, headers http.Header, body []byte, apiMode string, wantStream bool) (*Reply, *ErrorMessage, bool) {
	response, err := d.post(ctx, url, headers, body, "")
	if err != nil {
		log.Debugf("POST %s: %v", url, err)
		return nil, &ErrorMessage{StatusCode: http.StatusBadGateway, Err: err}, true
	}

	if response.StatusCode >= 400 {
		defer response.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(response.Body, 1<<20))
		errMsg := &ErrorMessage{StatusCode: response.StatusCode, Body: string(data)}
		if variantRetryable(response.StatusCode, string(data)) {
			return nil, errMsg, false
		}
		// Neither shape-retryable nor routing-retryable: echo the status.
		errMsg.echo = !urlRetryable(response.StatusCode)
		return nil, errMsg, true
	}

	contentType := response.Header.Get("Content-Type")
	if wantStream && strings.Contains(contentType, "text/event-stream") {
		probed, empty := ProbeStream(response.Body)
		if !empty {
			return &Reply{
				StatusCode: response.StatusCode,
				Header:     response.Header,
				Body:       probed,
				IsStream:   true,
			}, nil, false
		}
		log.Debugf("empty event stream from %s, retrying as JSON", util.HideAPIKey(url))
		return d.retryAsJSON(ctx, url, headers, body, apiMode)
	}

	defer response.Body.Close()
	data, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return nil, &ErrorMessage{StatusCode: http.StatusBadGateway, Err: readErr}, true
	}
	if apiMode == config.APIModeGemini && emptyGeminiReply(data) {
		return nil, &ErrorMessage{StatusCode: http.StatusBadGateway, Body: "empty candidates from upstream"}, false
	}
	return &Reply{
		StatusCode: response.StatusCode,
		Header:     response.Header,
		JSON:       data,
	}, nil, false
}

// retryAsJSON re-sends the same variant with stream:false and an explicit
// JSON accept header, then once more with stream absent.
func (d *Dispatcher) retryAsJSON(ctx context.Context, url string, headers http.Header, body []byte, apiMode string) (*Reply, *ErrorMessage, bool) {
	jsonURL := url
	if apiMode == config.APIModeGemini {
		jsonURL = strings.Replace(strings.Split(url, "?")[0], ":streamGenerateContent", ":generateContent", 1)
	}

	noStream, _ := sjson.SetBytes(body, "stream", false)
	stripped, _ := sjson.DeleteBytes(body, "stream")

	var firstErr *ErrorMessage
	for _, retryBody := range [][]byte{noStream, stripped} {
		response, err := d.post(ctx, jsonURL, headers, retryBody, "application/json")
		if err != nil {
			if firstErr == nil {
				firstErr = &ErrorMessage{StatusCode: http.StatusBadGateway, Err: err}
			}
			continue
		}
		data, readErr := io.ReadAll(response.Body)
		response.Body.Close()
		if readErr != nil || response.StatusCode >= 400 || len(bytes.TrimSpace(data)) == 0 {
			if firstErr == nil {
				firstErr = &ErrorMessage{StatusCode: response.StatusCode, Body: string(data), Err: readErr}
			}
			continue
		}
		if apiMode == config.APIModeGemini && emptyGeminiReply(data) {
			if firstErr == nil {
				firstErr = &ErrorMessage{StatusCode: http.StatusBadGateway, Body: "empty candidates from upstream"}
			}
			continue
		}
		return &Reply{StatusCode: response.StatusCode, Header: response.Header, JSON: data}, nil, false
	}
	if firstErr == nil {
		firstErr = NewError(http.StatusBadGateway, "empty event stream and JSON retry failed")
	}
	return nil, firstErr, false
}

func (d *Dispatcher) post(ctx context.Context, url string, headers http.Header, body []byte, accept string) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for key, values := range headers {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}
	request.Header.Set("Content-Type", "application/json")
	if accept != "" {
		request.Header.Set("Accept", accept)
	}
	return d.Client.Do(request)
}

// emptyGeminiReply reports a structurally valid reply with no usable
// content: no parts and no function calls in the first candidate.
func emptyGeminiReply(data []byte) bool {
	root := gjson.ParseBytes(data)
	if !root.Get("candidates").Exists() {
		return true
	}
	parts := root.Get("candidates.0.content.parts")
	if !parts.Exists() || len(parts.Array()) == 0 {
		return true
	}
	return false
}

// GeminiShrinkBodies expands a Gemini JSON body into the retry ladder used
// when upstreams silently return empty candidates: the original, then
// maxOutputTokens clamped to 8192, 4096 and 2048, then the thinkingConfig
// removed.
func GeminiShrinkBodies(body []byte) [][]byte {
	out := [][]byte{body}
	for _, limit := range []int64{8192, 4096, 2048} {
		if gjson.GetBytes(body, "generationConfig.maxOutputTokens").Int() == limit {
			continue
		}
		shrunk, _ := sjson.SetBytes(body, "generationConfig.maxOutputTokens", limit)
		out = append(out, shrunk)
	}
	if gjson.GetBytes(body, "generationConfig.thinkingConfig").Exists() {
		stripped, _ := sjson.DeleteBytes(body, "generationConfig.thinkingConfig")
		out = append(out, stripped)
	}
	return out
}

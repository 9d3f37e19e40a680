// Package stream moves SSE bytes from an upstream body to a client
// connection while translating dialects chunk by chunk. The reader goroutine
// and the writer loop are connected by a channel so a slow client
// backpressures the upstream read.
package stream

import (
	"bufio"
	"context"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/Andy963/rsp4copilot-sub000/internal/translator"
)

const (
	scannerInitialBuffer = 1024 * 1024
	scannerMaxBuffer     = 10 * 1024 * 1024
)

// Pump drains an upstream SSE body through source and sink until the stream
// finishes, the upstream closes, or ctx is cancelled. Each chat completion
// chunk passes through onChunk before the sink sees it, so callers can mine
// session state. send returns false when the client is gone.
//
// Upstreams that close early still produce a terminal chunk; the sink's
// Close frames are always flushed, so a chat client sees exactly one
// finish_reason chunk and one [DONE].
//
// Some upstreams answer an event-stream request with a whole JSON object
// under the stream content type. When no data: line is ever observed and the
// buffered body is JSON, it is handed to fallback, which converts the
// upstream reply into a chat completion; its synthetic chunks then replay
// through the sink.
func Pump(ctx context.Context, body io.ReadCloser, source translator.ChunkSource, sink translator.FrameSink, send func(frame string) bool, onChunk func(chunk string), fallback func(raw []byte) string) {
	defer body.Close()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, scannerInitialBuffer), scannerMaxBuffer)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	clientGone := false
	sawData := false
	var rawBody strings.Builder
	deliver := func(chunk string) bool {
		if onChunk != nil {
			onChunk(chunk)
		}
		for _, frame := range sink.Feed(chunk) {
			if !send(frame) {
				return false
			}
		}
		return true
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						log.Debugf("upstream stream read: %v", err)
					}
				default:
				}
				break loop
			}
			if !strings.HasPrefix(line, "data:") {
				if !sawData {
					rawBody.WriteString(line)
					rawBody.WriteByte('\n')
				}
				continue
			}
			sawData = true
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				continue
			}
			if payload == "[DONE]" {
				break loop
			}
			for _, chunk := range source.Feed([]byte(payload)) {
				if !deliver(chunk) {
					clientGone = true
					break loop
				}
			}
			if source.Finished() {
				break loop
			}
		}
	}

	if clientGone || ctx.Err() != nil {
		return
	}

	if !sawData && fallback != nil {
		if buffered := strings.TrimSpace(rawBody.String()); buffered != "" && gjson.Valid(buffered) {
			for _, chunk := range ChunksFromCompletion(fallback([]byte(buffered))) {
				if !deliver(chunk) {
					return
				}
			}
			for _, frame := range sink.Close() {
				if !send(frame) {
					return
				}
			}
			return
		}
	}

	if terminal := source.Terminal(); terminal != "" {
		if !deliver(terminal) {
			return
		}
	}
	for _, frame := range sink.Close() {
		if !send(frame) {
			return
		}
	}
}

// PumpCompletion streams a non-streaming chat completion as synthetic
// chunks. Used when an empty event stream forced a JSON retry but the
// client asked for a stream.
func PumpCompletion(chatJSON string, sink translator.FrameSink, send func(frame string) bool, onChunk func(chunk string)) {
	for _, chunk := range ChunksFromCompletion(chatJSON) {
		if onChunk != nil {
			onChunk(chunk)
		}
		for _, frame := range sink.Feed(chunk) {
			if !send(frame) {
				return
			}
		}
	}
	for _, frame := range sink.Close() {
		if !send(frame) {
			return
		}
	}
}

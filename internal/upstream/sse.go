package upstream

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// emptyStreamDeadline bounds how long the dispatcher waits for the first
// bytes of a 200 text/event-stream body before declaring it empty. Some
// gateways return an immediately-open stream that never produces an event.
const emptyStreamDeadline = 150 * time.Millisecond

type probeRead struct {
	data []byte
	err  error
}

// probedBody replays the probed prefix before continuing from the
// underlying body.
type probedBody struct {
	reader io.Reader
	closer io.Closer
}

func (b *probedBody) Read(p []byte) (int, error) { return b.reader.Read(p) }
func (b *probedBody) Close() error               { return b.closer.Close() }

// ProbeStream reads the first chunk of body within the empty-stream
// deadline. It returns a replacement body that replays what was read, and
// whether the stream produced anything meaningful in time. A stream whose
// only content is a done marker without any data counts as empty.
//
// On timeout the body is abandoned; the caller must not reuse it.
func ProbeStream(body io.ReadCloser) (io.ReadCloser, bool) {
	reads := make(chan probeRead, 1)
	go func() {
		buf := make([]byte, 4096)
		n, err := body.Read(buf)
		reads <- probeRead{data: buf[:n], err: err}
	}()

	timer := time.NewTimer(emptyStreamDeadline)
	defer timer.Stop()

	select {
	case first := <-reads:
		if len(first.data) == 0 || emptyStreamPrefix(first.data) {
			body.Close()
			return nil, true
		}
		reader := io.MultiReader(bytes.NewReader(first.data), body)
		if first.err != nil {
			reader = bytes.NewReader(first.data)
		}
		return &probedBody{reader: reader, closer: body}, false
	case <-timer.C:
		go func() {
			<-reads
			body.Close()
		}()
		return nil, true
	}
}

// emptyStreamPrefix reports whether the prefix contains only termination
// markers: [DONE] sentinels or {done:true} payloads with no actual content.
// Bytes that are not data lines (comments, heartbeats) do not make a stream
// empty on their own.
func emptyStreamPrefix(prefix []byte) bool {
	sawMarker := false
	for _, line := range strings.Split(string(prefix), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			sawMarker = true
			continue
		}
		parsed := gjson.Parse(payload)
		if parsed.Get("done").Bool() && !parsed.Get("choices").Exists() &&
			!parsed.Get("candidates").Exists() && !parsed.Get("output").Exists() {
			sawMarker = true
			continue
		}
		return false
	}
	return sawMarker
}

package translator

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// maxInlineImageBytes caps remote image inlining.
const maxInlineImageBytes = 8 << 20

// imageFetcher downloads remote images for inlining. Swappable in tests.
var imageFetcher = &http.Client{Timeout: 20 * time.Second}

// AppendContent normalizes one heterogeneous content value into pivot parts.
// Accepted shapes: a plain string; {type:text|input_text|output_text, text};
// {type:image_url|input_image, image_url:<string|{url}>}; Claude
// {type:image, source:{type:base64, media_type, data}}; Gemini
// {text} / {inlineData:{mimeType,data}}; or an array mixing any of these.
func AppendContent(parts []Part, content gjson.Result) []Part {
	if !content.Exists() {
		return parts
	}
	if content.Type == gjson.String {
		return append(parts, TextPart(content.String()))
	}
	if content.IsArray() {
		content.ForEach(func(_, item gjson.Result) bool {
			parts = AppendContent(parts, item)
			return true
		})
		return parts
	}
	if !content.IsObject() {
		return parts
	}

	switch content.Get("type").String() {
	case "text", "input_text", "output_text":
		return append(parts, TextPart(content.Get("text").String()))
	case "refusal":
		return append(parts, TextPart(content.Get("refusal").String()))
	case "image_url", "input_image":
		if part, ok := imageFromURLField(content); ok {
			return append(parts, part)
		}
		return parts
	case "image":
		source := content.Get("source")
		if source.Get("type").String() == "base64" {
			return append(parts, ImagePart(source.Get("media_type").String(), source.Get("data").String()))
		}
		if url := source.Get("url").String(); url != "" {
			if part, ok := imageFromURL(url); ok {
				return append(parts, part)
			}
		}
		return parts
	}

	// Gemini-shaped parts carry no type tag.
	if text := content.Get("text"); text.Exists() {
		return append(parts, TextPart(text.String()))
	}
	for _, key := range []string{"inlineData", "inline_data"} {
		if inline := content.Get(key); inline.Exists() {
			mime := inline.Get("mimeType").String()
			if mime == "" {
				mime = inline.Get("mime_type").String()
			}
			return append(parts, ImagePart(mime, inline.Get("data").String()))
		}
	}
	return parts
}

// imageFromURLField reads the image_url field of an OpenAI-style part, which
// may be a bare string or an object with url plus base64 spellings.
func imageFromURLField(content gjson.Result) (Part, bool) {
	field := content.Get("image_url")
	if field.Type == gjson.String {
		return imageFromURL(field.String())
	}
	if field.IsObject() {
		if url := field.Get("url").String(); url != "" {
			return imageFromURL(url)
		}
	}
	for _, key := range []string{"base64", "b64", "b64_json", "data", "image_base64"} {
		source := content.Get(key)
		if !source.Exists() && field.IsObject() {
			source = field.Get(key)
		}
		if source.Exists() && source.String() != "" {
			mime := content.Get("mime_type").String()
			if mime == "" {
				mime = "image/png"
			}
			return ImagePart(mime, source.String()), true
		}
	}
	return Part{}, false
}

// imageFromURL decodes a data: URL or inlines a remote http(s) image. Failed
// fetches drop the part.
func imageFromURL(url string) (Part, bool) {
	if mime, data, ok := ParseDataURL(url); ok {
		return ImagePart(mime, data), true
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		if mime, data, ok := fetchRemoteImage(url); ok {
			return ImagePart(mime, data), true
		}
	}
	return Part{}, false
}

// ParseDataURL splits "data:<mime>;base64,<payload>" into its mime type and
// payload.
func ParseDataURL(url string) (mimeType, data string, ok bool) {
	if !strings.HasPrefix(url, "data:") {
		return "", "", false
	}
	rest := url[len("data:"):]
	comma := strings.Index(rest, ",")
	if comma < 0 {
		return "", "", false
	}
	meta, payload := rest[:comma], rest[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return "", "", false
	}
	mimeType = strings.TrimSuffix(meta, ";base64")
	if mimeType == "" {
		mimeType = "image/png"
	}
	return mimeType, payload, true
}

func fetchRemoteImage(url string) (mimeType, data string, ok bool) {
	resp, err := imageFetcher.Get(url)
	if err != nil {
		log.Debugf("image inline: fetch failed for %s: %v", url, err)
		return "", "", false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Debugf("image inline: %s returned %d", url, resp.StatusCode)
		return "", "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxInlineImageBytes+1))
	if err != nil || len(body) == 0 || len(body) > maxInlineImageBytes {
		return "", "", false
	}

	mimeType = resp.Header.Get("Content-Type")
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(body)
	}
	return mimeType, base64.StdEncoding.EncodeToString(body), true
}

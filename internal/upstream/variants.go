package upstream

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/Andy963/rsp4copilot-sub000/internal/config"
)

// Variants expands one canonical body into an ordered, deduplicated list of
// request bodies that tolerate upstream quirks. Each variant differs from
// the canonical body in exactly one axis; the canonical body is always
// first. Real gateways disagree on field names and shapes, and a 400 from
// one shape often succeeds with another.
func Variants(body []byte, apiMode string) [][]byte {
	canonical := string(body)
	ordered := []string{canonical}

	add := func(variant string, ok bool) {
		if ok && variant != "" {
			ordered = append(ordered, variant)
		}
	}

	if apiMode == config.APIModeOpenAIResponses {
		add(swapTokenField(canonical, "max_output_tokens", "max_tokens"))
		add(swapInstructions(canonical))
		add(flattenInputContent(canonical))
		add(singlePromptInput(canonical))
		add(swapImageURLShape(canonical))
	} else {
		add(swapTokenField(canonical, "max_tokens", "max_output_tokens"))
	}
	add(swapReasoningShape(canonical))
	add(stripReasoning(canonical))
	add(stripOperationalFields(canonical))

	seen := map[string]bool{}
	var out [][]byte
	for _, variant := range ordered {
		if seen[variant] {
			continue
		}
		seen[variant] = true
		out = append(out, []byte(variant))
	}
	return out
}

// swapTokenField renames the output-token cap between the Responses and
// Chat spellings.
func swapTokenField(body, from, to string) (string, bool) {
	value := gjson.Get(body, from)
	if !value.Exists() {
		return "", false
	}
	out, _ := sjson.Delete(body, from)
	out, _ = sjson.Set(out, to, value.Int())
	return out, true
}

// swapInstructions moves instructions between the dedicated field and a
// leading system input item.
func swapInstructions(body string) (string, bool) {
	if instructions := gjson.Get(body, "instructions"); instructions.Exists() {
		out, _ := sjson.Delete(body, "instructions")
		item := `{"role":"system","content":[{"type":"input_text","text":""}]}`
		item, _ = sjson.Set(item, "content.0.text", instructions.String())
		items := "[" + item
		gjson.Get(body, "input").ForEach(func(_, existing gjson.Result) bool {
			items += "," + existing.Raw
			return true
		})
		out, _ = sjson.SetRaw(out, "input", items+"]")
		return out, true
	}

	first := gjson.Get(body, "input.0")
	if first.Get("role").String() != "system" {
		return "", false
	}
	text := inputItemText(first)
	if text == "" {
		return "", false
	}
	out, _ := sjson.Set(body, "instructions", text)
	out, _ = sjson.Delete(out, "input.0")
	return out, true
}

func inputItemText(item gjson.Result) string {
	content := item.Get("content")
	if content.Type == gjson.String {
		return content.String()
	}
	var text string
	content.ForEach(func(_, part gjson.Result) bool {
		text += part.Get("text").String()
		return true
	})
	return text
}

// flattenInputContent rewrites structured content arrays as plain strings.
// Only applies when the input carries no images and no tool items.
func flattenInputContent(body string) (string, bool) {
	input := gjson.Get(body, "input")
	if !input.IsArray() || hasImagesOrTools(input) {
		return "", false
	}
	out := body
	changed := false
	input.ForEach(func(index, item gjson.Result) bool {
		content := item.Get("content")
		if !content.IsArray() {
			return true
		}
		out, _ = sjson.Set(out, "input."+index.String()+".content", inputItemText(item))
		changed = true
		return true
	})
	return out, changed
}

// singlePromptInput fabricates one "role: content" prompt string from the
// whole input. Only applies when the input carries no images and no tool
// items.
func singlePromptInput(body string) (string, bool) {
	input := gjson.Get(body, "input")
	if !input.IsArray() || hasImagesOrTools(input) {
		return "", false
	}
	var lines []string
	input.ForEach(func(_, item gjson.Result) bool {
		role := item.Get("role").String()
		if role == "" {
			return true
		}
		lines = append(lines, role+": "+inputItemText(item))
		return true
	})
	if len(lines) == 0 {
		return "", false
	}
	out, _ := sjson.Set(body, "input", strings.Join(lines, "\n\n"))
	return out, true
}

func hasImagesOrTools(input gjson.Result) bool {
	found := false
	input.ForEach(func(_, item gjson.Result) bool {
		switch item.Get("type").String() {
		case "function_call", "function_call_output":
			found = true
			return false
		}
		item.Get("content").ForEach(func(_, part gjson.Result) bool {
			if part.Get("type").String() == "input_image" {
				found = true
				return false
			}
			return true
		})
		return !found
	})
	return found
}

// swapImageURLShape toggles input_image.image_url between string and {url}
// object forms.
func swapImageURLShape(body string) (string, bool) {
	out := body
	changed := false
	gjson.Get(body, "input").ForEach(func(itemIndex, item gjson.Result) bool {
		item.Get("content").ForEach(func(partIndex, part gjson.Result) bool {
			if part.Get("type").String() != "input_image" {
				return true
			}
			path := "input." + itemIndex.String() + ".content." + partIndex.String() + ".image_url"
			imageURL := part.Get("image_url")
			if imageURL.Type == gjson.String {
				out, _ = sjson.Set(out, path+".url", imageURL.String())
			} else if url := imageURL.Get("url"); url.Exists() {
				out, _ = sjson.Set(out, path, url.String())
			} else {
				return true
			}
			changed = true
			return true
		})
		return true
	})
	return out, changed
}

// swapReasoningShape toggles between reasoning:{effort} and
// reasoning_effort:"…".
func swapReasoningShape(body string) (string, bool) {
	if effort := gjson.Get(body, "reasoning.effort"); effort.Exists() {
		out, _ := sjson.Delete(body, "reasoning")
		out, _ = sjson.Set(out, "reasoning_effort", effort.String())
		return out, true
	}
	if effort := gjson.Get(body, "reasoning_effort"); effort.Exists() {
		out, _ := sjson.Delete(body, "reasoning_effort")
		out, _ = sjson.Set(out, "reasoning.effort", effort.String())
		return out, true
	}
	return "", false
}

// stripReasoning removes the reasoning request entirely.
func stripReasoning(body string) (string, bool) {
	changed := false
	out := body
	for _, field := range []string{"reasoning", "reasoning_effort"} {
		if gjson.Get(out, field).Exists() {
			out, _ = sjson.Delete(out, field)
			changed = true
		}
	}
	return out, changed
}

// stripOperationalFields drops fields some gateways reject outright.
func stripOperationalFields(body string) (string, bool) {
	changed := false
	out := body
	for _, field := range []string{"prompt_cache_retention", "safety_identifier"} {
		if gjson.Get(out, field).Exists() {
			out, _ = sjson.Delete(out, field)
			changed = true
		}
	}
	return out, changed
}

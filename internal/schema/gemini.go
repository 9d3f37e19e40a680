// Package schema down-converts JSON Schema documents to the OpenAPI-3 subset
// accepted by Gemini function declarations. Unsupported constructs are merged
// away or dropped rather than forwarded, because Gemini rejects whole tool
// declarations over a single unknown field.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Keys Gemini does not understand. Dropped at every nesting level.
var droppedKeys = map[string]bool{
	"additionalProperties": true,
	"patternProperties":    true,
	"dependencies":         true,
	"definitions":          true,
	"$defs":                true,
	"$schema":              true,
	"$id":                  true,
	"examples":             true,
	"default":              true,
	"title":                true,
	"const":                true,
	"contentEncoding":      true,
	"contentMediaType":     true,
	"if":                   true,
	"then":                 true,
	"else":                 true,
	"not":                  true,
}

// Integer-bounded fields that Gemini expects as int64-convention strings.
var stringifiedBounds = map[string]bool{
	"minItems":      true,
	"maxItems":      true,
	"minLength":     true,
	"maxLength":     true,
	"minProperties": true,
	"maxProperties": true,
}

// ToGemini converts a JSON Schema document to Gemini's schema dialect. The
// input and output are raw JSON. Invalid input returns "{}".
func ToGemini(schemaJSON []byte) []byte {
	var root interface{}
	if err := json.Unmarshal(schemaJSON, &root); err != nil {
		return []byte("{}")
	}
	doc, _ := root.(map[string]interface{})
	converted := convertNode(root, doc, map[string]bool{})
	out, err := json.Marshal(converted)
	if err != nil {
		return []byte("{}")
	}
	return out
}

func convertNode(node interface{}, doc map[string]interface{}, visiting map[string]bool) interface{} {
	obj, ok := node.(map[string]interface{})
	if !ok {
		return node
	}

	// Inline a same-document $ref, shallowly merged with the sibling keys of
	// the referencing node. The ref stays marked while its subtree converts
	// so self-referential definitions terminate as empty objects.
	if ref, isRef := obj["$ref"].(string); isRef && doc != nil {
		if visiting[ref] {
			return map[string]interface{}{}
		}
		if target := lookupPointer(doc, ref); target != nil {
			visiting[ref] = true
			defer delete(visiting, ref)
			merged := make(map[string]interface{}, len(target)+len(obj))
			for k, v := range target {
				merged[k] = v
			}
			for k, v := range obj {
				if k != "$ref" {
					merged[k] = v
				}
			}
			return convertNode(merged, doc, visiting)
		}
	}

	obj = mergeAllOf(obj, doc, visiting)

	out := make(map[string]interface{}, len(obj))

	// A two-branch anyOf/oneOf where one side is {"type":"null"} becomes the
	// other branch with nullable set.
	for _, unionKey := range []string{"anyOf", "oneOf"} {
		branches, isList := obj[unionKey].([]interface{})
		if !isList {
			continue
		}
		if len(branches) == 2 {
			if other, nullable := splitNullBranch(branches); nullable {
				inlined := convertNode(other, doc, visiting)
				if inlinedObj, isObj := inlined.(map[string]interface{}); isObj {
					inlinedObj["nullable"] = true
					return inlinedObj
				}
			}
		}
		var converted []interface{}
		for _, branch := range branches {
			if isNullType(branch) {
				out["nullable"] = true
				continue
			}
			converted = append(converted, convertNode(branch, doc, visiting))
		}
		if len(converted) == 1 {
			if single, isObj := converted[0].(map[string]interface{}); isObj {
				for k, v := range out {
					single[k] = v
				}
				return single
			}
		}
		if converted != nil {
			out["anyOf"] = converted
		}
	}

	for key, value := range obj {
		if droppedKeys[key] || key == "anyOf" || key == "oneOf" || key == "allOf" || key == "$ref" {
			continue
		}
		switch key {
		case "type":
			applyType(out, value)
		case "properties":
			props, isObj := value.(map[string]interface{})
			if !isObj {
				continue
			}
			converted := make(map[string]interface{}, len(props))
			for name, prop := range props {
				converted[name] = convertNode(prop, doc, visiting)
			}
			out["properties"] = converted
		case "items":
			out["items"] = convertNode(value, doc, visiting)
		case "exclusiveMinimum":
			applyExclusiveBound(out, obj, value, true)
		case "exclusiveMaximum":
			applyExclusiveBound(out, obj, value, false)
		case "minimum", "maximum":
			if _, present := out[key]; !present {
				out[key] = value
			}
		default:
			if stringifiedBounds[key] {
				if n, isNum := value.(float64); isNum {
					out[key] = strconv.FormatInt(int64(n), 10)
				}
				continue
			}
			out[key] = value
		}
	}

	if _, hasType := out["type"]; !hasType {
		if _, hasProps := out["properties"]; hasProps {
			out["type"] = "OBJECT"
		}
	}

	return out
}

// resolveRef inlines a same-document $ref for allOf branches, shallowly
// merged with the sibling keys of the referencing node. Cycles resolve to an
// empty object.
func resolveRef(obj, doc map[string]interface{}, visiting map[string]bool) map[string]interface{} {
	ref, ok := obj["$ref"].(string)
	if !ok || doc == nil {
		return obj
	}
	if visiting[ref] {
		return map[string]interface{}{}
	}
	target := lookupPointer(doc, ref)
	if target == nil {
		return obj
	}
	visiting[ref] = true
	defer delete(visiting, ref)

	merged := make(map[string]interface{}, len(target)+len(obj))
	for k, v := range target {
		merged[k] = v
	}
	for k, v := range obj {
		if k == "$ref" {
			continue
		}
		merged[k] = v
	}
	return resolveRef(merged, doc, visiting)
}

func lookupPointer(doc map[string]interface{}, ref string) map[string]interface{} {
	if !strings.HasPrefix(ref, "#/") {
		return nil
	}
	var node interface{} = doc
	for _, segment := range strings.Split(ref[2:], "/") {
		segment = strings.ReplaceAll(strings.ReplaceAll(segment, "~1", "/"), "~0", "~")
		obj, ok := node.(map[string]interface{})
		if !ok {
			return nil
		}
		node = obj[segment]
	}
	result, _ := node.(map[string]interface{})
	return result
}

// mergeAllOf folds allOf branches into the parent: properties and required
// are unioned, scalar keys take the first definition.
func mergeAllOf(obj, doc map[string]interface{}, visiting map[string]bool) map[string]interface{} {
	branches, ok := obj["allOf"].([]interface{})
	if !ok {
		return obj
	}

	merged := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		if k != "allOf" {
			merged[k] = v
		}
	}
	for _, branch := range branches {
		branchObj, isObj := branch.(map[string]interface{})
		if !isObj {
			continue
		}
		branchObj = resolveRef(branchObj, doc, visiting)
		for k, v := range branchObj {
			switch k {
			case "properties":
				existing, _ := merged["properties"].(map[string]interface{})
				incoming, _ := v.(map[string]interface{})
				union := make(map[string]interface{}, len(existing)+len(incoming))
				for pk, pv := range existing {
					union[pk] = pv
				}
				for pk, pv := range incoming {
					if _, present := union[pk]; !present {
						union[pk] = pv
					}
				}
				merged["properties"] = union
			case "required":
				merged["required"] = unionStrings(merged["required"], v)
			default:
				if _, present := merged[k]; !present {
					merged[k] = v
				}
			}
		}
	}
	return merged
}

func unionStrings(a, b interface{}) []interface{} {
	seen := map[string]bool{}
	var out []interface{}
	for _, list := range []interface{}{a, b} {
		items, ok := list.([]interface{})
		if !ok {
			continue
		}
		for _, item := range items {
			s, isStr := item.(string)
			if !isStr || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func splitNullBranch(branches []interface{}) (other interface{}, ok bool) {
	if isNullType(branches[0]) && !isNullType(branches[1]) {
		return branches[1], true
	}
	if isNullType(branches[1]) && !isNullType(branches[0]) {
		return branches[0], true
	}
	return nil, false
}

func isNullType(node interface{}) bool {
	obj, ok := node.(map[string]interface{})
	if !ok {
		return false
	}
	t, _ := obj["type"].(string)
	return t == "null"
}

// applyType handles both string types and union arrays. "null" members set
// nullable and are dropped from the union.
func applyType(out map[string]interface{}, value interface{}) {
	switch typed := value.(type) {
	case string:
		if typed == "null" {
			out["nullable"] = true
			return
		}
		out["type"] = strings.ToUpper(typed)
	case []interface{}:
		var kept string
		for _, member := range typed {
			s, ok := member.(string)
			if !ok {
				continue
			}
			if s == "null" {
				out["nullable"] = true
				continue
			}
			if kept == "" || s == "string" {
				kept = s
			}
		}
		if kept != "" {
			out["type"] = strings.ToUpper(kept)
		}
	}
}

// applyExclusiveBound converts exclusiveMinimum/exclusiveMaximum (numeric or
// draft-4 boolean form) to an inclusive bound. Integers bump by one, floats
// by a relative epsilon.
func applyExclusiveBound(out, obj map[string]interface{}, value interface{}, isMin bool) {
	inclusiveKey := "maximum"
	if isMin {
		inclusiveKey = "minimum"
	}

	var bound float64
	switch typed := value.(type) {
	case float64:
		bound = typed
	case bool:
		// Draft-4: exclusive* is a flag on minimum/maximum.
		if !typed {
			return
		}
		base, ok := obj[inclusiveKey].(float64)
		if !ok {
			return
		}
		bound = base
	default:
		return
	}

	var adjusted float64
	if bound == math.Trunc(bound) && !isIntegerOverflow(bound) {
		if isMin {
			adjusted = bound + 1
		} else {
			adjusted = bound - 1
		}
	} else {
		epsilon := 1e-9 * math.Max(1, math.Abs(bound))
		if isMin {
			adjusted = bound + epsilon
		} else {
			adjusted = bound - epsilon
		}
	}
	out[inclusiveKey] = adjusted
}

func isIntegerOverflow(f float64) bool {
	return f >= math.MaxInt64 || f <= math.MinInt64
}

// Describe returns a short human-readable form of a converted schema, used in
// debug logs.
func Describe(schemaJSON []byte) string {
	t := struct {
		Type string `json:"type"`
	}{}
	if err := json.Unmarshal(schemaJSON, &t); err != nil || t.Type == "" {
		return "schema"
	}
	return fmt.Sprintf("schema<%s>", t.Type)
}

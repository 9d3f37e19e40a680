package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func convert(t *testing.T, schemaJSON string) gjson.Result {
	t.Helper()
	out := ToGemini([]byte(schemaJSON))
	require.True(t, gjson.ValidBytes(out), "invalid output: %s", out)
	return gjson.ParseBytes(out)
}

func TestToGeminiUppercasesTypes(t *testing.T) {
	got := convert(t, `{"type":"object","properties":{"name":{"type":"string"}}}`)
	assert.Equal(t, "OBJECT", got.Get("type").String())
	assert.Equal(t, "STRING", got.Get("properties.name.type").String())
}

func TestToGeminiDropsUnsupportedKeys(t *testing.T) {
	got := convert(t, `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"additionalProperties": false,
		"properties": {"a": {"type": "string", "default": "x", "const": "y"}}
	}`)
	assert.False(t, got.Get("$schema").Exists())
	assert.False(t, got.Get("additionalProperties").Exists())
	assert.False(t, got.Get("properties.a.default").Exists())
	assert.False(t, got.Get("properties.a.const").Exists())
	assert.Equal(t, "STRING", got.Get("properties.a.type").String())
}

func TestToGeminiExclusiveBounds(t *testing.T) {
	got := convert(t, `{"type":"integer","exclusiveMinimum":0,"exclusiveMaximum":10}`)
	assert.Equal(t, int64(1), got.Get("minimum").Int())
	assert.Equal(t, int64(9), got.Get("maximum").Int())
	assert.False(t, got.Get("exclusiveMinimum").Exists())
	assert.False(t, got.Get("exclusiveMaximum").Exists())

	// Draft-4 boolean form flags the inclusive bound.
	got = convert(t, `{"type":"integer","minimum":5,"exclusiveMinimum":true}`)
	assert.Equal(t, int64(6), got.Get("minimum").Int())

	// Non-integer bounds move by an epsilon, not a whole unit.
	got = convert(t, `{"type":"number","exclusiveMinimum":0.5}`)
	min := got.Get("minimum").Float()
	assert.Greater(t, min, 0.5)
	assert.Less(t, min, 0.51)
}

func TestToGeminiNullableUnion(t *testing.T) {
	got := convert(t, `{"anyOf":[{"type":"string"},{"type":"null"}]}`)
	assert.Equal(t, "STRING", got.Get("type").String())
	assert.True(t, got.Get("nullable").Bool())
	assert.False(t, got.Get("anyOf").Exists())

	got = convert(t, `{"type":["string","null"]}`)
	assert.Equal(t, "STRING", got.Get("type").String())
	assert.True(t, got.Get("nullable").Bool())
}

func TestToGeminiStringifiedBounds(t *testing.T) {
	got := convert(t, `{"type":"array","items":{"type":"string"},"minItems":1,"maxItems":5}`)
	assert.Equal(t, `"1"`, got.Get("minItems").Raw)
	assert.Equal(t, `"5"`, got.Get("maxItems").Raw)
	assert.Equal(t, "STRING", got.Get("items.type").String())
}

func TestToGeminiResolvesRefs(t *testing.T) {
	got := convert(t, `{
		"type": "object",
		"properties": {"pet": {"$ref": "#/$defs/pet"}},
		"$defs": {"pet": {"type": "object", "properties": {"name": {"type": "string"}}}}
	}`)
	assert.Equal(t, "OBJECT", got.Get("properties.pet.type").String())
	assert.Equal(t, "STRING", got.Get("properties.pet.properties.name.type").String())
	assert.False(t, got.Get("$defs").Exists())
}

func TestToGeminiRefCycle(t *testing.T) {
	got := convert(t, `{
		"type": "object",
		"properties": {"node": {"$ref": "#/$defs/node"}},
		"$defs": {"node": {"type": "object", "properties": {"next": {"$ref": "#/$defs/node"}}}}
	}`)
	// The cycle terminates; the outer level still converts.
	assert.Equal(t, "OBJECT", got.Get("properties.node.type").String())
}

func TestToGeminiMergesAllOf(t *testing.T) {
	got := convert(t, `{
		"allOf": [
			{"type": "object", "properties": {"a": {"type": "string"}}, "required": ["a"]},
			{"properties": {"b": {"type": "integer"}}, "required": ["b"]}
		]
	}`)
	assert.Equal(t, "OBJECT", got.Get("type").String())
	assert.Equal(t, "STRING", got.Get("properties.a.type").String())
	assert.Equal(t, "INTEGER", got.Get("properties.b.type").String())

	var required []string
	for _, r := range got.Get("required").Array() {
		required = append(required, r.String())
	}
	assert.ElementsMatch(t, []string{"a", "b"}, required)
}

func TestToGeminiInfersObjectType(t *testing.T) {
	got := convert(t, `{"properties":{"a":{"type":"string"}}}`)
	assert.Equal(t, "OBJECT", got.Get("type").String())
}

func TestToGeminiInvalidInput(t *testing.T) {
	assert.Equal(t, "{}", string(ToGemini([]byte("not json"))))
}

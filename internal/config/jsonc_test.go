package config

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripJSONCComments(t *testing.T) {
	input := `{
  // line comment
  "a": 1, /* block
  comment */ "b": "// not a comment",
  "c": "/* neither */"
}`
	stripped := StripJSONC(input)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stripped), &parsed))
	assert.Equal(t, float64(1), parsed["a"])
	assert.Equal(t, "// not a comment", parsed["b"])
	assert.Equal(t, "/* neither */", parsed["c"])
}

func TestStripJSONCTrailingCommas(t *testing.T) {
	input := `{"list": [1, 2, 3,], "obj": {"k": "v",},}`
	stripped := StripJSONC(input)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stripped), &parsed))
	assert.Len(t, parsed["list"], 3)
}

func TestStripJSONCTrailingCommaBeforeComment(t *testing.T) {
	input := `{"a": 1, // tail
}`
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(StripJSONC(input)), &parsed))
}

func TestStripJSONCPreservesNewlines(t *testing.T) {
	input := "{\n// one\n/* two\nthree */\n\"a\": 1\n}"
	stripped := StripJSONC(input)
	assert.Equal(t, strings.Count(input, "\n"), strings.Count(stripped, "\n"))
}

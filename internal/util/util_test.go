package util

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHideAPIKey(t *testing.T) {
	assert.Equal(t, "", HideAPIKey(""))
	assert.Equal(t, "********", HideAPIKey("short"))
	assert.Equal(t, "sk-a...wxyz", HideAPIKey("sk-abcdefgh-stuvwxyz"))
}

func TestFixJSON(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"single quotes", `{'a': 'b'}`, `{"a": "b"}`},
		{"double quotes untouched", `{"a": "it's fine"}`, `{"a": "it's fine"}`},
		{"embedded double quote", `{'a': 'say "hi"'}`, `{"a": "say \"hi\""}`},
		{"escaped single quote", `{'a': 'it\'s'}`, `{"a": "it's"}`},
		{"mixed", `{"a": 1, 'b': true}`, `{"a": 1, "b": true}`},
		{"unterminated", `{'a': 'b`, `{"a": "b"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FixJSON(tc.input)
			assert.Equal(t, tc.want, got)
		})
	}

	// The common repair paths produce valid JSON.
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(FixJSON(`{'query': 'rain in "SF" today', 'limit': 3}`)), &parsed))
	assert.Equal(t, `rain in "SF" today`, parsed["query"])
}

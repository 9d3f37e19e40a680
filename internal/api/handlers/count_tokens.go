package handlers

import (
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/Andy963/rsp4copilot-sub000/internal/translator"
	"github.com/Andy963/rsp4copilot-sub000/internal/util"
)

// charsPerToken is the rough English-text ratio used for local token
// estimation. The gateway has no tokenizer for arbitrary upstream models, so
// count_tokens answers with an estimate instead of proxying.
const charsPerToken = 4

// CountTokens serves the Messages count_tokens endpoint with a local
// estimate over the decoded conversation.
func (core *Core) CountTokens(c *gin.Context) {
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

	req := translator.FromClaude(body)
	if req.Model == "" {
		req.Model = core.Settings.ClaudeDefaultModel
	}
	if req.Model == "" {
		Fail(c, http.StatusBadRequest, TypeInvalidRequest, CodeBadRequest, "missing model")
		return
	}

	chars := req.CharCount()
	for _, tool := range req.Tools {
		chars += utf8.RuneCountInString(tool.Name) + utf8.RuneCountInString(tool.Description) + len(tool.ParametersJSON)
	}

	tokens := (chars + charsPerToken - 1) / charsPerToken
	if tokens < 1 {
		tokens = 1
	}
	c.JSON(http.StatusOK, gin.H{"input_tokens": tokens})
}

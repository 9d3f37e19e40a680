// Package handlers implements the request pipeline shared by every inbound
// dialect: decode to the canonical pivot, resolve the model, trim history,
// consult the session cache, encode for the selected upstream, dispatch, and
// translate the reply back.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/sjson"

	"github.com/Andy963/rsp4copilot-sub000/internal/cache"
	"github.com/Andy963/rsp4copilot-sub000/internal/config"
	"github.com/Andy963/rsp4copilot-sub000/internal/upstream"
)

// Core holds the collaborators every handler needs. The registry accessor
// returns the current snapshot so hot reloads take effect between requests.
type Core struct {
	Settings   *config.Settings
	Registry   func() *config.GatewayConfig
	Cache      *cache.SessionCache
	Dispatcher *upstream.Dispatcher
}

// Error envelope vocabulary.
const (
	TypeInvalidRequest = "invalid_request_error"
	TypeServer         = "server_error"
	TypeAuthentication = "authentication_error"
	TypeNotFound       = "not_found_error"

	CodeBadRequest     = "bad_request"
	CodeServer         = "server_error"
	CodeBadGateway     = "bad_gateway"
	CodeUnauthorized   = "unauthorized"
	CodeNotFound       = "not_found"
	CodeInvalidRequest = "invalid_request_error"
)

// Fail writes the error envelope and aborts the request.
func Fail(c *gin.Context, status int, errType, code, message string) {
	body := `{"error":{"message":"","type":"","code":""}}`
	body, _ = sjson.Set(body, "error.message", message)
	body, _ = sjson.Set(body, "error.type", errType)
	body, _ = sjson.Set(body, "error.code", code)
	c.Data(status, "application/json", []byte(body))
	c.Abort()
}

// FailUpstream maps an exhausted dispatch to the client-facing envelope.
// Upstream bodies are passed through when present so callers see the real
// reason.
func FailUpstream(c *gin.Context, errMsg *upstream.ErrorMessage) {
	status := errMsg.StatusCode
	if status < 400 {
		status = http.StatusBadGateway
	}
	message := errMsg.Error()
	errType := TypeServer
	code := CodeBadGateway
	if status == http.StatusBadRequest {
		errType = TypeInvalidRequest
		code = CodeBadRequest
	}
	Fail(c, status, errType, code, message)
}

// SSEHeaders sets the streaming response headers.
func SSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeaderNow()
}

// Package api assembles the HTTP surface: routing, CORS, inbound
// authentication and the lifecycle of the listener.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/Andy963/rsp4copilot-sub000/internal/api/handlers"
)

const corsAllowHeaders = "authorization,content-type,x-session-id,x-api-key,x-goog-api-key,anthropic-api-key,x-anthropic-api-key,anthropic-version,anthropic-beta"

// corsMiddleware answers preflights and stamps the CORS headers on every
// response.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = "*"
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", corsAllowHeaders)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// extractToken pulls the inbound bearer token from the supported header
// locations, in documented priority order. The key query parameter is only
// honored on the Gemini surface.
func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return strings.TrimSpace(auth)
	}
	for _, header := range []string{"x-api-key", "x-goog-api-key", "anthropic-api-key", "x-anthropic-api-key"} {
		if token := strings.TrimSpace(c.GetHeader(header)); token != "" {
			return token
		}
	}
	if strings.HasPrefix(c.Request.URL.Path, "/gemini/") {
		return strings.TrimSpace(c.Query("key"))
	}
	return ""
}

// authMiddleware enforces the inbound key set. With no keys configured the
// gateway refuses everything: an open proxy to paid upstreams is never the
// right default.
func authMiddleware(authKeys func() []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		keys := authKeys()
		if len(keys) == 0 {
			handlers.Fail(c, http.StatusInternalServerError, handlers.TypeServer, handlers.CodeServer,
				"no inbound auth keys configured")
			return
		}

		token := extractToken(c)
		if token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			handlers.Fail(c, http.StatusUnauthorized, handlers.TypeAuthentication, handlers.CodeUnauthorized,
				"missing bearer token")
			return
		}
		for _, key := range keys {
			if token == key {
				c.Set("inboundToken", token)
				c.Next()
				return
			}
		}
		handlers.Fail(c, http.StatusUnauthorized, handlers.TypeAuthentication, handlers.CodeUnauthorized,
			"invalid bearer token")
	}
}

// requestLogMiddleware logs one line per request at debug level.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Andy963/rsp4copilot-sub000/internal/registry"
)

// Health answers the liveness probes.
func (core *Core) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().Unix()})
}

// OpenAIModels lists the configured models in OpenAI format.
func (core *Core) OpenAIModels(c *gin.Context) {
	cfg := core.Registry()
	if cfg == nil {
		Fail(c, http.StatusInternalServerError, TypeServer, CodeServer, "no provider registry loaded")
		return
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": registry.OpenAIModelList(cfg)})
}

// GeminiModels lists the configured models in Gemini format.
func (core *Core) GeminiModels(c *gin.Context) {
	cfg := core.Registry()
	if cfg == nil {
		Fail(c, http.StatusInternalServerError, TypeServer, CodeServer, "no provider registry loaded")
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": registry.GeminiModelList(cfg)})
}

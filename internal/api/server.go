package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"

	"github.com/Andy963/rsp4copilot-sub000/internal/api/handlers"
	"github.com/Andy963/rsp4copilot-sub000/internal/cache"
	"github.com/Andy963/rsp4copilot-sub000/internal/config"
	"github.com/Andy963/rsp4copilot-sub000/internal/upstream"
)

// maxConcurrentConns bounds the listener; each streaming request holds a
// connection for its whole lifetime.
const maxConcurrentConns = 1024

// Server is the gateway's HTTP front.
type Server struct {
	settings *config.Settings
	registry atomic.Pointer[config.GatewayConfig]
	engine   *gin.Engine
	core     *handlers.Core
	httpSrv  *http.Server
}

// New builds a server over the given settings, initial registry and cache
// backend.
func New(settings *config.Settings, registry *config.GatewayConfig, store cache.Store) *Server {
	if !settings.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{settings: settings}
	s.registry.Store(registry)
	s.core = &handlers.Core{
		Settings:   settings,
		Registry:   s.Registry,
		Cache:      cache.NewSessionCache(store),
		Dispatcher: upstream.NewDispatcher(),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), corsMiddleware())
	if settings.RequestLog {
		engine.Use(requestLogMiddleware())
	}
	s.engine = engine
	s.routes()
	return s
}

// Registry returns the current registry snapshot.
func (s *Server) Registry() *config.GatewayConfig { return s.registry.Load() }

// Reload swaps in a new registry snapshot. In-flight requests keep the one
// they started with.
func (s *Server) Reload(cfg *config.GatewayConfig) {
	s.registry.Store(cfg)
	log.Infof("provider registry reloaded: %d providers", len(cfg.Providers))
}

func (s *Server) routes() {
	core := s.core

	s.engine.GET("/health", core.Health)
	s.engine.GET("/v1/health", core.Health)

	auth := authMiddleware(func() []string { return s.settings.AuthKeys })
	private := s.engine.Group("/", auth)

	for _, path := range []string{"/models", "/v1/models", "/openai/v1/models", "/claude/v1/models"} {
		private.GET(path, core.OpenAIModels)
	}
	private.GET("/gemini/v1beta/models", core.GeminiModels)

	chat := func(c *gin.Context) { core.Complete(c, config.APIModeOpenAIChat, "", false) }
	responses := func(c *gin.Context) { core.Complete(c, config.APIModeOpenAIResponses, "", false) }
	claude := func(c *gin.Context) { core.Complete(c, config.APIModeClaude, "", false) }

	private.POST("/chat/completions", chat)
	private.POST("/v1/chat/completions", chat)
	private.POST("/completions", core.LegacyCompletions)
	private.POST("/v1/completions", core.LegacyCompletions)
	private.POST("/responses", responses)
	private.POST("/v1/responses", responses)
	private.POST("/openai/v1/responses", responses)
	private.POST("/claude/v1/messages", claude)
	private.POST("/claude/v1/messages/count_tokens", core.CountTokens)
	private.POST("/gemini/v1beta/models/:action", s.gemini)
}

// gemini routes POST /gemini/v1beta/models/<model>:{generateContent|
// streamGenerateContent}. The model and method share one path segment, so
// gin sees them as a single parameter.
func (s *Server) gemini(c *gin.Context) {
	action := c.Param("action")
	model, method, ok := strings.Cut(action, ":")
	if !ok || model == "" {
		handlers.Fail(c, http.StatusNotFound, handlers.TypeNotFound, handlers.CodeNotFound,
			"unknown gemini action: "+action)
		return
	}
	switch method {
	case "generateContent":
		s.core.Complete(c, config.APIModeGemini, model, false)
	case "streamGenerateContent":
		s.core.Complete(c, config.APIModeGemini, model, true)
	default:
		handlers.Fail(c, http.StatusNotFound, handlers.TypeNotFound, handlers.CodeNotFound,
			"unknown gemini method: "+method)
	}
}

// Run serves until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	address := fmt.Sprintf(":%d", s.settings.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}
	listener = netutil.LimitListener(listener, maxConcurrentConns)

	s.httpSrv = &http.Server{Handler: s.engine}
	errs := make(chan error, 1)
	go func() {
		errs <- s.httpSrv.Serve(listener)
	}()
	log.Infof("listening on %s", address)

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

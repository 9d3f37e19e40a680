// Command server runs the rsp4copilot gateway: a multi-protocol proxy that
// accepts OpenAI Chat Completions, OpenAI Responses, Claude Messages and
// Gemini generateContent requests and routes them to configured upstreams.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/Andy963/rsp4copilot-sub000/internal/api"
	"github.com/Andy963/rsp4copilot-sub000/internal/cache"
	"github.com/Andy963/rsp4copilot-sub000/internal/config"
	"github.com/Andy963/rsp4copilot-sub000/internal/logging"
)

func main() {
	settingsPath := flag.String("config", "", "path to the YAML settings file")
	cachePath := flag.String("cache", "", "path to the session cache database (empty for in-memory)")
	flag.Parse()

	logging.Setup()

	settings, err := config.LoadSettings(*settingsPath)
	if err != nil {
		log.Fatalf("settings: %v", err)
	}
	logging.SetDebug(settings.Debug)
	if err = logging.ConfigureOutput(settings.LoggingToFile); err != nil {
		log.Fatalf("logging: %v", err)
	}

	registryText, watchPath, err := settings.RegistrySource()
	if err != nil {
		log.Fatalf("registry: %v", err)
	}
	registry, err := config.ParseGatewayConfig(registryText)
	if err != nil {
		log.Fatalf("registry: %v", err)
	}

	var store cache.Store = cache.NewMemoryStore(0)
	if *cachePath != "" {
		bolt, openErr := cache.OpenBoltStore(*cachePath)
		if openErr != nil {
			log.Warnf("session cache database unavailable, using memory: %v", openErr)
		} else {
			defer bolt.Close()
			store = bolt
		}
	}

	server := api.New(settings, registry, store)

	if watchPath != "" {
		stop, watchErr := config.WatchRegistry(watchPath, server.Reload)
		if watchErr != nil {
			log.Warnf("registry watcher disabled: %v", watchErr)
		} else {
			defer stop()
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err = server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}

package registry

import (
	"sort"
	"time"

	"github.com/Andy963/rsp4copilot-sub000/internal/config"
)

// OpenAIModelList builds the OpenAI-format model list. Model ids use the bare
// model name when it is unique across providers, else "providerId.modelName".
// The list is sorted lexicographically by id.
func OpenAIModelList(cfg *config.GatewayConfig) []map[string]interface{} {
	created := time.Now().Unix()
	counts := modelNameCounts(cfg)

	var models []map[string]interface{}
	for _, provider := range cfg.Providers {
		for _, model := range provider.Models {
			models = append(models, map[string]interface{}{
				"id":       exposedID(provider, model, counts),
				"object":   "model",
				"created":  created,
				"owned_by": provider.OwnedBy,
			})
		}
	}
	sort.Slice(models, func(i, j int) bool {
		return models[i]["id"].(string) < models[j]["id"].(string)
	})
	return models
}

// GeminiModelList builds the Gemini-format model list for /v1beta/models.
func GeminiModelList(cfg *config.GatewayConfig) []map[string]interface{} {
	counts := modelNameCounts(cfg)

	var models []map[string]interface{}
	for _, provider := range cfg.Providers {
		for _, model := range provider.Models {
			id := exposedID(provider, model, counts)
			models = append(models, map[string]interface{}{
				"name":                       "models/" + id,
				"displayName":                model.Name,
				"description":                "Routed through " + provider.ID,
				"supportedGenerationMethods": []string{"generateContent", "streamGenerateContent"},
			})
		}
	}
	sort.Slice(models, func(i, j int) bool {
		return models[i]["name"].(string) < models[j]["name"].(string)
	})
	return models
}

func modelNameCounts(cfg *config.GatewayConfig) map[string]int {
	counts := make(map[string]int)
	for _, provider := range cfg.Providers {
		for _, model := range provider.Models {
			counts[model.Name]++
		}
	}
	return counts
}

func exposedID(provider *config.Provider, model *config.Model, counts map[string]int) string {
	if counts[model.Name] > 1 {
		return provider.ID + "." + model.Name
	}
	return model.Name
}

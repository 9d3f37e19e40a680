// Package registry resolves inbound model identifiers to configured providers
// and builds the model listings exposed on the discovery endpoints.
package registry

import (
	"fmt"
	"strings"

	"github.com/Andy963/rsp4copilot-sub000/internal/config"
)

// Resolution is the outcome of a successful model lookup.
type Resolution struct {
	Provider *config.Provider
	Model    *config.Model
}

// UpstreamModel returns the model name the upstream expects.
func (r *Resolution) UpstreamModel() string {
	if r.Model.UpstreamModel != "" {
		return r.Model.UpstreamModel
	}
	return r.Model.Name
}

// Resolve maps (modelID, optional providerHint) to a provider and model.
//
// Lookup order: reject empty or colon-containing ids; try a "provider.model"
// prefix split at the first dot (falling through when the prefix is not a
// configured provider, since many model names legitimately contain dots);
// honor an explicit provider hint; otherwise scan all providers and require
// a unique owner.
func Resolve(cfg *config.GatewayConfig, modelID, providerHint string) (*Resolution, error) {
	if cfg == nil || len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return nil, fmt.Errorf("missing model")
	}
	if strings.Contains(modelID, ":") {
		return nil, fmt.Errorf("invalid model: %s", modelID)
	}

	if idx := strings.Index(modelID, "."); idx > 0 {
		prefix, rest := modelID[:idx], modelID[idx+1:]
		if provider := matchProvider(cfg, prefix); provider != nil && rest != "" {
			if model := provider.FindModel(rest); model != nil {
				return &Resolution{Provider: provider, Model: model}, nil
			}
			return nil, fmt.Errorf("Unknown model: %s", modelID)
		}
		// Not a provider prefix; treat the whole id as a model name.
	}

	if providerHint != "" {
		provider := matchProvider(cfg, providerHint)
		if provider == nil {
			return nil, fmt.Errorf("Unknown provider: %s", providerHint)
		}
		if model := provider.FindModel(modelID); model != nil {
			return &Resolution{Provider: provider, Model: model}, nil
		}
		return nil, fmt.Errorf("Unknown model: %s", modelID)
	}

	var matches []*Resolution
	for _, provider := range cfg.Providers {
		if model := provider.FindModel(modelID); model != nil {
			matches = append(matches, &Resolution{Provider: provider, Model: model})
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("Unknown model: %s", modelID)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("Ambiguous model: %s", modelID)
	}
}

// matchProvider matches by exact id first, then by a unique case-insensitive
// ownedBy. An ambiguous ownedBy match returns nil.
func matchProvider(cfg *config.GatewayConfig, name string) *config.Provider {
	for _, provider := range cfg.Providers {
		if provider.ID == name {
			return provider
		}
	}
	var owned []*config.Provider
	for _, provider := range cfg.Providers {
		if strings.EqualFold(provider.OwnedBy, name) {
			owned = append(owned, provider)
		}
	}
	if len(owned) == 1 {
		return owned[0]
	}
	return nil
}

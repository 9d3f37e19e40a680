// Package config parses and validates the gateway's provider/model registry
// from a JSONC document, loads the optional YAML server settings file, and
// applies environment variable overrides. No partially validated registry is
// ever returned to callers.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// API modes accepted for a provider. The mode selects the upstream wire
// dialect the provider speaks.
const (
	APIModeOpenAIResponses = "openai-responses"
	APIModeOpenAIChat      = "openai-chat-completions"
	APIModeClaude          = "claude"
	APIModeGemini          = "gemini"
)

// GatewayConfig is the validated provider/model registry.
type GatewayConfig struct {
	// Version of the registry document. Only version 1 is supported.
	Version int

	// Providers in document order.
	Providers []*Provider
}

// Provider describes one configured upstream.
type Provider struct {
	// ID is the registry key. Never contains a dot.
	ID string

	// APIMode is one of the APIMode* constants.
	APIMode string

	// OwnedBy is a free-form owner string used for prefix resolution and the
	// model list. Defaults from APIMode.
	OwnedBy string

	// BaseURLs is the ordered, normalized list of upstream base URLs.
	BaseURLs []string

	// APIKey is the literal upstream key. APIKeyEnv names an environment
	// variable holding it. At least one is set after validation.
	APIKey    string
	APIKeyEnv string

	// Options carries free-form provider options.
	Options map[string]interface{}

	// Endpoints optionally overrides the synthesized endpoint paths.
	Endpoints Endpoints

	// Quirks toggles provider-specific request shaping.
	Quirks Quirks

	// Models in document order.
	Models []*Model
}

// Endpoints holds per-provider endpoint path overrides.
type Endpoints struct {
	ResponsesPath       string
	ChatCompletionsPath string
	MessagesPath        string
}

// Quirks are boolean request-shaping switches.
type Quirks struct {
	// NoInstructions hoists the instructions field into a system message.
	NoInstructions bool

	// NoPreviousResponseID suppresses previous_response_id linkage.
	NoPreviousResponseID bool
}

// Model describes one model exposed by a provider.
type Model struct {
	// Name is the registry key clients use.
	Name string

	// UpstreamModel is what the upstream actually expects. Defaults to Name.
	UpstreamModel string

	// Options tune translation for this model.
	Options ModelOptions

	Quirks Quirks
}

// ModelOptions are the recognized per-model tuning knobs.
type ModelOptions struct {
	ReasoningEffort      string
	MaxInstructionsChars int
	MaxTokens            int64
}

var schemeRe = regexp.MustCompile(`^https?://`)

// NormalizeBaseURL ensures a base URL starts with a scheme. Bare scheme
// words normalize to empty, which callers must reject.
func NormalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	switch raw {
	case "", "http", "https", "http:", "https:":
		return ""
	}
	if schemeRe.MatchString(raw) {
		return raw
	}
	return "https://" + raw
}

// UpstreamKey resolves the provider's upstream API key, consulting the
// environment when only APIKeyEnv is configured.
func (p *Provider) UpstreamKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

// FindModel returns the model with the given name, or nil.
func (p *Provider) FindModel(name string) *Model {
	for _, m := range p.Models {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// ParseGatewayConfig parses and validates a JSONC registry document. All
// failures are reported as a single human-readable error.
func ParseGatewayConfig(input string) (*GatewayConfig, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("config is empty")
	}

	stripped := StripJSONC(input)

	var probe interface{}
	if err := json.Unmarshal([]byte(stripped), &probe); err != nil {
		if syntaxErr, ok := err.(*json.SyntaxError); ok {
			line := 1 + strings.Count(stripped[:syntaxErr.Offset], "\n")
			return nil, fmt.Errorf("config is not valid JSON (line %d): %v", line, err)
		}
		return nil, fmt.Errorf("config is not valid JSON: %v", err)
	}

	root := gjson.Parse(stripped)
	if !root.IsObject() {
		return nil, fmt.Errorf("config must be a JSON object")
	}

	if version := root.Get("version"); version.Exists() && version.Int() != 1 {
		return nil, fmt.Errorf("unsupported config version: %s", version.String())
	}

	cfg := &GatewayConfig{Version: 1}

	providers := root.Get("providers")
	if !providers.Exists() || !providers.IsObject() {
		return nil, fmt.Errorf("config has no providers")
	}

	var parseErr error
	providers.ForEach(func(key, value gjson.Result) bool {
		provider, err := parseProvider(key.String(), value)
		if err != nil {
			parseErr = err
			return false
		}
		cfg.Providers = append(cfg.Providers, provider)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("config has no providers")
	}

	return cfg, nil
}

func parseProvider(id string, value gjson.Result) (*Provider, error) {
	if strings.Contains(id, ".") {
		return nil, fmt.Errorf("provider id %q must not contain '.'", id)
	}
	if !value.IsObject() {
		return nil, fmt.Errorf("provider %q is not an object", id)
	}

	p := &Provider{ID: id}

	p.APIMode = value.Get("apiMode").String()
	if p.APIMode == "" {
		p.APIMode = value.Get("type").String()
	}
	switch p.APIMode {
	case APIModeOpenAIResponses, APIModeOpenAIChat, APIModeClaude, APIModeGemini:
	case "":
		return nil, fmt.Errorf("provider %q has no apiMode", id)
	default:
		return nil, fmt.Errorf("provider %q has unsupported apiMode %q", id, p.APIMode)
	}

	p.OwnedBy = value.Get("ownedBy").String()
	if p.OwnedBy == "" {
		switch {
		case strings.HasPrefix(p.APIMode, "openai"):
			p.OwnedBy = "openai"
		case p.APIMode == APIModeClaude:
			p.OwnedBy = "anthropic"
		case p.APIMode == APIModeGemini:
			p.OwnedBy = "google"
		default:
			p.OwnedBy = id
		}
	}

	var rawURLs []string
	if baseURLs := value.Get("baseURLs"); baseURLs.IsArray() {
		baseURLs.ForEach(func(_, u gjson.Result) bool {
			rawURLs = append(rawURLs, u.String())
			return true
		})
	} else if baseURL := value.Get("baseURL"); baseURL.Exists() {
		// A single string may carry several comma-separated bases.
		rawURLs = strings.Split(baseURL.String(), ",")
	}
	for _, raw := range rawURLs {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		normalized := NormalizeBaseURL(raw)
		if normalized == "" {
			return nil, fmt.Errorf("provider %q has invalid baseURL %q", id, strings.TrimSpace(raw))
		}
		p.BaseURLs = append(p.BaseURLs, normalized)
	}
	if len(p.BaseURLs) == 0 {
		return nil, fmt.Errorf("provider %q has no baseURL", id)
	}

	p.APIKey = value.Get("apiKey").String()
	p.APIKeyEnv = value.Get("apiKeyEnv").String()
	if p.APIKey == "" && p.APIKeyEnv == "" {
		return nil, fmt.Errorf("provider %q has no apiKey or apiKeyEnv", id)
	}

	if options := value.Get("options"); options.IsObject() {
		p.Options = options.Value().(map[string]interface{})
	}

	if endpoints := value.Get("endpoints"); endpoints.IsObject() {
		p.Endpoints.ResponsesPath = endpoints.Get("responsesPath").String()
		p.Endpoints.ChatCompletionsPath = endpoints.Get("chatCompletionsPath").String()
		p.Endpoints.MessagesPath = endpoints.Get("messagesPath").String()
	}
	p.Quirks = parseQuirks(value.Get("quirks"))

	models := value.Get("models")
	if !models.Exists() {
		return nil, fmt.Errorf("provider %q has no models", id)
	}
	var modelErr error
	models.ForEach(func(key, model gjson.Result) bool {
		m := &Model{Name: key.String()}
		if models.IsArray() {
			m.Name = model.Get("name").String()
			if m.Name == "" {
				modelErr = fmt.Errorf("provider %q has a model without a name", id)
				return false
			}
		}
		switch {
		case model.Type == gjson.String:
			m.UpstreamModel = model.String()
		case model.IsObject():
			m.UpstreamModel = model.Get("upstreamModel").String()
			if options := model.Get("options"); options.IsObject() {
				m.Options.ReasoningEffort = options.Get("reasoningEffort").String()
				m.Options.MaxInstructionsChars = int(options.Get("maxInstructionsChars").Int())
				m.Options.MaxTokens = options.Get("maxTokens").Int()
			}
			m.Quirks = parseQuirks(model.Get("quirks"))
		}
		if m.UpstreamModel == "" {
			m.UpstreamModel = m.Name
		}
		p.Models = append(p.Models, m)
		return true
	})
	if modelErr != nil {
		return nil, modelErr
	}
	if len(p.Models) == 0 {
		return nil, fmt.Errorf("provider %q has no models", id)
	}

	return p, nil
}

func parseQuirks(value gjson.Result) Quirks {
	if !value.IsObject() {
		return Quirks{}
	}
	return Quirks{
		NoInstructions:       value.Get("noInstructions").Bool(),
		NoPreviousResponseID: value.Get("noPreviousResponseId").Bool(),
	}
}

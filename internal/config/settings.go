package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Trimmer defaults, overridable per settings file or environment.
const (
	DefaultMaxTurns      = 40
	DefaultMaxMessages   = 200
	DefaultMaxInputChars = 300000
)

// Settings holds the server-level configuration: listener port, inbound
// bearer keys, debug switches and trimmer caps. The provider registry itself
// is a separate JSONC document (see ParseGatewayConfig).
type Settings struct {
	// Port is the network port on which the API server will listen.
	Port int `yaml:"port"`

	// AuthKeys is the set of inbound bearer tokens accepted by the gateway.
	AuthKeys []string `yaml:"auth-keys"`

	// Debug enables debug-level logging and verbose request dumps.
	Debug bool `yaml:"debug"`

	// RequestLog enables request/response body logging at debug level.
	RequestLog bool `yaml:"request-log"`

	// LoggingToFile switches log output to a rotating file under logs/.
	LoggingToFile bool `yaml:"logging-to-file"`

	// RegistryFile optionally points at a JSONC registry file. When set it is
	// watched for changes; RSP4COPILOT_CONFIG takes precedence.
	RegistryFile string `yaml:"registry-file"`

	// MaxTurns, MaxMessages and MaxInputChars cap the trimmed history.
	MaxTurns      int `yaml:"max-turns"`
	MaxMessages   int `yaml:"max-messages"`
	MaxInputChars int `yaml:"max-input-chars"`

	// ReasoningEffort is the default reasoning effort forwarded to reasoning
	// models. "off", "false" and "0" disable it.
	ReasoningEffort string `yaml:"reasoning-effort"`

	// GeminiMaxOutputTokens is the default maxOutputTokens for Gemini
	// upstreams when the client does not send one.
	GeminiMaxOutputTokens int64 `yaml:"gemini-max-output-tokens"`

	// ClaudeDefaultModel and GeminiDefaultModel alias requests that arrive
	// without a resolvable model on the Claude/Gemini inbound surfaces.
	ClaudeDefaultModel string `yaml:"claude-default-model"`
	GeminiDefaultModel string `yaml:"gemini-default-model"`
}

// LoadSettings reads the optional YAML settings file, fills defaults and
// applies environment overrides. An empty path loads defaults plus
// environment only.
func LoadSettings(path string) (*Settings, error) {
	s := &Settings{
		Port:          8317,
		MaxTurns:      DefaultMaxTurns,
		MaxMessages:   DefaultMaxMessages,
		MaxInputChars: DefaultMaxInputChars,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
		if err = yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("failed to parse settings file: %w", err)
		}
	}

	s.applyEnv()
	return s, nil
}

func (s *Settings) applyEnv() {
	if key := strings.TrimSpace(os.Getenv("WORKER_AUTH_KEY")); key != "" {
		s.AuthKeys = appendUnique(s.AuthKeys, key)
	}
	for _, key := range strings.Split(os.Getenv("WORKER_AUTH_KEYS"), ",") {
		if key = strings.TrimSpace(key); key != "" {
			s.AuthKeys = appendUnique(s.AuthKeys, key)
		}
	}

	if v := os.Getenv("RSP4COPILOT_DEBUG"); v != "" {
		s.Debug = envBool(v)
	}
	if n, ok := envInt("RSP4COPILOT_MAX_TURNS"); ok {
		s.MaxTurns = n
	}
	if n, ok := envInt("RSP4COPILOT_MAX_MESSAGES"); ok {
		s.MaxMessages = n
	}
	if n, ok := envInt("RSP4COPILOT_MAX_INPUT_CHARS"); ok {
		s.MaxInputChars = n
	}

	if v := os.Getenv("RESP_REASONING_EFFORT"); v != "" {
		s.ReasoningEffort = v
	}
	switch strings.ToLower(s.ReasoningEffort) {
	case "off", "false", "0":
		s.ReasoningEffort = ""
	}

	for _, name := range []string{"GEMINI_DEFAULT_MAX_OUTPUT_TOKENS", "GEMINI_MAX_OUTPUT_TOKENS", "GEMINI_MAX_TOKENS"} {
		if s.GeminiMaxOutputTokens > 0 {
			break
		}
		if n, ok := envInt(name); ok && n > 0 {
			s.GeminiMaxOutputTokens = int64(n)
		}
	}

	if v := os.Getenv("CLAUDE_DEFAULT_MODEL"); v != "" {
		s.ClaudeDefaultModel = v
	}
	if v := os.Getenv("GEMINI_DEFAULT_MODEL"); v != "" {
		s.GeminiDefaultModel = v
	}
}

// RegistrySource returns the JSONC registry text and, when it came from a
// file, the path to watch for reloads.
func (s *Settings) RegistrySource() (text string, watchPath string, err error) {
	if env := os.Getenv("RSP4COPILOT_CONFIG"); strings.TrimSpace(env) != "" {
		return env, "", nil
	}
	if s.RegistryFile != "" {
		data, errRead := os.ReadFile(s.RegistryFile)
		if errRead != nil {
			return "", "", fmt.Errorf("failed to read registry file: %w", errRead)
		}
		return string(data), s.RegistryFile, nil
	}
	return "", "", fmt.Errorf("no provider registry: set RSP4COPILOT_CONFIG or registry-file")
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

func envBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func envInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

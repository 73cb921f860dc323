package agentd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go/option"
)

// Engine kinds accepted in the provider configuration.
const (
	EngineOllama = "ollama"
	EngineOpenAI = "openai"
)

// providersFileName is the provider-configuration file kept under the data
// folder.
const providersFileName = "providers.json"

// Config is the process configuration, read once at startup from the
// environment.
type Config struct {
	// DataDir holds provider configuration and, by default, the sessions.
	DataDir string
	// SessionsDir holds one JSON file per session (file storage).
	SessionsDir string
	// Port is the HTTP listen port.
	Port int
	// Storage selects the session backend: "file" or "sqlite".
	Storage string
	// EnableShell registers the shell tool. Off by default: the tool runs
	// arbitrary commands chosen by the model.
	EnableShell bool
	// ShellAllowList, when non-empty, restricts the shell tool to commands
	// whose first token is listed.
	ShellAllowList []string
	// LogFormat selects the logger backend: "text" (logrus) or "json" (zap).
	LogFormat string
	// ProviderTimeout bounds each LLM provider call.
	ProviderTimeout time.Duration
	// StaticDir is served at / and /static/ when it exists.
	StaticDir string
}

// LoadConfigFromEnv builds the Config from environment variables, applying
// the defaults the service has always shipped with.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		Storage:         envOr("AGENTD_STORAGE", "file"),
		LogFormat:       envOr("AGENTD_LOG_FORMAT", "text"),
		StaticDir:       envOr("AGENTD_STATIC_DIR", "static"),
		ProviderTimeout: defaultProviderTimeout,
	}

	dataFolder := envOr("DATA_FOLDER", ".agentd")
	if !filepath.IsAbs(dataFolder) {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dataFolder = filepath.Join(home, dataFolder)
	}
	cfg.DataDir = dataFolder

	cfg.SessionsDir = envOr("SESSIONS_DIR", filepath.Join(cfg.DataDir, "sessions"))

	port, err := strconv.Atoi(envOr("API_PORT", "8888"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid API_PORT: %w", err)
	}
	cfg.Port = port

	if raw := os.Getenv("AGENTD_ENABLE_SHELL"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid AGENTD_ENABLE_SHELL: %w", err)
		}
		cfg.EnableShell = enabled
	}

	if raw := os.Getenv("AGENTD_SHELL_ALLOW"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.ShellAllowList = append(cfg.ShellAllowList, name)
			}
		}
	}

	if raw := os.Getenv("AGENTD_PROVIDER_TIMEOUT"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid AGENTD_PROVIDER_TIMEOUT: %q", raw)
		}
		cfg.ProviderTimeout = time.Duration(seconds) * time.Second
	}

	switch cfg.Storage {
	case "file", "sqlite":
	default:
		return Config{}, fmt.Errorf("invalid AGENTD_STORAGE %q: must be \"file\" or \"sqlite\"", cfg.Storage)
	}

	return cfg, nil
}

// ProvidersFile returns the path of the provider-configuration file.
func (c Config) ProvidersFile() string {
	return filepath.Join(c.DataDir, providersFileName)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// ProviderConfig describes one named backend definition.
type ProviderConfig struct {
	Active  bool              `json:"active"`
	Engine  string            `json:"engine"`
	BaseURL string            `json:"base_url"`
	Model   string            `json:"model"`
	APIKey  string            `json:"api_key,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ProvidersConfig is the named set of backend definitions with one marked as
// default. Loaded once at startup; immutable for the process lifetime.
type ProvidersConfig struct {
	Default string                    `json:"default"`
	Items   map[string]ProviderConfig `json:"items"`
}

// LoadProvidersConfig reads and decodes the provider-configuration file.
// An unreadable file is fatal at startup.
func LoadProvidersConfig(path string) (ProvidersConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProvidersConfig{}, fmt.Errorf("failed to read providers config %s: %w", path, err)
	}

	var cfg ProvidersConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ProvidersConfig{}, fmt.Errorf("failed to decode providers config %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultProvider resolves the backend marked as default.
func (c ProvidersConfig) DefaultProvider() (string, ProviderConfig, error) {
	if c.Default == "" {
		return "", ProviderConfig{}, fmt.Errorf("providers config has no default provider")
	}

	provider, exists := c.Items[c.Default]
	if !exists {
		return "", ProviderConfig{}, fmt.Errorf("default provider %q not found in providers config", c.Default)
	}
	return c.Default, provider, nil
}

// NewLLMProvider builds the provider selected by configuration. There is no
// per-request override and no runtime switching.
func NewLLMProvider(cfg ProviderConfig) (LLMProvider, error) {
	switch cfg.Engine {
	case EngineOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("api_key is required for the %s engine", EngineOpenAI)
		}

		var opts []option.RequestOption
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		for k, v := range cfg.Headers {
			opts = append(opts, option.WithHeader(k, v))
		}

		return NewOpenAILLMProvider(OpenAIProviderConfig{
			Client: NewOpenAIClient(cfg.APIKey, opts...),
			Model:  cfg.Model,
		}), nil

	case EngineOllama, "":
		headers := cfg.Headers
		if cfg.APIKey != "" {
			if headers == nil {
				headers = map[string]string{}
			}
			if _, exists := headers["Authorization"]; !exists {
				headers["Authorization"] = "Bearer " + cfg.APIKey
			}
		}

		return NewOllamaLLMProvider(OllamaProviderConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Headers: headers,
		})

	default:
		return nil, fmt.Errorf("unknown provider engine %q", cfg.Engine)
	}
}

// WriteDefaultProvidersConfig seeds the data folder with a starter
// providers.json containing an active local Ollama backend and inactive
// examples for a proxied Ollama and an OpenAI-compatible gateway. An
// existing file is left untouched.
func WriteDefaultProvidersConfig(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data folder %s: %w", dataDir, err)
	}

	path := filepath.Join(dataDir, providersFileName)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check providers config %s: %w", path, err)
	}

	cfg := ProvidersConfig{
		Default: "ollama",
		Items: map[string]ProviderConfig{
			"ollama": {
				Active:  true,
				Engine:  EngineOllama,
				BaseURL: "http://localhost:11434",
				Model:   "llama3.2",
				Headers: map[string]string{},
			},
			"ollama_nginx": {
				Active:  false,
				Engine:  EngineOllama,
				BaseURL: "https://my-ollama.example.com",
				Model:   "llama3.2",
				Headers: map[string]string{"Authorization": "Bearer <key>"},
			},
			"openai": {
				Active:  false,
				Engine:  EngineOpenAI,
				BaseURL: "https://api.openai.com/v1",
				Model:   "gpt-4o",
				APIKey:  "",
			},
		},
	}

	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to encode default providers config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write providers config %s: %w", path, err)
	}
	return path, nil
}

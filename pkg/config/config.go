package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zen-systems/tiergate/pkg/quota"
)

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	DeepSeekAPIKey  string
	Router          *RouterConfig
	ConfigDir       string
}

// FileConfig represents the structure of ~/.tiergate/config.yaml
type FileConfig struct {
	APIKeys APIKeysConfig `yaml:"api_keys"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"`
	OpenAI    string `yaml:"openai"`
	Google    string `yaml:"google"`
	DeepSeek  string `yaml:"deepseek"`
}

// Load reads configuration from config files and environment variables.
// Environment variables take precedence over file configuration.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	// Load file config first
	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	// Build config with env vars taking precedence over file
	cfg := &Config{
		AnthropicAPIKey: getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		OpenAIAPIKey:    getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		GoogleAPIKey:    getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		DeepSeekAPIKey:  getEnvOrDefault("DEEPSEEK_API_KEY", fileConfig.APIKeys.DeepSeek),
		ConfigDir:       configDir,
	}

	// Load router config
	routerPath := filepath.Join(configDir, "router.yaml")
	if _, err := os.Stat(routerPath); err == nil {
		router, err := LoadRouterConfig(routerPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load router config: %w", err)
		}
		cfg.Router = router
	} else {
		cfg.Router = DefaultRouterConfig()
	}

	return cfg, nil
}

// LoadWithRouterFile loads config with a specific router config file.
func LoadWithRouterFile(routerPath string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	router, err := LoadRouterConfig(routerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load router config from %s: %w", routerPath, err)
	}
	cfg.Router = router

	return cfg, nil
}

// HasProvider returns true if the API key for the given provider is configured.
func (c *Config) HasProvider(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	case "deepseek":
		return c.DeepSeekAPIKey != ""
	default:
		return false
	}
}

// Gate builds the admission gate from the router config's budget
// section. With no budget configured every request is admitted.
func (c *Config) Gate() quota.Gate {
	if c.Router == nil || c.Router.Budget == nil {
		return quota.AllowAll{}
	}
	b := c.Router.Budget
	opts := []quota.BudgetOption{quota.WithUserLimits(b.Users)}
	if c.ConfigDir != "" {
		opts = append(opts, quota.WithUsageFile(filepath.Join(c.ConfigDir, "budget_usage.json")))
	}
	return quota.NewBudgetGate(
		quota.Limits{MaxTokensPerDay: b.MaxTokensPerDay, MaxCostPerDay: b.MaxCostPerDay},
		opts...,
	)
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg // Return empty config if file doesn't exist
	}

	_ = yaml.Unmarshal(data, cfg) // Ignore parse errors, use defaults
	return cfg
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".tiergate")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}

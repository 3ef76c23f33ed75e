package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/zen-systems/tiergate/pkg/catalog"
	"github.com/zen-systems/tiergate/pkg/quota"
)

func setHomeEnv(t *testing.T, home string) {
	t.Helper()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
}

func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("DEEPSEEK_API_KEY", "")
}

func TestConfigReadsFileAPIKeys(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearKeyEnv(t)

	configDir := filepath.Join(home, ".tiergate")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	data := []byte("api_keys:\n  anthropic: file-ant\n  deepseek: file-deepseek\n")
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnthropicAPIKey != "file-ant" || cfg.DeepSeekAPIKey != "file-deepseek" {
		t.Fatalf("expected file API keys, got %+v", cfg)
	}
	if cfg.OpenAIAPIKey != "" {
		t.Fatalf("unset key must stay empty, got %q", cfg.OpenAIAPIKey)
	}
}

func TestConfigEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearKeyEnv(t)

	configDir := filepath.Join(home, ".tiergate")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	data := []byte("api_keys:\n  anthropic: file-ant\n")
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ANTHROPIC_API_KEY", "env-ant")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnthropicAPIKey != "env-ant" {
		t.Fatalf("env must override file, got %q", cfg.AnthropicAPIKey)
	}
}

func TestConfigDefaultsWithoutFiles(t *testing.T) {
	setHomeEnv(t, t.TempDir())
	clearKeyEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Router == nil {
		t.Fatalf("router config must default")
	}
	if cfg.Router.DefaultTier != catalog.Tier0 {
		t.Fatalf("default tier must be T0, got %s", cfg.Router.DefaultTier)
	}
	if cfg.Router.MaxEscalationTier != catalog.MaxTier {
		t.Fatalf("escalation cap must default to the top tier")
	}
	if !cfg.Router.EnableCrossCheck || cfg.Router.EnableAutoEscalate {
		t.Fatalf("defaults: cross-check on, auto-escalate off, got %+v", cfg.Router)
	}
}

func TestHasProvider(t *testing.T) {
	cfg := &Config{AnthropicAPIKey: "k"}
	if !cfg.HasProvider("anthropic") {
		t.Fatalf("expected anthropic configured")
	}
	if cfg.HasProvider("openai") || cfg.HasProvider("unknown") {
		t.Fatalf("unexpected provider reported as configured")
	}
}

func TestLoadRouterConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.yaml")
	data := []byte(`default_tier: T1
max_escalation_tier: T2
enable_cross_check: false
enable_auto_escalate: true
policy_file: /etc/tiergate/policies.yaml
budget:
  max_tokens_per_day: 100000
  max_cost_per_day: 5.0
  users:
    alice:
      max_tokens_per_day: 50000
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write router config: %v", err)
	}

	cfg, err := LoadRouterConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultTier != catalog.Tier1 || cfg.MaxEscalationTier != catalog.Tier2 {
		t.Fatalf("tier mismatch: %+v", cfg)
	}
	if cfg.EnableCrossCheck || !cfg.EnableAutoEscalate {
		t.Fatalf("toggle mismatch: %+v", cfg)
	}
	if cfg.PolicyFile != "/etc/tiergate/policies.yaml" {
		t.Fatalf("policy file mismatch: %q", cfg.PolicyFile)
	}
	if cfg.Budget == nil || cfg.Budget.MaxCostPerDay != 5.0 {
		t.Fatalf("budget mismatch: %+v", cfg.Budget)
	}
	if cfg.Budget.Users["alice"].MaxTokensPerDay != 50000 {
		t.Fatalf("user override mismatch: %+v", cfg.Budget.Users)
	}
}

func TestLoadRouterConfigPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.yaml")
	if err := os.WriteFile(path, []byte("default_tier: T1\n"), 0600); err != nil {
		t.Fatalf("write router config: %v", err)
	}

	cfg, err := LoadRouterConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultTier != catalog.Tier1 {
		t.Fatalf("expected T1, got %s", cfg.DefaultTier)
	}
	// Unset toggles keep their defaults.
	if !cfg.EnableCrossCheck || cfg.EnableAutoEscalate {
		t.Fatalf("partial file must keep defaults: %+v", cfg)
	}
}

func TestLoadRouterConfigRejectsInvertedTiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.yaml")
	data := []byte("default_tier: T2\nmax_escalation_tier: T1\n")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write router config: %v", err)
	}

	if _, err := LoadRouterConfig(path); err == nil {
		t.Fatalf("expected error for cap below default tier")
	}
}

func TestLoadRouterConfigBadTier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.yaml")
	if err := os.WriteFile(path, []byte("default_tier: T9\n"), 0600); err != nil {
		t.Fatalf("write router config: %v", err)
	}
	if _, err := LoadRouterConfig(path); err == nil {
		t.Fatalf("expected error for unknown tier")
	}
}

func TestGateFromBudget(t *testing.T) {
	cfg := &Config{Router: &RouterConfig{
		Budget: &BudgetConfig{MaxCostPerDay: 1.0},
	}}
	if _, ok := cfg.Gate().(*quota.BudgetGate); !ok {
		t.Fatalf("expected budget gate, got %T", cfg.Gate())
	}

	bare := &Config{Router: &RouterConfig{}}
	if _, ok := bare.Gate().(quota.AllowAll); !ok {
		t.Fatalf("expected allow-all gate, got %T", bare.Gate())
	}
}

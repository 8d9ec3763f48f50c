package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	// APIKeys maps provider id to platform key.
	APIKeys       map[string]string
	RoutingConfig *RoutingConfig
	ConfigDir     string
	Path          string
}

// FileConfig represents the structure of ~/.relaygate/config.yaml. Platform
// keys are never read from the file.
type FileConfig struct {
	RoutingConfig `yaml:",inline"`
}

// keyEnv lists the environment variables consulted per provider, in order.
var keyEnv = map[string][]string{
	"anthropic": {"ANTHROPIC_API_KEY"},
	"openai":    {"OPENAI_API_KEY"},
	"google":    {"GOOGLE_AI_STUDIO_API_KEY", "GOOGLE_API_KEY"},
	"deepseek":  {"DEEPSEEK_API_KEY"},
}

// Load reads configuration from path, or ~/.relaygate/config.yaml when path
// is empty. A missing file yields DefaultRoutingConfig. Platform keys come from the
// environment only.
func Load(path string) (*Config, error) {
	configDir := ""
	if path == "" {
		dir, err := getConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		configDir = dir
		path = filepath.Join(dir, "config.yaml")
	} else {
		configDir = filepath.Dir(path)
	}

	fileConfig, err := loadFileConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	var routing *RoutingConfig
	if fileConfig == nil {
		routing = DefaultRoutingConfig()
	} else {
		routing = &fileConfig.RoutingConfig
		applyRoutingDefaults(routing)
	}

	cfg := &Config{
		APIKeys:       make(map[string]string),
		RoutingConfig: routing,
		ConfigDir:     configDir,
		Path:          path,
	}
	for provider, vars := range keyEnv {
		for _, v := range vars {
			if val := os.Getenv(v); val != "" {
				cfg.APIKeys[provider] = val
				break
			}
		}
	}
	return cfg, nil
}

// HasAdapter returns true if a platform key for the provider is configured.
func (c *Config) HasAdapter(name string) bool {
	if c == nil {
		return false
	}
	return c.APIKeys[strings.ToLower(name)] != ""
}

// KeyedProviders lists providers with a platform key, sorted.
func (c *Config) KeyedProviders() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.APIKeys))
	for p, k := range c.APIKeys {
		if k != "" {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// loadFileConfig reads the config file, returning nil if the file does not
// exist.
func loadFileConfig(path string) (*FileConfig, error) {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".relaygate"), nil
}

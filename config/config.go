package config

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/m4xw311/scribe/errors"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user and per-project configuration directory.
const DirName = ".scribe"

// DefaultTools are the built-in tools advertised when no default toolset is configured.
var DefaultTools = []string{"read_file", "list_files", "edit_file"}

type FilesystemAccess struct {
	Hidden   []string `yaml:"hidden"`
	ReadOnly []string `yaml:"read_only"`
}

type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type Toolset struct {
	Name  string   `yaml:"name"`
	Tools []string `yaml:"tools"`
}

type Config struct {
	LLMClient            string           `yaml:"llm"`
	Model                string           `yaml:"model"`
	BaseURL              string           `yaml:"base_url"`
	MaxTokens            int64            `yaml:"max_tokens"`
	Toolsets             []Toolset        `yaml:"toolsets"`
	AdditionalMCPServers []MCPServer      `yaml:"additional_mcp_servers"`
	FilesystemAccess     FilesystemAccess `yaml:"filesystem_access"`
	LogLevel             string           `yaml:"log_level"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	cfg := &Config{
		LLMClient: "mock",
		MaxTokens: 4096,
		LogLevel:  "info",
	}
	cfg.hideConfigDir()
	return cfg
}

// hideConfigDir keeps the configuration directory hidden from the model even
// when a loaded file replaces the hidden patterns.
func (c *Config) hideConfigDir() {
	for _, pattern := range []string{DirName, DirName + "/**"} {
		if !slices.Contains(c.FilesystemAccess.Hidden, pattern) {
			c.FilesystemAccess.Hidden = append(c.FilesystemAccess.Hidden, pattern)
		}
	}
}

// LoadConfig loads configuration from the user's home directory and the current
// working directory, with the latter taking precedence.
func LoadConfig() (*Config, error) {
	cfg := Default()

	// Load user-level config first
	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, DirName, "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := loadFromFile(userConfigPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	// Load project-level config, overriding user-level
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, DirName, "config.yaml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := loadFromFile(projectConfigPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	return cfg, nil
}

// LoadFile loads configuration from a single explicit file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, errors.Wrapf(err, "error loading config %s", path)
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Note: Unmarshal will overwrite fields present in the YAML. This provides
	// a simple merge where project-level config replaces user-level.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	cfg.hideConfigDir()
	return nil
}

// GetToolset finds a toolset by name. Returns the "default" toolset if the
// named one is not found or if an empty name is provided. A missing "default"
// toolset resolves to the built-in tools.
func (c *Config) GetToolset(name string) (*Toolset, error) {
	if name == "" {
		name = "default"
	}
	for _, ts := range c.Toolsets {
		if ts.Name == name {
			return &ts, nil
		}
	}
	if name == "default" {
		return &Toolset{Name: "default", Tools: append([]string(nil), DefaultTools...)}, nil
	}
	// Fallback to default if a specific toolset was requested but not found
	return c.GetToolset("default")
}

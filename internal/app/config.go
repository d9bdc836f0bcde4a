package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/raysh454/redline/internal/devserver"
	"github.com/raysh454/redline/internal/editorapi"
	"github.com/raysh454/redline/internal/export"
	"github.com/raysh454/redline/internal/generation"
	"github.com/raysh454/redline/internal/webclient"
)

// Config aggregates the per-package configurations.
type Config struct {
	EditorCfg     editorapi.Config  `yaml:"editor"`
	WebClientCfg  webclient.Config  `yaml:"webclient"`
	GenerationCfg generation.Config `yaml:"generation"`
	ExportCfg     export.Config     `yaml:"export"`
	DevServerCfg  devserver.Config  `yaml:"devserver"`
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() *Config {
	return &Config{
		EditorCfg:     editorapi.DefaultConfig(),
		WebClientCfg:  webclient.DefaultConfig(),
		GenerationCfg: generation.DefaultConfig(),
		ExportCfg:     export.DefaultConfig(),
		DevServerCfg:  devserver.DefaultConfig(),
	}
}

// LoadConfig overlays a YAML file onto the defaults. A missing path returns
// the defaults untouched.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

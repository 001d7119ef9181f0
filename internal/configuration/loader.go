package configuration

import (
	"fmt"
	"log/slog"

	"bftledger/internal/configuration/util"

	"gopkg.in/yaml.v3"
)

const DefaultDir = "internal/static"

// Load reads <dir>/application.yml, then overlays
// <dir>/application-<profile>.yml onto the same struct.
func Load(dir string) (*Properties, error) {
	cfg, err := loadBaseConfig(dir)
	if err != nil {
		return nil, err
	}

	if err := loadProfileConfig(dir, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadBaseConfig(dir string) (*Properties, error) {
	baseConfig, err := util.LoadAndExpandYaml(dir, "application")
	if err != nil {
		slog.Error("Error loading base config", "error", err)
		return nil, err
	}

	cfg := Default()
	cfg.App.Profile = ""
	if err := yaml.Unmarshal([]byte(baseConfig), cfg); err != nil {
		slog.Error("Error parsing base config", "error", err)
		return nil, fmt.Errorf("parse application.yml: %w", err)
	}

	if cfg.App.Profile == "" {
		return nil, ErrMissingProfile
	}

	return cfg, nil
}

func loadProfileConfig(dir string, cfg *Properties) error {
	name := "application-" + cfg.App.Profile
	profileConfig, err := util.LoadAndExpandYaml(dir, name)
	if err != nil {
		slog.Error("Error loading profile config", "profile", cfg.App.Profile, "error", err)
		return err
	}

	if err := yaml.Unmarshal([]byte(profileConfig), cfg); err != nil {
		slog.Error("Error parsing profile config", "profile", cfg.App.Profile, "error", err)
		return fmt.Errorf("parse %s.yml: %w", name, err)
	}

	return nil
}

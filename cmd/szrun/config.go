package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/sz-runtime/settings"
)

// toolConfig collects everything szrun needs to bring an environment up.
// Values flow in three layers: built-in defaults, then the TOML profile,
// then explicit command line flags.
type toolConfig struct {
	Name      string
	Database  string
	Settings  string
	Sources   []string
	Verbose   bool
	Ephemeral bool
}

func defaultConfig() toolConfig {
	return toolConfig{Name: "szrun"}
}

// profile is the szrun.toml key mapping.
type profile struct {
	Name      string   `toml:"name"`
	Database  string   `toml:"database"`
	Settings  string   `toml:"settings"`
	Sources   []string `toml:"sources"`
	Verbose   bool     `toml:"verbose"`
	Ephemeral bool     `toml:"ephemeral"`
}

// applyProfile overlays a TOML profile onto cfg. Only keys present in the
// file are applied.
func applyProfile(cfg toolConfig, path string) (toolConfig, error) {
	var raw profile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return toolConfig{}, fmt.Errorf("load profile: %w", err)
	}
	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("database") {
		cfg.Database = strings.TrimSpace(raw.Database)
	}
	if meta.IsDefined("settings") {
		cfg.Settings = strings.TrimSpace(raw.Settings)
	}
	if meta.IsDefined("sources") {
		cfg.Sources = raw.Sources
	}
	if meta.IsDefined("verbose") {
		cfg.Verbose = raw.Verbose
	}
	if meta.IsDefined("ephemeral") {
		cfg.Ephemeral = raw.Ephemeral
	}
	return cfg, nil
}

// document resolves the settings document from the configuration, falling
// back to the process environment.
func (c toolConfig) document() (string, error) {
	switch {
	case c.Settings != "":
		doc, err := settings.Parse(c.Settings)
		if err != nil {
			return "", err
		}
		if err := doc.Validate(); err != nil {
			return "", err
		}
		return doc.String(), nil
	case c.Ephemeral:
		return settings.Ephemeral("").String(), nil
	case c.Database != "":
		return settings.New(settings.SQLiteConnection(c.Database)).String(), nil
	default:
		if raw, ok := settings.FromEnv(); ok {
			return raw, nil
		}
		return "", fmt.Errorf("no repository given: use -db, -settings, -ephemeral or set %s", settings.EnvConfigurationJSON)
	}
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

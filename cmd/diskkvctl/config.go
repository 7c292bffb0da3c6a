package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// Config holds diskkvctl's effective, fully-resolved configuration.
type Config struct {
	Dir          string
	FlushDelayMS int
	SingleFile   bool
}

// fileConfig is the JSONC-parsed shape. SingleFile is a pointer so an
// absent field is distinguishable from an explicit "false" during merge.
type fileConfig struct {
	Dir          string `json:"dir,omitempty"`
	FlushDelayMS int    `json:"flush_delay_ms,omitempty"`
	SingleFile   *bool  `json:"single_file,omitempty"`
}

// DefaultConfig returns the built-in defaults, applied before any config
// file or CLI flag is considered.
func DefaultConfig() Config {
	return Config{
		Dir:          ".cache",
		FlushDelayMS: 1000,
		SingleFile:   true,
	}
}

// ConfigFileName is the default project config file name, looked up in
// the working directory.
const ConfigFileName = ".diskkvctl.json"

// CLIOverrides tracks which fields were explicitly set on the command
// line, so a flag's zero value doesn't shadow a config file's setting.
type CLIOverrides struct {
	Dir          string
	FlushDelayMS int
	SingleFile   bool
	HasDir       bool
	HasFlushMS   bool
	HasSingle    bool
}

// LoadConfig resolves the effective configuration with the following
// precedence (highest wins):
//  1. Defaults
//  2. Global user config ($XDG_CONFIG_HOME/diskkvctl/config.json or
//     ~/.config/diskkvctl/config.json)
//  3. Project config file in workDir (.diskkvctl.json), or an explicit
//     configPath override
//  4. CLI flags
func LoadConfig(workDir, configPath string, overrides CLIOverrides, env []string) (Config, error) {
	cfg := DefaultConfig()

	globalCfg, _, err := loadGlobalConfig(env)
	if err != nil {
		return Config{}, err
	}

	cfg = mergeConfig(cfg, globalCfg)

	projectCfg, _, err := loadProjectConfig(workDir, configPath)
	if err != nil {
		return Config{}, err
	}

	cfg = mergeConfig(cfg, projectCfg)

	if overrides.HasDir {
		cfg.Dir = overrides.Dir
	}

	if overrides.HasFlushMS {
		cfg.FlushDelayMS = overrides.FlushDelayMS
	}

	if overrides.HasSingle {
		cfg.SingleFile = overrides.SingleFile
	}

	if cfg.Dir == "" {
		return Config{}, fmt.Errorf("config: dir must not be empty")
	}

	return cfg, nil
}

func getGlobalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok {
			return filepath.Join(after, "diskkvctl", "config.json")
		}
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "diskkvctl", "config.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "diskkvctl", "config.json")
}

func loadGlobalConfig(env []string) (fileConfig, string, error) {
	path := getGlobalConfigPath(env)
	if path == "" {
		return fileConfig{}, "", nil
	}

	cfg, loaded, err := loadConfigFile(path, false)
	if err != nil || !loaded {
		return fileConfig{}, "", err
	}

	return cfg, path, nil
}

func loadProjectConfig(workDir, configPath string) (fileConfig, string, error) {
	path := configPath
	mustExist := configPath != ""

	if path == "" {
		path = filepath.Join(workDir, ConfigFileName)
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	cfg, loaded, err := loadConfigFile(path, mustExist)
	if err != nil || !loaded {
		return fileConfig{}, "", err
	}

	return cfg, path, nil
}

func loadConfigFile(path string, mustExist bool) (fileConfig, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled, not attacker-controlled input
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return fileConfig{}, false, nil
		}

		return fileConfig{}, false, fmt.Errorf("read config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, false, fmt.Errorf("invalid JSONC in %s: %w", path, err)
	}

	var cfg fileConfig
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return fileConfig{}, false, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}

	return cfg, true, nil
}

// mergeConfig overlays override's explicitly-set fields onto base.
func mergeConfig(base Config, override fileConfig) Config {
	if override.Dir != "" {
		base.Dir = override.Dir
	}

	if override.FlushDelayMS != 0 {
		base.FlushDelayMS = override.FlushDelayMS
	}

	if override.SingleFile != nil {
		base.SingleFile = *override.SingleFile
	}

	return base
}

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix namespaces environment overrides: EMBEDD_SERVER_PORT maps
	// to server.port.
	EnvPrefix = "EMBEDD_"
)

// bareEnv maps the unprefixed environment names accepted for drop-in
// compatibility to their config keys. They take precedence over EMBEDD_*.
var bareEnv = map[string]string{
	"HOST":        "server.host",
	"PORT":        "server.port",
	"CORS":        "server.cors",
	"MODEL_ID":    "model.id",
	"MODEL_LABEL": "model.label",
	"NORMALIZE":   "embedding.normalize",
	"TARGET_DIM":  "embedding.target_dim",
	"LOG_LEVEL":   "logging.level",
}

// Load reads configuration.
//
// Precedence (highest to lowest):
//  1. Bare environment names (PORT, MODEL_ID, TARGET_DIM, ...)
//  2. EMBEDD_* environment variables (EMBEDD_MODEL_BACKEND -> model.backend)
//  3. YAML file at configPath
//  4. Default()
//
// An explicit configPath must exist. With an empty configPath the file at
// DefaultPath is read when present. Files over 1MB, or writable by group or
// others, are rejected since they may carry API keys.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	path, required := configPath, configPath != ""
	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		content, err := readConfigFile(path, required)
		if err != nil {
			return nil, err
		}
		if content != nil {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", prefixedKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := k.Load(env.ProviderWithValue("", ".", bareKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	normalize(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPath returns ~/.config/embedd/config.yaml, or "" when the home
// directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "embedd", "config.yaml")
}

// prefixedKey maps EMBEDD_SECTION_FIELD_NAME to section.field_name. Blank
// values are skipped so an empty variable does not clear a setting.
func prefixedKey(key, value string) (string, interface{}) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	lower := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower, value
	}
	return parts[0] + "." + parts[1], value
}

func bareKey(key, value string) (string, interface{}) {
	mapped, ok := bareEnv[key]
	if !ok || strings.TrimSpace(value) == "" {
		return "", nil
	}
	return mapped, value
}

func readConfigFile(path string, required bool) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	// Stat the open descriptor to avoid a TOCTOU race with the read.
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(content) > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large (max %d bytes)", maxConfigFileSize)
	}
	return content, nil
}

func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", info.Name())
	}
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm&0o022 != 0 {
			return fmt.Errorf("insecure config file permissions: %v (must not be group or world writable)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// normalize canonicalizes enumerations after unmarshaling.
func normalize(cfg *Config) {
	cfg.Model.Backend = strings.ToLower(strings.TrimSpace(cfg.Model.Backend))
	cfg.Model.BaseURL = strings.TrimRight(cfg.Model.BaseURL, "/")
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	cfg.Telemetry.Protocol = strings.ToLower(strings.TrimSpace(cfg.Telemetry.Protocol))
	if cfg.Telemetry.Protocol == "http" {
		cfg.Telemetry.Protocol = "http/protobuf"
	}
}

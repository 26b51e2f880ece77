package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yml"
	AppDirName     = "clipfetch"
)

// Facebook delivery modes. Picked once per deployment, never per request:
// a redirect hands the client the upstream CDN URL, a stream proxies it.
const (
	DeliveryStream   = "stream"
	DeliveryRedirect = "redirect"
)

// ConfigDir returns the standard config directory for clipfetch.
// Windows: %APPDATA%\clipfetch\
// macOS/Linux: ~/.config/clipfetch/
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the path to the config file.
// e.g., ~/.config/clipfetch/config.yml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

type Config struct {
	// Default output directory for CLI downloads
	OutputDir string `yaml:"output_dir,omitempty"`

	// Directory for the on-disk media cache (cached-file delivery)
	CacheDir string `yaml:"cache_dir,omitempty"`

	// Default YouTube quality preference (e.g., "1080p", "720p", itag number)
	Quality string `yaml:"quality,omitempty"`

	// Upstream fetch timeout in seconds (0 uses the built-in default of 30)
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds,omitempty"`

	// Log level: "debug", "info", "warn", "error"
	LogLevel string `yaml:"log_level,omitempty"`

	// Facebook-specific settings
	Facebook FacebookConfig `yaml:"facebook,omitempty"`

	// Server configuration for `clipfetch serve`
	Server ServerConfig `yaml:"server,omitempty"`
}

// FacebookConfig holds Facebook resolver settings.
type FacebookConfig struct {
	// Delivery is "redirect" (default) or "stream"
	Delivery string `yaml:"delivery,omitempty"`
}

// DeliveryMode returns the configured Facebook delivery mode, normalized.
func (f FacebookConfig) DeliveryMode() string {
	if strings.EqualFold(f.Delivery, DeliveryStream) {
		return DeliveryStream
	}
	return DeliveryRedirect
}

// ServerConfig holds HTTP server settings for `clipfetch serve`.
type ServerConfig struct {
	// Port is the HTTP listen port (default: 8080)
	Port int `yaml:"port,omitempty"`

	// APIKey for authentication (optional, if set all download requests must
	// include the X-API-Key header)
	APIKey string `yaml:"api_key,omitempty"`
}

// DefaultDownloadDir returns the default download directory.
func DefaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./downloads"
	}

	switch runtime.GOOS {
	case "darwin", "windows":
		return filepath.Join(home, "Downloads", "clipfetch")
	default:
		return filepath.Join(home, "downloads")
	}
}

// DefaultCacheDir returns the default on-disk cache directory.
func DefaultCacheDir() string {
	if dir, err := ConfigDir(); err == nil {
		return filepath.Join(dir, "cache")
	}
	return filepath.Join(os.TempDir(), "clipfetch-cache")
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputDir: DefaultDownloadDir(),
		CacheDir:  DefaultCacheDir(),
		Quality:   "best",
		LogLevel:  "info",
		Facebook:  FacebookConfig{Delivery: DeliveryRedirect},
		Server:    ServerConfig{Port: 8080},
	}
}

// Exists checks if the config file exists.
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the config from ~/.config/clipfetch/config.yml
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.OutputDir = expandPath(cfg.OutputDir)
	cfg.CacheDir = expandPath(cfg.CacheDir)

	return cfg, nil
}

// expandPath expands the tilde (~) in the path to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		if len(path) == 1 || path[1] == '/' || path[1] == '\\' {
			home, err := os.UserHomeDir()
			if err == nil {
				subPath := path[1:]
				if len(subPath) > 0 && (subPath[0] == '/' || subPath[0] == '\\') {
					subPath = subPath[1:]
				}
				return filepath.Join(home, subPath)
			}
		}
	}

	return path
}

// Save writes the config to ~/.config/clipfetch/config.yml
func Save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	configPath, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := "# clipfetch configuration file\n\n"
	content := header + string(data)

	return os.WriteFile(configPath, []byte(content), 0644)
}

// LoadOrDefault loads config if it exists, otherwise returns defaults.
// Missing fields are backfilled so callers never see zero values.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		cfg = DefaultConfig()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultDownloadDir()
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir()
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	return cfg
}

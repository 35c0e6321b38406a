package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Catalog CatalogConfig `mapstructure:"catalog"`
	Player  PlayerConfig  `mapstructure:"player"`
	Cache   CacheConfig   `mapstructure:"cache"`
	UI      UIConfig      `mapstructure:"ui"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// CatalogConfig holds the film catalog API configuration
type CatalogConfig struct {
	URL      string        `mapstructure:"url"`       // Base URL of the catalog API
	CacheTTL time.Duration `mapstructure:"cache_ttl"` // How long a stored catalog snapshot stays fresh
}

// PlayerConfig holds media player configuration
type PlayerConfig struct {
	Command         string        `mapstructure:"command"`          // mpv binary, empty = auto-detect
	Args            []string      `mapstructure:"args"`             // Extra mpv arguments
	SocketDir       string        `mapstructure:"socket_dir"`       // Where IPC sockets are created
	Volume          float64       `mapstructure:"volume"`           // Initial volume (0-1)
	MaxBandwidth    int           `mapstructure:"max_bandwidth"`    // HLS variant cap in bits/s, 0 = no cap
	ResumeThreshold time.Duration `mapstructure:"resume_threshold"` // Minimum position worth persisting
}

// CacheConfig holds image cache configuration
type CacheConfig struct {
	MaxEntries   int           `mapstructure:"max_entries"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	Stagger      time.Duration `mapstructure:"stagger"`       // Delay between scheduled prefetches
	Concurrency  int           `mapstructure:"concurrency"`   // Parallel fetches
	MaxDimension int           `mapstructure:"max_dimension"` // Downscale posters above this size, 0 = keep
}

// UIConfig holds UI configuration
type UIConfig struct {
	Theme       string `mapstructure:"theme"`
	WaveCount   int    `mapstructure:"wave_count"`   // Number of waves the catalog list is revealed in
	NarrowWidth int    `mapstructure:"narrow_width"` // Below this width the player defers to mpv's own controls
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// MetricsConfig holds the optional prometheus listener
type MetricsConfig struct {
	Listen string `mapstructure:"listen"` // e.g. "127.0.0.1:9470", empty = disabled
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			URL:      "",
			CacheTTL: 15 * time.Minute,
		},
		Player: PlayerConfig{
			Command:         "",
			Args:            []string{},
			SocketDir:       os.TempDir(),
			Volume:          1,
			ResumeThreshold: 10 * time.Second,
		},
		Cache: CacheConfig{
			MaxEntries:   50,
			MaxAge:       30 * time.Minute,
			Stagger:      100 * time.Millisecond,
			Concurrency:  4,
			MaxDimension: 600,
		},
		UI: UIConfig{
			Theme:       "default",
			WaveCount:   5,
			NarrowWidth: 80,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "reel", "reel.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "reel", "reel.log")
	}
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "reel")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "reel")
	}
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "reel", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "reel", "cache")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	return load(viper.GetViper(), defaultConfigPath(), ".")
}

func load(v *viper.Viper, paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Environment variable overrides (REEL_CATALOG_URL, ...)
	v.SetEnvPrefix("REEL")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	bindEnv(v)

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

// normalize clamps values that would break the components they configure
func (c *Config) normalize() {
	d := DefaultConfig()
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = d.Cache.MaxEntries
	}
	if c.Cache.MaxAge <= 0 {
		c.Cache.MaxAge = d.Cache.MaxAge
	}
	if c.Cache.Concurrency <= 0 {
		c.Cache.Concurrency = d.Cache.Concurrency
	}
	if c.UI.WaveCount <= 0 {
		c.UI.WaveCount = d.UI.WaveCount
	}
	if c.Player.Volume < 0 || c.Player.Volume > 1 {
		c.Player.Volume = d.Player.Volume
	}
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	configPath := defaultConfigPath()

	// Ensure config directory exists
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set("catalog.url", cfg.Catalog.URL)
	viper.Set("catalog.cache_ttl", cfg.Catalog.CacheTTL.String())

	viper.Set("player.command", cfg.Player.Command)
	viper.Set("player.args", cfg.Player.Args)
	viper.Set("player.volume", cfg.Player.Volume)
	viper.Set("player.max_bandwidth", cfg.Player.MaxBandwidth)

	viper.Set("ui.theme", cfg.UI.Theme)
	viper.Set("ui.wave_count", cfg.UI.WaveCount)

	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Watch re-reads the config file whenever it changes and hands the result to onChange.
// Only fields that components can apply live are worth reacting to (cache limits, log level)
func Watch(logger *slog.Logger, onChange func(*Config)) {
	if logger == nil {
		logger = slog.Default()
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg := DefaultConfig()
		if err := viper.Unmarshal(cfg); err != nil {
			logger.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}
		cfg.normalize()
		logger.Info("config reloaded", "file", e.Name)
		onChange(cfg)
	})
	viper.WatchConfig()
}

// IsConfigured returns true if the catalog URL is set
func (c *Config) IsConfigured() bool {
	return c.Catalog.URL != ""
}

// ClearCache removes all cached data
func ClearCache() error {
	cachePath := defaultCachePath()
	if err := os.RemoveAll(cachePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// GetCachePath returns the cache directory path
func GetCachePath() string {
	return defaultCachePath()
}

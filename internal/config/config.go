// Package config handles configuration management using Viper
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Display DisplayConfig `mapstructure:"display"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// DisplayConfig contains connection settings
type DisplayConfig struct {
	Socket        string        `mapstructure:"socket"`         // Empty means $WAYLAND_DISPLAY
	SyncTimeout   time.Duration `mapstructure:"sync_timeout"`   // Zero waits forever
	FlushInterval time.Duration `mapstructure:"flush_interval"` // Host loop tick
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // Override LOG_LEVEL env var
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Display: DisplayConfig{
			Socket:        "",
			SyncTimeout:   0,
			FlushInterval: 16 * time.Millisecond,
		},
		Logging: LoggingConfig{
			LogLevel: "", // Empty means use LOG_LEVEL env var
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Reset drops the loaded configuration and any path override
func Reset() {
	viper.Reset()
	cfg = nil
	configPathOverride = ""
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("wlprobe")
	viper.SetConfigType("toml")

	// If a specific path is set, use only that
	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			viper.AddConfigPath(filepath.Join(xdg, "wlprobe"))
		}
		if home := os.Getenv("HOME"); home != "" {
			viper.AddConfigPath(filepath.Join(home, ".config", "wlprobe"))
		}
		viper.AddConfigPath(".") // Current directory (lowest priority)
	}

	viper.SetEnvPrefix("WLPROBE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults - need to set individual fields for proper merging
	viper.SetDefault("display.socket", DefaultConfig.Display.Socket)
	viper.SetDefault("display.sync_timeout", DefaultConfig.Display.SyncTimeout)
	viper.SetDefault("display.flush_interval", DefaultConfig.Display.FlushInterval)
	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	c := &Config{}
	if err := viper.Unmarshal(c); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}

	cfg = c
	return nil
}

// Validate rejects settings the display layer cannot use
func (c *Config) Validate() error {
	if c.Display.SyncTimeout < 0 {
		return fmt.Errorf("display.sync_timeout must not be negative, got %s", c.Display.SyncTimeout)
	}
	if c.Display.FlushInterval <= 0 {
		return fmt.Errorf("display.flush_interval must be positive, got %s", c.Display.FlushInterval)
	}
	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		return &DefaultConfig
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "wlprobe", "wlprobe.toml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "wlprobe.toml"
	}
	return filepath.Join(home, ".config", "wlprobe", "wlprobe.toml")
}

package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/matt0x6f/ircsession/internal/constants"
)

// Config holds client configuration values.
type Config struct {
	LogLevel         string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath     string        `mapstructure:"database_path" yaml:"database_path"`
	RealName         string        `mapstructure:"realname" yaml:"realname"`
	QuitMessage      string        `mapstructure:"quit_message" yaml:"quit_message"`
	DiscoveryDelay   time.Duration `mapstructure:"discovery_delay" yaml:"discovery_delay"`
	DirectoryTimeout time.Duration `mapstructure:"directory_timeout" yaml:"directory_timeout"`
	ReconnectFreq    time.Duration `mapstructure:"reconnect_freq" yaml:"reconnect_freq"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	AutoConnect      bool          `mapstructure:"auto_connect" yaml:"auto_connect"`
	Notifications    bool          `mapstructure:"notifications" yaml:"notifications"`
	MetricsAddr      string        `mapstructure:"metrics_addr" yaml:"metrics_addr"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		LogLevel:         "info",
		DatabasePath:     defaultDatabasePath(),
		RealName:         constants.DefaultRealName,
		QuitMessage:      constants.DefaultQuitMessage,
		DiscoveryDelay:   constants.DiscoveryDelay,
		DirectoryTimeout: constants.DirectoryTimeout,
		ReconnectFreq:    30 * time.Second,
		ConnectTimeout:   30 * time.Second,
		AutoConnect:      true,
		Notifications:    true,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Booleans are left alone since false cannot be told apart from unset.
func (c *Config) UpdateFrom(other Config) {
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.RealName != "" {
		c.RealName = other.RealName
	}
	if other.QuitMessage != "" {
		c.QuitMessage = other.QuitMessage
	}
	if other.DiscoveryDelay != 0 {
		c.DiscoveryDelay = other.DiscoveryDelay
	}
	if other.DirectoryTimeout != 0 {
		c.DirectoryTimeout = other.DirectoryTimeout
	}
	if other.ReconnectFreq != 0 {
		c.ReconnectFreq = other.ReconnectFreq
	}
	if other.ConnectTimeout != 0 {
		c.ConnectTimeout = other.ConnectTimeout
	}
	if other.MetricsAddr != "" {
		c.MetricsAddr = other.MetricsAddr
	}
}

func defaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "ircsession.db"
	}
	return filepath.Join(dir, "ircsession", "ircsession.db")
}

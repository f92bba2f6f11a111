// ABOUTME: Relay configuration loading
// ABOUTME: Viper-backed config file with env overrides and defaults
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds relay server configuration
type Config struct {
	Port              int           `mapstructure:"port"`
	Name              string        `mapstructure:"name"`
	LogFile           string        `mapstructure:"log_file"`
	EnableMDNS        bool          `mapstructure:"enable_mdns"`
	Debug             bool          `mapstructure:"debug"`
	EmptyRoomTTL      time.Duration `mapstructure:"empty_room_ttl"`
	HostOnlyTransport bool          `mapstructure:"host_only_transport"`
}

// Load reads the relay config. A config file is optional; defaults and
// CINESYNC_* environment variables cover the rest. An explicit path wins
// over the search paths.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("cinesync-relay")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("cinesync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 4000)
	v.SetDefault("name", "")
	v.SetDefault("log_file", "cinesync-relay.log")
	v.SetDefault("enable_mdns", true)
	v.SetDefault("debug", false)
	v.SetDefault("empty_room_ttl", "5m")
	v.SetDefault("host_only_transport", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// A file that exists but cannot be parsed is an error no
			// matter how it was found
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file is fine; defaults and env apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

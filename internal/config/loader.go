package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const envPrefix = "PSICORISCO"

// Load reads the configuration file at path, applies environment
// overrides, defaults and validation. An empty path loads purely from
// the environment.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return unmarshal(v)
}

// LoadFromEnv builds the configuration from environment variables only.
// Nested keys use underscores: PSICORISCO_DATABASE_HOST, etc.
func LoadFromEnv() (*Config, error) {
	return unmarshal(newViper())
}

// MustLoad is Load that panics on error, for binary entrypoints.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Watch re-reads the configuration file on change and invokes onChange
// with the fresh configuration. Invalid reloads are reported to onError
// and the previous configuration stays in effect.
func Watch(path string, onChange func(*Config), onError func(error)) error {
	if path == "" {
		return fmt.Errorf("watch requires a config file path")
	}
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := unmarshal(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

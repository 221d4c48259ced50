package config

import (
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
)

// envPrefix is the environment variable prefix for every setting.
const envPrefix = "CDSS"

// newViper builds a Viper instance with YAML file type, the CDSS_ env prefix
// and a "." → "_" key replacer, so "kafka.brokers" resolves to
// CDSS_KAFKA_BROKERS.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerDefaults(v)
	return v
}

// Load reads the YAML file at configPath, merges CDSS_* overrides, applies
// defaults and validates.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "config: failed to read config file").WithDetail(configPath)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from CDSS_* variables and defaults alone.
//
//	CDSS_<SECTION>_<FIELD>   e.g.  CDSS_REDIS_ADDR, CDSS_CHUNKING_MAX_CHARS
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

// LoadOrDefault loads configPath when set, else the environment.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	return Load(configPath)
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "config: failed to unmarshal configuration")
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Watch reloads configPath on every write and hands the new Config to
// onChange. Invalid edits go to onError, if set, and are otherwise dropped.
// Callers apply only the settings that are safe to change at runtime.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "config: failed to read config file").WithDetail(configPath)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
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

// MustLoad is Load that panics on error, for use in main.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic("config: MustLoad failed: " + err.Error())
	}
	return cfg
}

//Personal.AI order the ending

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

type Config struct {
	Host       string   `mapstructure:"host"`
	Port       int      `mapstructure:"port"`
	Store      string   `mapstructure:"store"`
	ServiceKey string   `mapstructure:"service_key"`
	StaticDir  string   `mapstructure:"static_dir"`
	LogLevel   string   `mapstructure:"log_level"`
	Users      []string `mapstructure:"users"`

	SeedName    string `mapstructure:"seed_name"`
	SeedContent string `mapstructure:"seed_content"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// New returns a viper instance with defaults and TR_ prefixed environment
// overrides. When cfgFile is empty ./trustreg.yaml is used if present.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8888)
	v.SetDefault("store", StoreMemory)
	v.SetDefault("service_key", "")
	v.SetDefault("static_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("users", []string{})
	v.SetDefault("seed_name", "")
	v.SetDefault("seed_content", "")

	v.SetEnvPrefix("TR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("trustreg")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

func Parse(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	switch c.Store {
	case StoreMemory, StoreSQLite:
	default:
		return nil, fmt.Errorf("unknown store %q", c.Store)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", c.Port)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return nil, err
	}
	return &c, nil
}

func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// Package config loads iocagg settings from .env, environment variables and
// an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Sources     string `mapstructure:"sources"`
	MinScore    int    `mapstructure:"min_score"`
	Country     string `mapstructure:"country"`
	Type        string `mapstructure:"type"`
	Limit       int    `mapstructure:"limit"`
	SaveTo      string `mapstructure:"save_to"`
	OutputDir   string `mapstructure:"output_dir"`
	FetchCap    int    `mapstructure:"fetch_cap"`
	DatabaseURL string `mapstructure:"database_url"`

	AbuseIPDBKey      string `mapstructure:"abuseipdb_api_key"`
	OTXKey            string `mapstructure:"otx_api_key"`
	URLHausOnlineOnly bool   `mapstructure:"urlhaus_online_only"`

	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	RESTPort        string        `mapstructure:"rest_port"`
	AuthToken       string        `mapstructure:"auth_token"`
	GRPCListenAddr  string        `mapstructure:"grpc_listen_addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envBindings maps config keys to the environment variables that feed them,
// first match wins.
var envBindings = map[string][]string{
	"abuseipdb_api_key":       {"ABUSEIPDB_API_KEY"},
	"otx_api_key":             {"ALIENVAULT_API_KEY", "OTX_API_KEY"},
	"database_url":            {"DATABASE_URL"},
	"fetch_cap":               {"IOCAGG_FETCH_CAP"},
	"urlhaus_online_only":     {"IOCAGG_URLHAUS_ONLINE_ONLY"},
	"output_dir":              {"IOCAGG_OUTPUT_DIR"},
	"server.rest_port":        {"REST_API_PORT"},
	"server.auth_token":       {"REST_API_AUTH_TOKEN"},
	"server.grpc_listen_addr": {"GRPC_LISTEN_ADDR"},
	"logging.level":           {"LOG_LEVEL"},
	"logging.format":          {"LOG_FORMAT"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sources", "abuseipdb,otx")
	v.SetDefault("min_score", 90)
	v.SetDefault("limit", 10)
	v.SetDefault("output_dir", ".")
	v.SetDefault("fetch_cap", 10_000)
	v.SetDefault("urlhaus_online_only", true)

	v.SetDefault("server.rest_port", "8080")
	v.SetDefault("server.grpc_listen_addr", "localhost:50051") // localhost only by default
	v.SetDefault("server.request_timeout", 2*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// New returns a viper instance with defaults and environment bindings.
// Callers may bind CLI flags on top before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
	return v
}

// LoadDotEnv loads .env from the working directory when present. A missing
// file is fine; not all providers need API keys.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("no .env loaded: %w", err)
	}
	return nil
}

// Load reads the optional config file and decodes everything into Config.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config %s: %w", cfgFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

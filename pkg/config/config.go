package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const redacted = "<redacted>"

const (
	// EnvPrefix is the prefix of environment variable overrides, e.g.
	// RTD_API_SERVER_LISTEN.
	EnvPrefix = "RTD"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultListen is the default API listen address.
	DefaultListen = ":8080"

	// DefaultSessionTTL is the default lifetime of a login session.
	DefaultSessionTTL = 24 * time.Hour

	// DefaultMaxUploadBytes bounds the size of an uploaded result file.
	DefaultMaxUploadBytes = 10 << 20

	// DefaultIngestInterval is the default delay between ingest passes.
	DefaultIngestInterval = 60 * time.Second

	// DefaultIngestConcurrency is the default number of builds ingested in
	// parallel.
	DefaultIngestConcurrency = 4

	// DefaultArchivePrefix is the default key prefix of archived uploads.
	DefaultArchivePrefix = "imports"
)

// Config is the root configuration for rtd.
type Config struct {
	Global GlobalConfig `yaml:"global" mapstructure:"global"`
	API    *APIConfig   `yaml:"api,omitempty" mapstructure:"api"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// Load reads and merges the given configuration files in order, applies
// defaults and RTD_* environment overrides.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyDefaults(v)

	for i, path := range paths {
		v.SetConfigFile(path)

		var err error
		if i == 0 {
			err = v.ReadInConfig()
		} else {
			err = v.MergeInConfig()
		}

		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults registers every leaf key with viper so that environment
// overrides are picked up even when the key is absent from the files.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)

	v.SetDefault("api.server.listen", DefaultListen)
	v.SetDefault("api.server.cors_origins", []string{})
	v.SetDefault("api.server.max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("api.server.metrics", false)
	v.SetDefault("api.server.rate_limit.enabled", false)
	v.SetDefault("api.server.rate_limit.auth.requests_per_minute", 10)
	v.SetDefault("api.server.rate_limit.authenticated.requests_per_minute", 600)

	v.SetDefault("api.auth.session_ttl", DefaultSessionTTL.String())
	v.SetDefault("api.auth.anonymous_read", false)
	v.SetDefault("api.auth.basic.enabled", false)

	v.SetDefault("api.database.driver", "sqlite")
	v.SetDefault("api.database.sqlite.path", "rtd.db")
	v.SetDefault("api.database.postgres.host", "localhost")
	v.SetDefault("api.database.postgres.port", 5432)
	v.SetDefault("api.database.postgres.user", "")
	v.SetDefault("api.database.postgres.password", "")
	v.SetDefault("api.database.postgres.database", "rtd")
	v.SetDefault("api.database.postgres.ssl_mode", "disable")
}

// applyDefaults fills values that must not stay empty after decoding.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.API == nil {
		return
	}

	if c.API.Server.MaxUploadBytes <= 0 {
		c.API.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}

	if c.API.Auth.SessionTTL <= 0 {
		c.API.Auth.SessionTTL = DefaultSessionTTL
	}

	if c.API.Archive != nil && c.API.Archive.Prefix == "" {
		c.API.Archive.Prefix = DefaultArchivePrefix
	}

	if c.API.Ingest != nil {
		if c.API.Ingest.Interval <= 0 {
			c.API.Ingest.Interval = DefaultIngestInterval
		}

		if c.API.Ingest.Concurrency <= 0 {
			c.API.Ingest.Concurrency = DefaultIngestConcurrency
		}
	}
}

// decodeHook converts duration strings and comma separated lists, the
// forms environment overrides arrive in.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		stringToSliceHook(),
	)
}

func stringToSliceHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
			return data, nil
		}

		raw, _ := data.(string)
		if raw == "" {
			return []string{}, nil
		}

		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		return parts, nil
	}
}

// ValidateAPI checks the API section for errors.
func (c *Config) ValidateAPI() error {
	if c.API == nil {
		return errors.New("api section is required")
	}

	return c.API.Validate()
}

// Redacted returns a deep copy of the configuration with secrets masked.
func (c *Config) Redacted() *Config {
	out := *c
	if c.API == nil {
		return &out
	}

	api := *c.API

	if api.Database.Postgres.Password != "" {
		api.Database.Postgres.Password = redacted
	}

	users := make([]BasicAuthUser, len(api.Auth.Basic.Users))
	for i, u := range api.Auth.Basic.Users {
		u.Password = redacted
		users[i] = u
	}

	api.Auth.Basic.Users = users

	if api.Archive != nil {
		archive := *api.Archive
		archive.S3 = redactS3(archive.S3)
		api.Archive = &archive
	}

	if api.Ingest != nil {
		ingest := *api.Ingest
		ingest.S3 = redactS3(ingest.S3)
		api.Ingest = &ingest
	}

	out.API = &api

	return &out
}

func redactS3(cfg *S3Config) *S3Config {
	if cfg == nil {
		return nil
	}

	cp := *cfg
	if cp.AccessKeyID != "" {
		cp.AccessKeyID = redacted
	}

	if cp.SecretAccessKey != "" {
		cp.SecretAccessKey = redacted
	}

	return &cp
}

// YAML renders the configuration with secrets masked.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.Redacted())
}

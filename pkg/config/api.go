package config

import (
	"errors"
	"fmt"
	"time"
)

// User roles.
const (
	RoleAdmin  = "admin"
	RoleTester = "tester"
	RoleViewer = "viewer"
)

// ValidRole reports whether role is a known user role.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleTester, RoleViewer:
		return true
	default:
		return false
	}
}

// APIConfig contains all API server configuration.
type APIConfig struct {
	Server   APIServerConfig   `yaml:"server" mapstructure:"server"`
	Auth     APIAuthConfig     `yaml:"auth" mapstructure:"auth"`
	Database APIDatabaseConfig `yaml:"database" mapstructure:"database"`
	Archive  *ArchiveConfig    `yaml:"archive,omitempty" mapstructure:"archive"`
	Ingest   *IngestConfig     `yaml:"ingest,omitempty" mapstructure:"ingest"`
}

// APIServerConfig contains HTTP server settings.
type APIServerConfig struct {
	Listen         string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins    []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	MaxUploadBytes int64           `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
	Metrics        bool            `yaml:"metrics" mapstructure:"metrics"`
	RateLimit      RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	Auth          RateLimitTier `yaml:"auth,omitempty" mapstructure:"auth"`
	Authenticated RateLimitTier `yaml:"authenticated,omitempty" mapstructure:"authenticated"`
}

// RateLimitTier defines request limits for a specific tier.
type RateLimitTier struct {
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// APIAuthConfig contains authentication settings.
type APIAuthConfig struct {
	SessionTTL    time.Duration   `yaml:"session_ttl" mapstructure:"session_ttl"`
	AnonymousRead bool            `yaml:"anonymous_read" mapstructure:"anonymous_read"`
	Basic         BasicAuthConfig `yaml:"basic,omitempty" mapstructure:"basic"`
}

// BasicAuthConfig configures username/password authentication.
type BasicAuthConfig struct {
	Enabled bool            `yaml:"enabled" mapstructure:"enabled"`
	Users   []BasicAuthUser `yaml:"users,omitempty" mapstructure:"users"`
}

// BasicAuthUser defines a basic auth user from config.
type BasicAuthUser struct {
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Role     string `yaml:"role" mapstructure:"role"`
}

// APIDatabaseConfig contains database connection settings.
type APIDatabaseConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// ArchiveConfig keeps a verbatim copy of every uploaded result file.
// Exactly one of S3 or Local must be set when enabled.
type ArchiveConfig struct {
	Enabled bool                `yaml:"enabled" mapstructure:"enabled"`
	Prefix  string              `yaml:"prefix,omitempty" mapstructure:"prefix"`
	S3      *S3Config           `yaml:"s3,omitempty" mapstructure:"s3"`
	Local   *LocalArchiveConfig `yaml:"local,omitempty" mapstructure:"local"`
}

// LocalArchiveConfig stores archived uploads below a directory.
type LocalArchiveConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// S3Config contains S3-compatible storage settings.
type S3Config struct {
	EndpointURL     string   `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string   `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string   `yaml:"bucket" mapstructure:"bucket"`
	AccessKeyID     string   `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string   `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool     `yaml:"force_path_style" mapstructure:"force_path_style"`
	StorageClass    string   `yaml:"storage_class,omitempty" mapstructure:"storage_class"`
	DiscoveryPaths  []string `yaml:"discovery_paths,omitempty" mapstructure:"discovery_paths"`
}

// IngestConfig configures the background ingester that imports result
// files dropped into storage under {discovery_path}/builds/{build_id}/.
type IngestConfig struct {
	Enabled     bool               `yaml:"enabled" mapstructure:"enabled"`
	Interval    time.Duration      `yaml:"interval,omitempty" mapstructure:"interval"`
	Concurrency int                `yaml:"concurrency,omitempty" mapstructure:"concurrency"`
	S3          *S3Config          `yaml:"s3,omitempty" mapstructure:"s3"`
	Local       *LocalIngestConfig `yaml:"local,omitempty" mapstructure:"local"`
}

// LocalIngestConfig maps discovery path names to local directories.
type LocalIngestConfig struct {
	DiscoveryPaths map[string]string `yaml:"discovery_paths,omitempty" mapstructure:"discovery_paths"`
}

// Validate checks the API configuration for errors.
func (c *APIConfig) Validate() error {
	if c.Server.Listen == "" {
		return errors.New("server.listen is required")
	}

	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if c.Auth.Basic.Enabled {
		seen := make(map[string]struct{}, len(c.Auth.Basic.Users))

		for i, u := range c.Auth.Basic.Users {
			if u.Username == "" || u.Password == "" {
				return fmt.Errorf("auth.basic.users[%d]: username and password are required", i)
			}

			if _, ok := seen[u.Username]; ok {
				return fmt.Errorf("auth.basic.users[%d]: duplicate username %q", i, u.Username)
			}

			seen[u.Username] = struct{}{}

			if !ValidRole(u.Role) {
				return fmt.Errorf(
					"auth.basic.users[%d]: role must be %q, %q or %q",
					i, RoleAdmin, RoleTester, RoleViewer,
				)
			}
		}
	}

	if c.Server.RateLimit.Enabled {
		if c.Server.RateLimit.Auth.RequestsPerMinute <= 0 ||
			c.Server.RateLimit.Authenticated.RequestsPerMinute <= 0 {
			return errors.New("rate_limit: requests_per_minute must be positive")
		}
	}

	if c.Archive != nil && c.Archive.Enabled {
		if err := c.Archive.Validate(); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
	}

	if c.Ingest != nil && c.Ingest.Enabled {
		if err := c.Ingest.Validate(); err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
	}

	return nil
}

// Validate checks the database configuration for errors.
func (c *APIDatabaseConfig) Validate() error {
	switch c.Driver {
	case "sqlite":
		if c.SQLite.Path == "" {
			return errors.New("sqlite.path is required")
		}
	case "postgres":
		if c.Postgres.Host == "" || c.Postgres.Database == "" {
			return errors.New("postgres.host and postgres.database are required")
		}
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}

	return nil
}

// Validate checks the archive configuration for errors.
func (c *ArchiveConfig) Validate() error {
	switch {
	case c.S3 != nil && c.Local != nil:
		return errors.New("only one of s3 or local may be configured")
	case c.S3 != nil:
		if c.S3.Bucket == "" {
			return errors.New("s3.bucket is required")
		}
	case c.Local != nil:
		if c.Local.Dir == "" {
			return errors.New("local.dir is required")
		}
	default:
		return errors.New("one of s3 or local must be configured")
	}

	return nil
}

// Validate checks the ingest configuration for errors.
func (c *IngestConfig) Validate() error {
	switch {
	case c.S3 != nil && c.Local != nil:
		return errors.New("only one of s3 or local may be configured")
	case c.S3 != nil:
		if c.S3.Bucket == "" {
			return errors.New("s3.bucket is required")
		}

		if len(c.S3.DiscoveryPaths) == 0 {
			return errors.New("s3.discovery_paths must not be empty")
		}
	case c.Local != nil:
		if len(c.Local.DiscoveryPaths) == 0 {
			return errors.New("local.discovery_paths must not be empty")
		}
	default:
		return errors.New("one of s3 or local must be configured")
	}

	return nil
}

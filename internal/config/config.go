package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// this is a pointer so that if someone attempts to use it before loading it will
// panic and force them to load it first.
// it is also private so that it cannot be modified after loading.
var _loaded *Config

// Config is the main configuration structure
type Config struct {
	Common Common `yaml:"common"`
}

// Load loads the configuration following proper precedence: defaults → config file → environment variables
func Load() {
	// Start with defaults
	LoadDefault()

	configFile := os.Getenv("TENANTGATE_CONFIG_FILE")
	if configFile == "" {
		configFile = "tenantgate.yaml"
	}

	log.Printf("Attempting to load config file: %s", configFile)

	if err := LoadFromFile(configFile); err != nil {
		log.Printf("Failed to load config file: %v, using defaults", err)
	} else {
		log.Printf("Successfully loaded config from file: %s", configFile)
	}

	// Apply environment variable overrides (highest priority)
	ApplyEnvOverrides()

	log.Printf("Final config - store driver: %s, http port: %d, neo4j enabled: %t",
		_loaded.Common.Store.Driver,
		_loaded.Common.Http.Port,
		_loaded.Common.Neo4j.Enabled)
}

func LoadDefault() {
	config := defaultConfig
	config.Common.Http.AllowedOrigins = append([]string(nil), defaultConfig.Common.Http.AllowedOrigins...)
	_loaded = &config
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := defaultConfig

	// Merge YAML values over defaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	_loaded = &cfg
	return nil
}

// set sane defaults for all of the config options. when loading the config from
// the file, any options that are not set will be set to these defaults.
var defaultConfig = Config{
	Common: Common{
		Log: logConfig{
			Level:  "info",
			Format: "json",
		},
		Http: httpConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			MaxRequestSize: 1048576,
			AllowedOrigins: []string{"*"},
		},
		Auth: authConfig{
			TrustUpstreamAuthorizer: false,
			JWT: jwtConfig{
				TenantClaim: "custom:tenant_id",
			},
			APIKey: apiKeyConfig{
				Header:   "X-Api-Key",
				CacheTTL: time.Minute,
			},
		},
		Store: storeConfig{
			Driver: "postgres",
			Table:  "knowledge_spaces",
		},
		Postgres: postgresConfig{
			User:               "postgres",
			Password:           "postgres",
			Host:               "localhost",
			Port:               5432,
			Database:           "tenantgate",
			MaxOpenConnections: 10,
		},
		Redis: redisConfig{
			Host:      "localhost",
			Port:      6379,
			Password:  "",
			Database:  0,
			KeyPrefix: "tenantgate",
		},
		Retry: retryConfig{
			MaxAttempts:     3,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2,
		},
		Neo4j: neo4jConfig{
			Enabled:  false,
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Completion: completionConfig{
			URL:     "http://localhost:9000/v1/chat/completions",
			Timeout: 60 * time.Second,
		},
	},
}

type Common struct {
	Log        logConfig        `yaml:"log"`
	Http       httpConfig       `yaml:"http"`
	Auth       authConfig       `yaml:"auth"`
	Store      storeConfig      `yaml:"store"`
	Postgres   postgresConfig   `yaml:"postgres"`
	Redis      redisConfig      `yaml:"redis"`
	Retry      retryConfig      `yaml:"retry"`
	Neo4j      neo4jConfig      `yaml:"neo4j"`
	Completion completionConfig `yaml:"completion"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type httpConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	MaxRequestSize int64    `yaml:"max_request_size"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type authConfig struct {
	// Only enable behind a gateway that strips client-supplied identity headers.
	TrustUpstreamAuthorizer bool         `yaml:"trust_upstream_authorizer"`
	JWT                     jwtConfig    `yaml:"jwt"`
	APIKey                  apiKeyConfig `yaml:"api_key"`
}

type jwtConfig struct {
	Secret      string `yaml:"secret"`
	Issuer      string `yaml:"issuer"`
	TenantClaim string `yaml:"tenant_claim"`
}

type apiKeyConfig struct {
	Header   string        `yaml:"header"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type storeConfig struct {
	Driver string `yaml:"driver"` // "postgres" or "redis"
	Table  string `yaml:"table"`
}

type postgresConfig struct {
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	Database           string `yaml:"database"`
	MaxOpenConnections int    `yaml:"max_open_connections"`
}

func (c postgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		url.QueryEscape(c.Database),
	)
}

type redisConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Password  string `yaml:"password"`
	Database  int    `yaml:"database"`
	KeyPrefix string `yaml:"key_prefix"`
}

func (c redisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type retryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	Multiplier      float64       `yaml:"multiplier"`
}

type neo4jConfig struct {
	Enabled  bool   `yaml:"enabled"`  // Partition registry is optional
	URI      string `yaml:"uri"`      // Neo4j connection URI
	Username string `yaml:"username"` // Neo4j username
	Password string `yaml:"password"` // Neo4j password
	Database string `yaml:"database"` // Neo4j database name
}

type completionConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate reports every setting that would prevent the server from starting.
func (c *Config) Validate() error {
	var errs []error
	if c.Common.Auth.JWT.Secret == "" {
		errs = append(errs, errors.New("auth.jwt.secret is required"))
	}
	if c.Common.Auth.JWT.Issuer == "" {
		errs = append(errs, errors.New("auth.jwt.issuer is required"))
	}
	switch c.Common.Store.Driver {
	case "postgres", "redis":
	default:
		errs = append(errs, fmt.Errorf("store.driver must be postgres or redis, got %q", c.Common.Store.Driver))
	}
	if c.Common.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	if c.Common.Completion.URL == "" {
		errs = append(errs, errors.New("completion.url is required"))
	}
	return errors.Join(errs...)
}

// there should be a getter for each top level field in the config struct.
// these getters will panic if the config has not been loaded.

func Logger() logConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Log
}

func Http() httpConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Http
}

func Auth() authConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Auth
}

func Store() storeConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Store
}

func Postgres() postgresConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Postgres
}

func Redis() redisConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Redis
}

func Retry() retryConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Retry
}

func Neo4j() neo4jConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Neo4j
}

func Completion() completionConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Completion
}

// Get returns the full configuration
func Get() *Config {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded
}

func ApplyEnvOverrides() {
	if _loaded == nil {
		return
	}
	c := &_loaded.Common

	setString(&c.Log.Level, "TENANTGATE_LOG_LEVEL")
	setString(&c.Log.Format, "TENANTGATE_LOG_FORMAT")

	setString(&c.Http.Host, "TENANTGATE_HTTP_HOST")
	setInt(&c.Http.Port, "TENANTGATE_HTTP_PORT")
	if v := os.Getenv("TENANTGATE_HTTP_MAX_REQUEST_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Http.MaxRequestSize = size
		}
	}
	if v := os.Getenv("TENANTGATE_HTTP_ALLOWED_ORIGINS"); v != "" {
		c.Http.AllowedOrigins = strings.Split(v, ",")
	}

	setBool(&c.Auth.TrustUpstreamAuthorizer, "TENANTGATE_AUTH_TRUST_UPSTREAM_AUTHORIZER")
	setString(&c.Auth.JWT.Secret, "TENANTGATE_JWT_SECRET")
	setString(&c.Auth.JWT.Issuer, "TENANTGATE_JWT_ISSUER")
	setString(&c.Auth.JWT.TenantClaim, "TENANTGATE_JWT_TENANT_CLAIM")
	setString(&c.Auth.APIKey.Header, "TENANTGATE_API_KEY_HEADER")
	setDuration(&c.Auth.APIKey.CacheTTL, "TENANTGATE_API_KEY_CACHE_TTL")

	setString(&c.Store.Driver, "TENANTGATE_STORE_DRIVER")
	setString(&c.Store.Table, "TENANTGATE_STORE_TABLE")

	setString(&c.Postgres.Host, "TENANTGATE_DB_HOST")
	setInt(&c.Postgres.Port, "TENANTGATE_DB_PORT")
	setString(&c.Postgres.User, "TENANTGATE_DB_USER")
	setString(&c.Postgres.Password, "TENANTGATE_DB_PASSWORD")
	setString(&c.Postgres.Database, "TENANTGATE_DB_NAME")

	setString(&c.Redis.Host, "TENANTGATE_REDIS_HOST")
	setInt(&c.Redis.Port, "TENANTGATE_REDIS_PORT")
	setString(&c.Redis.Password, "TENANTGATE_REDIS_PASSWORD")
	setInt(&c.Redis.Database, "TENANTGATE_REDIS_DATABASE")

	setInt(&c.Retry.MaxAttempts, "TENANTGATE_RETRY_MAX_ATTEMPTS")
	setDuration(&c.Retry.InitialInterval, "TENANTGATE_RETRY_INITIAL_INTERVAL")
	setDuration(&c.Retry.MaxInterval, "TENANTGATE_RETRY_MAX_INTERVAL")

	setBool(&c.Neo4j.Enabled, "TENANTGATE_NEO4J_ENABLED")
	setString(&c.Neo4j.URI, "TENANTGATE_NEO4J_URI")
	setString(&c.Neo4j.Username, "TENANTGATE_NEO4J_USERNAME")
	setString(&c.Neo4j.Password, "TENANTGATE_NEO4J_PASSWORD")
	setString(&c.Neo4j.Database, "TENANTGATE_NEO4J_DATABASE")

	setString(&c.Completion.URL, "TENANTGATE_COMPLETION_URL")
	setDuration(&c.Completion.Timeout, "TENANTGATE_COMPLETION_TIMEOUT")
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, env string) {
	if v := os.Getenv(env); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, env string) {
	if v := os.Getenv(env); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

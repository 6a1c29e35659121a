package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Blob storage backends.
const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// LLM providers.
const (
	ProviderStub      = "stub"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all configuration for deal-triage.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// Store selects where deal state lives: postgres or memory.
	Store string `yaml:"store" env:"STORE" env-default:"postgres"`

	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Upload   UploadConfig   `yaml:"upload"`
	LLM      LLMConfig      `yaml:"llm"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`

	// LockTTL bounds how long a deal stays locked if its holder dies mid-mutation.
	LockTTL time.Duration `yaml:"lock_ttl" env:"DEAL_LOCK_TTL" env-default:"2m"`
}

// AuthConfig holds actor-resolution configuration.
type AuthConfig struct {
	// EnableVerification requires a JWKS-verified bearer token on every API call.
	// When false the actor comes from DevActorHeader, for local development only.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"false"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`

	DevActorHeader string `yaml:"dev_actor_header" env:"AUTH_DEV_ACTOR_HEADER" env-default:"X-Dev-Actor"`
	DevActor       string `yaml:"dev_actor" env:"AUTH_DEV_ACTOR" env-default:"dev"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"deals"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"deal_triage"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis configuration. An empty host disables Redis and
// deal locks fall back to an in-process lock table.
type RedisConfig struct {
	Host      string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port      int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password  string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB        int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	KeyPrefix string `yaml:"key_prefix" env:"REDIS_KEY_PREFIX" env-default:"deal-triage:"`
}

// StorageConfig selects where uploaded document bytes live.
type StorageConfig struct {
	Backend  string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"local"`
	LocalDir string `yaml:"local_dir" env:"STORAGE_LOCAL_DIR" env-default:"./data/blobs"`

	MinioEndpoint  string `yaml:"minio_endpoint" env:"MINIO_ENDPOINT" env-default:""`
	MinioAccessKey string `yaml:"minio_access_key" env:"MINIO_ACCESS_KEY" env-default:""`
	MinioSecretKey string `yaml:"-" env:"MINIO_SECRET_KEY"` // Secret - not in YAML
	MinioBucket    string `yaml:"minio_bucket" env:"MINIO_BUCKET" env-default:"deal-documents"`
	MinioUseSSL    bool   `yaml:"minio_use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
}

// UploadConfig limits accepted documents.
type UploadConfig struct {
	MaxBytes             int64  `yaml:"max_bytes" env:"UPLOAD_MAX_BYTES" env-default:"104857600"`
	AllowedExtensionsStr string `yaml:"allowed_extensions" env:"UPLOAD_ALLOWED_EXTENSIONS" env-default:"pdf,docx,txt"`

	// AllowedExtensions is parsed from AllowedExtensionsStr, lowercase without dots.
	AllowedExtensions []string `yaml:"-"`
}

// LLMConfig configures the extraction and drafting model.
type LLMConfig struct {
	Provider    string  `yaml:"provider" env:"LLM_PROVIDER" env-default:"stub"`
	Endpoint    string  `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:""`
	Model       string  `yaml:"model" env:"LLM_MODEL" env-default:""`
	APIKey      string  `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.1"`
	MaxTokens   int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"4096"`
	MaxRetries  int     `yaml:"max_retries" env:"LLM_MAX_RETRIES" env-default:"3"`

	// Timeout bounds one extraction or drafting call, retries included.
	Timeout time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"90s"`
}

// AnalysisConfig points at an optional verdict policy file.
type AnalysisConfig struct {
	PolicyPath string `yaml:"policy_path" env:"ANALYSIS_POLICY_PATH" env-default:""`
}

// SweeperConfig schedules removal of blobs that never got a document record.
type SweeperConfig struct {
	Enabled     bool          `yaml:"enabled" env:"SWEEPER_ENABLED" env-default:"false"`
	Schedule    string        `yaml:"schedule" env:"SWEEPER_SCHEDULE" env-default:"@hourly"`
	GracePeriod time.Duration `yaml:"grace_period" env:"SWEEPER_GRACE_PERIOD" env-default:"24h"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// When config.yaml does not exist only the environment is read.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit YAML path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cfg.parseComplexFields()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	cfg.Database.Host = ResolveHostForDocker(cfg.Database.Host)
	cfg.Redis.Host = ResolveHostForDocker(cfg.Redis.Host)
	cfg.Storage.MinioEndpoint = ResolveEndpointForDocker(cfg.Storage.MinioEndpoint)

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() {
	c.Auth.JWKSEndpoints = parseJWKSEndpoints(c.Auth.JWKSEndpointsStr)
	c.Upload.AllowedExtensions = parseExtensions(c.Upload.AllowedExtensionsStr)
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
}

// Validate rejects unknown enum values and incomplete backend settings.
func (c *Config) Validate() error {
	if !slices.Contains([]string{StorePostgres, StoreMemory}, c.Store) {
		return fmt.Errorf("store must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}

	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case StorageMinio:
		if c.Storage.MinioEndpoint == "" || c.Storage.MinioBucket == "" {
			return fmt.Errorf("storage.minio_endpoint and storage.minio_bucket are required for the minio backend")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", StorageLocal, StorageMinio, c.Storage.Backend)
	}

	switch c.LLM.Provider {
	case ProviderStub:
	case ProviderOpenAI:
		if c.LLM.Endpoint == "" || c.LLM.Model == "" {
			return fmt.Errorf("llm.endpoint and llm.model are required for the openai provider")
		}
	case ProviderAnthropic:
		if c.LLM.Model == "" {
			return fmt.Errorf("llm.model is required for the anthropic provider")
		}
	default:
		return fmt.Errorf("llm.provider must be one of stub, openai, anthropic, got %q", c.LLM.Provider)
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		return fmt.Errorf("upload.allowed_extensions must list at least one extension")
	}

	if c.Auth.EnableVerification && len(c.Auth.JWKSEndpoints) == 0 {
		return fmt.Errorf("auth.jwks_endpoints is required when verification is enabled")
	}

	if c.LockTTL <= 0 {
		return fmt.Errorf("lock_ttl must be positive")
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout must not be negative")
	}
	if c.Sweeper.Enabled && c.Sweeper.GracePeriod <= 0 {
		return fmt.Errorf("sweeper.grace_period must be positive")
	}
	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	for _, pair := range strings.Split(value, ",") {
		issuer, jwksURL, ok := strings.Cut(pair, "=")
		if ok {
			endpoints[strings.TrimSpace(issuer)] = strings.TrimSpace(jwksURL)
		}
	}
	return endpoints
}

func parseExtensions(value string) []string {
	var out []string
	for _, ext := range strings.Split(value, ",") {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" && !slices.Contains(out, ext) {
			out = append(out, ext)
		}
	}
	return out
}

// ConnectionString returns a PostgreSQL connection URL.
func (c *DatabaseConfig) ConnectionString() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// Addr returns the Redis host:port address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment reports whether the server runs in a local or dev environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "local" || c.Env == "dev"
}

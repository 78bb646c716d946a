package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	OIDC      OIDCConfig
	Gateway   GatewayConfig
	RateLimit RateLimitConfig
	Broadcast BroadcastConfig
	R2        R2Config
	Workspace WorkspaceConfig
	Transfer  TransferConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type OIDCConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type GatewayConfig struct {
	Enabled bool
}

type RateLimitConfig struct {
	UploadPerHour int
}

// Broadcast API modes
const (
	ModeRemote = "remote"
	ModeHosted = "hosted"
)

// BroadcastConfig selects and configures the backend that receives posts.
// In remote mode the Broadcast REST API is called with the account
// credentials; in hosted mode posts are kept in redis and media goes to R2.
type BroadcastConfig struct {
	Mode     string
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
	Endpoint        string // overrides the account endpoint, for S3-compatible stores
	UploadURLExpiry time.Duration
}

type WorkspaceConfig struct {
	Dir           string
	MaxAge        time.Duration
	SweepSchedule string
}

type TransferConfig struct {
	Timeout    time.Duration
	JobTimeout time.Duration // upper bound of one queued upload, all steps included
}

func Load() (*Config, error) {
	// .env is optional and never overrides the real environment
	_ = godotenv.Load()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("BROADCAST_PASSWORD")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("OIDC_CLIENT_ID")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.api_domain", "API_DOMAIN")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = v.BindEnv("oidc.domain", "OIDC_DOMAIN")
	_ = v.BindEnv("oidc.client_id", "OIDC_CLIENT_ID")
	_ = v.BindEnv("oidc.issuer", "OIDC_ISSUER")
	_ = v.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = v.BindEnv("ratelimit.upload_per_hour", "RATELIMIT_UPLOAD_PER_HOUR")
	_ = v.BindEnv("broadcast.mode", "BROADCAST_MODE")
	_ = v.BindEnv("broadcast.base_url", "BROADCAST_BASE_URL")
	_ = v.BindEnv("broadcast.username", "BROADCAST_USERNAME")
	_ = v.BindEnv("broadcast.password", "BROADCAST_PASSWORD")
	_ = v.BindEnv("broadcast.timeout", "BROADCAST_TIMEOUT")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = v.BindEnv("r2.endpoint", "R2_ENDPOINT")
	_ = v.BindEnv("r2.upload_url_expiry", "R2_UPLOAD_URL_EXPIRY")
	_ = v.BindEnv("workspace.dir", "WORKSPACE_DIR")
	_ = v.BindEnv("workspace.max_age", "WORKSPACE_MAX_AGE")
	_ = v.BindEnv("workspace.sweep_schedule", "WORKSPACE_SWEEP_SCHEDULE")
	_ = v.BindEnv("transfer.timeout", "TRANSFER_TIMEOUT")
	_ = v.BindEnv("transfer.job_timeout", "TRANSFER_JOB_TIMEOUT")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiration", 24)
	v.SetDefault("gateway.enabled", false)
	v.SetDefault("ratelimit.upload_per_hour", 50)

	// Broadcast defaults
	v.SetDefault("broadcast.mode", ModeRemote)
	v.SetDefault("broadcast.base_url", "https://api.broadcast.app")
	v.SetDefault("broadcast.timeout", "30s")

	// Storage defaults
	v.SetDefault("r2.upload_url_expiry", "1h")
	v.SetDefault("workspace.dir", os.TempDir()+"/broadcast-uploads")
	v.SetDefault("workspace.max_age", "24h")
	v.SetDefault("workspace.sweep_schedule", "@every 1h")
	v.SetDefault("transfer.timeout", "0s")
	v.SetDefault("transfer.job_timeout", "6h")

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			LogLevel:  v.GetString("server.log_level"),
			ApiDomain: v.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetInt("jwt.expiration"),
		},
		OIDC: OIDCConfig{
			Domain:   v.GetString("oidc.domain"),
			ClientID: v.GetString("oidc.client_id"),
			Issuer:   v.GetString("oidc.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: v.GetBool("gateway.enabled"),
		},
		RateLimit: RateLimitConfig{
			UploadPerHour: v.GetInt("ratelimit.upload_per_hour"),
		},
		Broadcast: BroadcastConfig{
			Mode:     strings.ToLower(v.GetString("broadcast.mode")),
			BaseURL:  strings.TrimRight(v.GetString("broadcast.base_url"), "/"),
			Username: v.GetString("broadcast.username"),
			Password: v.GetString("broadcast.password"),
			Timeout:  v.GetDuration("broadcast.timeout"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
			Endpoint:        v.GetString("r2.endpoint"),
			UploadURLExpiry: v.GetDuration("r2.upload_url_expiry"),
		},
		Workspace: WorkspaceConfig{
			Dir:           v.GetString("workspace.dir"),
			MaxAge:        v.GetDuration("workspace.max_age"),
			SweepSchedule: v.GetString("workspace.sweep_schedule"),
		},
		Transfer: TransferConfig{
			Timeout:    v.GetDuration("transfer.timeout"),
			JobTimeout: v.GetDuration("transfer.job_timeout"),
		},
	}

	return cfg, nil
}

// IsHosted reports whether posts are stored by this backend instead of the
// remote Broadcast API
func (c BroadcastConfig) IsHosted() bool {
	return c.Mode == ModeHosted
}

// IsConfigured reports whether remote mode has the account it needs
func (c BroadcastConfig) IsConfigured() bool {
	return c.BaseURL != "" && c.Username != "" && c.Password != ""
}

package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	WIMS     WIMSConfig
	Sync     SyncConfig
	Auth     AuthConfig
	Export   ExportConfig
	CORS     CORSConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// WIMSConfig holds everything needed to talk to the WIMS server.
type WIMSConfig struct {
	ServerURL       string
	ServicePassword string
	AllowSelfSigned bool
	UseNameInLogin  bool
	DefaultLang     string
	RequestTimeout  time.Duration
	Debug           bool
}

// SyncConfig governs the scheduled score synchronisation.
type SyncConfig struct {
	Enabled   bool
	Interval  time.Duration
	Workers   int
	ReportTTL time.Duration
}

// AuthConfig declares the service accounts allowed to call the API.
type AuthConfig struct {
	TokenSecret     string
	TokenExpiration time.Duration
	// Accounts holds "login:bcrypt-hash" pairs.
	Accounts []string
}

// ExportConfig governs archived grade exports and their download links.
type ExportConfig struct {
	ArchiveDir     string
	DownloadSecret string
	DownloadTTL    time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.WIMS = WIMSConfig{
		ServerURL:       v.GetString("WIMS_SERVER_URL"),
		ServicePassword: v.GetString("WIMS_SERVICE_PASSWORD"),
		AllowSelfSigned: v.GetBool("WIMS_ALLOW_SELF_SIGNED"),
		UseNameInLogin:  v.GetBool("WIMS_USE_NAME_IN_LOGIN"),
		DefaultLang:     v.GetString("WIMS_DEFAULT_LANG"),
		RequestTimeout:  parseDuration(v.GetString("WIMS_REQUEST_TIMEOUT"), 30*time.Second),
		Debug:           v.GetBool("WIMS_DEBUG"),
	}

	cfg.Sync = SyncConfig{
		Enabled:   v.GetBool("SYNC_ENABLED"),
		Interval:  parseDuration(v.GetString("SYNC_INTERVAL"), time.Hour),
		Workers:   v.GetInt("SYNC_WORKERS"),
		ReportTTL: parseDuration(v.GetString("SYNC_REPORT_TTL"), 7*24*time.Hour),
	}

	cfg.Auth = AuthConfig{
		TokenSecret:     v.GetString("AUTH_TOKEN_SECRET"),
		TokenExpiration: parseDuration(v.GetString("AUTH_TOKEN_EXPIRATION"), 24*time.Hour),
		Accounts:        splitAndTrim(v.GetString("AUTH_SERVICE_ACCOUNTS")),
	}

	cfg.Export = ExportConfig{
		ArchiveDir:     v.GetString("EXPORT_ARCHIVE_DIR"),
		DownloadSecret: v.GetString("EXPORT_DOWNLOAD_SECRET"),
		DownloadTTL:    parseDuration(v.GetString("EXPORT_DOWNLOAD_TTL"), 24*time.Hour),
	}
	if cfg.Export.DownloadSecret == "" {
		cfg.Export.DownloadSecret = cfg.Auth.TokenSecret
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "wims_bridge")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("WIMS_SERVER_URL", "https://wims.example.org/wims/wims.cgi")
	v.SetDefault("WIMS_SERVICE_PASSWORD", "")
	v.SetDefault("WIMS_ALLOW_SELF_SIGNED", false)
	v.SetDefault("WIMS_USE_NAME_IN_LOGIN", false)
	v.SetDefault("WIMS_DEFAULT_LANG", "en")
	v.SetDefault("WIMS_REQUEST_TIMEOUT", "30s")
	v.SetDefault("WIMS_DEBUG", false)

	v.SetDefault("SYNC_ENABLED", true)
	v.SetDefault("SYNC_INTERVAL", "1h")
	v.SetDefault("SYNC_WORKERS", 1)
	v.SetDefault("SYNC_REPORT_TTL", "168h")

	v.SetDefault("AUTH_TOKEN_SECRET", "dev_secret")
	v.SetDefault("AUTH_TOKEN_EXPIRATION", "24h")
	v.SetDefault("AUTH_SERVICE_ACCOUNTS", "")

	v.SetDefault("EXPORT_ARCHIVE_DIR", "./archives")
	v.SetDefault("EXPORT_DOWNLOAD_SECRET", "")
	v.SetDefault("EXPORT_DOWNLOAD_TTL", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

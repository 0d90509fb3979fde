package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	ServerId string `mapstructure:"SERVER_ID"`

	// ViewingTTL bounds how long an opened conversation suppresses unread
	// counting without client activity.
	ViewingTTL time.Duration `mapstructure:"VIEWING_TTL"`

	CorsAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	Mongo     MongoConfig     `mapstructure:",squash"`
	Auth      AuthConfig      `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Translate TranslateConfig `mapstructure:",squash"`
	Media     MediaConfig     `mapstructure:",squash"`
	Events    EventsConfig    `mapstructure:",squash"`
}

type MongoConfig struct {
	URI      string `mapstructure:"MONGODB_URI"`
	Database string `mapstructure:"MONGODB_DATABASE"`
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
}

// RedisConfig switches the hub and the unread counters to Redis when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"REDIS_ADDR"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

// TranslateConfig enables translation when APIKey is set.
type TranslateConfig struct {
	APIKey  string        `mapstructure:"GEMINI_API_KEY"`
	Model   string        `mapstructure:"GEMINI_MODEL"`
	Timeout time.Duration `mapstructure:"TRANSLATE_TIMEOUT"`
}

// MediaConfig enables image messages when Endpoint is set.
type MediaConfig struct {
	Endpoint      string `mapstructure:"MINIO_ENDPOINT"`
	AccessKey     string `mapstructure:"MINIO_ACCESS_KEY"`
	SecretKey     string `mapstructure:"MINIO_SECRET_KEY"`
	Bucket        string `mapstructure:"MINIO_BUCKET"`
	UseSSL        bool   `mapstructure:"MINIO_USE_SSL"`
	PublicURL     string `mapstructure:"MINIO_PUBLIC_URL"`
	MaxImageBytes int64  `mapstructure:"MAX_IMAGE_BYTES"`
}

// EventsConfig enables the lifecycle event stream when URL is set.
type EventsConfig struct {
	URL      string `mapstructure:"RABBITMQ_URL"`
	Exchange string `mapstructure:"RABBITMQ_EXCHANGE"`
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

var keys = []string{
	"APP_ENV", "PORT", "LOG_LEVEL", "SERVER_ID", "VIEWING_TTL", "CORS_ALLOWED_ORIGINS",
	"MONGODB_URI", "MONGODB_DATABASE",
	"JWT_SECRET", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"GEMINI_API_KEY", "GEMINI_MODEL", "TRANSLATE_TIMEOUT",
	"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET",
	"MINIO_USE_SSL", "MINIO_PUBLIC_URL", "MAX_IMAGE_BYTES",
	"RABBITMQ_URL", "RABBITMQ_EXCHANGE",
}

// Load reads .env files (when present) and the process environment.
// A missing .env file is not an error.
func Load(envFiles ...string) (Config, error) {
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "5001")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_ID", "server-1")
	v.SetDefault("VIEWING_TTL", 2*time.Minute)
	v.SetDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"})

	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGODB_DATABASE", "chatify")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_TTL", 15*time.Minute)
	v.SetDefault("REFRESH_TOKEN_TTL", 30*24*time.Hour)

	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("TRANSLATE_TIMEOUT", 8*time.Second)

	v.SetDefault("MINIO_BUCKET", "chat-images")
	v.SetDefault("MAX_IMAGE_BYTES", 5<<20)

	v.SetDefault("RABBITMQ_EXCHANGE", "chat")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// AutomaticEnv only answers for keys viper already knows about.
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.CorsAllowedOrigins = splitList(cfg.CorsAllowedOrigins)
	return cfg, nil
}

// splitList accepts both a real list and a single comma separated env value.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App   AppConfig
	Tutor TutorConfig
	Auth  AuthConfig
}

type AppConfig struct {
	Port               string `validate:"required"`
	Environment        string `validate:"oneof=development staging production test"`
	LogFilePath        string `validate:"required"`
	StreamLogFilePath  string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	OtelEnabled        bool
	OtelEndpoint       string
}

// TutorConfig describes how the engine reaches the remote AI tutor.
type TutorConfig struct {
	APIBaseURL     string        `validate:"required"`
	StreamEndpoint string        `validate:"required"`
	PageSecure     bool          // scheme fallback when APIBaseURL carries none
	Language       string        `validate:"required"`
	RetryAttempts  int           `validate:"min=1,max=10"`
	RetryDelay     time.Duration `validate:"min=0"`
	HTTPTimeout    time.Duration `validate:"gt=0"`
	TokenPollTries int           `validate:"min=1"`
	TokenPollDelay time.Duration `validate:"min=0"`
}

type AuthConfig struct {
	StaticToken   string
	RedisTokenKey string
	JWTSecret     string
	// TokenSecret, when set, verifies the tutor token's HMAC signature.
	TokenSecret string
	// UserId is used when the token is opaque and carries no user_id claim.
	UserId int64
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/tutor.log"),
			StreamLogFilePath:  getEnv("STREAM_LOG_FILE_PATH", "logs/stream.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Tutor: TutorConfig{
			APIBaseURL:     getEnv("TUTOR_API_BASE_URL", "http://localhost:8000"),
			StreamEndpoint: getEnv("TUTOR_STREAM_ENDPOINT", "tutor/"),
			PageSecure:     getEnvAsBool("TUTOR_PAGE_SECURE", false),
			Language:       getEnv("TUTOR_LANGUAGE", "ko"),
			RetryAttempts:  getEnvAsInt("TUTOR_RETRY_ATTEMPTS", 3),
			RetryDelay:     getEnvAsDuration("TUTOR_RETRY_DELAY", time.Second),
			HTTPTimeout:    getEnvAsDuration("TUTOR_HTTP_TIMEOUT", 30*time.Second),
			TokenPollTries: getEnvAsInt("TUTOR_TOKEN_POLL_TRIES", 3),
			TokenPollDelay: getEnvAsDuration("TUTOR_TOKEN_POLL_DELAY", 200*time.Millisecond),
		},
		Auth: AuthConfig{
			StaticToken:   getEnv("TUTOR_TOKEN", ""),
			RedisTokenKey: getEnv("TUTOR_REDIS_TOKEN_KEY", "tutor:access_token"),
			JWTSecret:     getEnv("JWT_SECRET", ""),
			TokenSecret:   getEnv("TUTOR_TOKEN_SECRET", ""),
			UserId:        int64(getEnvAsInt("TUTOR_USER_ID", 0)),
		},
	}
}

// Validate reports the first invalid field, if any.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DB       DBConfig
	MinIO    MinIOConfig
	JWT      JWTConfig
	Server   ServerConfig
	Invite   InviteConfig
	Realtime RealtimeConfig
}

type DBConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

type MinIOConfig struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type ServerConfig struct {
	Port          string
	FrontendURL   string
	BodyLimitMB   int
	EnableMetrics bool
}

type InviteConfig struct {
	TokenTTL time.Duration
}

type RealtimeConfig struct {
	SendBuffer     int
	DrawingRate    float64
	DrawingBurst   int
	WriteTimeout   time.Duration
	AllowLegacyUID bool
}

// Load reads an optional .env file (ENV_FILE, default ".env") and then the
// process environment.
func Load() *Config {
	loadDotEnv(getEnv("ENV_FILE", ".env"))

	return &Config{
		DB: DBConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "studyplanner"),
			Password:   getEnv("DB_PASSWORD", "studyplanner_secret"),
			Name:       getEnv("DB_NAME", "studyplanner"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("DB_SQLITE_PATH", "studyplanner.db"),
		},
		MinIO: MinIOConfig{
			Endpoint:       getEnv("MINIO_ENDPOINT", "localhost:9000"),
			PublicEndpoint: getEnv("MINIO_PUBLIC_ENDPOINT", getEnv("MINIO_ENDPOINT", "localhost:9000")),
			AccessKey:      getEnv("MINIO_ACCESS_KEY", "studyplanner"),
			SecretKey:      getEnv("MINIO_SECRET_KEY", "studyplanner_secret"),
			Bucket:         getEnv("MINIO_BUCKET", "studyplanner"),
			UseSSL:         getEnvAsBool("MINIO_USE_SSL", false),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 30*24),
		},
		Server: ServerConfig{
			Port:          getEnv("PORT", getEnv("SERVER_PORT", "5000")),
			FrontendURL:   strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
			BodyLimitMB:   getEnvAsInt("BODY_LIMIT_MB", 25),
			EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		},
		Invite: InviteConfig{
			TokenTTL: getEnvAsDuration("INVITE_TOKEN_TTL", 24*time.Hour),
		},
		Realtime: RealtimeConfig{
			SendBuffer:     getEnvAsInt("REALTIME_SEND_BUFFER", 64),
			DrawingRate:    getEnvAsFloat("REALTIME_DRAWING_RATE", 60),
			DrawingBurst:   getEnvAsInt("REALTIME_DRAWING_BURST", 120),
			WriteTimeout:   getEnvAsDuration("REALTIME_WRITE_TIMEOUT", 10*time.Second),
			AllowLegacyUID: getEnvAsBool("REALTIME_ALLOW_LEGACY_USER_ID", false),
		},
	}
}

func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("config: cannot stat %s: %v", path, err)
		}
		return
	}
	// godotenv.Load never overrides variables that are already set.
	if err := godotenv.Load(path); err != nil {
		log.Printf("config: failed loading %s: %v", path, err)
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

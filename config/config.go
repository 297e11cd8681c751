package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort        string
	AppMode        string
	LogMode        string
	AllowedOrigins []string

	JWTSecret string

	StoreDriver string
	SQLitePath  string
	MongoURI    string
	MongoDB     string
	DBHost      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBPort      string

	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	RateLimitEnabled bool
	MessageRateLimit int
	CallRateLimit    int
	ConnectRateLimit int

	AIAPIKey  string
	AIModel   string
	AITimeout time.Duration
}

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:        getEnv("APP_PORT", "7000"),
		AppMode:        getEnv("APP_MODE", "debug"),
		LogMode:        getEnv("LOG_MODE", "development"),
		AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		JWTSecret: getEnv("JWT_SECRET", "change-me"),

		StoreDriver: getEnv("STORE_DRIVER", StoreMongo),
		SQLitePath:  getEnv("SQLITE_PATH", "jyotish_chat.db"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getEnv("MONGO_DB", "jyotish"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", "postgres"),
		DBName:      getEnv("DB_NAME", "jyotish_chat"),
		DBPort:      getEnv("DB_PORT", "5432"),

		RedisHost:        getEnv("REDIS_HOST", ""),
		RedisPort:        getEnv("REDIS_PORT", "6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvAsInt("REDIS_DB", 0),
		RateLimitEnabled: getEnvAsBool("RATE_LIMIT_ENABLED", false),
		MessageRateLimit: getEnvAsInt("MESSAGE_RATE_LIMIT", 60),
		CallRateLimit:    getEnvAsInt("CALL_RATE_LIMIT", 10),
		ConnectRateLimit: getEnvAsInt("CONNECT_RATE_LIMIT", 20),

		AIAPIKey:  getEnv("AI_API_KEY", ""),
		AIModel:   getEnv("AI_MODEL", "gemini-1.5-flash"),
		AITimeout: getEnvAsDuration("AI_TIMEOUT", 20*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	StoreDriver   string
	DatabaseURL   string
	SQLitePath    string
	ProjectKey    string
	HeaderLabel   string
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	WorkerCount   int
	StatusReset   time.Duration
	LogLevel      string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	return &Config{
		StoreDriver:   getEnv("STORE_DRIVER", "sqlite"),
		DatabaseURL:   getEnv("DATABASE_URL", "postgres://localhost:5432/rpgm_intl?sslmode=disable"),
		SQLitePath:    getEnv("SQLITE_PATH", "rpgm-intl.db"),
		ProjectKey:    getEnv("PROJECT_KEY", "game"),
		HeaderLabel:   getEnv("HEADER_LABEL", "game"),
		Neo4jURI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:     getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", "password"),
		WorkerCount:   getEnvInt("WORKER_COUNT", 4),
		StatusReset:   time.Duration(getEnvInt("STATUS_RESET_SECONDS", 3)) * time.Second,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

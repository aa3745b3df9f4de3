package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Archive  ArchiveConfig
	Analysis AnalysisConfig
	App      AppConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ArchiveConfig struct {
	BaseURL   string
	APIKey    string
	RateLimit float64 // requests per second against the archive
	Burst     int
	Missions  []string // missions whose sector catalogs the cron refreshes
}

type AnalysisConfig struct {
	OversampleFactor  int
	FlattenWindowDays float64
	ClipSigma         float64
	AmpUnit           string
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "lightcurve"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Archive: ArchiveConfig{
			BaseURL:   getEnv("ARCHIVE_BASE_URL", "https://archive.example.org"),
			APIKey:    getEnv("ARCHIVE_API_KEY", ""),
			RateLimit: getEnvAsFloat("ARCHIVE_RATE_LIMIT", 5),
			Burst:     getEnvAsInt("ARCHIVE_BURST", 10),
			Missions:  getEnvAsList("ARCHIVE_MISSIONS", "TESS,Kepler,K2"),
		},
		Analysis: AnalysisConfig{
			OversampleFactor:  getEnvAsInt("ANALYSIS_OVERSAMPLE", 10),
			FlattenWindowDays: getEnvAsFloat("ANALYSIS_FLATTEN_WINDOW_DAYS", 2.0),
			ClipSigma:         getEnvAsFloat("ANALYSIS_CLIP_SIGMA", 5.0),
			AmpUnit:           getEnv("ANALYSIS_AMP_UNIT", "ppt"),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	if c.Archive.BaseURL == "" {
		return fmt.Errorf("ARCHIVE_BASE_URL is required")
	}

	if c.Analysis.OversampleFactor < 1 {
		return fmt.Errorf("ANALYSIS_OVERSAMPLE must be >= 1")
	}

	switch c.Analysis.AmpUnit {
	case "relative", "percent", "ppt", "ppm":
	default:
		return fmt.Errorf("ANALYSIS_AMP_UNIT must be one of relative, percent, ppt, ppm")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float for %s, using default: %g", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key, defaultValue string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

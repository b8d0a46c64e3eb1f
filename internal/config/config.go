package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Evolution EvolutionConfig
	Pace      PaceDefaults
	Assets    AssetsConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Address     string
	CORSOrigins string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// EvolutionConfig points at the Evolution API deployment. The global API key
// authenticates every call; per-account instance ids live in pace config rows.
type EvolutionConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// PaceDefaults seed an account's pace config before the user edits it.
type PaceDefaults struct {
	DelayMin      time.Duration
	DelayMax      time.Duration
	PauseAfter    int
	PauseDuration time.Duration
}

type AssetsConfig struct {
	Dir          string
	PublicBase   string
	SigningKey   string
	URLTTL       time.Duration
	RetentionAge time.Duration
	SweepEvery   time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

func LoadAll() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address:     getEnv("SERVER_ADDRESS", ":8080"),
			CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			PostgresURL: mustEnv("POSTGRES_URL"),
		},
		Evolution: EvolutionConfig{
			BaseURL: mustEnv("EVOLUTION_API_URL"),
			APIKey:  mustEnv("EVOLUTION_API_KEY"),
			Timeout: time.Duration(getEnvInt("EVOLUTION_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Pace: PaceDefaults{
			DelayMin:      time.Duration(getEnvInt("PACE_DELAY_MIN_MS", 10000)) * time.Millisecond,
			DelayMax:      time.Duration(getEnvInt("PACE_DELAY_MAX_MS", 30000)) * time.Millisecond,
			PauseAfter:    getEnvInt("PACE_PAUSE_AFTER", 100),
			PauseDuration: time.Duration(getEnvInt("PACE_PAUSE_DURATION_MS", 60000)) * time.Millisecond,
		},
		Assets: AssetsConfig{
			Dir:          getEnv("ASSETS_DIR", "data/assets"),
			PublicBase:   getEnv("ASSETS_PUBLIC_BASE", "http://localhost:8080"),
			SigningKey:   mustEnv("ASSETS_SIGNING_KEY"),
			URLTTL:       time.Duration(getEnvInt("ASSETS_URL_TTL_SECONDS", 1800)) * time.Second,
			RetentionAge: time.Duration(getEnvInt("ASSETS_RETENTION_HOURS", 5)) * time.Hour,
			SweepEvery:   time.Duration(getEnvInt("ASSETS_SWEEP_MINUTES", 30)) * time.Minute,
		},
		Auth: AuthConfig{
			JWTSecret: mustEnv("JWT_SECRET"),
		},
		Redis: loadRedisConfig(),
	}

	validate(cfg)
	return cfg, nil
}

func loadRedisConfig() RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvInt("REDIS_DB", 0),
		TTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 86400)) * time.Second,
	}
}

func validate(cfg *Config) {
	if cfg.Pace.DelayMin <= 0 || cfg.Pace.DelayMax < cfg.Pace.DelayMin {
		panic("PACE_DELAY_MIN_MS/PACE_DELAY_MAX_MS must satisfy 0 < min <= max")
	}
	if cfg.Pace.PauseAfter <= 0 {
		panic("PACE_PAUSE_AFTER must be > 0")
	}
	if cfg.Pace.PauseDuration < 0 {
		panic("PACE_PAUSE_DURATION_MS must be >= 0")
	}
	if cfg.Evolution.Timeout <= 0 {
		panic("EVOLUTION_TIMEOUT_SECONDS must be > 0")
	}
	if cfg.Assets.URLTTL <= 0 {
		panic("ASSETS_URL_TTL_SECONDS must be > 0")
	}
}

func mustEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("missing required env var: %s", key))
	}
	return val
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("invalid int for env %s: %s", key, v))
	}
	return i
}

package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	pkgconfig "identityhub/pkg/config"
)

type Config struct {
	ListenAddr  string
	DatabaseURL string
	AuthRPCURL  string
	LogLevel    string
}

func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found: %v, using system environment", err)
	}

	cfg := &Config{
		ListenAddr:  pkgconfig.EnvDefault("RESOURCE_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		AuthRPCURL:  os.Getenv("AUTH_RPC_URL"),
		LogLevel:    pkgconfig.EnvDefault("LOG_LEVEL", "info"),
	}

	pkgconfig.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	pkgconfig.MustNonEmpty(cfg.AuthRPCURL, "AUTH_RPC_URL")

	return cfg
}

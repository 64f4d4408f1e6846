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
	LogLevel    string

	// distinct signing material per token class
	AccessSecret  []byte
	RefreshSecret []byte

	KafkaBrokers []string
	KafkaTopic   string

	ESURL      string
	ESUser     string
	ESPassword string
}

func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found: %v, using system environment", err)
	}

	cfg := &Config{
		ListenAddr:    pkgconfig.EnvDefault("AUTH_RPC_ADDR", ":50051"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		LogLevel:      pkgconfig.EnvDefault("LOG_LEVEL", "info"),
		AccessSecret:  []byte(os.Getenv("JWT_SECRET")),
		RefreshSecret: []byte(os.Getenv("JWT_REFRESH_SECRET")),
		KafkaBrokers:  pkgconfig.CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:    pkgconfig.EnvDefault("KAFKA_AUTH_TOPIC", "auth_events"),
		ESURL:         os.Getenv("ES_URL"),
		ESUser:        os.Getenv("ES_USER"),
		ESPassword:    os.Getenv("ES_PASSWORD"),
	}

	pkgconfig.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	pkgconfig.MustNonEmptyBytes(cfg.AccessSecret, "JWT_SECRET")
	pkgconfig.MustNonEmptyBytes(cfg.RefreshSecret, "JWT_REFRESH_SECRET")

	return cfg
}

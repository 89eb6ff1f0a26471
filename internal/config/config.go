// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration knobs for the HTTP server and collaborators.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	DatabaseURL string

	JWTSecret string

	MidtransServerKey  string
	MidtransProduction bool

	KafkaBrokers []string

	ConsulAddr  string
	ServiceName string
	ServicePort int

	GinMode string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Load collects configuration from environment with defaults.
func Load() Config {
	port := atoienv("SERVICE_PORT", 3000)
	cfg := Config{
		HTTPAddr:           getenv("HTTP_ADDR", ":"+strconv.Itoa(port)),
		ShutdownTimeout:    time.Duration(atoienv("SHUTDOWN_TIMEOUT", 10)) * time.Second,
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		MidtransServerKey:  os.Getenv("MIDTRANS_SERVER_KEY"),
		MidtransProduction: os.Getenv("MIDTRANS_ENV") == "production",
		ConsulAddr:         os.Getenv("CONSUL_HTTP_ADDR"),
		ServiceName:        getenv("SERVICE_NAME", "shop-api"),
		ServicePort:        port,
		GinMode:            os.Getenv("GIN_MODE"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

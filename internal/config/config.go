package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverBolt     = "bolt"
)

type Config struct {
	Port     string
	GRPCPort string

	StoreDriver    string
	DatabaseURL    string
	DBMaxOpenConns int
	BoltPath       string

	RedisURL string
	LockTTL  time.Duration

	KafkaBrokers []string
	NatsURL      string

	CiclistaServiceURL string
	MPBaseURL          string
	MPAccessToken      string
	MPPayerEmail       string

	MailServer   string
	MailPort     int
	MailUsername string
	MailPassword string
	MailFrom     string

	JaegerEndpoint    string
	HTTPClientTimeout time.Duration
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8000"),
		GRPCPort: getEnv("GRPC_PORT", "9090"),

		StoreDriver:    getEnv("STORE_DRIVER", StoreDriverPostgres),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
		BoltPath:       getEnv("BOLT_PATH", "billing.db"),

		RedisURL: os.Getenv("REDIS_URL"),
		LockTTL:  getEnvDuration("LOCK_TTL", 30*time.Second),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		NatsURL:      os.Getenv("NATS_URL"),

		CiclistaServiceURL: getEnv("CICLISTA_SERVICE_URL", "http://localhost:8001/cartaoDeCredito"),
		MPBaseURL:          getEnv("MP_BASE_URL", "https://api.mercadopago.com"),
		MPAccessToken:      os.Getenv("MP_ACCESS_TOKEN"),
		MPPayerEmail:       os.Getenv("MP_PAYER_EMAIL"),

		MailServer:   os.Getenv("MAIL_SERVER"),
		MailPort:     getEnvInt("MAIL_PORT", 587),
		MailUsername: os.Getenv("MAIL_USERNAME"),
		MailPassword: os.Getenv("MAIL_PASSWORD"),
		MailFrom:     os.Getenv("MAIL_FROM"),

		JaegerEndpoint:    os.Getenv("JAEGER_ENDPOINT"),
		HTTPClientTimeout: getEnvDuration("HTTP_CLIENT_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Malformed numeric values fall back to the default.
func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"futsal/internal/cache"
	"futsal/internal/database"
	"futsal/internal/external"
	"futsal/internal/messaging"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	PprofEnabled bool
	PprofPort    string

	Database      database.Config
	NATS          messaging.Config
	Valkey        cache.Config
	Gateway       external.GatewayConfig
	Elasticsearch ElasticsearchConfig
	Loyalty       LoyaltyConfig
	Sweep         SweepConfig
	Generator     GeneratorConfig
}

// LoyaltyConfig: сколько оплаченных бронирований дают право на одно бесплатное
type LoyaltyConfig struct {
	Threshold int
}

// SweepConfig управляет фоновой обработкой зависших платежных намерений
type SweepConfig struct {
	IntentTTL time.Duration
	Interval  time.Duration
	BatchSize int
}

// GeneratorConfig задает горизонт и часы предварительной генерации слотов
type GeneratorConfig struct {
	HorizonDays int
	FirstHour   int
	LastHour    int
}

// Load загружает конфигурацию из .env (если есть) и переменных окружения
func Load() *Config {
	_ = godotenv.Load(".env")

	return &Config{
		Port:           getEnv("PORT", "8081"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		PprofEnabled: getEnv("PPROF_ENABLED", "false") == "true",
		PprofPort:    getEnv("PPROF_PORT", "6060"),

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "futsal"),
			Password:           getEnv("DB_PASSWORD", "futsal123"),
			DBName:             getEnv("DB_NAME", "futsal"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
			TxRetryAttempts:    getEnvInt("DB_TX_RETRY_ATTEMPTS", 3),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "futsal"),
			ClientID:  getEnv("NATS_CLIENT_ID", "futsal-api"),
		},

		Valkey: cache.Config{
			Host:            getEnv("VALKEY_HOST", "localhost"),
			Port:            getEnv("VALKEY_PORT", "6379"),
			Password:        getEnv("VALKEY_PASSWORD", ""),
			DB:              getEnvInt("VALKEY_DB", 0),
			AuthTTL:         getEnvDuration("VALKEY_AUTH_TTL", 10*time.Minute),
			AvailabilityTTL: getEnvDuration("VALKEY_AVAILABILITY_TTL", 15*time.Second),
		},

		Gateway: external.GatewayConfig{
			BaseURL:    getEnv("GATEWAY_URL", "https://a.khalti.com/api/v2"),
			SecretKey:  getEnv("GATEWAY_SECRET_KEY", ""),
			ReturnURL:  getEnv("GATEWAY_RETURN_URL", "http://localhost:8081/api/payments/callback"),
			WebsiteURL: getEnv("GATEWAY_WEBSITE_URL", "http://localhost:8081"),
			Timeout:    time.Duration(getEnvInt("GATEWAY_TIMEOUT_SEC", 10)) * time.Second,
		},

		Elasticsearch: LoadElasticsearchConfig(),

		Loyalty: LoyaltyConfig{
			Threshold: getEnvInt("LOYALTY_THRESHOLD", 7),
		},

		Sweep: SweepConfig{
			IntentTTL: getEnvDuration("INTENT_TTL", 30*time.Minute),
			Interval:  getEnvDuration("INTENT_SWEEP_INTERVAL", time.Minute),
			BatchSize: getEnvInt("INTENT_SWEEP_BATCH", 100),
		},

		Generator: GeneratorConfig{
			HorizonDays: getEnvInt("SLOT_HORIZON_DAYS", 14),
			FirstHour:   getEnvInt("SLOT_FIRST_HOUR", 6),
			LastHour:    getEnvInt("SLOT_LAST_HOUR", 21),
		},
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration разбирает значения вида "30s", "15m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// HTTP
	HTTPPort string

	// Predictor endpoints, one per category
	AccidentURL    string
	MaintenanceURL string
	BatteryURL     string

	// Per-call backend timeout
	PredictTimeoutMS int

	// Audit store backend: "postgres" or "sqlite"
	StoreBackend string

	// Postgres
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// SQLite
	SQLitePath string

	// Redis live state (disabled when addr is empty)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Audit recorder tuning
	AuditQueueSize      int
	AuditWriteTimeoutMS int

	// Categories excluded from audit logging
	AuditSkipCategories []string
}

func Load() *Config {
	return &Config{
		HTTPPort:            getEnv("HTTP_PORT", "8002"),
		AccidentURL:         getEnv("ACCIDENT_PREDICTOR_URL", "http://127.0.0.1:5000/predict"),
		MaintenanceURL:      getEnv("MAINTENANCE_PREDICTOR_URL", "http://127.0.0.1:5000/predict_maintenance"),
		BatteryURL:          getEnv("BATTERY_PREDICTOR_URL", "http://127.0.0.1:5002/predict_battery"),
		PredictTimeoutMS:    getEnvInt("PREDICT_TIMEOUT_MS", 5000),
		StoreBackend:        getEnv("STORE_BACKEND", "postgres"),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBUser:              getEnv("DB_USER", "gateway_user"),
		DBPassword:          getEnv("DB_PASSWORD", "gateway_password"),
		DBName:              getEnv("DB_NAME", "vehicle_sense"),
		DBMaxConns:          int32(getEnvInt("DB_MAX_CONNS", 15)),
		SQLitePath:          getEnv("SQLITE_PATH", "prediction_audit.db"),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		AuditQueueSize:      getEnvInt("AUDIT_QUEUE_SIZE", 1000),
		AuditWriteTimeoutMS: getEnvInt("AUDIT_WRITE_TIMEOUT_MS", 3000),
		AuditSkipCategories: splitList(getEnv("AUDIT_SKIP_CATEGORIES", "")),
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
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

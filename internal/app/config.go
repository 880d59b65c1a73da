package app

import "os"

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr     string
	MetricsAddr  string
	PostgresDSN  string // пусто — in-memory хранилище
	KafkaBrokers string // пусто — уведомления в лог
	JWTSecret    string
}

// DefaultConfig возвращает базовые адреса и секрет для локальной разработки.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
		JWTSecret:   "dev-secret",
	}
}

// ConfigFromEnv накладывает переменные окружения поверх значений по умолчанию.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("SHOP_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("SHOP_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("SHOP_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("SHOP_KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = v
	}
	if v := os.Getenv("SHOP_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	return cfg
}

package main

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/jayenashar/livrequant-toy/internal/repository/postgres"
)

type Config struct {
	HTTPAddr string
	LogLevel string

	DeviceValidationFailOpen bool

	LokiURL          string
	TelegramApiToken string
	TelegramChatID   string

	DB *postgres.PoolConfig
}

var ErrEnvNotFound = errors.New("err env not found")

func (a *App) loadConfig(confFileName string) error {
	var cfg Config
	var db postgres.PoolConfig

	err := godotenv.Load(confFileName)
	if err != nil {
		return err
	}

	if db.Host, err = cfg.set("PG_HOST"); err != nil {
		return err
	}

	if db.Port, err = cfg.set("PG_PORT"); err != nil {
		return err
	}

	if db.User, err = cfg.set("PG_USER"); err != nil {
		return err
	}

	if db.Password, err = cfg.set("PG_PASSWORD"); err != nil {
		return err
	}

	if db.DBName, err = cfg.set("PG_DBNAME"); err != nil {
		return err
	}

	if db.SSLMode, err = cfg.set("PG_SSL_MODE"); err != nil {
		return err
	}

	if db.MinConns, err = cfg.setInt("PG_MIN_CONNS", 1); err != nil {
		return err
	}

	if db.MaxConns, err = cfg.setInt("PG_MAX_CONNS", 10); err != nil {
		return err
	}

	if db.MaxRetries, err = cfg.setInt("PG_MAX_RETRIES", 5); err != nil {
		return err
	}

	retryDelayMs, err := cfg.setInt("PG_RETRY_DELAY_MS", 1000)
	if err != nil {
		return err
	}
	db.RetryDelay = time.Duration(retryDelayMs) * time.Millisecond

	cfg.HTTPAddr = cfg.setDefault("HTTP_ADDR", ":8080")
	cfg.LogLevel = cfg.setDefault("LOG_LEVEL", "INFO")

	if cfg.DeviceValidationFailOpen, err = cfg.setBool("DEVICE_VALIDATION_FAIL_OPEN", true); err != nil {
		return err
	}

	cfg.LokiURL = os.Getenv("LOKI_URL")
	cfg.TelegramApiToken = os.Getenv("TELEGRAM_API_TOKEN")
	cfg.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")

	cfg.DB = &db

	a.Config = &cfg

	return nil
}

func (c *Config) set(key string) (string, error) {
	if os.Getenv(key) == "" {
		return "", ErrEnvNotFound
	}

	return os.Getenv(key), nil
}

func (c *Config) setDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func (c *Config) setInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	return strconv.Atoi(v)
}

func (c *Config) setBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	return strconv.ParseBool(v)
}

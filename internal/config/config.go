// Package config загружает конфигурацию сервиса из YAML и переменных окружения.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/UkralStul/content-alchemy/internal/logging"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm/logger"
)

// Значения по умолчанию.
const (
	DefaultPort           = "8080"
	DefaultDriver         = "memory"
	DefaultSQLitePath     = "alchemy.db"
	DefaultTimezone       = "UTC"
	DefaultDigestInterval = time.Hour
)

// Драйверы хранилища.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config - конфигурация процесса.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Timezone  string          `yaml:"timezone" validate:"required,timezone"`
	Log       logging.Config  `yaml:"log"`
	Allocator AllocatorConfig `yaml:"allocator"`
	Digest    DigestConfig    `yaml:"digest"`
}

// ServerConfig - HTTP-сервер.
type ServerConfig struct {
	Port string `yaml:"port" validate:"required,numeric"`
	// SubscriberBuffer - емкость канала подписчика websocket.
	SubscriberBuffer int `yaml:"subscriber_buffer" validate:"gte=1"`
}

// StorageConfig - хранилище.
type StorageConfig struct {
	Driver string `yaml:"driver" validate:"required,oneof=memory postgres sqlite"`
	DSN    string `yaml:"dsn" validate:"required_if=Driver postgres"`
	Path   string `yaml:"path" validate:"required_if=Driver sqlite"`
	// LogLevel - уровень логгера gorm.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=silent error warn info"`
	// Seed заполняет хранилище в памяти демонстрационными данными.
	Seed bool `yaml:"seed"`
}

// AllocatorConfig - выдача номеров.
type AllocatorConfig struct {
	MaxRetries uint `yaml:"max_retries" validate:"gte=1,lte=100"`
}

// DigestConfig - ежедневная сводка.
type DigestConfig struct {
	// Interval - период проверки; "0" отключает планировщик.
	Interval string `yaml:"interval"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	return Config{
		Server:    ServerConfig{Port: DefaultPort, SubscriberBuffer: 16},
		Storage:   StorageConfig{Driver: DefaultDriver, LogLevel: "warn", Seed: true},
		Timezone:  DefaultTimezone,
		Log:       logging.Config{Level: "info", Format: "json"},
		Allocator: AllocatorConfig{MaxRetries: 8},
		Digest:    DigestConfig{Interval: DefaultDigestInterval.String()},
	}
}

// Load читает YAML из path поверх значений по умолчанию и применяет
// переменные окружения PORT, DATABASE_URL и ALCHEMY_STORAGE.
// Пустой path означает конфигурацию без файла.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg = applyEnv(cfg, os.Getenv)
	cfg = Normalize(cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg Config, getenv func(string) string) Config {
	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		cfg.Server.Port = v
	}
	if v := strings.TrimSpace(getenv("ALCHEMY_STORAGE")); v != "" {
		cfg.Storage.Driver = v
	}
	if v := strings.TrimSpace(getenv("DATABASE_URL")); v != "" {
		cfg.Storage.DSN = v
		// DATABASE_URL без явного драйвера означает postgres
		if getenv("ALCHEMY_STORAGE") == "" && cfg.Storage.Driver == DriverMemory {
			cfg.Storage.Driver = DriverPostgres
		}
	}
	return cfg
}

// Normalize подставляет значения по умолчанию и чистит пробелы.
func Normalize(cfg Config) Config {
	def := Default()
	cfg.Server.Port = strings.TrimPrefix(strings.TrimSpace(cfg.Server.Port), ":")
	if cfg.Server.Port == "" {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.SubscriberBuffer == 0 {
		cfg.Server.SubscriberBuffer = def.Server.SubscriberBuffer
	}

	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	switch cfg.Storage.Driver {
	case "", "in-memory", "inmemory":
		cfg.Storage.Driver = DriverMemory
	case "postgresql", "pg":
		cfg.Storage.Driver = DriverPostgres
	}
	if cfg.Storage.Driver == DriverSQLite && strings.TrimSpace(cfg.Storage.Path) == "" {
		cfg.Storage.Path = DefaultSQLitePath
	}
	cfg.Storage.LogLevel = strings.ToLower(strings.TrimSpace(cfg.Storage.LogLevel))

	cfg.Timezone = strings.TrimSpace(cfg.Timezone)
	if cfg.Timezone == "" {
		cfg.Timezone = def.Timezone
	}
	if cfg.Allocator.MaxRetries == 0 {
		cfg.Allocator.MaxRetries = def.Allocator.MaxRetries
	}
	cfg.Digest.Interval = strings.TrimSpace(cfg.Digest.Interval)
	if cfg.Digest.Interval == "" {
		cfg.Digest.Interval = def.Digest.Interval
	}
	return cfg
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("timezone", func(fl validator.FieldLevel) bool {
		_, err := time.LoadLocation(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate проверяет конфигурацию.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.DigestInterval(); err != nil {
		return fmt.Errorf("invalid config: digest.interval: %w", err)
	}
	return nil
}

// Location возвращает каноническую зону календаря.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// DigestInterval возвращает период планировщика сводки; 0 - выключен.
func (c Config) DigestInterval() (time.Duration, error) {
	if c.Digest.Interval == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Digest.Interval)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative interval %s", d)
	}
	return d, nil
}

// GormLogLevel переводит storage.log_level в уровень логгера gorm.
func (c Config) GormLogLevel() logger.LogLevel {
	switch c.Storage.LogLevel {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

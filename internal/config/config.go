// Package config предоставляет структуры и функцию для парсинга и загрузки конфига клиента.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек клиента
type Config struct {
	Env             string `yaml:"env" env:"ENV" env-default:"local"`
	API             `yaml:"api"`
	Storage         `yaml:"storage"`
	RedisConnection `yaml:"redis_connection"`
	StatusServer    `yaml:"status_server"`
	Events          `yaml:"events"`
}

// API настройки подключения к бэкенду платформы
type API struct {
	BaseURL        string        `yaml:"base_url" env:"API_BASE_URL" env-default:"https://siscom.africa/api/v1"`
	InvestmentsURL string        `yaml:"investments_url" env:"API_INVESTMENTS_URL"`
	TimeoutAPI     time.Duration `yaml:"timeout" env-default:"30s"`
	RateLimit      float64       `yaml:"rate_limit" env-default:"5"`
	RateBurst      int           `yaml:"rate_burst" env-default:"10"`
}

// Storage настройки локального хранилища токенов и профиля
type Storage struct {
	Driver     string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"sqlite"`
	SQLitePath string `yaml:"sqlite_path" env:"STORAGE_SQLITE_PATH" env-default:"./data/capitalized.db"`
	Secret     string `yaml:"secret" env:"STORAGE_SECRET"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
	KeyPrefix    string        `yaml:"key_prefix"`
}

// StatusServer локальный HTTP-сервер со статусом сессии и метриками.
// Пустой адрес отключает сервер.
type StatusServer struct {
	AddressHTTP string        `yaml:"addresshttp"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// Events настройки публикации событий онбординга в RabbitMQ.
// Пустой URL отключает публикацию.
type Events struct {
	AMQPURL    string        `yaml:"amqp_url" env:"AMQP_URL"`
	Exchange   string        `yaml:"exchange" env-default:"onboarding"`
	Retries    int           `yaml:"retries" env-default:"3"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// Поддерживаемые драйверы хранилища.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает конфиг из файла и переменных окружения и проверяет его.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("api.base_url cannot be empty")
	}
	switch c.Driver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path cannot be empty")
		}
	case DriverRedis:
		if c.AddressRedis == "" {
			return fmt.Errorf("redis_connection.addressredis cannot be empty for redis driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Driver)
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return fmt.Errorf("api.rate_limit and api.rate_burst must be >= 0")
	}
	return nil
}

// InvestmentsBaseURL возвращает адрес сервиса инвестиций,
// по умолчанию <base_url>/investments.
func (c *Config) InvestmentsBaseURL() string {
	if c.InvestmentsURL != "" {
		return strings.TrimRight(c.InvestmentsURL, "/")
	}
	return strings.TrimRight(c.BaseURL, "/") + "/investments"
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"API:\n"+
			"  BaseURL: %s\n"+
			"  InvestmentsURL: %s\n"+
			"  Timeout: %s\n"+
			"  RateLimit: %v (burst %d)\n"+
			"Storage:\n"+
			"  Driver: %s\n"+
			"  SQLitePath: %s\n"+
			"  Secret: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"StatusServer:\n"+
			"  Address: %s\n"+
			"Events:\n"+
			"  Exchange: %s\n",
		c.Env,
		c.BaseURL,
		c.InvestmentsBaseURL(),
		c.TimeoutAPI,
		c.RateLimit,
		c.RateBurst,
		c.Driver,
		c.SQLitePath,
		mask(c.Secret),
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.Exchange,
	)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config представляет конфигурацию клиента портала
type Config struct {
	API         APIConfig       `json:"api" yaml:"api"`
	Endpoints   EndpointsConfig `json:"endpoints" yaml:"endpoints"`
	Environment string          `json:"environment" yaml:"environment"`
	Logger      LoggerConfig    `json:"logger" yaml:"logger"`
	Session     SessionConfig   `json:"session" yaml:"session"`
	Redis       RedisConfig     `json:"redis" yaml:"redis"`
	Tracking    TrackingConfig  `json:"tracking" yaml:"tracking"`
	Server      ServerConfig    `json:"server" yaml:"server"`
	Output      OutputConfig    `json:"output" yaml:"output"`
}

// APIConfig настройки подключения к REST бэкенду
type APIConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	// Timeout таймаут одного HTTP запроса, например "30s"
	Timeout string `json:"timeout" yaml:"timeout"`
	// RateLimit ограничение запросов в секунду на стороне клиента, 0 отключает
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `json:"rate_burst" yaml:"rate_burst"`
}

// EndpointsConfig пути эндпоинтов аутентификации относительно BaseURL
type EndpointsConfig struct {
	Login    string `json:"login" yaml:"login"`
	Register string `json:"register" yaml:"register"`
	Logout   string `json:"logout" yaml:"logout"`
	Refresh  string `json:"refresh" yaml:"refresh"`
	Me       string `json:"me" yaml:"me"`
}

// LoggerConfig представляет конфигурацию логгера
type LoggerConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// SessionConfig определяет, где хранятся токены
type SessionConfig struct {
	// Store одно из: memory, file, redis
	Store string `json:"store" yaml:"store"`
	// Dir каталог для файлового хранилища, по умолчанию домашний каталог
	Dir string `json:"dir" yaml:"dir"`
}

// RedisConfig представляет конфигурацию Redis для хранилища токенов
type RedisConfig struct {
	Addr          string `json:"addr" yaml:"addr"`
	Password      string `json:"password" yaml:"password"`
	DB            int    `json:"db" yaml:"db"`
	PoolSize      int    `json:"pool_size" yaml:"pool_size"`
	MinIdleConn   int    `json:"min_idle_conn" yaml:"min_idle_conn"`
	MaxRetries    int    `json:"max_retries" yaml:"max_retries"`
	RetryInterval string `json:"retry_interval" yaml:"retry_interval"`
	KeyPrefix     string `json:"key_prefix" yaml:"key_prefix"`
}

// TrackingConfig настройки опроса геолокации
type TrackingConfig struct {
	Interval string `json:"interval" yaml:"interval"`
}

// ServerConfig настройки шлюза для команды serve
type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	// JWTSecret ключ подписи access токенов. Пустой ключ означает проверку
	// токенов запросом профиля к бэкенду.
	JWTSecret  string `json:"jwt_secret" yaml:"jwt_secret"`
	ProfileTTL string `json:"profile_ttl" yaml:"profile_ttl"`
}

// OutputConfig настройки вывода CLI
type OutputConfig struct {
	Format string `json:"format" yaml:"format"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8000/api",
			Timeout:   "30s",
			RateLimit: 0,
			RateBurst: 10,
		},
		Endpoints: EndpointsConfig{
			Login:    "/auth/login/",
			Register: "/auth/register/",
			Logout:   "/auth/logout/",
			Refresh:  "/auth/token/refresh/",
			Me:       "/auth/me/",
		},
		Environment: "dev",
		Logger: LoggerConfig{
			Level:  "",
			Format: "console",
		},
		Session: SessionConfig{
			Store: "file",
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			DB:            0,
			PoolSize:      10,
			MinIdleConn:   2,
			MaxRetries:    3,
			RetryInterval: "1s",
			KeyPrefix:     "fieldops:portal:session:",
		},
		Tracking: TrackingConfig{
			Interval: "10s",
		},
		Server: ServerConfig{
			Host:       "127.0.0.1",
			Port:       8090,
			ProfileTTL: "30s",
		},
		Output: OutputConfig{
			Format: "table",
		},
	}
}

// LoadConfig загружает конфигурацию в следующем порядке приоритета:
// 1. Значения по умолчанию
// 2. Файл (если указан и существует)
// 3. Переменные окружения
// 4. Валидация
func LoadConfig(configFile string) (*Config, error) {
	config := Default()

	if configFile != "" {
		if err := loadConfigFromFile(config, configFile); err != nil {
			return nil, err
		}
	}

	if err := loadConfigFromEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

func loadConfigFromFile(config *Config, filename string) error {
	content, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Сначала пробуем YAML, затем JSON
	if err := yaml.Unmarshal(content, config); err != nil {
		if jsonErr := json.Unmarshal(content, config); jsonErr != nil {
			return fmt.Errorf("failed to unmarshal config file as YAML or JSON: %w", err)
		}
	}

	return nil
}

func loadConfigFromEnv(config *Config) error {
	if baseURL := os.Getenv("PORTAL_API_BASE_URL"); baseURL != "" {
		config.API.BaseURL = baseURL
	}
	if timeout := os.Getenv("PORTAL_API_TIMEOUT"); timeout != "" {
		config.API.Timeout = timeout
	}
	if rl := os.Getenv("PORTAL_API_RATE_LIMIT"); rl != "" {
		v, err := strconv.ParseFloat(rl, 64)
		if err != nil {
			return fmt.Errorf("invalid PORTAL_API_RATE_LIMIT: %s", rl)
		}
		config.API.RateLimit = v
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		config.Environment = env
	}
	if level := os.Getenv("LOGGER_LEVEL"); level != "" {
		config.Logger.Level = level
	}
	if format := os.Getenv("LOGGER_FORMAT"); format != "" {
		config.Logger.Format = format
	}

	if store := os.Getenv("PORTAL_SESSION_STORE"); store != "" {
		config.Session.Store = store
	}
	if home := os.Getenv("PORTAL_HOME"); home != "" {
		config.Session.Dir = home
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}

	if secret := os.Getenv("SERVER_JWT_SECRET"); secret != "" {
		config.Server.JWTSecret = secret
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		if _, err := fmt.Sscanf(port, "%d", &config.Server.Port); err != nil {
			return fmt.Errorf("invalid SERVER_PORT: %s", port)
		}
	}

	return nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	switch c.Environment {
	case "dev", "staging", "prod":
	default:
		return fmt.Errorf("invalid environment: %s, must be one of: dev, staging, prod", c.Environment)
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}
	if _, err := c.APITimeout(); err != nil {
		return err
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative")
	}

	if c.Endpoints.Login == "" || c.Endpoints.Refresh == "" || c.Endpoints.Logout == "" {
		return fmt.Errorf("endpoints.login, endpoints.refresh and endpoints.logout are required")
	}

	switch c.Session.Store {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("invalid session.store: %s, must be one of: memory, file, redis", c.Session.Store)
	}
	if c.Session.Store == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required for redis session store")
	}

	if _, err := c.TrackingInterval(); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.Output.Format {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("invalid output.format: %s", c.Output.Format)
	}

	return nil
}

// APITimeout возвращает таймаут HTTP запроса
func (c *Config) APITimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("api.timeout must be a positive duration, got %q", c.API.Timeout)
	}
	return d, nil
}

// TrackingInterval возвращает интервал опроса геолокации
func (c *Config) TrackingInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Tracking.Interval)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("tracking.interval must be a positive duration, got %q", c.Tracking.Interval)
	}
	return d, nil
}

// RedisRetryInterval возвращает паузу между попытками подключения к Redis
func (c *Config) RedisRetryInterval() time.Duration {
	d, err := time.ParseDuration(c.Redis.RetryInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// ServerProfileTTL возвращает время кэширования профиля, подтвержденного бэкендом
func (c *Config) ServerProfileTTL() time.Duration {
	d, err := time.ParseDuration(c.Server.ProfileTTL)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// SessionDir возвращает каталог файлового хранилища сессии
func (c *Config) SessionDir() (string, error) {
	if c.Session.Dir != "" {
		return c.Session.Dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return home, nil
}

// DefaultPath возвращает путь к файлу конфигурации по умолчанию
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".fieldops", "config.yaml"), nil
}

// Save сохраняет конфигурацию в файл в формате YAML.
// Автоматически создает директорию, если она не существует.
func (c *Config) Save(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}

	content, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(filename, content, 0644)
}

package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "FIELDTASKS_"

const RepositoryPostgres = "postgres"
const RepositoryInMemory = "inmemory"

type Config struct {
	Server     ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Database   DatabaseConfig   `yaml:"database" envPrefix:"DATABASE_"`
	Logging    LoggingConfig    `yaml:"logging" envPrefix:"LOGGING_"`
	Repository RepositoryConfig `yaml:"repository" envPrefix:"REPOSITORY_"`
	Storage    StorageConfig    `yaml:"storage" envPrefix:"STORAGE_"`
	Auth       AuthConfig       `yaml:"auth" envPrefix:"AUTH_"`
	Capture    CaptureConfig    `yaml:"capture" envPrefix:"CAPTURE_"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

type ServerConfig struct {
	Port            string        `yaml:"port" env:"PORT"`
	Host            string        `yaml:"host" env:"HOST"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	RateLimit       int           `yaml:"rate_limit" env:"RATE_LIMIT"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS"`
}

type DatabaseConfig struct {
	URL            string        `yaml:"url" env:"URL"`
	MaxConnections int32         `yaml:"max_connections" env:"MAX_CONNECTIONS"`
	MinConnections int32         `yaml:"min_connections" env:"MIN_CONNECTIONS"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	Migrate        bool          `yaml:"migrate" env:"MIGRATE"`
}

type LoggingConfig struct {
	Development bool `yaml:"development" env:"DEVELOPMENT"`
}

type RepositoryConfig struct {
	Type string `yaml:"type" env:"TYPE"` // "postgres" или "inmemory"
}

// StorageConfig - хранилище фото; ссылки строятся как PublicBaseURL/Bucket/имя
type StorageConfig struct {
	Root          string `yaml:"root" env:"ROOT"`
	Bucket        string `yaml:"bucket" env:"BUCKET"`
	PublicBaseURL string `yaml:"public_base_url" env:"PUBLIC_BASE_URL"`
	MaxPhotoBytes int64  `yaml:"max_photo_bytes" env:"MAX_PHOTO_BYTES"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

type CaptureConfig struct {
	LocationTimeout time.Duration `yaml:"location_timeout" env:"LOCATION_TIMEOUT"`
	DraftTTL        time.Duration `yaml:"draft_ttl" env:"DRAFT_TTL"`
	JanitorInterval time.Duration `yaml:"janitor_interval" env:"JANITOR_INTERVAL"`
}

type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       100,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			MaxConnections: 10,
			MinConnections: 2,
			IdleTimeout:    5 * time.Minute,
			Migrate:        true,
		},
		Repository: RepositoryConfig{Type: RepositoryInMemory},
		Storage: StorageConfig{
			Root:          "data/blobs",
			Bucket:        "completion-photos",
			PublicBaseURL: "http://localhost:8080/media",
			MaxPhotoBytes: 15 << 20,
		},
		Capture: CaptureConfig{
			LocationTimeout: 15 * time.Second,
			DraftTTL:        2 * time.Hour,
			JanitorInterval: 5 * time.Minute,
		},
		Telemetry: TelemetryConfig{ServiceName: "fieldTasks"},
	}
}

// Load читает YAML поверх значений по умолчанию, затем применяет переменные FIELDTASKS_*.
// Отсутствующий файл не ошибка.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("ошибка парсинга %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("не могу открыть %s: %w", path, err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("ошибка чтения переменных окружения: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Repository.Type {
	case RepositoryInMemory:
	case RepositoryPostgres:
		if c.Database.URL == "" {
			return errors.New("database.url обязателен для postgres")
		}
	default:
		return fmt.Errorf("неизвестный тип репозитория: %q", c.Repository.Type)
	}

	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("auth.jwt_secret должен быть не короче 16 символов")
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket обязателен")
	}
	if c.Capture.LocationTimeout <= 0 {
		return errors.New("capture.location_timeout должен быть положительным")
	}
	return nil
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

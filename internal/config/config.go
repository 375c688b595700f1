package config

import (
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"staging-server/internal/logger"
)

// Config структура для хранения всей конфигурации приложения.
type Config struct {
	AppEnv   string `env:"APP_ENV" env-default:"development"`
	Logger   logger.Config
	HTTP     HTTPConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Provider ProviderConfig
	Storage  StorageConfig

	// URL для Pushgateway (метрики воркера)
	PushGatewayURL string `env:"PUSHGATEWAY_URL" env-default:""`
}

// HTTPConfig настройки HTTP сервера.
type HTTPConfig struct {
	Port            string        `env:"HTTP_PORT" env-default:"8080"`
	AllowedOrigins  []string      `env:"HTTP_ALLOWED_ORIGINS" env-default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// PostgresConfig настройки подключения к PostgreSQL.
type PostgresConfig struct {
	URL            string `env:"DATABASE_URL" env-required:"true"`
	MigrationsPath string `env:"MIGRATIONS_PATH" env-default:"."`
}

// RedisConfig настройки подключения к Redis (хранилище активных задач редактирования).
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string        `env:"REDIS_PASSWORD" env-default:""`
	DB       int           `env:"REDIS_DB" env-default:"0"`
	JobTTL   time.Duration `env:"REDIS_EDIT_JOB_TTL" env-default:"30m"`
}

// RabbitMQConfig конфигурация для подключения к RabbitMQ.
type RabbitMQConfig struct {
	URL          string      `env:"RABBITMQ_URL" env-required:"true"`
	ConsumerName string      `env:"RABBITMQ_CONSUMER_NAME" env-default:"edit_worker"`
	TaskQueue    QueueConfig `env-prefix:"RABBITMQ_EDIT_TASK_QUEUE_"`
	ResultQueue  QueueConfig `env-prefix:"RABBITMQ_EDIT_RESULT_QUEUE_"`
}

// QueueConfig настройки для конкретной очереди RabbitMQ.
type QueueConfig struct {
	Name       string `env:"NAME" env-required:"true"`
	Durable    bool   `env:"DURABLE" env-default:"true"`
	AutoDelete bool   `env:"AUTO_DELETE" env-default:"false"`
	Exclusive  bool   `env:"EXCLUSIVE" env-default:"false"`
	NoWait     bool   `env:"NO_WAIT" env-default:"false"`
}

// ProviderConfig конфигурация внешнего сервиса inpainting-редактирования.
type ProviderConfig struct {
	BaseURL string `env:"EDIT_PROVIDER_BASE_URL" env-required:"true"`
	APIKey  string `env:"EDIT_PROVIDER_API_KEY" env-required:"true"`
	Timeout int    `env:"EDIT_PROVIDER_TIMEOUT_SEC" env-default:"120"` // Таймаут в секундах
	// Число шагов диффузии, прокидывается в API как есть
	InferenceSteps int `env:"EDIT_PROVIDER_INFERENCE_STEPS" env-default:"28"`
}

// StorageConfig настройки хранилища результатов (локальный том + публичный base URL).
type StorageConfig struct {
	SavePath      string `env:"IMAGE_SAVE_PATH" env-required:"true"`
	PublicBaseURL string `env:"IMAGE_PUBLIC_BASE_URL" env-required:"true"`
	ThumbnailSize int    `env:"IMAGE_THUMBNAIL_SIZE" env-default:"512"` // Ширина миниатюры в пикселях
}

// Load загружает конфигурацию из переменных окружения и .env файла.
func Load() *Config {
	// Загружаем .env файл (игнорируем ошибку, если файла нет)
	_ = godotenv.Load()

	var cfg Config

	// Используем cleanenv для загрузки конфигурации
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	return &cfg
}

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config - структура для хранения конфигураций приложения
type Config struct {
	ServerAddress    string        `mapstructure:"SERVER_ADDRESS"`
	PostgresConn     string        `mapstructure:"POSTGRES_CONN"`
	PostgresUser     string        `mapstructure:"POSTGRES_USERNAME"`
	PostgresPass     string        `mapstructure:"POSTGRES_PASSWORD"`
	PostgresHost     string        `mapstructure:"POSTGRES_HOST"`
	PostgresPort     string        `mapstructure:"POSTGRES_PORT"`
	PostgresDB       string        `mapstructure:"POSTGRES_DATABASE"`
	MigrationURL     string        `mapstructure:"MIGRATION_URL"`
	StorageDriver    string        `mapstructure:"STORAGE_DRIVER"`
	HandlerTimeout   time.Duration `mapstructure:"HANDLER_TIMEOUT"`
	RequestTTL       time.Duration `mapstructure:"REQUEST_TTL"`
	ExpiryInterval   time.Duration `mapstructure:"EXPIRY_INTERVAL"`
	TokenCacheTTL    time.Duration `mapstructure:"TOKEN_CACHE_TTL"`
	TokenCacheSize   int           `mapstructure:"TOKEN_CACHE_SIZE"`
	LiveBufferSize   int           `mapstructure:"LIVE_BUFFER_SIZE"`
	PullLimitDefault int           `mapstructure:"PULL_LIMIT_DEFAULT"`
	SeedFile         string        `mapstructure:"SEED_FILE"`
}

const (
	PostgresDriver = "postgres"
	MemoryDriver   = "memory"
)

// LoadConfig загружает конфигурацию из файла app.env.
// Переменные окружения имеют приоритет, отсутствие файла не является ошибкой.
func LoadConfig(path string) (cfg Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for _, key := range []string{"POSTGRES_CONN", "POSTGRES_USERNAME", "POSTGRES_PASSWORD", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DATABASE"} {
		v.SetDefault(key, "")
	}
	v.SetDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("MIGRATION_URL", "file://migrations")
	v.SetDefault("STORAGE_DRIVER", PostgresDriver)
	v.SetDefault("HANDLER_TIMEOUT", 5*time.Second)
	v.SetDefault("REQUEST_TTL", time.Duration(0))
	v.SetDefault("EXPIRY_INTERVAL", time.Minute)
	v.SetDefault("TOKEN_CACHE_TTL", 5*time.Minute)
	v.SetDefault("TOKEN_CACHE_SIZE", 10000)
	v.SetDefault("LIVE_BUFFER_SIZE", 32)
	v.SetDefault("PULL_LIMIT_DEFAULT", 50)
	v.SetDefault("SEED_FILE", "")

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
	}
	err = v.Unmarshal(&cfg)
	return
}

// DatabaseURL возвращает строку подключения к Postgres.
func (c Config) DatabaseURL() string {
	if c.PostgresConn != "" {
		return c.PostgresConn
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}

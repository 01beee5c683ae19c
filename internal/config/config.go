package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"Server"`
	Database DatabaseConfig `mapstructure:"Database"`
	Upload   UploadConfig   `mapstructure:"Upload"`
	Queue    QueueConfig    `mapstructure:"Queue"`
	Scanner  ScannerConfig  `mapstructure:"Scanner"`
}

type ServerConfig struct {
	Port    string `mapstructure:"Port"`
	BaseURL string `mapstructure:"BaseURL"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"Host"`
	Port     string `mapstructure:"Port"`
	User     string `mapstructure:"User"`
	Password string `mapstructure:"Password"`
	Name     string `mapstructure:"Name"`
	SSLMode  string `mapstructure:"SSLMode"`
}

type UploadConfig struct {
	MaxFileSizeBytes int64 `mapstructure:"MaxFileSizeBytes"`
	DedupEnabled     bool  `mapstructure:"DedupEnabled"`
	URLTTLMinutes    int   `mapstructure:"URLTTLMinutes"`
}

type QueueConfig struct {
	Workers        int           `mapstructure:"Workers"`
	MaxAttempts    int           `mapstructure:"MaxAttempts"`
	BaseDelay      time.Duration `mapstructure:"BaseDelay"`
	PollInterval   time.Duration `mapstructure:"PollInterval"`
	LockTTL        time.Duration `mapstructure:"LockTTL"`
	ProcessTimeout time.Duration `mapstructure:"ProcessTimeout"`
}

type ScannerConfig struct {
	ClamdAddr string        `mapstructure:"ClamdAddr"`
	Timeout   time.Duration `mapstructure:"Timeout"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()

	// Устанавливаем файл конфигурации
	v.SetConfigFile(path)

	// Привязываем переменные окружения
	v.BindEnv("Database.Host", "DATABASE_HOST")
	v.BindEnv("Database.Port", "DATABASE_PORT")
	v.BindEnv("Database.User", "DATABASE_USER")
	v.BindEnv("Database.Password", "DATABASE_PASSWORD")
	v.BindEnv("Database.Name", "DATABASE_NAME")
	v.BindEnv("Database.SSLMode", "DATABASE_SSLMODE")
	v.BindEnv("Server.Port", "HTTP_PORT")
	v.BindEnv("Scanner.ClamdAddr", "CLAMD_ADDR")

	// Читаем конфигурацию из файла
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Проверяем переменные окружения напрямую если конфигурация неполная
	if cfg.Database.Host == "" {
		cfg.Database.Host = v.GetString("DATABASE_HOST")
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = v.GetString("DATABASE_PORT")
	}
	if cfg.Database.User == "" {
		cfg.Database.User = v.GetString("DATABASE_USER")
	}
	if cfg.Database.Password == "" {
		cfg.Database.Password = v.GetString("DATABASE_PASSWORD")
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = v.GetString("DATABASE_NAME")
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = v.GetString("DATABASE_SSLMODE")
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = v.GetString("HTTP_PORT")
	}
	if cfg.Scanner.ClamdAddr == "" {
		cfg.Scanner.ClamdAddr = v.GetString("CLAMD_ADDR")
	}

	// Проверяем, что все необходимые поля заполнены
	if cfg.Database.Host == "" ||
		cfg.Database.Port == "" ||
		cfg.Database.User == "" ||
		cfg.Database.Password == "" ||
		cfg.Database.Name == "" {
		return nil, fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Name)
	}

	// Установка значений по умолчанию
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "2525"
	}
	if cfg.Upload.MaxFileSizeBytes == 0 {
		cfg.Upload.MaxFileSizeBytes = 100 * 1024 * 1024 // 100MB
	}
	if cfg.Upload.URLTTLMinutes == 0 {
		cfg.Upload.URLTTLMinutes = 15
	}
	if cfg.Queue.Workers == 0 {
		cfg.Queue.Workers = 2
	}
	if cfg.Queue.MaxAttempts == 0 {
		cfg.Queue.MaxAttempts = 3
	}
	if cfg.Queue.BaseDelay == 0 {
		cfg.Queue.BaseDelay = time.Second
	}
	if cfg.Queue.PollInterval == 0 {
		cfg.Queue.PollInterval = time.Second
	}
	if cfg.Queue.LockTTL == 0 {
		cfg.Queue.LockTTL = 5 * time.Minute
	}
	if cfg.Queue.ProcessTimeout == 0 {
		cfg.Queue.ProcessTimeout = 2 * time.Minute
	}
	if cfg.Scanner.ClamdAddr == "" {
		cfg.Scanner.ClamdAddr = "tcp://127.0.0.1:3310"
	}
	if cfg.Scanner.Timeout == 0 {
		cfg.Scanner.Timeout = 30 * time.Second
	}

	return &cfg, nil
}

// DSN собирает строку подключения к Postgres
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL собирает URL подключения для golang-migrate
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

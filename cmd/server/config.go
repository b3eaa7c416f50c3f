package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ojcore/internal/auth"
	"ojcore/internal/common/cache"
	"ojcore/internal/common/db"
	"ojcore/internal/common/mq"
	"ojcore/internal/common/storage"
	"ojcore/internal/submission"
	"ojcore/pkg/utils/logger"
)

// Config is the API server configuration.
type Config struct {
	Server struct {
		Addr            string        `yaml:"addr"`
		Mode            string        `yaml:"mode"`
		ReadTimeout     time.Duration `yaml:"readTimeout"`
		WriteTimeout    time.Duration `yaml:"writeTimeout"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Log   logger.Config     `yaml:"log"`
	MySQL db.Config         `yaml:"mysql"`
	Redis cache.RedisConfig `yaml:"redis"`
	Kafka mq.KafkaConfig    `yaml:"kafka"`
	MinIO struct {
		storage.MinIOConfig `yaml:",inline"`
		Bucket              string `yaml:"bucket"`
		Enabled             bool   `yaml:"enabled"`
	} `yaml:"minio"`

	Auth      auth.Config          `yaml:"auth"`
	RateLimit submission.RateLimit `yaml:"rateLimit"`
}

// LoadConfig reads and validates the yaml config file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("auth.secret is required")
	}
	if cfg.MySQL.DSN == "" {
		return nil, fmt.Errorf("mysql.dsn is required")
	}
	return &cfg, nil
}

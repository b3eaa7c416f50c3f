package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ojcore/internal/common/cache"
	"ojcore/internal/common/db"
	"ojcore/internal/common/mq"
	"ojcore/internal/judge"
	"ojcore/internal/sandbox"
	"ojcore/pkg/utils/logger"
)

// Config is the judge daemon configuration.
type Config struct {
	Log   logger.Config     `yaml:"log"`
	MySQL db.Config         `yaml:"mysql"`
	Redis cache.RedisConfig `yaml:"redis"`
	Kafka mq.KafkaConfig    `yaml:"kafka"`

	Sandbox sandbox.Config      `yaml:"sandbox"`
	Engine  judge.EngineConfig  `yaml:"engine"`
	Worker  judge.WorkerConfig  `yaml:"worker"`
	Sweeper judge.SweeperConfig `yaml:"sweeper"`
	Health  judge.HealthConfig  `yaml:"health"`
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
	if cfg.MySQL.DSN == "" {
		return nil, fmt.Errorf("mysql.dsn is required")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka.brokers is required")
	}
	return &cfg, nil
}

package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/tracing"
)

type Config struct {
	AppConfig       *AppConfig
	Logger          *logger.Config
	Tracing         *tracing.JaegerConfig
	DatabaseConfig  *DatabaseConfig
	GmailConfig     *GmailConfig
	SyncConfig      *SyncConfig
	RabbitMQConfig  *RabbitMQConfig
	NatsConfig      *NatsConfig
	PubSubConfig    *PubSubConfig
	R2StorageConfig *R2StorageConfig
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:       &AppConfig{},
		Logger:          &logger.Config{},
		Tracing:         &tracing.JaegerConfig{},
		DatabaseConfig:  &DatabaseConfig{},
		GmailConfig:     &GmailConfig{},
		SyncConfig:      &SyncConfig{},
		RabbitMQConfig:  &RabbitMQConfig{},
		NatsConfig:      &NatsConfig{},
		PubSubConfig:    &PubSubConfig{},
		R2StorageConfig: &R2StorageConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		return nil, err
	}

	return config, nil
}

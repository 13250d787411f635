package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	ParcelBox ParcelBoxConfig `yaml:"parcelbox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                       string `yaml:"host"`
	Port                       int    `yaml:"port"`
	PaymentReconciledTopicName string `yaml:"payment_reconciled_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ParcelBoxConfig struct {
	HTTPAddr              string `yaml:"http_addr"`
	KafkaConsumerGroup    string `yaml:"kafka_consumer_group"`
	ParcelCacheTTLSeconds int    `yaml:"parcel_cache_ttl_seconds"`

	// Платёжный провайдер. Если base_url пуст — используется локальный fake.
	ProviderBaseURL  string `yaml:"provider_base_url"`
	ProviderAPIKey   string `yaml:"provider_api_key"`
	ProviderCurrency string `yaml:"provider_currency"`

	IntentRateLimitPerMinute int `yaml:"intent_rate_limit_per_minute"`

	WorkerHTTPAddr            string `yaml:"worker_http_addr"`
	WorkerPollIntervalSeconds int    `yaml:"worker_poll_interval_seconds"`
	WorkerBatchSize           int    `yaml:"worker_batch_size"`
	WorkerRateLimitPerMinute  int    `yaml:"worker_rate_limit_per_minute"`
	// Повторная публикация одного и того же платежа подавляется на это окно.
	WorkerDedupWindowSeconds int `yaml:"worker_dedup_window_seconds"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}

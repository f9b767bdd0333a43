package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Wallet   WalletConfig   `yaml:"wallet"`
}

type DatabaseConfig struct {
	// Path — файл sqlite локального кошелька.
	Path string `yaml:"path"`
}

type KafkaConfig struct {
	Host                          string `yaml:"host"`
	Port                          int    `yaml:"port"`
	WalletUpdatedTopicName        string `yaml:"wallet_updated_topic_name"`
	BookingStatusChangedTopicName string `yaml:"booking_status_changed_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type WalletConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	CacheTTLSeconds    int    `yaml:"cache_ttl_seconds"`

	UserID string `yaml:"user_id"`

	TravelAPIBaseURL string `yaml:"travel_api_base_url"`
	TravelAPIMode    string `yaml:"travel_api_mode"` // "rest" | "fake"
	TravelAPIKey     string `yaml:"travel_api_key"`

	SyncLimitItineraries int `yaml:"sync_limit_itineraries"`
	SyncLimitBookings    int `yaml:"sync_limit_bookings"`
	SyncLimitTickets     int `yaml:"sync_limit_tickets"`

	AgentHTTPAddr            string `yaml:"agent_http_addr"`
	AgentSyncIntervalSeconds int    `yaml:"agent_sync_interval_seconds"`
	AgentProbeIntervalSeconds int   `yaml:"agent_probe_interval_seconds"`
	AgentRateLimitPerMinute  int    `yaml:"agent_rate_limit_per_minute"`
	AgentWatchBatchSize      int    `yaml:"agent_watch_batch_size"`

	WatchIntervalSeconds int `yaml:"watch_interval_seconds"`
	WatchMaxAttempts     int `yaml:"watch_max_attempts"`
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

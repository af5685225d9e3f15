package config

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		HTTPAddr  string `yaml:"http_addr"`
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"server"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Kafka struct {
		Enabled    bool   `yaml:"enabled"`
		BrokerAddr string `yaml:"broker_addr"`
		Topic      string `yaml:"topic"`
	} `yaml:"kafka"`

	Pipeline struct {
		// TradeChannel is the orchestrator's inbound channel prefix.
		TradeChannel string `yaml:"trade_channel"`
		// StageInstances is the number of runtimes started per stage.
		// Values above 1 are only meaningful on substrates with queue
		// semantics; Redis Pub/Sub broadcasts to every subscriber.
		StageInstances int `yaml:"stage_instances"`
		// SyncTimeoutSeconds bounds every synchronous client call.
		SyncTimeoutSeconds int `yaml:"sync_timeout_seconds"`
	} `yaml:"pipeline"`

	Otel struct {
		Enabled  bool   `yaml:"enabled"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"otel"`
}

// Default configuration values
var (
	configFile = flag.String("config", "", "Path to config file (YAML)")
	httpPort   = flag.Int("http_port", 8080, "The HTTP server port")
	logLevel   = flag.String("log_level", "info", "Log level: debug, info, warn, error")
	logFormat  = flag.String("log_format", "pretty", "Log format: json, pretty")
)

// LoadConfig loads the configuration from command line flags and optionally from a config file
func LoadConfig() (*Config, error) {
	flag.Parse()

	config := &Config{}
	config.Server.HTTPAddr = fmt.Sprintf(":%d", *httpPort)
	config.Server.LogLevel = *logLevel
	config.Server.LogFormat = *logFormat
	config.Redis.Addr = "localhost:6379"
	config.Kafka.BrokerAddr = "localhost:9092"
	config.Kafka.Topic = "trade-outcomes"
	config.Pipeline.TradeChannel = "TRADE"
	config.Pipeline.StageInstances = 1
	config.Pipeline.SyncTimeoutSeconds = 5
	config.Otel.Endpoint = "localhost:4317"

	if *configFile != "" {
		yamlFile, err := os.ReadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(yamlFile, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		log.Printf("Loaded configuration from %s", *configFile)
	}

	if config.Pipeline.TradeChannel == "" {
		return nil, fmt.Errorf("pipeline.trade_channel must not be empty")
	}
	if config.Pipeline.StageInstances < 1 {
		return nil, fmt.Errorf("pipeline.stage_instances must be at least 1, got %d", config.Pipeline.StageInstances)
	}
	if config.Pipeline.SyncTimeoutSeconds < 1 {
		return nil, fmt.Errorf("pipeline.sync_timeout_seconds must be at least 1, got %d", config.Pipeline.SyncTimeoutSeconds)
	}

	return config, nil
}

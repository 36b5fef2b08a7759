package util

import (
	"intelliclima2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Intelliclima: config.IntelliclimaConfig{
			Username:             "user",
			Password:             "pass",
			BaseURL:              "https://app.intelliclima.com",
			APIFolder:            "/api",
			RequestTimeoutMillis: 5000,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "intelliclima",
		},
		MonitorConfig: config.MonitorConfig{
			PollIntervalMillis: 5000,
		},
		Port: 8080,
	}
}

package util

import (
	"givmon/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Inverter: config.InverterConfig{
			Host:          "-.-.-.-",
			Port:          8899,
			UnitId:        1,
			ReadOnly:      true,
			TimeoutMillis: 1000,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "givmon",
		},
		Store: config.StoreConfig{
			Path: "/tmp/sensors-test",
		},
		Control: config.ControlConfig{
			WatchdogSeconds:    900,
			SettleSeconds:      120,
			WriteTimeoutMillis: 2000,
			WriteRetries:       2,
		},
		Watcher: config.WatcherConfig{
			Enable:          true,
			IntervalSeconds: 30,
		},
		Port: 8080,
	}
}

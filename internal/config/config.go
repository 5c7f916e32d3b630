package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	Inverter InverterConfig `mapstructure:"inverter"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`

	Store   StoreConfig   `mapstructure:"store"`
	Control ControlConfig `mapstructure:"control"`
	Watcher WatcherConfig `mapstructure:"watcher"`
	Log     LogFileConfig `mapstructure:"log"`
	Port    uint          `mapstructure:"port"`
	HttpLog bool          `mapstructure:"http_log"`
}

type InverterConfig struct {
	Host          string
	Port          uint
	UnitId        uint   `mapstructure:"unit_id"`
	ReadOnly      bool   `mapstructure:"read_only"`
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

type StoreConfig struct {
	Path string
}

type ControlConfig struct {
	WatchdogSeconds    uint32 `mapstructure:"watchdog_seconds"`
	SettleSeconds      uint32 `mapstructure:"settle_seconds"`
	WriteTimeoutMillis uint32 `mapstructure:"write_timeout_millis"`
	WriteRetries       uint   `mapstructure:"write_retries"`
}

type WatcherConfig struct {
	Enable          bool
	IntervalSeconds uint32 `mapstructure:"interval_seconds"`
}

type LogFileConfig struct {
	File       string
	MaxSizeMB  uint `mapstructure:"max_size_mb"`
	MaxBackups uint `mapstructure:"max_backups"`
	Compress   bool
}

type MQTTConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	BaseTopic string `mapstructure:"base_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

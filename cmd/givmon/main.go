package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	adactor "givmon/internal/adapter/actor"
	"givmon/internal/config"
	"givmon/internal/core/actor"
	"givmon/internal/sensorstore"
	"givmon/internal/server"
	"givmon/internal/util/actorutil"
	"givmon/pkg/givmodbus"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)
	slog.Info("givmon", "version", versioninfo.Short())

	logger := buildLogger(cfg)
	defer logger.Sync()

	// open the shared sensor store
	store, err := sensorstore.Open(cfg.Store.Path, false)
	if err != nil {
		logger.Fatal("could not open sensor store", zap.String("path", cfg.Store.Path), zap.Error(err))
	}
	defer store.Close()

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	// init Modbus actor provider
	modbusProv, err := modbusActorProvider(cfg, logger)
	if err != nil {
		panic(err)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, store, modbusProv, mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid, store)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => GIVMON_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("GIVMON_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("givmon")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// a positional host[:port] argument overrides the configured inverter
	if len(os.Args) > 1 {
		host, port, err := splitHostPort(os.Args[1])
		if err != nil {
			return nil, err
		}
		cfg.Inverter.Host = host
		if port > 0 {
			cfg.Inverter.Port = port
		}
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check bounds
	if cfg.Inverter.Host == "" {
		return nil, errors.New("config param inverter.host is required")
	}
	if cfg.Control.WatchdogSeconds < 60 {
		return nil, errors.New("config param control.watchdog_seconds should be >= 60")
	}
	if cfg.Control.WriteTimeoutMillis < 500 {
		return nil, errors.New("config param control.write_timeout_millis should be >= 500")
	}
	if cfg.Watcher.Enable && cfg.Watcher.IntervalSeconds < 5 {
		return nil, errors.New("config param watcher.interval_seconds should be >= 5")
	}

	return &cfg, nil
}

func splitHostPort(arg string) (string, uint, error) {
	host, portStr, found := strings.Cut(arg, ":")
	if host == "" {
		return "", 0, fmt.Errorf("invalid inverter address %q", arg)
	}
	if !found {
		return host, 0, nil
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("invalid inverter address %q: %w", arg, err)
	}
	return host, uint(port), nil
}

func buildLogger(cfg *config.Config) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stdout), cfg.LogLevel)
	if cfg.Log.File == "" {
		return zap.New(consoleCore)
	}

	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    int(cfg.Log.MaxSizeMB),
			MaxBackups: int(cfg.Log.MaxBackups),
			Compress:   cfg.Log.Compress,
		}), cfg.LogLevel)
	return zap.New(zapcore.NewTee(consoleCore, fileCore))
}

func modbusActorProvider(cfg *config.Config, logger *zap.Logger) (actor.ModbusActorProvider, error) {

	client, err := givmodbus.CreateClient(cfg.Inverter.Host, cfg.Inverter.Port,
		uint8(cfg.Inverter.UnitId), time.Duration(cfg.Inverter.TimeoutMillis)*time.Millisecond, logger)
	if err != nil {
		return nil, err
	}

	return func() *adactor.ModbusActor {
		return adactor.NewModbusActor(client, cfg, logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("mqtt.base_topic", "givmon")
	viper.SetDefault("store.path", "/dev/shm/sensors")
	viper.SetDefault("inverter.port", 8899)
	viper.SetDefault("inverter.unit_id", 1)
	viper.SetDefault("inverter.timeout_millis", 2000)
	viper.SetDefault("control.watchdog_seconds", 900)
	viper.SetDefault("control.settle_seconds", 120)
	viper.SetDefault("control.write_timeout_millis", 2000)
	viper.SetDefault("control.write_retries", 2)
	viper.SetDefault("watcher.enable", true)
	viper.SetDefault("watcher.interval_seconds", 30)
	viper.SetDefault("log.max_size_mb", 10)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}

package actor

import (
	"fmt"
	"time"

	"givmon/internal/config"
	"givmon/internal/core/domain"
	"givmon/internal/core/port"
	"givmon/internal/core/service"
	"givmon/internal/sensorstore"
	. "givmon/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// WatcherActor periodically sweeps the shared store for sensors that
// stopped updating and for conditions worth an immediate notification,
// forwarding every alert to the MQTT actor.
type WatcherActor struct {
	behavior actor.Behavior
	stash    *Stash

	config    *config.Config
	store     port.SensorStore
	mqttActor *actor.PID
	watcher   *service.Watcher
	scheduler *scheduler.TimerScheduler
	interval  time.Duration

	logger *zap.Logger
}

type watchTick struct {
}

func NewWatcherActor(config *config.Config, store port.SensorStore, mqttActor *actor.PID, logger *zap.Logger) *WatcherActor {
	act := &WatcherActor{
		config:    config,
		store:     store,
		mqttActor: mqttActor,
		interval:  time.Duration(config.Watcher.IntervalSeconds) * time.Second,
		behavior:  actor.NewBehavior(),
		stash:     &Stash{},
		logger:    ActorLogger(domain.ACTOR_ID_WATCHER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *WatcherActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *WatcherActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("watcher@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.watcher = service.NewWatcher(state.logger)
		state.behavior.Become(state.RunningReceive)
		state.stash.UnstashAll(ctx)
		state.scheduler.RequestOnce(state.interval, ctx.Self(), watchTick{})
	default:
		state.logger.Debug("watcher@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *WatcherActor) RunningReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("watcher@running ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_WATCHER,
			Healthy: true,
			State:   "running",
		})
	case watchTick:
		state.logger.Debug("watcher@running tick")
		for _, alert := range state.watcher.Check(state.loadRecords()) {
			state.logger.Info("watcher@running alert", zap.String("message", alert.Message))
			ctx.Send(state.mqttActor, domain.NotifyRequest{
				Message:  alert.Message,
				Priority: alert.Priority,
				Tags:     alert.Tags,
			})
		}
		state.scheduler.RequestOnce(state.interval, ctx.Self(), watchTick{})
	case domain.NotifyResponse:
		if msg.HasResponseError() {
			state.logger.Error("watcher@running alert publish failed", zap.Error(msg.GetResponseError()))
		}
	default:
		state.logger.Debug("watcher@running recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *WatcherActor) loadRecords() service.WatchInput {
	in := service.WatchInput{Now: time.Now()}
	load := func(name string, r sensorstore.Record) {
		if err := state.store.Load(r); err != nil {
			state.logger.Warn("watcher@running could not read record",
				zap.String("record", name), zap.Error(err))
		}
	}
	load("ev charger", &in.EV)
	load("telemetry", &in.Telemetry)
	load("tariff", &in.Tariff)
	load("heat pump", &in.HeatPump)
	load("car battery", &in.CarBattery)
	load("forecast", &in.Forecast)
	return in
}

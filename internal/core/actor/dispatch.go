package actor

import (
	"fmt"
	"strings"
	"time"

	"givmon/internal/config"
	"givmon/internal/core/domain"
	"givmon/internal/core/events"
	"givmon/internal/core/port"
	"givmon/internal/core/service"
	"givmon/internal/sensorstore"
	"givmon/internal/util"
	. "givmon/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	telemetryRequestTimeout = 12 * time.Second
	errorRetrySeconds       = 30

	cellLogInterval   = 10 * time.Minute
	cellQuietStartHH  = 6
	cellQuietEndHH    = 22
)

// DispatchActor drives the control loop: ask the modbus actor for a
// snapshot, feed the engine, commit whatever register writes fall out,
// mirror telemetry to the shared store and the event stream, then sleep
// for however long the engine decided. A hardware watchdog-style timer
// covers the whole loop; if a tick wedges past it the process dies and
// the service supervisor restarts it.
type DispatchActor struct {
	behavior actor.Behavior
	stash    *Stash

	config      *config.Config
	modbusActor *actor.PID
	store       port.SensorStore
	eventStream *eventstream.EventStream
	engine      *service.Engine
	watchdog    *util.Watchdog
	scheduler   *scheduler.TimerScheduler

	solar      *service.Smoother
	generation *service.Smoother
	export     *service.Smoother
	battery    *service.Smoother

	st        domain.ControllerState
	firstTick bool

	logger *zap.Logger
}

type dispatchTick struct {
}

func NewDispatchActor(config *config.Config, modbusActor *actor.PID, store port.SensorStore,
	eventStream *eventstream.EventStream, logger *zap.Logger) *DispatchActor {
	act := &DispatchActor{
		config:      config,
		modbusActor: modbusActor,
		store:       store,
		eventStream: eventStream,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_DISPATCH, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *DispatchActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *DispatchActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("dispatch@starting started")

		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.engine = service.NewEngine(state.logger)
		state.watchdog = util.NewWatchdog(time.Duration(state.config.Control.WatchdogSeconds)*time.Second, state.logger)

		state.solar = service.NewSmoother()
		state.generation = service.NewSmoother()
		state.export = service.NewSmoother()
		state.battery = service.NewSmoother()

		state.st = domain.NewControllerState(float64(state.config.Control.SettleSeconds))
		state.firstTick = true

		state.behavior.Become(state.RunningReceive)
		state.stash.UnstashAll(ctx)
		ctx.Send(ctx.Self(), dispatchTick{})
	case *actor.Restarting:
		state.stopWatchdog()
	default:
		state.logger.Debug("dispatch@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *DispatchActor) RunningReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("dispatch@running ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_DISPATCH,
			Healthy: true,
			State:   "running",
		})
	case dispatchTick:
		state.logger.Debug("dispatch@running tick")
		state.watchdog.Kick()

		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.modbusActor, domain.RefreshTelemetryRequest{
			Full:      state.firstTick,
			WithCells: state.cellsDue(time.Now()),
		}, telemetryRequestTimeout), func(err error) any {
			return domain.RefreshTelemetryResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.BecomeStacked(state.AwaitTelemetryReceive)
	case domain.ExecuteWritesResponse:
		if msg.HasResponseError() {
			state.logger.Error("dispatch@running register commit failed", zap.Error(msg.GetResponseError()))
		}
	case *actor.Restarting:
		state.stopWatchdog()
	case *actor.Stopping:
		state.stopWatchdog()
	default:
		state.logger.Debug("dispatch@running recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *DispatchActor) AwaitTelemetryReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.RefreshTelemetryResponse:
		state.behavior.UnbecomeStacked()
		state.onTelemetry(ctx, msg)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.stopWatchdog()
	case *actor.Stopping:
		state.stopWatchdog()
	default:
		state.logger.Debug("dispatch@awaitTelemetry stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *DispatchActor) onTelemetry(ctx actor.Context, msg domain.RefreshTelemetryResponse) {
	if msg.HasResponseError() {
		state.logger.Error("dispatch@running telemetry refresh failed", zap.Error(msg.GetResponseError()))
		state.rearm(ctx, errorRetrySeconds)
		return
	}
	now := time.Now()
	hhmm := now.Hour()*100 + now.Minute()
	snap := msg.Snapshot
	state.firstTick = false

	state.solar.Update(snap.SolarWatt)
	state.generation.Update(snap.GenerationWatt)
	state.export.Update(snap.GridExportWatt)
	state.battery.Update(snap.BatteryWatt)

	var ev sensorstore.EVChargerRecord
	if err := state.store.Load(&ev); err != nil {
		state.logger.Warn("dispatch@running could not read ev charger record", zap.Error(err))
		ev = sensorstore.EVChargerRecord{}
	}
	var tariff sensorstore.TariffRecord
	if err := state.store.Load(&tariff); err != nil {
		state.logger.Warn("dispatch@running could not read tariff record", zap.Error(err))
		tariff = sensorstore.TariffRecord{}
	}

	var intent domain.ControlIntent
	state.st, intent = state.engine.Step(state.st, service.EngineInput{
		Now:        now,
		Snapshot:   snap,
		Solar:      state.solar,
		Generation: state.generation,
		Export:     state.export,
		Battery:    state.battery,
		EV:         ev,
		Tariff:     tariff,
	})

	sched := service.ScheduleFromSnapshot(snap)
	writes := service.DiffIntent(snap, intent, sched.ActiveWindow(hhmm))
	if len(writes) > 0 {
		if !state.st.Settled() {
			for _, w := range writes {
				state.logger.Info("dispatch@running settling, skipping write",
					zap.String("register", w.Name), zap.Uint16("value", w.Value))
			}
		} else {
			for _, w := range writes {
				state.logger.Info("dispatch@running commit",
					zap.String("register", w.Name), zap.Uint16("value", w.Value))
			}
			state.st.ElapsedSeconds = 0
			ctx.Request(state.modbusActor, domain.ExecuteWritesRequest{Writes: writes})
		}
	}

	record := events.TelemetryRecordFromSnapshot(snap, state.solar, state.export, state.battery, state.generation)
	if err := state.store.Save(&record); err != nil {
		state.logger.Error("dispatch@running could not store telemetry", zap.Error(err))
	}
	state.eventStream.Publish(events.TelemetryPublish(record, snap, sched.TargetSoC(hhmm), intent))

	if len(snap.CellVoltages) > 0 {
		state.logCells(snap.CellVoltages)
		state.st.CellLogAt = now
	}

	state.rearm(ctx, intent.DelaySeconds)
}

func (state *DispatchActor) rearm(ctx actor.Context, delaySeconds float64) {
	state.scheduler.RequestOnce(time.Duration(delaySeconds*float64(time.Second)), ctx.Self(), dispatchTick{})
	state.st.ElapsedSeconds += delaySeconds
}

// cellsDue limits the per-cell voltage read to night hours, at most once
// every ten minutes.
func (state *DispatchActor) cellsDue(now time.Time) bool {
	if now.Hour() >= cellQuietStartHH && now.Hour() < cellQuietEndHH {
		return false
	}
	return now.Sub(state.st.CellLogAt) >= cellLogInterval
}

func (state *DispatchActor) logCells(cells []float64) {
	parts := make([]string, len(cells))
	for i, v := range cells {
		parts[i] = fmt.Sprintf("%.3f", v)
	}
	state.logger.Info("dispatch@running battery cells", zap.String("volts", strings.Join(parts, " ")))
}

func (state *DispatchActor) stopWatchdog() {
	if state.watchdog != nil {
		state.watchdog.Stop()
	}
}

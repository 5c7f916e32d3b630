package actor

import (
	"fmt"
	"time"

	"givmon/internal/config"
	"givmon/internal/core/domain"
	"givmon/internal/util/actorutil"
	"givmon/pkg/givmodbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

const (
	refreshTimeout = 10 * time.Second
)

// ModbusActor owns the inverter connection. Reads and writes run as
// background tasks so a slow link never blocks the mailbox; while one is
// in flight the actor stashes everything else.
type ModbusActor struct {
	behavior     actor.Behavior
	stash        *actorutil.Stash
	transport    givmodbus.Transport
	readOnly     bool
	writeTimeout time.Duration
	writeRetries int
	logger       *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewModbusActor(transport givmodbus.Transport, cfg *config.Config, logger *zap.Logger) *ModbusActor {
	act := &ModbusActor{
		transport:    transport,
		readOnly:     cfg.Inverter.ReadOnly,
		writeTimeout: time.Duration(cfg.Control.WriteTimeoutMillis) * time.Millisecond,
		writeRetries: int(cfg.Control.WriteRetries),
		behavior:     actor.NewBehavior(),
		stash:        &actorutil.Stash{},
		logger:       actorutil.ActorLogger("modbus", logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *ModbusActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ModbusActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("modbus@starting started")
		if err := state.transport.Open(); err != nil {
			panic(err)
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.transport.Close()
	default:
		state.logger.Debug("modbus@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ModbusActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("modbus@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MODBUS,
			Healthy: true,
			State:   "idle",
		})
	case domain.RefreshTelemetryRequest:
		state.logger.Debug("modbus@default: RefreshTelemetryRequest",
			zap.Bool("full", msg.Full), zap.Bool("withCells", msg.WithCells))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.RefreshTelemetryResponse, error) {
			return state.refreshTelemetry(msg.Full, msg.WithCells)
		}), mapTaskResult[domain.RefreshTelemetryResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.RefreshTelemetryResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(refreshTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case domain.ExecuteWritesRequest:
		state.logger.Debug("modbus@default: ExecuteWritesRequest", zap.Int("writes", len(msg.Writes)))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.ExecuteWritesResponse, error) {
			return state.executeWrites(msg.Writes)
		}), mapTaskResult[domain.ExecuteWritesResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.ExecuteWritesResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.writeTimeout * time.Duration(state.writeRetries+2)).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case *actor.Stopping:
		state.transport.Close()
	default:
		state.logger.Debug("modbus@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ModbusActor) WaitingModbus(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("modbus@WaitingModbus backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.transport.Close()
	default:
		state.logger.Debug("modbus@WaitingModbus stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *ModbusActor) refreshTelemetry(full, withCells bool) (*domain.RefreshTelemetryResponse, error) {
	snap, err := a.transport.Refresh(full, withCells)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.RefreshTelemetryResponse{
		Snapshot: snap,
	}, nil
}

func (a *ModbusActor) executeWrites(writes []givmodbus.RegisterWrite) (*domain.ExecuteWritesResponse, error) {
	if a.readOnly {
		for _, w := range writes {
			a.logger.Info("read-only mode, skipping write",
				zap.String("register", w.Name), zap.Uint16("value", w.Value))
		}
		return &domain.ExecuteWritesResponse{}, nil
	}
	if err := a.transport.Execute(writes, a.writeTimeout, a.writeRetries); err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.ExecuteWritesResponse{}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}

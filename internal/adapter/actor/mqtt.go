package actor

import (
	"encoding/json"
	"fmt"
	"time"

	"givmon/internal/config"
	"givmon/internal/core/domain"
	"givmon/internal/mqtt"
	"givmon/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type MQTTActor struct {
	config         *config.Config
	behavior       actor.Behavior
	stash          *actorutil.Stash
	client         *mqtt.MQTTClient
	eventStream    *eventstream.EventStream
	eventStreamSub *eventstream.Subscription
	logger         *zap.Logger
}

type MQTTConnected struct {
}

type MQTTConnectionLost struct {
	Error error
}

type publishResult struct {
	ReplyTo *actor.PID
	Error   error
}

type alertPayload struct {
	Message  string `json:"message"`
	Priority string `json:"priority,omitempty"`
	Tags     string `json:"tags,omitempty"`
}

type telemetryPayload struct {
	Timestamp     uint32  `json:"ts"`
	Solar         int     `json:"solar"`
	SolarAvg      int     `json:"solar_avg"`
	Grid          int     `json:"grid"`
	GridAvg       int     `json:"grid_avg"`
	Battery       int     `json:"battery"`
	BatteryAvg    int     `json:"battery_avg"`
	Generation    int     `json:"generation"`
	GenerationAvg int     `json:"generation_avg"`
	Backup        int     `json:"backup"`
	StateOfCharge int     `json:"soc"`
	TargetSoC     int     `json:"target_soc"`
	HeatsinkTemp  float64 `json:"heatsink_temp"`
	Eco           bool    `json:"eco"`
	Pause         uint16  `json:"pause"`
	DelaySeconds  float64 `json:"delay"`
}

func NewMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		eventStream: eventStream,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")

		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
		})

		state.client.Connect(func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTConnected{})
			}
		}, 10*time.Second)

	case MQTTConnected:
		state.logger.Debug("mqtt@starting connected")

		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)

		// forward event stream broadcasts to our own mailbox
		state.eventStreamSub = state.eventStream.Subscribe(func(value any) {
			ctx.Send(ctx.Self(), value)
		})

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case domain.NotifyRequest:
		state.logger.Debug("mqtt@default NotifyRequest", zap.String("message", msg.Message))
		payload, err := json.Marshal(alertPayload{
			Message:  msg.Message,
			Priority: msg.Priority,
			Tags:     msg.Tags,
		})
		if err != nil {
			state.logger.Error("mqtt@default could not encode alert", zap.Error(err))
			return
		}
		state.publishMessage(ctx, state.client.AlertTopic(), payload, false, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.TelemetryPublishEvent:
		state.logger.Debug("mqtt@default TelemetryPublishEvent")
		payload, err := json.Marshal(telemetryPayload{
			Timestamp:     msg.Record.Timestamp,
			Solar:         msg.Record.Solar,
			SolarAvg:      msg.Record.SolarAvg,
			Grid:          msg.Record.Grid,
			GridAvg:       msg.Record.GridAvg,
			Battery:       msg.Record.Battery,
			BatteryAvg:    msg.Record.BatteryAvg,
			Generation:    msg.Record.Generation,
			GenerationAvg: msg.Record.GenerationAvg,
			Backup:        msg.Record.Backup,
			StateOfCharge: msg.StateOfCharge,
			TargetSoC:     msg.TargetSoC,
			HeatsinkTemp:  msg.HeatsinkTemp,
			Eco:           msg.Eco,
			Pause:         msg.Pause,
			DelaySeconds:  msg.DelaySeconds,
		})
		if err != nil {
			state.logger.Error("mqtt@default could not encode telemetry", zap.Error(err))
			return
		}
		state.publishMessage(ctx, state.client.TelemetryTopic(), payload, true, nil)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MQTTActor) publishMessage(ctx actor.Context, topic string, payload []byte, retain bool, replyTo *actor.PID) {
	state.logger.Sugar().Debugf("mqtt@publish: message publish %s => %s", topic, string(payload))
	state.client.Publish(topic, payload, 1, retain, func(err error) {
		ctx.Send(ctx.Self(), publishResult{ReplyTo: replyTo, Error: err})
	}, 5*time.Second)
	state.behavior.BecomeStacked(state.MessagePublishResultReceive)
}

func (state *MQTTActor) MessagePublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.NotifyResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: msg.Error,
				},
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) stop() {
	state.logger.Debug("mqtt: disconnect")
	if state.eventStreamSub != nil {
		state.eventStream.Unsubscribe(state.eventStreamSub)
		state.eventStreamSub = nil
	}
	if state.client != nil {
		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
		state.client.Disconnect(500 * time.Millisecond)
	}
}

// Dummy actor
func NewTestMQTTActor(config *config.Config, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:   config,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger("mqtt", logger),
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

func (state *MQTTActor) DummyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, nil)
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case domain.NotifyRequest:
		if msg.ReplyToRef != nil {
			ctx.Respond(domain.NotifyResponse{})
		}
	}
}

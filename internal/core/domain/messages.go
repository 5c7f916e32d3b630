package domain

import (
	"givmon/internal/sensorstore"
	"givmon/pkg/givmodbus"

	"github.com/asynkron/protoactor-go/actor"
)

const (
	ACTOR_ID_MASTER   = "master"
	ACTOR_ID_MODBUS   = "modbus"
	ACTOR_ID_DISPATCH = "dispatch"
	ACTOR_ID_WATCHER  = "watcher"
	ACTOR_ID_MQTT     = "mqtt"
)

type ActorRef actor.PID

type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

type ActorRequest interface {
	ReplyTo() *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}

// RefreshTelemetryRequest asks the modbus actor for a fresh inverter
// snapshot. Full forces a holding register re-read, WithCells adds the
// per-cell voltage block.
type RefreshTelemetryRequest struct {
	ActorRequestMixIn
	Full      bool
	WithCells bool
}

type RefreshTelemetryResponse struct {
	ActorResponseMixIn
	Snapshot *givmodbus.Snapshot
}

// ExecuteWritesRequest asks the modbus actor to apply a batch of
// holding register writes in order.
type ExecuteWritesRequest struct {
	ActorRequestMixIn
	Writes []givmodbus.RegisterWrite
}

type ExecuteWritesResponse struct {
	ActorResponseMixIn
}

// NotifyRequest carries a human-readable alert to the MQTT actor.
type NotifyRequest struct {
	ActorRequestMixIn
	Message  string
	Priority string
	Tags     string
}

type NotifyResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

// TelemetryPublishEvent is broadcast on the actor system event stream
// after every successful dispatch tick.
type TelemetryPublishEvent struct {
	Record       sensorstore.TelemetryRecord
	HeatsinkTemp float64
	Eco          bool
	Pause        uint16
	StateOfCharge int
	TargetSoC    int
	DelaySeconds float64
}

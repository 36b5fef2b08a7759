package actor

import (
	"errors"
	"fmt"
	"time"

	"intelliclima2mqtt/internal/config"
	"intelliclima2mqtt/internal/core/domain"
	"intelliclima2mqtt/internal/events"
	"intelliclima2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// HADiscoveryActor announces the bridge, thermostats and ventilation
// units to Home Assistant, then goes dormant. It waits for the cloud
// and MQTT actors to be healthy before asking for the device list.
type HADiscoveryActor struct {
	config            *config.Config
	behavior          actor.Behavior
	stash             *actorutil.Stash
	cloudActor        *actor.PID
	mqttActor         *actor.PID
	cloudActorHealthy bool
	mqttActorHealthy  bool
	healthyRecv       int

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, cloudActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:     config,
		cloudActor: cloudActor,
		mqttActor:  mqttActor,
		behavior:   actor.NewBehavior(),
		stash:      &actorutil.Stash{},
		logger:     actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// check cloud and MQTT actor healthy
		state.healthyRecv = 0
		state.cloudActorHealthy = false
		state.mqttActorHealthy = false
		// cloud actor request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.cloudActor, domain.ActorHealthRequest{}, 30*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_CLOUD,
				Healthy: false,
			}
		})
		// MQTT actor request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 30*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_CLOUD:
				state.cloudActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv == 2 {

			if state.cloudActorHealthy && state.mqttActorHealthy {
				// ask cloud for the device list
				actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.cloudActor, domain.GetDevicesRequest{}, 40*time.Second), func(err error) any {
					return domain.GetDevicesResponse{
						ActorResponseMixIn: domain.ActorResponseMixIn{
							ResponseError: err,
						},
					}
				})
				state.behavior.Become(state.WaitingDevicesReceive)
				state.stash.UnstashAll(ctx)
			} else {
				panic(errors.New("MQTT actor or cloud actor are not healthy"))
			}
		}
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {

}

func (state *HADiscoveryActor) WaitingDevicesReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetDevicesResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		state.logger.Debug("hadiscovery@devices: GetDevicesResponse", zap.Int("devices", len(msg.Devices)))

		var sensors []domain.GenericSensor
		var climates []domain.GenericClimate
		var fans []domain.GenericFan

		bridgeDevice := events.BridgeDevice(state.config.MQTT.BaseTopic)
		bridgeSensors := events.BridgeSensors(bridgeDevice)
		sensors = append(sensors, bridgeSensors...)

		for _, cloudDevice := range msg.Devices {
			if cloudDevice.IsECO() {
				haDevice := events.VentilationDevice(cloudDevice, bridgeDevice)
				fans = append(fans, events.VentilationFan(haDevice, cloudDevice))
			} else {
				haDevice := events.ThermostatDevice(cloudDevice, bridgeDevice)
				climates = append(climates, events.ThermostatClimate(haDevice, cloudDevice))
				extraSensors := events.ThermostatSensors(haDevice, cloudDevice)
				for i := range extraSensors {
					if i > 0 {
						extraSensors[i].Device = events.IdDevice(haDevice)
					}
					sensors = append(sensors, extraSensors[i])
				}
			}
		}

		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors:  sensors,
			Climates: climates,
			Fans:     fans,
		})
		state.behavior.Become(state.Done)

	default:
		state.logger.Debug("hadiscovery@devices: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

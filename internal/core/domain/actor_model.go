package domain

import "intelliclima2mqtt/pkg/intelliclima"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_CLOUD        = "cloud"
	ACTOR_ID_POLLER       = "poller"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

type GetDevicesRequest struct {
	ActorRequestMixIn
}

type GetDevicesResponse struct {
	ActorResponseMixIn
	Devices []intelliclima.Device
}

type SyncStatesRequest struct {
	ActorRequestMixIn
}

type SyncStatesResponse struct {
	ActorResponseMixIn
	Climate map[string]intelliclima.ClimateState
	Eco     map[string]intelliclima.EcoState
}

type SetClimateStateRequest struct {
	ActorRequestMixIn
	Device  intelliclima.Device
	Command intelliclima.ClimateCommand
}

type SetClimateStateResponse struct {
	ActorResponseMixIn
}

type SetEcoStateRequest struct {
	ActorRequestMixIn
	Device  intelliclima.Device
	Command intelliclima.EcoCommand
}

type SetEcoStateResponse struct {
	ActorResponseMixIn
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors  []GenericSensor
	Climates []GenericClimate
	Fans     []GenericFan
}

type PublishDiscoveryResponse struct {
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

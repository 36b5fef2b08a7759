package domain

import "fmt"

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

// ClimateStateUpdateEvent carries one thermostat refresh. Nil fields
// mean the cloud did not report that value this cycle.
type ClimateStateUpdateEvent struct {
	SensorUpdateEventMixIn
	CurrentTemperature *float64
	TargetTemperature  *float64
	Mode               string
}

// FanStateUpdateEvent carries one ventilation unit refresh.
type FanStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Level      *int
	Percentage *int
	Preset     string
	On         *bool
}

package domain

import "fmt"

// DeviceControlRequest is an MQTT-originated command addressed to one
// device. The master routes it to the cloud actor by device id.

type DeviceControlRequest interface {
	ActorRequest
	DeviceControlCommand() string
	TargetDeviceId() string
}

type DeviceControlRequestMixIn struct {
	ActorRequestMixIn
	DeviceId string
}

func (r DeviceControlRequestMixIn) DeviceControlCommand() string {
	return fmt.Sprintf("%T", r)
}

func (r DeviceControlRequestMixIn) TargetDeviceId() string {
	return r.DeviceId
}

type DeviceControlResponse interface {
	ActorResponse
	DeviceControlResponse() string
}

type DeviceControlResponseMixIn struct {
	ActorResponseMixIn
}

func (r DeviceControlResponseMixIn) DeviceControlResponse() string {
	return fmt.Sprintf("%T", r)
}

// Climate commands

type SetTargetTemperatureRequest struct {
	DeviceControlRequestMixIn
	Value float64
}

type SetTargetTemperatureResponse struct {
	DeviceControlResponseMixIn
}

type SetClimateModeRequest struct {
	DeviceControlRequestMixIn
	Mode string
}

type SetClimateModeResponse struct {
	DeviceControlResponseMixIn
}

// Fan commands

type SetFanPercentageRequest struct {
	DeviceControlRequestMixIn
	Percentage int
}

type SetFanPercentageResponse struct {
	DeviceControlResponseMixIn
}

type SetFanPresetRequest struct {
	DeviceControlRequestMixIn
	Preset string
}

type SetFanPresetResponse struct {
	DeviceControlResponseMixIn
}

type SetFanPowerRequest struct {
	DeviceControlRequestMixIn
	On bool
}

type SetFanPowerResponse struct {
	DeviceControlResponseMixIn
}

// ensure interface compliance
var _ DeviceControlRequest = (*SetTargetTemperatureRequest)(nil)
var _ DeviceControlRequest = (*SetFanPercentageRequest)(nil)

package mqtt

import (
	"fmt"

	"intelliclima2mqtt/internal/core/domain"
)

type HADiscoveryConfig struct {
	Device            HADiscoveryDevice `json:"device"`
	StateTopic        string            `json:"state_topic,omitempty"`
	CommandTopic      string            `json:"command_topic,omitempty"`
	StateClass        string            `json:"state_class,omitempty"`
	DeviceClass       string            `json:"device_class,omitempty"`
	UnitOfMeasurement string            `json:"unit_of_measurement,omitempty"`
	AvTopic           string            `json:"availability_topic,omitempty"`
	EntityCategory    string            `json:"entity_category,omitempty"`
	Name              string            `json:"name"`
	UniqueId          string            `json:"unique_id"`
	Platform          string            `json:"platform"`
	EnabledByDefault  *bool             `json:"enabled_by_default,omitempty"`
	PayloadOn         string            `json:"payload_on,omitempty"`
	PayloadOff        string            `json:"payload_off,omitempty"`
	Icon              string            `json:"icon,omitempty"`

	// climate
	CurrentTemperatureTopic string   `json:"current_temperature_topic,omitempty"`
	TemperatureStateTopic   string   `json:"temperature_state_topic,omitempty"`
	TemperatureCommandTopic string   `json:"temperature_command_topic,omitempty"`
	ModeStateTopic          string   `json:"mode_state_topic,omitempty"`
	ModeCommandTopic        string   `json:"mode_command_topic,omitempty"`
	Modes                   []string `json:"modes,omitempty"`
	MinTemp                 float64  `json:"min_temp,omitempty"`
	MaxTemp                 float64  `json:"max_temp,omitempty"`
	TempStep                float64  `json:"temp_step,omitempty"`

	// fan
	PercentageStateTopic   string   `json:"percentage_state_topic,omitempty"`
	PercentageCommandTopic string   `json:"percentage_command_topic,omitempty"`
	PresetModeStateTopic   string   `json:"preset_mode_state_topic,omitempty"`
	PresetModeCommandTopic string   `json:"preset_mode_command_topic,omitempty"`
	PresetModes            []string `json:"preset_modes,omitempty"`
	SpeedRangeMax          int      `json:"speed_range_max,omitempty"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

func HADiscoverySensorTopic(discoveryTopic string, sensor domain.GenericSensor) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", discoveryTopic, sensor.SensorType, sensor.Device.Id, sensor.Id)
}

func HADiscoveryClimateTopic(discoveryTopic string, climate domain.GenericClimate) string {
	return fmt.Sprintf("%s/climate/%s/%s/config", discoveryTopic, climate.Device.Id, climate.Id)
}

func HADiscoveryFanTopic(discoveryTopic string, fan domain.GenericFan) string {
	return fmt.Sprintf("%s/fan/%s/%s/config", discoveryTopic, fan.Device.Id, fan.Id)
}

func GenericSensorToHADiscoveryMessage(client *MQTTClient, sensor domain.GenericSensor) HADiscoveryConfig {
	dev := device(sensor.Device)
	var topic string
	if sensor.Id == "bridge" {
		topic = client.BridgeStateTopic()
	} else {
		topic = client.SensorStateTopic(sensor.Id)
	}
	disConfig := HADiscoveryConfig{
		Device:            dev,
		StateTopic:        topic,
		StateClass:        sensor.StateClass,
		DeviceClass:       sensor.DeviceClass,
		UnitOfMeasurement: sensor.UnitOfMeasurement,
		AvTopic:           client.BridgeStateTopic(),
		EntityCategory:    sensor.EntityCategory,
		Name:              sensor.Name,
		UniqueId:          sensor.UniqueId,
		Icon:              sensor.Icon,
		EnabledByDefault:  sensor.EnabledByDefault,
		Platform:          "mqtt",
	}
	if sensor.SensorType == "binary_sensor" {
		disConfig.PayloadOn = MQTT_PAYLOAD_ONLINE
		disConfig.PayloadOff = MQTT_PAYLOAD_OFFLINE
	}
	// the bridge state sensor is its own availability source
	if sensor.Id == "bridge" {
		disConfig.AvTopic = ""
	}
	return disConfig
}

func GenericClimateToHADiscoveryMessage(client *MQTTClient, climate domain.GenericClimate) HADiscoveryConfig {
	dev := device(climate.Device)
	return HADiscoveryConfig{
		Device:                  dev,
		AvTopic:                 client.BridgeStateTopic(),
		Name:                    climate.Name,
		UniqueId:                climate.UniqueId,
		Platform:                "mqtt",
		Icon:                    climate.Icon,
		CurrentTemperatureTopic: client.ClimateStateTopic(climate.Id, "current_temperature"),
		TemperatureStateTopic:   client.ClimateStateTopic(climate.Id, "temperature"),
		TemperatureCommandTopic: client.ClimateCommandTopic(climate.Id, "temperature"),
		ModeStateTopic:          client.ClimateStateTopic(climate.Id, "mode"),
		ModeCommandTopic:        client.ClimateCommandTopic(climate.Id, "mode"),
		Modes:                   climate.Modes,
		MinTemp:                 climate.MinTemp,
		MaxTemp:                 climate.MaxTemp,
		TempStep:                climate.TempStep,
	}
}

func GenericFanToHADiscoveryMessage(client *MQTTClient, fan domain.GenericFan) HADiscoveryConfig {
	dev := device(fan.Device)
	return HADiscoveryConfig{
		Device:                 dev,
		AvTopic:                client.BridgeStateTopic(),
		Name:                   fan.Name,
		UniqueId:               fan.UniqueId,
		Platform:               "mqtt",
		Icon:                   fan.Icon,
		StateTopic:             client.FanStateTopic(fan.Id, "power"),
		CommandTopic:           client.FanCommandTopic(fan.Id, "power"),
		PayloadOn:              MQTT_PAYLOAD_ON,
		PayloadOff:             MQTT_PAYLOAD_OFF,
		PercentageStateTopic:   client.FanStateTopic(fan.Id, "percentage"),
		PercentageCommandTopic: client.FanCommandTopic(fan.Id, "percentage"),
		PresetModeStateTopic:   client.FanStateTopic(fan.Id, "preset"),
		PresetModeCommandTopic: client.FanCommandTopic(fan.Id, "preset"),
		PresetModes:            fan.Presets,
		SpeedRangeMax:          fan.SpeedRange,
	}
}

func device(d domain.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{d.Id},
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
		ViaDevice:    d.ViaDevice,
	}
}

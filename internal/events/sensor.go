package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"intelliclima2mqtt/internal/core/domain"
	"intelliclima2mqtt/pkg/intelliclima"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE = "bridge"

	SENSOR_SUFFIX_HUMIDITY     = "humidity"
	SENSOR_SUFFIX_OUTDOOR_TEMP = "outdoor_temperature"

	STATE_CLASS_MEASUREMENT = "measurement"

	DEVICE_CLASS_TEMPERATURE  = "temperature"
	DEVICE_CLASS_HUMIDITY     = "humidity"
	DEVICE_CLASS_CONNECTIVITY = "connectivity"

	ENTITY_CLASS_DIAGNOSTIC = "diagnostic"

	SENSOR_TYPE_SENSOR = "sensor"
	SENSOR_TYPE_BINARY = "binary_sensor"
)

func BridgeDevice(baseTopic string) domain.Device {
	return domain.Device{
		Id:           fmt.Sprintf("intelliclima_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "Intelliclima2MQTT",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Intelliclima %s", md5HashShort(baseTopic)),
	}
}

// ThermostatDevice maps one cloud C800 payload to an HA device entry.
func ThermostatDevice(d intelliclima.Device, bridge domain.Device) domain.Device {
	name := d.Name
	if name == "" {
		name = fmt.Sprintf("Thermostat %s", d.ID)
	}
	return domain.Device{
		Id:           fmt.Sprintf("icl_crono_%s", md5HashShort(deviceKey(d))),
		Manufacturer: "Fantini Cosmi",
		Model:        d.Family,
		Name:         name,
		ViaDevice:    bridge.Id,
	}
}

// VentilationDevice maps one cloud ECO payload to an HA device entry.
func VentilationDevice(d intelliclima.Device, bridge domain.Device) domain.Device {
	name := d.Name
	if name == "" {
		name = fmt.Sprintf("ECO %s", d.ID)
	}
	return domain.Device{
		Id:           fmt.Sprintf("icl_eco_%s", md5HashShort(deviceKey(d))),
		Manufacturer: "Fantini Cosmi",
		Model:        d.Family,
		Name:         name,
		ViaDevice:    bridge.Id,
	}
}

func IdDevice(device domain.Device) domain.Device {
	return domain.Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

// ThermostatClimate is the HA climate entity for one C800. The entity
// id is the cloud device id so MQTT commands route back without a
// lookup table on the broker side.
func ThermostatClimate(haDevice domain.Device, d intelliclima.Device) domain.GenericClimate {
	return domain.GenericClimate{
		Device:   haDevice,
		Id:       d.ID,
		Name:     haDevice.Name,
		UniqueId: uniqueId(haDevice.Id, "climate"),
		Modes: []string{
			string(intelliclima.ClimateModeOff),
			string(intelliclima.ClimateModeHeat),
			string(intelliclima.ClimateModeAuto),
		},
		MinTemp:  5,
		MaxTemp:  35,
		TempStep: 0.5,
	}
}

// ThermostatSensors are the extra measurements a C800 reports besides
// the climate state itself.
func ThermostatSensors(haDevice domain.Device, d intelliclima.Device) []domain.GenericSensor {
	return []domain.GenericSensor{
		{
			Device:            haDevice,
			Id:                sensorId(d.ID, SENSOR_SUFFIX_HUMIDITY),
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Humidity",
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_HUMIDITY,
			UnitOfMeasurement: "%",
			UniqueId:          uniqueId(haDevice.Id, SENSOR_SUFFIX_HUMIDITY),
			Icon:              "mdi:water-percent",
		},
		{
			Device:            haDevice,
			Id:                sensorId(d.ID, SENSOR_SUFFIX_OUTDOOR_TEMP),
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Outdoor temperature",
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_TEMPERATURE,
			UnitOfMeasurement: "°C",
			UniqueId:          uniqueId(haDevice.Id, SENSOR_SUFFIX_OUTDOOR_TEMP),
			Icon:              "mdi:thermometer",
		},
	}
}

// VentilationFan is the HA fan entity for one ECO unit.
func VentilationFan(haDevice domain.Device, d intelliclima.Device) domain.GenericFan {
	presets := make([]string, 0, len(intelliclima.VentilationModes))
	for _, m := range intelliclima.VentilationModes {
		presets = append(presets, string(m))
	}
	return domain.GenericFan{
		Device:     haDevice,
		Id:         d.ID,
		Name:       haDevice.Name,
		UniqueId:   uniqueId(haDevice.Id, "fan"),
		Presets:    presets,
		SpeedRange: intelliclima.MaxSpeedLevel,
		Icon:       "mdi:fan",
	}
}

func BridgeSensors(bridgeDevice domain.Device) []domain.GenericSensor {
	var sensors []domain.GenericSensor

	sensors = append(sensors, domain.GenericSensor{
		Device:      bridgeDevice,
		Id:          SENSOR_ID_BRIDGE_STATE,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "Bridge connection state",
		DeviceClass: DEVICE_CLASS_CONNECTIVITY,
		UniqueId:    uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

// SensorId builds the state-topic id for one per-device measurement.
func SensorId(deviceId, suffix string) string {
	return sensorId(deviceId, suffix)
}

func sensorId(deviceId, suffix string) string {
	return fmt.Sprintf("%s_%s", deviceId, suffix)
}

func deviceKey(d intelliclima.Device) string {
	if d.Serial != "" {
		return d.Serial
	}
	return d.ID
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

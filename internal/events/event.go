package events

import (
	"intelliclima2mqtt/internal/core/domain"
	"intelliclima2mqtt/pkg/intelliclima"
)

// ClimateStateToUpdateEvents maps one thermostat snapshot to the events
// the MQTT side publishes: the climate entity itself plus the extra
// measurement sensors.
func ClimateStateToUpdateEvents(d intelliclima.Device, st intelliclima.ClimateState) []any {
	var events []any

	events = append(events, domain.ClimateStateUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: d.ID,
		},
		CurrentTemperature: st.CurrentTemperature,
		TargetTemperature:  st.TargetTemperature,
		Mode:               string(st.Mode),
	})
	if st.Humidity != nil {
		events = append(events, domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: sensorId(d.ID, SENSOR_SUFFIX_HUMIDITY),
			},
			Value:    *st.Humidity,
			Decimals: 0,
		})
	}
	if st.OutdoorTemperature != nil {
		events = append(events, domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: sensorId(d.ID, SENSOR_SUFFIX_OUTDOOR_TEMP),
			},
			Value:    *st.OutdoorTemperature,
			Decimals: 1,
		})
	}

	return events
}

// EcoStateToUpdateEvents maps one ventilation snapshot to a fan state
// event. Raw fields the codec cannot normalize are dropped rather than
// published as garbage.
func EcoStateToUpdateEvents(d intelliclima.Device, st intelliclima.EcoState) []any {
	ev := domain.FanStateUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: d.ID,
		},
	}

	if raw, ok := st.EffectiveSpeed(); ok {
		if level, err := intelliclima.NormalizeSpeed(raw); err == nil {
			on := intelliclima.IsOn(level)
			pct := int(intelliclima.Percentage(level) * 100)
			ev.Level = &level
			ev.Percentage = &pct
			ev.On = &on
		}
	}
	if raw, ok := st.EffectiveMode(); ok {
		if mode, err := intelliclima.NormalizeMode(raw); err == nil {
			ev.Preset = string(mode)
		}
	}

	if ev.Level == nil && ev.Preset == "" {
		return nil
	}
	return []any{ev}
}

func BridgeStateToUpdateEvent(online bool) any {
	return domain.BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: SENSOR_ID_BRIDGE_STATE,
		},
		Value: online,
	}
}
